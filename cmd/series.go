package cmd

import (
	"context"
	"flag"

	"github.com/etnz/treasury"
	"github.com/etnz/treasury/renderer"
	"github.com/google/subcommands"
)

type seriesCmd struct{}

func (*seriesCmd) Name() string     { return "series" }
func (*seriesCmd) Synopsis() string { return "lists the series of a bond type" }
func (*seriesCmd) Usage() string {
	return `tsy series <type>...

Lists the series published in the issuer's workbook for bond types (ROR, DOS,
TOS, COI, EDO, ROS, ROD, OTS), with the detected layout of their sheet.
`
}

func (*seriesCmd) SetFlags(f *flag.FlagSet) {}

func (*seriesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		return fail("at least one bond type is required")
	}
	cfg, err := loadConfig()
	if err != nil {
		return fail("%v", err)
	}
	cat, err := openCatalog(cfg)
	if err != nil {
		return fail("%v", err)
	}

	status := subcommands.ExitSuccess
	for _, arg := range f.Args() {
		bondType := treasury.Normalize(arg)
		layout, err := cat.Layout(ctx, bondType)
		if err != nil {
			status = fail("sheet %s: %v", bondType, err)
			continue
		}
		list, err := cat.All(ctx, bondType)
		if err != nil {
			return fail("cannot read the workbook: %v", err)
		}
		desc, _, _ := cat.Description(ctx, bondType)
		printMarkdown(renderer.RenderSeries(&renderer.SeriesList{
			BondType:    bondType,
			Description: desc,
			Layout:      layout,
			Currency:    cfg.Sync.Currency,
			Series:      list,
		}))
	}
	return status
}
