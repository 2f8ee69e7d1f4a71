package cmd

import (
	"context"
	"flag"

	"github.com/etnz/treasury"
	"github.com/etnz/treasury/date"
	"github.com/etnz/treasury/renderer"
	"github.com/google/subcommands"
)

type scheduleCmd struct {
	mode  string
	today string
}

func (*scheduleCmd) Name() string     { return "schedule" }
func (*scheduleCmd) Synopsis() string { return "prints the price schedule of a savings bond" }
func (*scheduleCmd) Usage() string {
	return `tsy schedule [-mode daily|event] [-today <date>] <symbol>...

Prints the price timeline of bonds, without touching the portfolio.

A symbol is a series id, optionally followed by the day of month the bond was
bought: ROR0127 is bought on the first day of the sale window, ROR0127.19 on
the 19th.

Daily schedules stop at today, or at the date given with -today.
`
}

func (c *scheduleCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.mode, "mode", "", "Schedule mode, 'daily' or 'event' (default: from configuration)")
	f.StringVar(&c.today, "today", "", "Last day of daily schedules (default: today)")
}

func (c *scheduleCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		return fail("at least one symbol is required")
	}
	cfg, err := loadConfig()
	if err != nil {
		return fail("%v", err)
	}
	b, err := cfg.Builder()
	if err != nil {
		return fail("%v", err)
	}
	if c.mode != "" {
		if b.Mode, err = treasury.ParseMode(c.mode); err != nil {
			return fail("%v", err)
		}
	}
	if c.today != "" {
		if b.Today, err = date.Parse(c.today); err != nil {
			return fail("invalid -today: %v", err)
		}
	}
	cat, err := openCatalog(cfg)
	if err != nil {
		return fail("%v", err)
	}

	status := subcommands.ExitSuccess
	for _, symbol := range f.Args() {
		ref, err := treasury.ParseReference(symbol)
		if err != nil {
			status = fail("%v", err)
			continue
		}
		s, ok, err := cat.Series(ctx, ref.SeriesID, ref.BondType)
		if err != nil {
			return fail("cannot read the workbook: %v", err)
		}
		if !ok {
			status = fail("unknown series %s", ref.SeriesID)
			continue
		}
		points, err := b.Build(s, ref.PurchaseDay)
		if err != nil {
			status = fail("%v", err)
			continue
		}
		purchase := treasury.PurchaseDate(s, ref.PurchaseDay)
		buyout, _ := treasury.BuyoutDate(s, purchase)
		desc, _, _ := cat.Description(ctx, ref.BondType)
		printMarkdown(renderer.RenderSchedule(&renderer.Schedule{
			Symbol:      ref.String(),
			Series:      s,
			Description: desc,
			Mode:        b.Mode,
			Purchase:    purchase,
			Buyout:      buyout,
			Currency:    cfg.Sync.Currency,
			Points:      points,
		}))
	}
	return status
}
