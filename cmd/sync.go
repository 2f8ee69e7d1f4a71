package cmd

import (
	"context"
	"flag"

	"github.com/etnz/treasury/config"
	"github.com/etnz/treasury/renderer"
	"github.com/etnz/treasury/tracker"
	"github.com/google/subcommands"
)

type syncCmd struct{}

func (*syncCmd) Name() string     { return "sync" }
func (*syncCmd) Synopsis() string { return "brings the quotes of held bonds in line with their schedules" }
func (*syncCmd) Usage() string {
	return `tsy sync

Reads the holdings of the portfolio folder, computes the price schedule of
every savings bond held (symbols like ROR0127 or EDO0434.12) from the issuer's
workbook, and writes the missing or different quotes.

Running it twice in a row writes nothing the second time.
`
}

func (*syncCmd) SetFlags(f *flag.FlagSet) {}

func (*syncCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		return fail("%v", err)
	}
	e, err := newEngine(cfg)
	if err != nil {
		return fail("%v", err)
	}
	report, err := e.Refresh(ctx)
	printMarkdown(renderer.RenderReport(report))
	if err != nil {
		return fail("some bonds could not be synced: %v", err)
	}
	return subcommands.ExitSuccess
}

// newEngine returns the sync engine of the configured store and workbook.
func newEngine(cfg *config.Config) (*tracker.Engine, error) {
	cat, err := openCatalog(cfg)
	if err != nil {
		return nil, err
	}
	s, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.TrackerOptions()
	if err != nil {
		return nil, err
	}
	return tracker.New(s, cat, newLogger(), opts), nil
}
