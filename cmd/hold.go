package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/etnz/treasury"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

type holdCmd struct {
	account string
}

func (*holdCmd) Name() string     { return "hold" }
func (*holdCmd) Synopsis() string { return "sets the quantity of a bond held in an account" }
func (*holdCmd) Usage() string {
	return `tsy hold -a <account> <symbol> <quantity>

Records in portfolio.json that <quantity> bonds <symbol> are held in the
account. A quantity of 0 removes the holding. The account is created if needed.
`
}

func (c *holdCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "a", "", "Account holding the bonds")
}

func (c *holdCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		return fail("a symbol and a quantity are required")
	}
	symbol := f.Arg(0)
	if _, err := treasury.ParseReference(symbol); err != nil {
		return fail("%v", err)
	}
	quantity, err := decimal.NewFromString(f.Arg(1))
	if err != nil {
		return fail("invalid quantity %q: %v", f.Arg(1), err)
	}
	cfg, err := loadConfig()
	if err != nil {
		return fail("%v", err)
	}
	s, err := openStore(cfg)
	if err != nil {
		return fail("%v", err)
	}
	if err := s.Hold(c.account, symbol, quantity); err != nil {
		return fail("%v", err)
	}
	if err := s.Flush(ctx); err != nil {
		return fail("%v", err)
	}
	fmt.Printf("%s now holds %s %s\n", c.account, quantity, treasury.Normalize(symbol))
	return subcommands.ExitSuccess
}
