// Package cmd implements the CLI application keeping savings bond prices up to date.
package cmd

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/etnz/treasury/catalog"
	"github.com/etnz/treasury/config"
	"github.com/etnz/treasury/store"
	"github.com/etnz/treasury/workbook"
	"github.com/google/subcommands"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&syncCmd{}, "portfolio")
	c.Register(&watchCmd{}, "portfolio")
	c.Register(&holdCmd{}, "portfolio")

	c.Register(&scheduleCmd{}, "bonds")
	c.Register(&seriesCmd{}, "bonds")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var configFile = flag.String("config", "", "Path to the configuration file (default: treasury.yaml in . or $HOME/.config/treasury)")
var plain = flag.Bool("plain", false, "Print raw markdown instead of styled terminal output")

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openCatalog returns the catalog of the configured workbook.
func openCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Source.File != "" {
		wb, err := workbook.Open(cfg.Source.File)
		if err != nil {
			return nil, err
		}
		return catalog.New(workbook.Preloaded(wb)), nil
	}
	if cfg.Source.URL == "" {
		return nil, fmt.Errorf("no workbook configured: set source.url or source.file")
	}
	opts := []workbook.Option{workbook.WithTimeout(cfg.Source.Timeout)}
	if cfg.Source.Cache {
		opts = append(opts, workbook.WithDiskCache())
	}
	return catalog.New(workbook.NewSource(cfg.Source.URL, opts...)), nil
}

// openStore opens the configured portfolio folder.
func openStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(cfg.Store.Dir)
}

// newLogger returns the structured logger of the sync engine.
func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// printMarkdown prints md styled for the terminal, or raw with -plain.
func printMarkdown(md string) {
	if *plain {
		fmt.Print(md)
		return
	}
	out, err := glamour.Render(md, "auto")
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}

// fail prints an error and returns the failure status.
func fail(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	return subcommands.ExitFailure
}
