package cmd

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/etnz/treasury/date"
	"github.com/etnz/treasury/store"
	"github.com/etnz/treasury/tracker"
	"github.com/fsnotify/fsnotify"
	"github.com/google/subcommands"
)

type watchCmd struct {
	tick time.Duration
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "keeps the quotes of held bonds in line as the portfolio changes" }
func (*watchCmd) Usage() string {
	return `tsy watch [-tick <duration>]

Syncs once, then again every time a file of the portfolio folder changes,
until interrupted. Changes caused by its own writes are ignored.

Every bond is synced at most once a day: on day change all bonds are
reconsidered, the -tick flag sets how often the day is checked.
`
}

func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&c.tick, "tick", time.Minute, "Interval between two checks of the current day.")
}

func (c *watchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.tick <= 0 {
		return fail("-tick must be positive, got %v", c.tick)
	}
	cfg, err := loadConfig()
	if err != nil {
		return fail("%v", err)
	}
	e, err := newEngine(cfg)
	if err != nil {
		return fail("%v", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fail("cannot watch the portfolio folder: %v", err)
	}
	defer watcher.Close()
	quotes := filepath.Join(cfg.Store.Dir, store.QuotesDir)
	if err := os.MkdirAll(quotes, 0o755); err != nil {
		return fail("%v", err)
	}
	for _, dir := range []string{cfg.Store.Dir, quotes} {
		if err := watcher.Add(dir); err != nil {
			return fail("cannot watch %q: %v", dir, err)
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	events := make(chan struct{}, 1)
	go forward(ctx, watcher, e, c.tick, events)

	log.Printf("watching %q", cfg.Store.Dir)
	if err := e.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
		return fail("%v", err)
	}
	return subcommands.ExitSuccess
}

// forward turns file changes into portfolio events, and refreshes every bond
// on day change. Events are coalesced: a pending one absorbs the next ones.
func forward(ctx context.Context, w *fsnotify.Watcher, e *tracker.Engine, tick time.Duration, events chan<- struct{}) {
	send := func() {
		select {
		case events <- struct{}{}:
		default:
		}
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	today := date.Today()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			send()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Printf("watch error: %v", err)
		case <-ticker.C:
			if d := date.Today(); d != today {
				today = d
				e.Forget()
				// not an event: the write lease must not swallow it.
				if _, err := e.Refresh(ctx); err != nil {
					log.Printf("refresh on %s failed: %v", d, err)
				}
			}
		}
	}
}
