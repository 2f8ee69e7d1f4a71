package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/etnz/treasury"
	"github.com/etnz/treasury/date"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Default engine options.
const (
	DefaultChunkSize  = 50
	DefaultLease      = 1500 * time.Millisecond
	DefaultCurrency   = "PLN"
	DefaultDataSource = "MANUAL"
)

// Options configure an Engine. Zero fields take their default value.
type Options struct {
	Builder    treasury.Builder // Today is overwritten on each pass.
	Tolerance  decimal.Decimal
	ChunkSize  int
	Lease      time.Duration
	Currency   string
	DataSource string
	Now        func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Tolerance.IsZero() {
		o.Tolerance = DefaultTolerance
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Lease <= 0 {
		o.Lease = DefaultLease
	}
	if o.Currency == "" {
		o.Currency = DefaultCurrency
	}
	if o.DataSource == "" {
		o.DataSource = DefaultDataSource
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Engine synchronizes the quotes of held bonds with their schedules.
type Engine struct {
	host   Host
	series SeriesSource
	log    Logger
	opts   Options

	mu         sync.Mutex
	current    *pass            // running pass, nil when idle.
	states     map[string]State // by normalized symbol.
	enriched   map[string]bool  // profiles already enriched.
	leaseUntil time.Time        // portfolio events are ignored until then.
}

// pass is a running refresh shared by concurrent callers.
type pass struct {
	done   chan struct{}
	report Report
	err    error
}

// New returns an Engine writing into host the schedules of series found in series.
// A nil log logs to slog.Default().
func New(host Host, series SeriesSource, log Logger, opts Options) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		host:     host,
		series:   series,
		log:      log,
		opts:     opts.withDefaults(),
		states:   make(map[string]State),
		enriched: make(map[string]bool),
	}
}

// Refresh runs a pass over the held bonds and returns once it is complete.
//
// A call made while a pass is running waits for that pass instead of starting
// a new one. Cancelling ctx stops the wait, not the pass.
func (e *Engine) Refresh(ctx context.Context) (Report, error) {
	e.mu.Lock()
	p := e.current
	if p == nil {
		p = &pass{done: make(chan struct{})}
		e.current = p
		go func() {
			p.report, p.err = e.run(context.WithoutCancel(ctx))
			e.mu.Lock()
			e.current = nil
			e.mu.Unlock()
			close(p.done)
		}()
	}
	e.mu.Unlock()

	select {
	case <-p.done:
		return p.report, p.err
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
}

// Notify handles a "portfolio updated" event. Events received while the write
// lease of the engine's own last write is active are ignored.
//
// It returns false if the event was ignored.
func (e *Engine) Notify(ctx context.Context) bool {
	if e.leased() {
		e.log.Info("ignoring portfolio update following own writes")
		return false
	}
	if _, err := e.Refresh(ctx); err != nil {
		e.log.Warn("refresh failed", "err", err)
	}
	return true
}

// Run refreshes once, then on every event until ctx is done or events is closed.
func (e *Engine) Run(ctx context.Context, events <-chan struct{}) error {
	if _, err := e.Refresh(ctx); err != nil {
		e.log.Warn("refresh failed", "err", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				return nil
			}
			e.Notify(ctx)
		}
	}
}

// State returns the processing state of symbol.
func (e *Engine) State(symbol string) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.states[treasury.Normalize(symbol)]
}

// Forget makes processed and skipped symbols eligible for the next pass.
func (e *Engine) Forget() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for symbol, s := range e.states {
		if s != InFlight {
			delete(e.states, symbol)
		}
	}
}

func (e *Engine) leased() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts.Now().Before(e.leaseUntil)
}

// takeLease marks the engine as writing for the lease duration.
func (e *Engine) takeLease() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.leaseUntil = e.opts.Now().Add(e.opts.Lease)
}

// claim moves symbol from Unseen to InFlight.
func (e *Engine) claim(symbol string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.states[symbol] != Unseen {
		return false
	}
	e.states[symbol] = InFlight
	return true
}

func (e *Engine) settle(symbol string, s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s == Unseen {
		delete(e.states, symbol)
		return
	}
	e.states[symbol] = s
}

// run is a single pass.
func (e *Engine) run(ctx context.Context) (Report, error) {
	var report Report
	symbols, errs := e.held(ctx)

	b := e.opts.Builder
	b.Today = date.Of(e.opts.Now())

	for _, symbol := range symbols {
		key := treasury.Normalize(symbol)
		if !e.claim(key) {
			continue
		}
		state, err := e.process(ctx, b, symbol, &report)
		e.settle(key, state)
		switch state {
		case Processed:
			report.Processed = append(report.Processed, key)
		case Skipped:
			report.Skipped = append(report.Skipped, key)
		default:
			report.Failed = append(report.Failed, key)
		}
		if err != nil {
			e.log.Warn("cannot sync bond", "symbol", symbol, "err", err)
			errs = errors.Join(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	if report.changed() {
		if f, ok := e.host.(Flusher); ok {
			if err := f.Flush(ctx); err != nil {
				errs = errors.Join(errs, fmt.Errorf("cannot flush quotes: %w", err))
			}
			e.takeLease()
		}
	}
	return report, errs
}

// held returns the bond symbols held in any account, first spelling wins.
func (e *Engine) held(ctx context.Context) ([]string, error) {
	accounts, err := e.host.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot list accounts: %w", err)
	}
	var errs error
	var symbols []string
	seen := make(map[string]bool)
	for _, a := range accounts {
		holdings, err := e.host.Holdings(ctx, a.ID)
		if err != nil {
			e.log.Warn("cannot list holdings", "account", a.ID, "err", err)
			errs = errors.Join(errs, fmt.Errorf("cannot list holdings of %q: %w", a.ID, err))
			continue
		}
		for _, h := range holdings {
			key := treasury.Normalize(h.Symbol)
			if !treasury.IsBondSymbol(key) || seen[key] {
				continue
			}
			seen[key] = true
			symbols = append(symbols, h.Symbol)
		}
	}
	return symbols, errs
}

// process brings the recorded quotes of symbol in line with its schedule and
// returns the state it ends up in. Unseen means it is retried next pass.
func (e *Engine) process(ctx context.Context, b treasury.Builder, symbol string, report *Report) (State, error) {
	ref, err := treasury.ParseReference(symbol)
	if err != nil {
		return Skipped, nil
	}
	s, ok, err := e.series.Series(ctx, ref.SeriesID, ref.BondType)
	if err != nil {
		return Unseen, fmt.Errorf("cannot load series %s: %w", ref.SeriesID, err)
	}
	if !ok {
		e.log.Warn("unknown bond series", "symbol", symbol, "series", ref.SeriesID)
		return Skipped, nil
	}
	points, err := b.Build(s, ref.PurchaseDay)
	if err != nil || len(points) == 0 {
		e.log.Warn("no schedule for bond", "symbol", symbol, "err", err)
		return Skipped, nil
	}

	if e.enrich(ctx, symbol, ref) {
		report.Profiles++
	}

	quotes, err := e.host.Quotes(ctx, symbol)
	if err != nil {
		return Unseen, fmt.Errorf("cannot read quotes: %w", err)
	}
	changes := Diff(points, recorded(quotes), e.opts.Tolerance)
	if len(changes) == 0 {
		return Processed, nil
	}
	added, updated, err := e.write(ctx, symbol, changes)
	report.Added += added
	report.Updated += updated
	if err != nil {
		return Unseen, fmt.Errorf("cannot write quotes: %w", err)
	}
	e.log.Info("bond quotes synced", "symbol", symbol, "added", added, "updated", updated)
	return Processed, nil
}

// write upserts changes by chunks, concurrently within a chunk.
func (e *Engine) write(ctx context.Context, symbol string, changes []Change) (added, updated int, err error) {
	for start := 0; start < len(changes); start += e.opts.ChunkSize {
		chunk := changes[start:min(start+e.opts.ChunkSize, len(changes))]
		e.takeLease()
		g, gctx := errgroup.WithContext(ctx)
		for _, c := range chunk {
			g.Go(func() error {
				q := newQuote(symbol, c.Date, c.New, e.opts.Currency, e.opts.DataSource)
				return e.host.UpsertQuote(gctx, q)
			})
		}
		err := g.Wait()
		e.takeLease()
		if err != nil {
			return added, updated, err
		}
		for _, c := range chunk {
			if c.IsUpdate() {
				updated++
			} else {
				added++
			}
		}
	}
	return added, updated, nil
}
