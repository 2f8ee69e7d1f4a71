package tracker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/etnz/treasury"
	"github.com/etnz/treasury/date"
	"github.com/shopspring/decimal"
)

// host is an in-memory Host.
type host struct {
	mu       sync.Mutex
	holdings map[string][]Holding        // by account id.
	quotes   map[string]map[string]Quote // by symbol, then quote id.
	profiles map[string]Profile

	passes, writes, flushes int
	inFlight, maxInFlight   int
	failUpsert              error

	gate    chan struct{} // when set, Accounts waits for it to be closed.
	entered chan struct{}
}

func newHost(holdings map[string][]string) *host {
	h := &host{
		holdings: make(map[string][]Holding),
		quotes:   make(map[string]map[string]Quote),
		profiles: make(map[string]Profile),
		entered:  make(chan struct{}, 1),
	}
	for account, symbols := range holdings {
		for _, s := range symbols {
			h.holdings[account] = append(h.holdings[account], Holding{AccountID: account, Symbol: s, Quantity: decimal.NewFromInt(1)})
		}
	}
	return h
}

func (h *host) Accounts(ctx context.Context) ([]Account, error) {
	h.mu.Lock()
	h.passes++
	gate := h.gate
	var ids []string
	for id := range h.holdings {
		ids = append(ids, id)
	}
	h.mu.Unlock()
	select {
	case h.entered <- struct{}{}:
	default:
	}
	if gate != nil {
		<-gate
	}
	slices.Sort(ids)
	var accounts []Account
	for _, id := range ids {
		accounts = append(accounts, Account{ID: id, Name: id})
	}
	return accounts, nil
}

func (h *host) Holdings(ctx context.Context, accountID string) ([]Holding, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.holdings[accountID], nil
}

func (h *host) Quotes(ctx context.Context, symbol string) ([]Quote, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var list []Quote
	for _, q := range h.quotes[treasury.Normalize(symbol)] {
		list = append(list, q)
	}
	return list, nil
}

func (h *host) Profile(ctx context.Context, symbol string) (Profile, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.profiles[treasury.Normalize(symbol)]
	if !ok {
		p = Profile{Symbol: symbol, Name: symbol}
	}
	return p, nil
}

func (h *host) UpdateProfile(ctx context.Context, p Profile) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.profiles[treasury.Normalize(p.Symbol)] = p
	return nil
}

func (h *host) UpsertQuote(ctx context.Context, q Quote) error {
	h.mu.Lock()
	h.inFlight++
	h.maxInFlight = max(h.maxInFlight, h.inFlight)
	h.mu.Unlock()
	time.Sleep(time.Millisecond) // let concurrent upserts overlap.
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inFlight--
	if h.failUpsert != nil {
		return h.failUpsert
	}
	h.writes++
	key := treasury.Normalize(q.Symbol)
	if h.quotes[key] == nil {
		h.quotes[key] = make(map[string]Quote)
	}
	h.quotes[key][q.ID] = q
	return nil
}

func (h *host) Flush(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.flushes++
	return nil
}

// record stores a quote without counting it as a write.
func (h *host) record(q Quote) {
	key := treasury.Normalize(q.Symbol)
	if h.quotes[key] == nil {
		h.quotes[key] = make(map[string]Quote)
	}
	h.quotes[key][q.ID] = q
}

func (h *host) count() (passes, writes int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.passes, h.writes
}

// source is an in-memory SeriesSource.
type source struct {
	mu      sync.Mutex
	series  map[string]treasury.Series
	err     error
	descErr error // of Description only.
	lookups int
}

func (s *source) Series(ctx context.Context, id, bondType string) (treasury.Series, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.err != nil {
		return treasury.Series{}, false, s.err
	}
	series, ok := s.series[id]
	return series, ok, nil
}

func (s *source) Description(ctx context.Context, bondType string) (string, bool, error) {
	s.mu.Lock()
	err := s.descErr
	s.mu.Unlock()
	if err != nil {
		return "", false, err
	}
	if bondType == "DOS" {
		return "Dwuletnie stałoprocentowe", true, nil
	}
	return "", false, nil
}

// logger records log lines.
type logger struct {
	mu    sync.Mutex
	lines []string
}

func (l *logger) Info(msg string, args ...any) { l.add("INFO", msg, args) }
func (l *logger) Warn(msg string, args ...any) { l.add("WARN", msg, args) }

func (l *logger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprint(level, " ", msg, " ", args))
}

func (l *logger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	prefix := level + " " + msg + " "
	for _, line := range l.lines {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}

// clock is a manual clock.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var errUnreachable = errors.New("unreachable")

// dos0124 is a two period series, its event schedule is
// 2024-01-02 100.00, 2024-07-02 101.00, 2025-01-02 102.27.
func dos0124() treasury.Series {
	return treasury.Series{
		ID:            "DOS0124",
		BondType:      "DOS",
		SaleWindow:    date.Range{From: date.New(2024, 1, 2), To: date.New(2024, 1, 31)},
		EmissionPrice: decimal.NewFromInt(100),
		Maturity:      treasury.Maturity{Months: 12, Text: "12 miesięcy"},
		Rates: []decimal.NullDecimal{
			decimal.NewNullDecimal(decimal.RequireFromString("0.02")),
			decimal.NewNullDecimal(decimal.RequireFromString("0.025")),
		},
	}
}

func newSource() *source {
	return &source{series: map[string]treasury.Series{"DOS0124": dos0124()}}
}

// newEngine returns an event based engine on a manual clock.
func newEngine(h *host, src *source) (*Engine, *logger, *clock) {
	log := new(logger)
	c := &clock{t: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	e := New(h, src, log, Options{
		Builder: treasury.Builder{Mode: treasury.EventBased},
		Now:     c.now,
	})
	return e, log, c
}
