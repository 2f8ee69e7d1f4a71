package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/etnz/treasury"
	"github.com/etnz/treasury/date"
	"github.com/shopspring/decimal"
)

func TestRefresh(t *testing.T) {
	h := newHost(map[string][]string{"pko": {"dos0124", "AAPL", "EUR"}})
	e, log, _ := newEngine(h, newSource())

	report, err := e.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() unexpected error = %v", err)
	}
	if report.Added != 3 || report.Updated != 0 {
		t.Errorf("Refresh() added %d updated %d, want 3 and 0", report.Added, report.Updated)
	}
	if len(report.Processed) != 1 || report.Processed[0] != "DOS0124" {
		t.Errorf("Refresh() processed %v, want [DOS0124]", report.Processed)
	}
	if got := e.State("DOS0124"); got != Processed {
		t.Errorf("State(DOS0124) = %v, want processed", got)
	}
	if got := e.State("AAPL"); got != Unseen {
		t.Errorf("State(AAPL) = %v, want unseen", got)
	}
	if h.flushes != 1 {
		t.Errorf("Flush called %d times, want 1", h.flushes)
	}
	// Other holdings are ignored silently.
	if n := log.count("WARN", "unknown bond series"); n != 0 {
		t.Errorf("logged %d unknown series, want 0", n)
	}

	q, ok := h.quotes["DOS0124"]["20240702_DOS0124"]
	if !ok {
		t.Fatalf("no quote 20240702_DOS0124 in %v", h.quotes["DOS0124"])
	}
	if !q.Close.Equal(decimal.RequireFromString("101")) || !q.Open.Equal(q.Close) || !q.AdjClose.Equal(q.Close) {
		t.Errorf("quote prices = %v/%v/%v, want 101", q.Open, q.Close, q.AdjClose)
	}
	if !q.Timestamp.Equal(time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("quote timestamp = %v, want 2024-07-02 midnight UTC", q.Timestamp)
	}
	if q.Currency != "PLN" || q.DataSource != "MANUAL" || !q.Volume.IsZero() {
		t.Errorf("quote = %+v, want PLN MANUAL volume 0", q)
	}
}

func TestRefreshIsIdempotent(t *testing.T) {
	h := newHost(map[string][]string{"pko": {"DOS0124"}, "mbank": {"DOS0124"}})
	e, _, _ := newEngine(h, newSource())
	ctx := context.Background()

	if _, err := e.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() unexpected error = %v", err)
	}
	_, first := h.count()
	if first != 3 {
		t.Fatalf("first pass wrote %d quotes, want 3", first)
	}

	e.Refresh(ctx)
	// Reconsider the symbol: the schedule is unchanged so nothing is written.
	e.Forget()
	report, err := e.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() unexpected error = %v", err)
	}
	if _, writes := h.count(); writes != first {
		t.Errorf("later passes wrote %d quotes, want 0", writes-first)
	}
	if report.Written() != 0 || len(report.Processed) != 1 {
		t.Errorf("Refresh() = %+v, want one processed symbol without writes", report)
	}
}

func TestRefreshTolerance(t *testing.T) {
	h := newHost(map[string][]string{"pko": {"DOS0124"}})
	// Close enough, recorded without timestamp.
	h.record(Quote{ID: "20240102_DOS0124", Symbol: "DOS0124", Close: decimal.RequireFromString("100.003")})
	// Too far.
	h.record(Quote{ID: "x", Symbol: "DOS0124", Timestamp: time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC), Close: decimal.RequireFromString("100.99")})
	e, _, _ := newEngine(h, newSource())

	report, err := e.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() unexpected error = %v", err)
	}
	if report.Added != 1 || report.Updated != 1 {
		t.Errorf("Refresh() added %d updated %d, want 1 and 1", report.Added, report.Updated)
	}
	if got := h.quotes["DOS0124"]["20240102_DOS0124"].Close; !got.Equal(decimal.RequireFromString("100.003")) {
		t.Errorf("price within tolerance was rewritten to %v", got)
	}
}

func TestRefreshSkipsUnknownSeries(t *testing.T) {
	h := newHost(map[string][]string{"pko": {"ROR9999", "DOS0124"}})
	src := newSource()
	e, log, _ := newEngine(h, src)
	ctx := context.Background()

	report, err := e.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() unexpected error = %v", err)
	}
	if len(report.Skipped) != 1 || report.Skipped[0] != "ROR9999" {
		t.Errorf("Refresh() skipped %v, want [ROR9999]", report.Skipped)
	}
	e.Refresh(ctx)
	if src.lookups != 2 {
		t.Errorf("series looked up %d times, want 2: skipped symbols are not reconsidered", src.lookups)
	}
	if n := log.count("WARN", "unknown bond series"); n != 1 {
		t.Errorf("logged unknown series %d times, want 1", n)
	}
	if got := e.State("ror9999"); got != Skipped {
		t.Errorf("State(ror9999) = %v, want skipped", got)
	}
}

func TestRefreshSkipsUnschedulableSeries(t *testing.T) {
	src := newSource()
	s := dos0124()
	s.ID, s.Maturity = "DOS0224", treasury.Maturity{Text: "wkrótce"}
	src.series[s.ID] = s
	h := newHost(map[string][]string{"pko": {"DOS0224"}})
	e, log, _ := newEngine(h, src)

	if _, err := e.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() unexpected error = %v", err)
	}
	if got := e.State("DOS0224"); got != Skipped {
		t.Errorf("State(DOS0224) = %v, want skipped", got)
	}
	if n := log.count("WARN", "no schedule for bond"); n != 1 {
		t.Errorf("logged missing schedule %d times, want 1", n)
	}
}

func TestRefreshRetriesFailures(t *testing.T) {
	h := newHost(map[string][]string{"pko": {"DOS0124"}})
	src := newSource()
	src.err = errUnreachable
	e, _, _ := newEngine(h, src)
	ctx := context.Background()

	report, err := e.Refresh(ctx)
	if !errors.Is(err, errUnreachable) {
		t.Errorf("Refresh() error = %v, want %v", err, errUnreachable)
	}
	if len(report.Failed) != 1 {
		t.Errorf("Refresh() failed %v, want [DOS0124]", report.Failed)
	}
	if got := e.State("DOS0124"); got != Unseen {
		t.Errorf("State(DOS0124) = %v, want unseen", got)
	}

	src.err = nil
	report, err = e.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() unexpected error = %v", err)
	}
	if report.Added != 3 {
		t.Errorf("Refresh() added %d, want 3", report.Added)
	}
}

func TestRefreshWriteFailure(t *testing.T) {
	h := newHost(map[string][]string{"pko": {"DOS0124"}})
	h.failUpsert = errUnreachable
	e, _, _ := newEngine(h, newSource())

	if _, err := e.Refresh(context.Background()); !errors.Is(err, errUnreachable) {
		t.Errorf("Refresh() error = %v, want %v", err, errUnreachable)
	}
	if got := e.State("DOS0124"); got != Unseen {
		t.Errorf("State(DOS0124) = %v, want unseen", got)
	}
}

func TestRefreshChunks(t *testing.T) {
	h := newHost(map[string][]string{"pko": {"DOS0124"}})
	e, _, c := newEngine(h, newSource())
	e.opts.Builder.Mode = treasury.Daily
	e.opts.ChunkSize = 7
	c.t = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	report, err := e.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() unexpected error = %v", err)
	}
	// 2024-01-02 to 2024-03-01 inclusive.
	if report.Added != 60 {
		t.Errorf("Refresh() added %d, want 60", report.Added)
	}
	if h.maxInFlight > 7 {
		t.Errorf("%d concurrent upserts, want at most 7", h.maxInFlight)
	}
	if _, ok := h.quotes["DOS0124"]["20240302_DOS0124"]; ok {
		t.Errorf("a quote was written after today")
	}
}

func TestNotifyIgnoresOwnWrites(t *testing.T) {
	h := newHost(map[string][]string{"pko": {"DOS0124"}})
	e, _, c := newEngine(h, newSource())
	ctx := context.Background()

	e.Refresh(ctx)
	if e.Notify(ctx) {
		t.Errorf("Notify() right after a write triggered a refresh")
	}
	if passes, _ := h.count(); passes != 1 {
		t.Errorf("%d passes, want 1", passes)
	}

	c.advance(2 * time.Second)
	if !e.Notify(ctx) {
		t.Errorf("Notify() after the lease ignored the event")
	}
	if passes, _ := h.count(); passes != 2 {
		t.Errorf("%d passes, want 2", passes)
	}
}

func TestNotifyWithoutWrites(t *testing.T) {
	h := newHost(map[string][]string{"pko": {"AAPL"}})
	e, _, _ := newEngine(h, newSource())
	e.Refresh(context.Background())
	if !e.Notify(context.Background()) {
		t.Errorf("Notify() ignored an event although nothing was written")
	}
}

func TestRefreshSharesRunningPass(t *testing.T) {
	h := newHost(map[string][]string{"pko": {"DOS0124"}})
	h.gate = make(chan struct{})
	e, _, _ := newEngine(h, newSource())

	type result struct {
		report Report
		err    error
	}
	first := make(chan result)
	go func() {
		r, err := e.Refresh(context.Background())
		first <- result{r, err}
	}()
	<-h.entered

	// A caller arriving during the pass waits for it, it does not start another.
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Refresh(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("Refresh() error = %v, want %v", err, context.Canceled)
	}
	if passes, _ := h.count(); passes != 1 {
		t.Errorf("%d passes started, want 1", passes)
	}

	close(h.gate)
	r := <-first
	if r.err != nil || r.report.Added != 3 {
		t.Errorf("Refresh() = %+v, %v want 3 quotes added", r.report, r.err)
	}
}

func TestRunStopsWhenEventsClose(t *testing.T) {
	h := newHost(map[string][]string{"pko": {"DOS0124"}})
	e, _, c := newEngine(h, newSource())

	events := make(chan struct{}, 2)
	events <- struct{}{}
	close(events)
	// The event arrives while the lease of the first pass is active.
	if err := e.Run(context.Background(), events); err != nil {
		t.Errorf("Run() unexpected error = %v", err)
	}
	if passes, _ := h.count(); passes != 1 {
		t.Errorf("%d passes, want 1", passes)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.advance(time.Minute)
	if err := e.Run(ctx, make(chan struct{})); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want %v", err, context.Canceled)
	}
}

func TestForget(t *testing.T) {
	h := newHost(map[string][]string{"pko": {"DOS0124", "ROR9999"}})
	e, _, _ := newEngine(h, newSource())
	e.Refresh(context.Background())
	e.Forget()
	for _, s := range []string{"DOS0124", "ROR9999"} {
		if got := e.State(s); got != Unseen {
			t.Errorf("State(%s) = %v after Forget(), want unseen", s, got)
		}
	}
}

func TestEnrich(t *testing.T) {
	h := newHost(map[string][]string{"pko": {"DOS0124"}})
	e, _, _ := newEngine(h, newSource())
	e.Refresh(context.Background())

	want := Profile{Symbol: "DOS0124", Name: "DOS0124 Dwuletnie stałoprocentowe", AssetClass: "Bond", AssetSubClass: "Government Bond", Country: "PL"}
	if got := h.profiles["DOS0124"]; got != want {
		t.Errorf("profile = %+v, want %+v", got, want)
	}
}

func TestRefreshFlushesProfiles(t *testing.T) {
	h := newHost(map[string][]string{"pko": {"DOS0124"}})
	e, _, _ := newEngine(h, newSource())
	e.Refresh(context.Background())

	// Quotes are in line, only the profile is missing.
	h.profiles = make(map[string]Profile)
	e, _, _ = newEngine(h, newSource())
	report, err := e.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() unexpected error = %v", err)
	}
	if report.Written() != 0 || report.Profiles != 1 {
		t.Errorf("Refresh() = %+v, want no quote and 1 profile", report)
	}
	if h.flushes != 2 {
		t.Errorf("Flush called %d times, want 2", h.flushes)
	}
	if e.Notify(context.Background()) {
		t.Errorf("Notify() right after a profile update triggered a refresh")
	}
}

func TestEnrichRetriesFailures(t *testing.T) {
	h := newHost(map[string][]string{"pko": {"dos0124"}})
	src := newSource()
	src.descErr = errUnreachable
	e, log, c := newEngine(h, src)
	ctx := context.Background()

	report, _ := e.Refresh(ctx)
	if report.Profiles != 0 {
		t.Errorf("Refresh() completed %d profiles, want 0", report.Profiles)
	}
	if _, ok := h.profiles["DOS0124"]; ok {
		t.Errorf("profile updated although the description failed")
	}
	if n := log.count("WARN", "cannot read bond description"); n != 1 {
		t.Errorf("logged description failure %d times, want 1", n)
	}

	src.descErr = nil
	c.advance(time.Minute)
	e.Forget()
	report, _ = e.Refresh(ctx)
	if report.Profiles != 1 {
		t.Errorf("Refresh() completed %d profiles, want 1", report.Profiles)
	}
	want := Profile{Symbol: "DOS0124", Name: "DOS0124 Dwuletnie stałoprocentowe", AssetClass: "Bond", AssetSubClass: "Government Bond", Country: "PL"}
	if got := h.profiles["DOS0124"]; got != want {
		t.Errorf("profile = %+v, want %+v", got, want)
	}

	// Enriched once per process.
	e.Forget()
	if report, _ = e.Refresh(ctx); report.Profiles != 0 {
		t.Errorf("Refresh() completed %d profiles again, want 0", report.Profiles)
	}
}

func TestCompleteProfile(t *testing.T) {
	ref := treasury.Reference{SeriesID: "EDO0434", BondType: "EDO", PurchaseDay: 12}
	tests := []struct {
		name    string
		profile Profile
		symbol  string // defaults to EDO0434.12.
		want    Profile
		changed bool
	}{
		{
			name:    "empty",
			profile: Profile{},
			want:    Profile{Symbol: "EDO0434.12", Name: "EDO0434 Emerytalne", AssetClass: "Bond", AssetSubClass: "Government Bond", Country: "PL"},
			changed: true,
		},
		{
			name:    "name is the symbol",
			profile: Profile{Symbol: "EDO0434.12", Name: "edo0434.12", AssetClass: "Bond", AssetSubClass: "Government Bond", Country: "PL"},
			want:    Profile{Symbol: "EDO0434.12", Name: "EDO0434 Emerytalne", AssetClass: "Bond", AssetSubClass: "Government Bond", Country: "PL"},
			changed: true,
		},
		{
			name:    "user name is kept",
			profile: Profile{Symbol: "EDO0434.12", Name: "Emerytura"},
			want:    Profile{Symbol: "EDO0434.12", Name: "Emerytura", AssetClass: "Bond", AssetSubClass: "Government Bond", Country: "PL"},
			changed: true,
		},
		{
			name:    "symbol is normalized",
			profile: Profile{},
			symbol:  "edo0434.12",
			want:    Profile{Symbol: "EDO0434.12", Name: "EDO0434 Emerytalne", AssetClass: "Bond", AssetSubClass: "Government Bond", Country: "PL"},
			changed: true,
		},
		{
			name:    "complete",
			profile: Profile{Symbol: "EDO0434.12", Name: "Emerytura", AssetClass: "Fixed income", AssetSubClass: "Bond", Country: "Poland"},
			want:    Profile{Symbol: "EDO0434.12", Name: "Emerytura", AssetClass: "Fixed income", AssetSubClass: "Bond", Country: "Poland"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			symbol := tt.symbol
			if symbol == "" {
				symbol = "EDO0434.12"
			}
			got, changed := completeProfile(tt.profile, symbol, ref, "Emerytalne")
			if got != tt.want || changed != tt.changed {
				t.Errorf("completeProfile() = %+v, %v want %+v, %v", got, changed, tt.want, tt.changed)
			}
		})
	}
}

func TestQuoteID(t *testing.T) {
	if got := QuoteID(" ror0127.19 ", date.New(2024, 1, 19)); got != "20240119_ROR0127.19" {
		t.Errorf("QuoteID() = %q, want 20240119_ROR0127.19", got)
	}
}
