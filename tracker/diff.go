package tracker

import (
	"regexp"
	"time"

	"github.com/etnz/treasury"
	"github.com/etnz/treasury/date"
	"github.com/shopspring/decimal"
)

// DefaultTolerance is the largest price difference considered unchanged.
var DefaultTolerance = decimal.RequireFromString("0.004")

// Change is a price to write for a day.
type Change struct {
	Date date.Date
	Old  *decimal.Decimal // nil when there is no recorded price that day.
	New  decimal.Decimal
}

// IsUpdate reports whether the change replaces a recorded price.
func (c Change) IsUpdate() bool { return c.Old != nil }

// Diff returns the points of the schedule that are not recorded in known, or
// recorded with a price farther than tolerance.
func Diff(schedule []treasury.Point, known *date.History[decimal.Decimal], tolerance decimal.Decimal) []Change {
	var changes []Change
	for _, p := range schedule {
		old, ok := known.Get(p.Date)
		if !ok {
			changes = append(changes, Change{Date: p.Date, New: p.Price})
			continue
		}
		if p.Price.Sub(old).Abs().GreaterThan(tolerance) {
			changes = append(changes, Change{Date: p.Date, Old: &old, New: p.Price})
		}
	}
	return changes
}

var idDateRE = regexp.MustCompile(`\d{8}`)

// quoteDate returns the day a quote is recorded for, from its timestamp or,
// failing that, from the digits of its id.
func quoteDate(q Quote) (date.Date, bool) {
	if !q.Timestamp.IsZero() {
		return date.Of(q.Timestamp.UTC()), true
	}
	digits := idDateRE.FindString(q.ID)
	if digits == "" {
		return date.Date{}, false
	}
	t, err := time.Parse("20060102", digits)
	if err != nil {
		return date.Date{}, false
	}
	return date.Of(t), true
}

// recorded indexes recorded quotes by day.
func recorded(quotes []Quote) *date.History[decimal.Decimal] {
	h := new(date.History[decimal.Decimal])
	for _, q := range quotes {
		if on, ok := quoteDate(q); ok {
			h.Append(on, q.Close)
		}
	}
	return h
}

// QuoteID returns the id of the quote of symbol on day.
func QuoteID(symbol string, day date.Date) string {
	return day.Format("20060102") + "_" + treasury.Normalize(symbol)
}

// newQuote returns the quote recording price for symbol on day.
func newQuote(symbol string, day date.Date, price decimal.Decimal, currency, source string) Quote {
	return Quote{
		ID:         QuoteID(symbol, day),
		Symbol:     symbol,
		Timestamp:  day.Time(),
		Open:       price,
		High:       price,
		Low:        price,
		Close:      price,
		AdjClose:   price,
		Volume:     decimal.Zero,
		Currency:   currency,
		DataSource: source,
	}
}
