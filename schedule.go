package treasury

import (
	"errors"
	"fmt"
	"strings"

	"github.com/etnz/treasury/date"
	"github.com/shopspring/decimal"
)

// ErrNoSchedule is returned when a series does not allow to compute a price timeline.
var ErrNoSchedule = errors.New("no schedule available")

// yearBasis is the ACT/365 day count denominator.
var yearBasis = decimal.NewFromInt(365)

// Mode selects the granularity of a schedule.
type Mode int

const (
	// Daily produces one point per day from purchase up to today, interpolating
	// linearly within each accrual period. It never produces future points.
	Daily Mode = iota
	// EventBased produces one point at purchase and one at the end of each
	// accrual period, up to the buyout date.
	EventBased
)

func (m Mode) String() string {
	switch m {
	case Daily:
		return "daily"
	case EventBased:
		return "event"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "daily" or "event".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "day":
		return Daily, nil
	case "event", "events", "event-based":
		return EventBased, nil
	default:
		return Daily, fmt.Errorf("unknown schedule mode %q", s)
	}
}

// Policy decides between the published rate and the published interest amount
// when both are available for a period.
type Policy int

const (
	// AnchoredRate computes single-payment bonds from the rate when the purchase
	// day is known, since published amounts assume a purchase on the first day of
	// the sale window. Multi-period bonds use the published amount when present.
	AnchoredRate Policy = iota
	// InterestFirst always uses the published amount when present.
	InterestFirst
)

func (p Policy) String() string {
	switch p {
	case AnchoredRate:
		return "anchored-rate"
	case InterestFirst:
		return "interest-first"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses "anchored-rate" or "interest-first".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "anchored-rate", "rate":
		return AnchoredRate, nil
	case "interest-first", "interest":
		return InterestFirst, nil
	default:
		return AnchoredRate, fmt.Errorf("unknown accrual policy %q", s)
	}
}

// Builder computes price timelines of bond series.
//
// The zero value builds daily schedules up to the current date with the
// AnchoredRate policy.
type Builder struct {
	Mode   Mode
	Policy Policy
	Today  date.Date // last day a daily schedule may reach, zero means date.Today().
}

// period is one accrual period, with the bond value at both ends.
type period struct {
	start, end date.Date
	from, to   decimal.Decimal
}

// PurchaseDate returns the first day of the sale window whose day of month is
// day, or the start of the sale window if there is none or day is 0.
func PurchaseDate(s Series, day int) date.Date {
	if day > 0 {
		for d := range s.SaleWindow.Days() {
			if d.Day() == day {
				return d
			}
		}
	}
	return s.SaleWindow.From
}

// BuyoutDate returns the maturity date of a bond bought on purchase.
func BuyoutDate(s Series, purchase date.Date) (date.Date, error) {
	switch {
	case !s.Maturity.Date.IsZero():
		return s.Maturity.Date, nil
	case s.Maturity.Months > 0:
		return purchase.AddMonths(s.Maturity.Months), nil
	default:
		return date.Date{}, fmt.Errorf("series %s: unknown maturity %q: %w", s.ID, s.Maturity.Text, ErrNoSchedule)
	}
}

// Build returns the price timeline of one bond of series s bought on
// purchaseDay (0 when unknown), sorted by date without duplicates.
//
// The first point is always the purchase date at the emission price.
func (b Builder) Build(s Series, purchaseDay int) ([]Point, error) {
	if !s.EmissionPrice.IsPositive() {
		return nil, fmt.Errorf("series %s: invalid emission price %s: %w", s.ID, s.EmissionPrice, ErrNoSchedule)
	}
	purchase := PurchaseDate(s, purchaseDay)
	buyout, err := BuyoutDate(s, purchase)
	if err != nil {
		return nil, err
	}
	if !purchase.Before(buyout) {
		return nil, fmt.Errorf("series %s: buyout %s is not after purchase %s: %w", s.ID, buyout, purchase, ErrNoSchedule)
	}

	var periods []period
	if s.IsSinglePayment() {
		periods, err = b.single(s, purchase, buyout, purchaseDay > 0)
	} else {
		periods, err = b.multi(s, purchase, buyout)
	}
	if err != nil {
		return nil, err
	}

	if b.Mode == EventBased {
		return events(s.EmissionPrice, purchase, periods), nil
	}
	today := b.Today
	if today.IsZero() {
		today = date.Today()
	}
	return daily(s.EmissionPrice, purchase, date.Min(today, buyout), periods), nil
}

// single computes the one period of a single-payment bond.
func (b Builder) single(s Series, purchase, buyout date.Date, anchored bool) ([]period, error) {
	rate, hasRate := s.rate(0)
	interest, hasInterest := s.interest(0)
	days := purchase.DaysUntil(buyout)

	var accrued decimal.Decimal
	switch {
	case hasRate && anchored && b.Policy == AnchoredRate:
		accrued = accrue(s.EmissionPrice, rate, days)
	case hasInterest:
		accrued = interest
	case hasRate:
		accrued = accrue(s.EmissionPrice, rate, days)
	default:
		return nil, fmt.Errorf("series %s: neither rate nor interest published: %w", s.ID, ErrNoSchedule)
	}
	return []period{{
		start: purchase,
		end:   buyout,
		from:  s.EmissionPrice,
		to:    s.EmissionPrice.Add(accrued).Round(2),
	}}, nil
}

// multi computes the accrual periods of a multi-period bond, compounding on
// the value rounded at each period end.
func (b Builder) multi(s Series, purchase, buyout date.Date) ([]period, error) {
	if !s.hasData() {
		return nil, fmt.Errorf("series %s: neither rate nor interest published: %w", s.ID, ErrNoSchedule)
	}
	bounds := split(purchase, buyout, s.Periods())

	periods := make([]period, 0, len(bounds)-1)
	value := s.EmissionPrice
	var lastRate decimal.Decimal
	var hasLastRate bool
	for i := range len(bounds) - 1 {
		start, end := bounds[i], bounds[i+1]
		rate, hasRate := s.rate(i)
		if hasRate {
			lastRate, hasLastRate = rate, true
		}
		interest, hasInterest := s.interest(i)

		var accrued decimal.Decimal
		switch {
		case hasInterest:
			accrued = interest
		case hasLastRate:
			// Variable rate bonds only publish the first periods: later ones carry the last known rate.
			accrued = accrue(value, lastRate, start.DaysUntil(end))
		}
		next := value.Add(accrued).Round(2)
		periods = append(periods, period{start: start, end: end, from: value, to: next})
		value = next
	}
	return periods, nil
}

// split divides [purchase, buyout] into n periods and returns the n+1 boundaries.
//
// Periods are equal calendar-month spans when the term is a whole number of
// months divisible by n. Otherwise the days are shared as evenly as possible,
// the earliest periods getting one more day.
func split(purchase, buyout date.Date, n int) []date.Date {
	bounds := make([]date.Date, 0, n+1)
	bounds = append(bounds, purchase)

	if months, exact := purchase.MonthsUntil(buyout); exact && months > 0 && months%n == 0 {
		step := months / n
		for k := 1; k < n; k++ {
			bounds = append(bounds, purchase.AddMonths(k*step))
		}
		return append(bounds, buyout)
	}

	days := purchase.DaysUntil(buyout)
	base, rem := days/n, days%n
	cursor := purchase
	for k := 0; k < n-1; k++ {
		length := base
		if k < rem {
			length++
		}
		cursor = cursor.Add(length)
		bounds = append(bounds, cursor)
	}
	return append(bounds, buyout)
}

// accrue returns the interest earned by value at yearly rate over days.
func accrue(value, rate decimal.Decimal, days int) decimal.Decimal {
	return value.Mul(rate).Mul(decimal.NewFromInt(int64(days))).Div(yearBasis)
}

// events returns one point at purchase and one per period end.
func events(emission decimal.Decimal, purchase date.Date, periods []period) []Point {
	h := new(date.History[decimal.Decimal])
	h.Append(purchase, emission)
	for _, p := range periods {
		h.Append(p.end, p.to)
	}
	return points(h)
}

// daily returns one point per day from purchase to last (included), linearly
// interpolated inside each period.
func daily(emission decimal.Decimal, purchase, last date.Date, periods []period) []Point {
	h := new(date.History[decimal.Decimal])
	if last.Before(purchase) {
		return nil
	}
	h.Append(purchase, emission)
	for _, p := range periods {
		length := p.start.DaysUntil(p.end)
		if length <= 0 {
			continue
		}
		span := p.to.Sub(p.from)
		for k := 1; k <= length; k++ {
			on := p.start.Add(k)
			if on.After(last) {
				return points(h)
			}
			step := span.Mul(decimal.NewFromInt(int64(k))).Div(decimal.NewFromInt(int64(length)))
			h.Append(on, p.from.Add(step).Round(2))
		}
	}
	return points(h)
}

func points(h *date.History[decimal.Decimal]) []Point {
	pts := make([]Point, 0, h.Len())
	for on, price := range h.Values() {
		pts = append(pts, Point{Date: on, Price: price})
	}
	return pts
}
