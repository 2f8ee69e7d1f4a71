package treasury

import (
	"github.com/etnz/treasury/date"
	"github.com/shopspring/decimal"
)

// Maturity is either a fixed buyout date or a term counted from the purchase date.
type Maturity struct {
	Date   date.Date // fixed buyout date, zero if the term applies.
	Months int       // term in months, used when Date is zero.
	Text   string    // the term as published, e.g. "4 lata".
}

// IsZero reports whether the maturity is unknown.
func (m Maturity) IsZero() bool { return m.Date.IsZero() && m.Months <= 0 }

func (m Maturity) String() string {
	if !m.Date.IsZero() {
		return m.Date.String()
	}
	return m.Text
}

// Series is one bond series as published in the issuer's table.
//
// Rates are yearly rates as fractions (0.0675 for 6.75%). Interests are
// amounts per bond accrued over a whole period. In both lists an invalid entry
// means no data for that period, which is not the same thing as zero.
type Series struct {
	ID            string
	BondType      string
	SaleWindow    date.Range
	EmissionPrice decimal.Decimal
	Maturity      Maturity
	Rates         []decimal.NullDecimal
	Interests     []decimal.NullDecimal
}

// Periods returns the number of accrual periods of the series.
func (s Series) Periods() int { return max(len(s.Rates), len(s.Interests)) }

// IsSinglePayment reports whether the whole term is a single accrual period.
func (s Series) IsSinglePayment() bool { return s.BondType == "OTS" }

// rate returns the rate for period i, if published.
func (s Series) rate(i int) (decimal.Decimal, bool) { return at(s.Rates, i) }

// interest returns the interest amount for period i, if published.
func (s Series) interest(i int) (decimal.Decimal, bool) { return at(s.Interests, i) }

func at(values []decimal.NullDecimal, i int) (decimal.Decimal, bool) {
	if i < 0 || i >= len(values) || !values[i].Valid {
		return decimal.Zero, false
	}
	return values[i].Decimal, true
}

// hasData reports whether at least one rate or interest is published.
func (s Series) hasData() bool {
	for i := range s.Periods() {
		if _, ok := s.rate(i); ok {
			return true
		}
		if _, ok := s.interest(i); ok {
			return true
		}
	}
	return false
}

// Point is a dated price of one bond.
type Point struct {
	Date  date.Date
	Price decimal.Decimal
}
