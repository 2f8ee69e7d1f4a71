package renderer

import (
	"github.com/etnz/treasury"
	"github.com/etnz/treasury/catalog"
	"github.com/etnz/treasury/date"
)

// Schedule is the price timeline of one bond.
type Schedule struct {
	Symbol      string
	Series      treasury.Series
	Description string // of the bond type, may be empty.
	Mode        treasury.Mode
	Purchase    date.Date
	Buyout      date.Date
	Currency    string
	Points      []treasury.Point
}

// Last returns the last point of the timeline, the zero point if there is none.
func (s *Schedule) Last() treasury.Point {
	if len(s.Points) == 0 {
		return treasury.Point{}
	}
	return s.Points[len(s.Points)-1]
}

// SeriesList is the list of series of a bond type.
type SeriesList struct {
	BondType    string
	Description string
	Layout      catalog.Layout
	Currency    string
	Series      []treasury.Series
}
