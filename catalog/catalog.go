// Package catalog reads bond series out of the issuer's workbook.
//
// The workbook has one sheet per bond type, named after the three letter
// code (ROR, DOS, EDO, ...), and an "Opis" sheet describing each type.
// Sheets are parsed on first use and kept for the lifetime of the process.
package catalog

import (
	"cmp"
	"context"
	"fmt"
	"log"
	"regexp"
	"slices"
	"sync"

	"github.com/etnz/treasury"
	"github.com/etnz/treasury/date"
	"github.com/etnz/treasury/workbook"
)

// DescriptionSheet is the name of the sheet describing bond types.
const DescriptionSheet = "Opis"

// Data columns of a bond sheet.
const (
	colID       = 0
	colMaturity = 1 // term or buyout date, some sheets use the next column.
	colSaleFrom = 3
	colSaleTo   = 4
	colPrice    = 5
)

var seriesRE = regexp.MustCompile(`^[A-Z]{3}\d{4}$`)

// Source provides the workbook, *workbook.Source implements it.
type Source interface {
	Workbook(ctx context.Context) (*workbook.Workbook, error)
}

// Catalog looks up bond series and bond type descriptions.
type Catalog struct {
	source   Source
	detector Detector

	mu           sync.Mutex
	series       map[string]map[string]treasury.Series // by bond type, then series id.
	descriptions map[string]string                     // nil until loaded.
}

// New returns a Catalog reading from source.
func New(source Source) *Catalog {
	return &Catalog{source: source, series: make(map[string]map[string]treasury.Series)}
}

// Series returns the series id of bondType.
//
// It returns false if the series is not published. An error means the
// workbook could not be obtained, and the lookup can be tried again later.
func (c *Catalog) Series(ctx context.Context, id, bondType string) (treasury.Series, bool, error) {
	all, err := c.load(ctx, bondType)
	if err != nil {
		return treasury.Series{}, false, err
	}
	s, ok := all[id]
	return s, ok, nil
}

// All returns every series of bondType, by sale window.
func (c *Catalog) All(ctx context.Context, bondType string) ([]treasury.Series, error) {
	all, err := c.load(ctx, bondType)
	if err != nil {
		return nil, err
	}
	list := make([]treasury.Series, 0, len(all))
	for _, s := range all {
		list = append(list, s)
	}
	slices.SortFunc(list, func(a, b treasury.Series) int {
		if n := a.SaleWindow.From.Compare(b.SaleWindow.From); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return list, nil
}

// Layout returns the detected layout of the bondType sheet.
func (c *Catalog) Layout(ctx context.Context, bondType string) (Layout, error) {
	wb, err := c.source.Workbook(ctx)
	if err != nil {
		return Layout{}, err
	}
	rows, ok := wb.Rows(bondType)
	if !ok {
		return Layout{}, fmt.Errorf("no sheet %q in workbook", bondType)
	}
	return c.detector.Layout(bondType, rows)
}

// Description returns the human readable description of a bond type.
func (c *Catalog) Description(ctx context.Context, bondType string) (string, bool, error) {
	c.mu.Lock()
	loaded := c.descriptions
	c.mu.Unlock()

	if loaded == nil {
		wb, err := c.source.Workbook(ctx)
		if err != nil {
			return "", false, err
		}
		loaded = parseDescriptions(wb)
		c.mu.Lock()
		c.descriptions = loaded
		c.mu.Unlock()
	}
	desc, ok := loaded[bondType]
	return desc, ok, nil
}

// load returns the series of bondType, parsing its sheet on first use.
//
// Sheets that are missing or unusable are remembered as empty.
func (c *Catalog) load(ctx context.Context, bondType string) (map[string]treasury.Series, error) {
	c.mu.Lock()
	all, ok := c.series[bondType]
	c.mu.Unlock()
	if ok {
		return all, nil
	}

	wb, err := c.source.Workbook(ctx)
	if err != nil {
		return nil, err
	}
	all = make(map[string]treasury.Series)
	if rows, ok := wb.Rows(bondType); !ok {
		log.Printf("no sheet %q in workbook", bondType)
	} else if layout, err := c.detector.Layout(bondType, rows); err != nil {
		log.Printf("sheet %q is unusable: %v", bondType, err)
	} else {
		all = parseSeries(rows, layout)
		log.Printf("sheet %q: %d series", bondType, len(all))
	}

	// Parsing twice concurrently gives the same result, the last one wins.
	c.mu.Lock()
	c.series[bondType] = all
	c.mu.Unlock()
	return all, nil
}

// parseSeries reads every valid series row. Rows with a malformed id, sale
// window or emission price are skipped.
func parseSeries(rows [][]string, l Layout) map[string]treasury.Series {
	all := make(map[string]treasury.Series)
	for r := l.DataStart; r < len(rows); r++ {
		row := rows[r]
		id := treasury.Normalize(cell(row, colID))
		if !seriesRE.MatchString(id) {
			continue
		}
		if _, exists := all[id]; exists {
			continue
		}
		from, err := parseDate(cell(row, colSaleFrom))
		if err != nil {
			continue
		}
		to, err := parseDate(cell(row, colSaleTo))
		if err != nil || to.Before(from) {
			continue
		}
		price, err := parseNumber(cell(row, colPrice))
		if err != nil || !price.IsPositive() {
			continue
		}
		s := treasury.Series{
			ID:            id,
			BondType:      id[:3],
			SaleWindow:    date.Range{From: from, To: to},
			EmissionPrice: price,
			Maturity:      parseMaturity(cell(row, colMaturity), cell(row, colMaturity+1)),
		}
		for i := range l.RateCount {
			s.Rates = append(s.Rates, parseRate(cell(row, l.RateStart+i)))
		}
		if l.HasInterest() {
			for i := range l.InterestCount {
				s.Interests = append(s.Interests, parseAmount(cell(row, l.InterestStart+i)))
			}
		}
		all[id] = s
	}
	return all
}

// parseDescriptions maps bond type codes of the description sheet to their description.
func parseDescriptions(wb *workbook.Workbook) map[string]string {
	descriptions := make(map[string]string)
	rows, ok := wb.Rows(DescriptionSheet)
	if !ok {
		log.Printf("no sheet %q in workbook", DescriptionSheet)
		return descriptions
	}
	for _, row := range rows {
		code, desc := treasury.Normalize(cell(row, 0)), cell(row, 1)
		if code == "" || desc == "" {
			continue
		}
		descriptions[code] = desc
	}
	return descriptions
}
