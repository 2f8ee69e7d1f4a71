package catalog

import (
	"errors"
	"strings"
	"sync"
)

// ErrNoRateHeader is returned for sheets without a rate column: they cannot be used.
var ErrNoRateHeader = errors.New("no rate header")

// Header texts, matched case-insensitively as substrings of the first row.
const (
	rateHeader     = "oprocentowanie" // interest rate
	interestHeader = "odsetki"        // interest amount
)

// Layout locates the data in a bond sheet.
//
// The issuer adds coupon columns over the years, so the rate and interest
// groups are located from the headers instead of fixed indexes.
type Layout struct {
	DataStart     int  // index of the first data row.
	RateStart     int  // column of the first rate.
	RateCount     int  // number of rate columns, at least 1.
	InterestStart int  // column of the first interest amount, -1 if none.
	InterestCount int  // number of interest columns, 0 if none.
	SubHeader     bool // whether the second row labels the columns of each group.
}

// HasInterest reports whether the sheet publishes interest amounts.
func (l Layout) HasInterest() bool { return l.InterestStart >= 0 && l.InterestCount > 0 }

// Detect infers the layout of a sheet from its header rows.
//
// It returns ErrNoRateHeader when the first row has no rate header. A missing
// interest header is not an error: accruals then only rely on rates.
func Detect(rows [][]string) (Layout, error) {
	if len(rows) == 0 {
		return Layout{}, ErrNoRateHeader
	}
	header := rows[0]
	l := Layout{
		RateStart:     findHeader(header, rateHeader, interestHeader),
		InterestStart: findHeader(header, interestHeader, ""),
	}
	if l.RateStart < 0 {
		return Layout{}, ErrNoRateHeader
	}

	var sub []string
	if len(rows) > 1 {
		sub = rows[1]
	}
	l.SubHeader = isSubHeader(sub)

	if l.SubHeader {
		l.DataStart = 2
		l.RateCount = max(1, groupWidth(header, sub, l.RateStart))
		if l.InterestStart >= 0 {
			l.InterestCount = max(1, groupWidth(header, sub, l.InterestStart))
		}
		return l, nil
	}

	l.DataStart = 1
	l.RateCount = 1
	if l.InterestStart > l.RateStart {
		l.RateCount = l.InterestStart - l.RateStart
	}
	if l.InterestStart >= 0 {
		l.InterestCount = 1
	}
	return l, nil
}

// findHeader returns the first column whose header contains text but not exclude.
func findHeader(header []string, text, exclude string) int {
	for i, cell := range header {
		h := strings.ToLower(cell)
		if !strings.Contains(h, text) {
			continue
		}
		if exclude != "" && strings.Contains(h, exclude) {
			continue
		}
		return i
	}
	return -1
}

// isSubHeader reports whether row labels columns: empty first cell, and some text later.
func isSubHeader(row []string) bool {
	if len(row) == 0 || !isBlank(row[0]) {
		return false
	}
	for _, cell := range row[1:] {
		if isBlank(cell) {
			continue
		}
		if _, err := parseNumber(cell); err != nil {
			return true
		}
	}
	return false
}

// groupWidth counts contiguous labelled columns of sub starting at col, without
// reaching the next header of the first row.
func groupWidth(header, sub []string, col int) int {
	limit := len(sub)
	for j := col + 1; j < len(header); j++ {
		if !isBlank(header[j]) {
			limit = min(limit, j)
			break
		}
	}
	n := 0
	for j := col; j < limit && !isBlank(sub[j]); j++ {
		n++
	}
	return n
}

func isBlank(cell string) bool { return strings.TrimSpace(cell) == "" }

// Detector caches layouts by sheet name.
//
// Layouts are assumed stable for the lifetime of the process: a sheet is
// detected once, including sheets found unusable.
type Detector struct {
	mu      sync.Mutex
	layouts map[string]detection
}

type detection struct {
	layout Layout
	err    error
}

// Layout returns the layout of sheet, detecting it from rows on first use.
func (d *Detector) Layout(sheet string, rows [][]string) (Layout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.layouts[sheet]; ok {
		return res.layout, res.err
	}
	if d.layouts == nil {
		d.layouts = make(map[string]detection)
	}
	l, err := Detect(rows)
	d.layouts[sheet] = detection{l, err}
	return l, err
}
