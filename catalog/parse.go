package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/etnz/treasury"
	"github.com/etnz/treasury/date"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// dateLayouts are the textual date formats found in the issuer's sheets.
var dateLayouts = []string{"2006-01-02", "2006-1-2", "02.01.2006", "2.1.2006", "02/01/2006", "2006-01-02T15:04:05Z"}

var hundred = decimal.NewFromInt(100)

// cell returns the trimmed value of column i of row, or "" if the row is shorter.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseDate reads an Excel serial date or a textual date.
func parseDate(s string) (date.Date, error) {
	s = strings.TrimSpace(s)
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if serial < 1 {
			return date.Date{}, fmt.Errorf("invalid serial date %q", s)
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return date.Date{}, fmt.Errorf("invalid serial date %q: %w", s, err)
		}
		return date.Of(t), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return date.Of(t), nil
		}
	}
	return date.Date{}, fmt.Errorf("unrecognized date %q", s)
}

// parseNumber reads a number written with a dot or a comma as decimal
// separator, possibly followed by '%' in which case it is divided by 100.
func parseNumber(s string) (decimal.Decimal, error) {
	s = strings.NewReplacer(" ", "", "\u00a0", "", ",", ".").Replace(strings.TrimSpace(s))
	s, percent := strings.CutSuffix(s, "%")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if percent {
		d = d.Div(hundred)
	}
	return d, nil
}

// parseRate reads a yearly rate as a fraction.
//
// Rates are published either as fractions (0.0675), as percents ("6,75%") or
// as plain percent figures (6.75): a value of 1 or more is taken as a percent.
func parseRate(s string) decimal.NullDecimal {
	d, err := parseNumber(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	if d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		d = d.Div(hundred)
	}
	return decimal.NewNullDecimal(d)
}

// parseAmount reads an interest amount.
func parseAmount(s string) decimal.NullDecimal {
	d, err := parseNumber(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// parseMaturity reads a term ("4 lata") or a buyout date from the first
// usable of the given cells.
func parseMaturity(cells ...string) treasury.Maturity {
	for _, c := range cells {
		if c == "" {
			continue
		}
		if months, err := treasury.ParseTerm(c); err == nil {
			return treasury.Maturity{Months: months, Text: c}
		}
		if d, err := parseDate(c); err == nil {
			return treasury.Maturity{Date: d, Text: c}
		}
	}
	for _, c := range cells {
		if c != "" {
			return treasury.Maturity{Text: c}
		}
	}
	return treasury.Maturity{}
}
