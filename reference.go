package treasury

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidSymbol is returned when a symbol does not designate a savings bond.
var ErrInvalidSymbol = errors.New("not a savings bond symbol")

// symbolRE matches a normalized bond symbol: series id and optional purchase day.
var symbolRE = regexp.MustCompile(`^([A-Z]{3})(\d{4})(?:\.(\d{1,2}))?$`)

// Reference identifies a held bond: its series and the day of month it was bought.
type Reference struct {
	SeriesID    string // e.g. "ROR0127"
	BondType    string // e.g. "ROR", the sheet holding the series.
	PurchaseDay int    // 1..31, or 0 when unspecified.
}

// Normalize returns the canonical form of a symbol.
func Normalize(symbol string) string { return strings.ToUpper(strings.TrimSpace(symbol)) }

// IsBondSymbol reports whether symbol designates a savings bond.
func IsBondSymbol(symbol string) bool {
	_, err := ParseReference(symbol)
	return err == nil
}

// ParseReference parses symbols like "ror0127" or " ROR0127.19 ".
func ParseReference(symbol string) (Reference, error) {
	m := symbolRE.FindStringSubmatch(Normalize(symbol))
	if m == nil {
		return Reference{}, fmt.Errorf("%q: %w", symbol, ErrInvalidSymbol)
	}
	ref := Reference{SeriesID: m[1] + m[2], BondType: m[1]}
	if m[3] != "" {
		day, _ := strconv.Atoi(m[3]) // the regexp guarantees digits.
		if day < 1 || day > 31 {
			return Reference{}, fmt.Errorf("%q: purchase day %d out of range: %w", symbol, day, ErrInvalidSymbol)
		}
		ref.PurchaseDay = day
	}
	return ref, nil
}

// String formats the reference back into its symbol.
func (r Reference) String() string {
	if r.PurchaseDay == 0 {
		return r.SeriesID
	}
	return fmt.Sprintf("%s.%02d", r.SeriesID, r.PurchaseDay)
}
