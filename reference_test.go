package treasury

import (
	"errors"
	"testing"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		symbol string
		want   Reference
	}{
		{"ROR0127.19", Reference{SeriesID: "ROR0127", BondType: "ROR", PurchaseDay: 19}},
		{" edo0434 ", Reference{SeriesID: "EDO0434", BondType: "EDO"}},
		{"ots0425.1", Reference{SeriesID: "OTS0425", BondType: "OTS", PurchaseDay: 1}},
		{"COI0628.31", Reference{SeriesID: "COI0628", BondType: "COI", PurchaseDay: 31}},
	}
	for _, tt := range tests {
		got, err := ParseReference(tt.symbol)
		if err != nil {
			t.Errorf("ParseReference(%q) unexpected error = %v", tt.symbol, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseReference(%q) = %+v, want %+v", tt.symbol, got, tt.want)
		}
	}
}

func TestParseReferenceRejects(t *testing.T) {
	for _, symbol := range []string{"", "AAPL", "ROR127", "ROR01270", "ROR0127.", "ROR0127.123", "ROR0127.00", "ROR0127.32", "R0R0127", "PL0000500014"} {
		if _, err := ParseReference(symbol); !errors.Is(err, ErrInvalidSymbol) {
			t.Errorf("ParseReference(%q) error = %v, want ErrInvalidSymbol", symbol, err)
		}
	}
}

// TestReferenceRoundTrip checks that every two-digit day formats back to the same symbol.
func TestReferenceRoundTrip(t *testing.T) {
	for _, series := range []string{"ROR0127", "DOS0526", "EDO1234"} {
		for day := 1; day <= 31; day++ {
			symbol := series + "." + string(rune('0'+day/10)) + string(rune('0'+day%10))
			ref, err := ParseReference(symbol)
			if err != nil {
				t.Fatalf("ParseReference(%q) unexpected error = %v", symbol, err)
			}
			if ref.SeriesID != series || ref.BondType != series[:3] || ref.PurchaseDay != day {
				t.Errorf("ParseReference(%q) = %+v", symbol, ref)
			}
			if got := ref.String(); got != symbol {
				t.Errorf("Reference.String() = %q, want %q", got, symbol)
			}
		}
	}
}
