package treasury

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// termRE captures the count and the unit of a term like "12 miesięcy" or "4 lata".
var termRE = regexp.MustCompile(`(\d+)\s*-?\s*(mies|m-c|lat|rok|let)`)

// ParseTerm parses a maturity term written in Polish and returns it in months.
//
// Months are "miesiąc", "miesiące", "miesięcy" or "mies."; years are "rok",
// "lata", "lat" or the adjective form "N-letnie".
func ParseTerm(text string) (months int, err error) {
	m := termRE.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return 0, fmt.Errorf("unrecognized maturity term %q", text)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid maturity term %q", text)
	}
	switch m[2] {
	case "mies", "m-c":
		return n, nil
	default:
		return 12 * n, nil
	}
}
