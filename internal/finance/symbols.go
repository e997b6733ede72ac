package finance

import (
	"fmt"
	"regexp"
	"strings"
)

var reSymbol = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ParseSymbol normalizes a ticker to upper case and checks it can name a relation.
func ParseSymbol(s string) (Symbol, error) {
	s = strings.TrimSpace(s)
	if !reSymbol.MatchString(s) {
		return "", fmt.Errorf("%w: invalid symbol %q", ErrInvalidSeries, s)
	}
	return Symbol(strings.ToUpper(s)), nil
}

// ParseSymbols parses a list of tickers separated by spaces or commas.
// Format: GDOT GS,PYPL SQ
func ParseSymbols(input ...string) ([]Symbol, error) {
	var parts []string
	for _, in := range input {
		parts = append(parts, strings.FieldsFunc(in, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		})...)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: no symbols provided", ErrMissingAsset)
	}

	symbols := make([]Symbol, 0, len(parts))
	seen := make(map[Symbol]bool, len(parts))
	for i, p := range parts {
		sym, err := ParseSymbol(p)
		if err != nil {
			return nil, fmt.Errorf("symbol at position %d: %w", i+1, err)
		}
		if seen[sym] {
			return nil, fmt.Errorf("%w: duplicate symbol: %s", ErrInvalidSeries, sym)
		}
		seen[sym] = true
		symbols = append(symbols, sym)
	}
	return symbols, nil
}

// Table returns the relation name of the symbol in the store.
func (s Symbol) Table() string { return strings.ToLower(string(s)) }
