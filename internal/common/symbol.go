package common

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// TadawulSuffix is the canonical exchange suffix for Saudi listings.
const TadawulSuffix = ".SR"

// SymbolKind classifies a canonical symbol.
type SymbolKind string

const (
	SymbolEquity    SymbolKind = "equity"
	SymbolIndex     SymbolKind = "index"     // ^TASI.SR
	SymbolCurrency  SymbolKind = "currency"  // SAR=X
	SymbolCommodity SymbolKind = "commodity" // BZ=F
)

var (
	// ErrEmptySymbol is returned for blank symbol input.
	ErrEmptySymbol = errors.New("symbol is empty")
	// ErrInvalidSymbol is returned when the symbol contains unsupported characters.
	ErrInvalidSymbol = errors.New("invalid symbol")

	symbolPattern = regexp.MustCompile(`^\^?[A-Z0-9][A-Z0-9\-]*(\.[A-Z]{1,4})?(=[XF])?$`)
	numericCode   = regexp.MustCompile(`^[0-9]{4}$`)
)

// Symbol is a parsed, canonical market symbol.
// Format: CODE.SR for Tadawul equities, ^CODE.SR for indices, CODE=X / CODE=F for macro series.
type Symbol struct {
	// Code is the bare listing code (e.g., "2222", "TASI", "SAR")
	Code string
	// Suffix is the exchange suffix including the dot (e.g., ".SR"), empty for macro series
	Suffix string
	Kind   SymbolKind
	// Raw is the original input
	Raw string
}

// ParseSymbol normalizes a symbol string.
// Supports formats:
//   - "2222.SR" -> Code="2222", Suffix=".SR"
//   - "2222" -> Code="2222", Suffix=".SR" (bare four digit Tadawul codes)
//   - "^tasi.sr" -> Code="TASI", Kind=index (normalized to uppercase)
//   - "BZ=F", "SAR=X" -> commodity / currency
func ParseSymbol(raw string) (Symbol, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if value == "" {
		return Symbol{}, ErrEmptySymbol
	}
	if numericCode.MatchString(value) {
		value += TadawulSuffix
	}
	if !symbolPattern.MatchString(value) {
		return Symbol{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, raw)
	}

	s := Symbol{Raw: raw, Kind: SymbolEquity}

	switch {
	case strings.HasSuffix(value, "=X"):
		s.Kind = SymbolCurrency
		s.Code = strings.TrimSuffix(value, "=X")
		s.Suffix = "=X"
		return s, nil
	case strings.HasSuffix(value, "=F"):
		s.Kind = SymbolCommodity
		s.Code = strings.TrimSuffix(value, "=F")
		s.Suffix = "=F"
		return s, nil
	}

	if strings.HasPrefix(value, "^") {
		s.Kind = SymbolIndex
		value = strings.TrimPrefix(value, "^")
	}
	if idx := strings.LastIndex(value, "."); idx > 0 {
		s.Code = value[:idx]
		s.Suffix = value[idx:]
	} else {
		s.Code = value
	}
	return s, nil
}

// MustParseSymbol parses a symbol known to be valid (catalog entries, tests).
func MustParseSymbol(raw string) Symbol {
	s, err := ParseSymbol(raw)
	if err != nil {
		panic(err)
	}
	return s
}

// String returns the canonical symbol.
func (s Symbol) String() string {
	switch s.Kind {
	case SymbolCurrency, SymbolCommodity:
		return s.Code + s.Suffix
	case SymbolIndex:
		return "^" + s.Code + s.Suffix
	}
	return s.Code + s.Suffix
}

// IsTadawul reports whether the symbol is listed on the Saudi exchange.
func (s Symbol) IsTadawul() bool {
	return s.Suffix == TadawulSuffix
}

// IsMacro reports whether the symbol is an index, currency or commodity series
// which only chart-style providers can address.
func (s Symbol) IsMacro() bool {
	return s.Kind != SymbolEquity
}

// WithSuffix returns the provider symbol with the Tadawul suffix replaced
// Example: "2222.SR".WithSuffix(".SAU") -> "2222.SAU"
func (s Symbol) WithSuffix(suffix string) string {
	if s.Code == "" {
		return ""
	}
	return s.Code + suffix
}

// ExchangeCode returns CODE:EXCHANGE as used by Google Finance
func (s Symbol) ExchangeCode(exchange string) string {
	if s.Code == "" {
		return ""
	}
	return s.Code + ":" + exchange
}

// ParseSymbols parses a comma separated list, dropping blanks and duplicates while keeping order.
func ParseSymbols(csv string) ([]Symbol, error) {
	parts := splitString(csv, ",")
	result := make([]Symbol, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, part := range parts {
		s, err := ParseSymbol(part)
		if err != nil {
			return nil, err
		}
		if seen[s.String()] {
			continue
		}
		seen[s.String()] = true
		result = append(result, s)
	}
	return result, nil
}
