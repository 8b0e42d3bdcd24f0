package sources

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// parseNumber parses provider numeric strings such as "35.2000", "1.25%", "SAR 27.45" or "1,234,567".
func parseNumber(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimPrefix(s, "SAR")
	s = strings.TrimPrefix(s, "ر.س")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", raw, err)
	}
	return d.InexactFloat64(), nil
}

// parseOptional parses raw when present, returning 0 for blank or placeholder values.
func parseOptional(raw string) (float64, error) {
	switch strings.TrimSpace(raw) {
	case "", "-", "NA", "N/A", "None", "null":
		return 0, nil
	}
	return parseNumber(raw)
}

// flexNumber decodes a JSON number or a numeric string.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := parseOptional(s)
		if err != nil {
			return err
		}
		*n = flexNumber(v)
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", data, err)
	}
	*n = flexNumber(d.InexactFloat64())
	return nil
}

func (n flexNumber) float() float64 {
	return float64(n)
}

func (n flexNumber) int64() int64 {
	return decimal.NewFromFloat(float64(n)).IntPart()
}
