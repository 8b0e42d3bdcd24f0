package common

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// CatalogEntry is one listed instrument.
type CatalogEntry struct {
	Symbol string `yaml:"symbol"`
	Name   string `yaml:"name"`
	Sector string `yaml:"sector,omitempty"`
}

// SectorEntry maps a sector key to the listing used as its price proxy.
type SectorEntry struct {
	Key   string `yaml:"key"`
	Name  string `yaml:"name"`
	Proxy string `yaml:"proxy"`
}

// Catalog is the static list of symbols, indices, sectors and exchange holidays.
type Catalog struct {
	Market   []CatalogEntry `yaml:"market"`
	Indices  []CatalogEntry `yaml:"indices"`
	Sectors  []SectorEntry  `yaml:"sectors"`
	Holidays []string       `yaml:"holidays"`

	names    map[string]string
	holidays []time.Time
}

// LoadCatalog reads the catalog at path, or the embedded default when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		fileData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
		}
		data = fileData
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates catalog YAML. Symbols are stored in canonical form.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c.names = make(map[string]string)
	canonical := func(list []CatalogEntry, section string) error {
		for i := range list {
			s, err := ParseSymbol(list[i].Symbol)
			if err != nil {
				return fmt.Errorf("catalog %s entry %d: %w", section, i, err)
			}
			list[i].Symbol = s.String()
			c.names[list[i].Symbol] = list[i].Name
		}
		return nil
	}
	if err := canonical(c.Market, "market"); err != nil {
		return nil, err
	}
	if err := canonical(c.Indices, "indices"); err != nil {
		return nil, err
	}
	if len(c.Market) == 0 {
		return nil, fmt.Errorf("catalog has no market symbols")
	}

	for i := range c.Sectors {
		c.Sectors[i].Key = strings.ToLower(strings.TrimSpace(c.Sectors[i].Key))
		s, err := ParseSymbol(c.Sectors[i].Proxy)
		if err != nil {
			return nil, fmt.Errorf("catalog sector %q: %w", c.Sectors[i].Key, err)
		}
		c.Sectors[i].Proxy = s.String()
	}

	for _, h := range c.Holidays {
		date, err := time.Parse("2006-01-02", strings.TrimSpace(h))
		if err != nil {
			return nil, fmt.Errorf("catalog holiday %q: %w", h, err)
		}
		c.holidays = append(c.holidays, date)
	}

	return &c, nil
}

// MarketSymbols returns the default market overview symbols.
func (c *Catalog) MarketSymbols() []string {
	return symbolsOf(c.Market)
}

// IndexSymbols returns the index and macro indicator symbols.
func (c *Catalog) IndexSymbols() []string {
	return symbolsOf(c.Indices)
}

// Sector looks up a sector by key (case-insensitive).
func (c *Catalog) Sector(key string) (SectorEntry, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, s := range c.Sectors {
		if s.Key == key {
			return s, true
		}
	}
	return SectorEntry{}, false
}

// SectorKeys lists the configured sector keys.
func (c *Catalog) SectorKeys() []string {
	keys := make([]string, 0, len(c.Sectors))
	for _, s := range c.Sectors {
		keys = append(keys, s.Key)
	}
	return keys
}

// NameFor returns the display name of a canonical symbol, or "".
func (c *Catalog) NameFor(symbol string) string {
	return c.names[symbol]
}

// HolidayDates returns the parsed exchange holidays.
func (c *Catalog) HolidayDates() []time.Time {
	return c.holidays
}

func symbolsOf(entries []CatalogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Symbol
	}
	return out
}
