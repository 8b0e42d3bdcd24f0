package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalog_Embedded(t *testing.T) {
	catalog, err := LoadCatalog("")
	require.NoError(t, err)

	assert.Contains(t, catalog.MarketSymbols(), "2222.SR")
	assert.Contains(t, catalog.IndexSymbols(), "^TASI.SR")
	assert.Equal(t, "Saudi Aramco", catalog.NameFor("2222.SR"))
	assert.NotEmpty(t, catalog.HolidayDates())

	sector, ok := catalog.Sector(" Energy ")
	require.True(t, ok)
	assert.Equal(t, "2222.SR", sector.Proxy)

	_, ok = catalog.Sector("crypto")
	assert.False(t, ok)
}

func TestLoadCatalog_FileCanonicalizesSymbols(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
market:
  - symbol: "2222"
    name: Aramco
sectors:
  - key: ENERGY
    proxy: 2222.sr
`), 0644))

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"2222.SR"}, catalog.MarketSymbols())
	assert.Equal(t, []string{"energy"}, catalog.SectorKeys())
}

func TestParseCatalog_Errors(t *testing.T) {
	tests := map[string]string{
		"empty market":  "indices: []",
		"bad symbol":    "market:\n  - symbol: \"not a symbol\"",
		"bad holiday":   "market:\n  - symbol: 2222.SR\nholidays:\n  - \"tomorrow\"",
		"invalid yaml":  "market: [",
		"bad proxy":     "market:\n  - symbol: 2222.SR\nsectors:\n  - key: x\n    proxy: \"\"",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(content))
			assert.Error(t, err)
		})
	}
}
