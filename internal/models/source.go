package models

// SourceName identifies an upstream quote provider.
type SourceName string

const (
	SourceYahoo         SourceName = "yahoo"
	SourceTwelveData    SourceName = "twelvedata"
	SourceAlphaVantage  SourceName = "alphavantage"
	SourceEODHD         SourceName = "eodhd"
	SourceGoogleFinance SourceName = "googlefinance"
	SourceBridge        SourceName = "bridge"
)

// AllSources lists every known provider in default priority order.
var AllSources = []SourceName{
	SourceYahoo,
	SourceTwelveData,
	SourceAlphaVantage,
	SourceEODHD,
	SourceGoogleFinance,
	SourceBridge,
}

// IsValid reports whether the name is a known provider.
func (s SourceName) IsValid() bool {
	for _, known := range AllSources {
		if s == known {
			return true
		}
	}
	return false
}
