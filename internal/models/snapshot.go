package models

import "time"

// MarketPhase is the trading session state.
type MarketPhase string

const (
	MarketOpen    MarketPhase = "open"
	MarketPreOpen MarketPhase = "pre-open"
	MarketClosed  MarketPhase = "closed"
)

// MarketStatus describes the exchange session at a point in time.
type MarketStatus struct {
	Phase     MarketPhase `json:"phase"`
	IsOpen    bool        `json:"isOpen"`
	Timezone  string      `json:"timezone"`
	LocalTime time.Time   `json:"localTime"`
	NextOpen  time.Time   `json:"nextOpen"`
	NextClose *time.Time  `json:"nextClose,omitempty"`
	Reason    string      `json:"reason,omitempty"`
}

// Omission records a requested symbol with no data.
type Omission struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// Mover is a compact quote used in gainer and loser lists.
type Mover struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name,omitempty"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Volume        int64   `json:"volume"`
}

// MarketSummary aggregates the quotes of a snapshot.
type MarketSummary struct {
	UpCount              int     `json:"upCount"`
	DownCount            int     `json:"downCount"`
	StableCount          int     `json:"stableCount"`
	TotalVolume          int64   `json:"totalVolume"`
	TotalValue           float64 `json:"totalValue"`
	AverageChangePercent float64 `json:"averageChangePercent"`
	TopGainers           []Mover `json:"topGainers"`
	TopLosers            []Mover `json:"topLosers"`
}

// MarketSnapshot is the market overview payload.
type MarketSnapshot struct {
	Quotes       []Quote       `json:"quotes"`
	Omitted      []Omission    `json:"omitted"`
	Summary      MarketSummary `json:"summary"`
	Partial      bool          `json:"partial"`
	MarketStatus MarketStatus  `json:"marketStatus"`
	GeneratedAt  time.Time     `json:"generatedAt"`
}

// StockReport is the single stock payload.
type StockReport struct {
	Quote       Quote       `json:"quote"`
	Series      PriceSeries `json:"series"`
	Indicators  Indicators  `json:"indicators"`
	Insights    []string    `json:"insights"`
	SeriesError string      `json:"seriesError,omitempty"`
	GeneratedAt time.Time   `json:"generatedAt"`
}

// IndexQuote pairs a catalog display name with its quote.
type IndexQuote struct {
	Name  string `json:"name"`
	Quote Quote  `json:"quote"`
}

// IndexBoard is the indices and macro indicators payload.
type IndexBoard struct {
	Indices     map[string]IndexQuote `json:"indices"`
	Omitted     []Omission            `json:"omitted"`
	Partial     bool                  `json:"partial"`
	GeneratedAt time.Time             `json:"generatedAt"`
}

// SectorReport is the sector history payload.
type SectorReport struct {
	Sector      string      `json:"sector"`
	Name        string      `json:"name"`
	Symbol      string      `json:"symbol"`
	Start       string      `json:"start"`
	End         string      `json:"end"`
	Series      PriceSeries `json:"series"`
	Indicators  Indicators  `json:"indicators"`
	GeneratedAt time.Time   `json:"generatedAt"`
}
