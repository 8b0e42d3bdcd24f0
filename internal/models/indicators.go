package models

// Trend labels
const (
	TrendBullish = "bullish"
	TrendBearish = "bearish"
	TrendNeutral = "neutral"
)

// Crossover labels
const (
	CrossGolden = "golden"
	CrossDeath  = "death"
)

// Indicators is the derived technical indicator set for one series.
// Pointer fields are nil (JSON null) when the series is too short to compute them.
type Indicators struct {
	SMA5          *float64 `json:"sma5"`
	SMA20         *float64 `json:"sma20"`
	SMA50         *float64 `json:"sma50"`
	RSI14         *float64 `json:"rsi14"`
	AvgVolume     *float64 `json:"avgVolume"`
	CurrentVolume *float64 `json:"currentVolume"`
	PercentChange *float64 `json:"percentChange"`
	Prediction    *float64 `json:"prediction"`
	Trend         string   `json:"trend"`
	Crossover     string   `json:"crossover,omitempty"` // "golden" or "death" on the bar where SMA20 crossed SMA50
	Regime        *Regime  `json:"regime,omitempty"`
	Insights      []string `json:"insights"`
}

// Regime labels
const (
	RegimeBreakout     = "breakout"
	RegimeTrendUp      = "trend_up"
	RegimeTrendDown    = "trend_down"
	RegimeAccumulation = "accumulation"
	RegimeDistribution = "distribution"
	RegimeRange        = "range"
	RegimeDecay        = "decay"
	RegimeUndefined    = "undefined"
)

// Regime classifies recent price action.
type Regime struct {
	Classification string  `json:"classification"`
	Confidence     float64 `json:"confidence"` // 0.0 - 1.0
	TrendBias      string  `json:"trendBias"`  // bullish, bearish, neutral
	SMAStack       string  `json:"smaStack"`   // bullish, bearish, mixed
}
