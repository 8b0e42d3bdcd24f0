package signals

import (
	"github.com/ternarybob/tadawul/internal/models"
)

// Computer derives the indicator set for a price series.
type Computer struct {
	rsiPeriod       int
	volumeWindow    int
	predictLookback int
}

// NewComputer creates a Computer with the default windows
func NewComputer() *Computer {
	return &Computer{
		rsiPeriod:       RSIPeriod,
		volumeWindow:    VolumeWindow,
		predictLookback: PredictLookback,
	}
}

// Compute returns all indicators and insights. The series is normalized first;
// quote may be nil, in which case the last close stands in for the current price.
// Never panics: empty or unusable input yields nil indicator fields.
func (c *Computer) Compute(series models.PriceSeries, quote *models.Quote) models.Indicators {
	series = series.Normalize()

	ind := models.Indicators{
		SMA5:          SMA(series, shortSMAWindow),
		SMA20:         SMA(series, mediumSMAWindow),
		SMA50:         SMA(series, longSMAWindow),
		RSI14:         RSI(series, c.rsiPeriod),
		AvgVolume:     AverageVolume(series, c.volumeWindow),
		CurrentVolume: CurrentVolume(series),
		PercentChange: PercentChange(series),
		Prediction:    PredictNextClose(series, c.predictLookback),
		Trend:         Trend(series),
		Crossover:     Crossover(series),
	}

	if quote == nil && len(series) > 0 {
		quote = &models.Quote{Price: series.LastClose()}
	}
	if quote != nil && quote.Volume > 0 {
		// Intraday volume is fresher than the last bar
		ind.CurrentVolume = ptr(float64(quote.Volume))
	}

	price := 0.0
	if quote != nil {
		price = quote.Price
	}
	ind.Regime = Regime(series, price)

	ind.Insights = Insights(ind, quote)
	return ind
}
