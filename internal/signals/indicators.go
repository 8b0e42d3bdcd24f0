package signals

import (
	"github.com/ternarybob/tadawul/internal/models"
)

// Default indicator windows
const (
	RSIPeriod       = 14
	VolumeWindow    = 20
	PredictLookback = 5
	shortSMAWindow  = 5
	mediumSMAWindow = 20
	longSMAWindow   = 50
)

// SMA returns the mean of the last n closes, unrounded.
// Nil when the series is shorter than n, n <= 0 or the window holds a non-finite close.
func SMA(series models.PriceSeries, n int) *float64 {
	v, ok := sma(series.Closes(), n)
	if !ok {
		return nil
	}
	return ptr(v)
}

// RSI computes the relative strength index over the trailing period changes using simple averages.
// Returns 100 when there are no losses in the window and nil with fewer than period+1 closes.
func RSI(series models.PriceSeries, period int) *float64 {
	closes := series.Closes()
	if period <= 0 || len(closes) < period+1 {
		return nil
	}
	window := closes[len(closes)-period-1:]
	if !allFinite(window) {
		return nil
	}

	var gains, losses float64
	for i := 1; i < len(window); i++ {
		change := window[i] - window[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		v := 100.0
		return &v
	}
	rs := avgGain / avgLoss
	return ptr(clamp(100-100/(1+rs), 0, 100))
}

// PercentChange compares the last close with the one before it.
// Nil with fewer than two closes or when the earlier close is zero.
func PercentChange(series models.PriceSeries) *float64 {
	closes := series.Closes()
	if len(closes) < 2 {
		return nil
	}
	prev, last := closes[len(closes)-2], closes[len(closes)-1]
	if prev == 0 || !finite(prev) || !finite(last) {
		return nil
	}
	return ptr(pctChange(prev, last))
}

// AverageVolume is the mean of the trailing n volumes, or of all volumes when fewer exist.
func AverageVolume(series models.PriceSeries, n int) *float64 {
	volumes := series.Volumes()
	if len(volumes) == 0 || n <= 0 {
		return nil
	}
	if len(volumes) > n {
		volumes = volumes[len(volumes)-n:]
	}
	return ptr(avg(volumes))
}

// CurrentVolume returns the latest bar's volume.
func CurrentVolume(series models.PriceSeries) *float64 {
	if len(series) == 0 {
		return nil
	}
	return ptr(float64(series[len(series)-1].Volume))
}

// PredictNextClose extrapolates the last close by the mean daily change over the lookback.
// This is a naive heuristic, not a forecast model.
func PredictNextClose(series models.PriceSeries, lookback int) *float64 {
	closes := series.Closes()
	if len(closes) < 2 || lookback <= 0 {
		return nil
	}
	if len(closes) > lookback+1 {
		closes = closes[len(closes)-lookback-1:]
	}
	if !allFinite(closes) {
		return nil
	}

	changes := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		changes = append(changes, closes[i]-closes[i-1])
	}
	next := closes[len(closes)-1] + avg(changes)
	if next <= 0 {
		return nil
	}
	return ptr(next)
}

// Trend labels the series from the last close relative to SMA20 and the SMA5/SMA20 ordering.
func Trend(series models.PriceSeries) string {
	short := SMA(series, shortSMAWindow)
	medium := SMA(series, mediumSMAWindow)
	if short == nil || medium == nil {
		return models.TrendNeutral
	}
	last := series.LastClose()
	switch {
	case last > *medium && *short > *medium:
		return models.TrendBullish
	case last < *medium && *short < *medium:
		return models.TrendBearish
	}
	return models.TrendNeutral
}

// Crossover reports a golden or death cross of SMA20 over SMA50 on the latest bar, or "".
func Crossover(series models.PriceSeries) string {
	if len(series) < longSMAWindow+1 {
		return ""
	}
	prev := series[:len(series)-1]
	prevMedium, prevLong := SMA(prev, mediumSMAWindow), SMA(prev, longSMAWindow)
	medium, long := SMA(series, mediumSMAWindow), SMA(series, longSMAWindow)
	if prevMedium == nil || prevLong == nil || medium == nil || long == nil {
		return ""
	}
	switch {
	case *prevMedium <= *prevLong && *medium > *long:
		return models.CrossGolden
	case *prevMedium >= *prevLong && *medium < *long:
		return models.CrossDeath
	}
	return ""
}
