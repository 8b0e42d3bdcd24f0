package signals

import (
	"math"

	"github.com/ternarybob/tadawul/internal/models"
)

// Regime windows, in bars
const (
	regimeShortReturn = 20  // ~4 weeks
	regimeLongReturn  = 60  // ~12 weeks
	regimeRangeWindow = 250 // ~52 weeks
	regimeVolumeFast  = 5
)

// regimeInputs is what the classifier reads from a series
type regimeInputs struct {
	price        float64
	smaMedium    float64
	smaLong      float64
	rangeHigh    float64
	rangeLow     float64
	returnShort  float64
	returnLong   float64
	volumeZScore float64
	volumeRising bool
}

// Regime classifies the price action of a normalized series.
// Nil until the series covers the long SMA window.
func Regime(series models.PriceSeries, price float64) *models.Regime {
	in, ok := newRegimeInputs(series, price)
	if !ok {
		return nil
	}
	return classifyRegime(in)
}

func newRegimeInputs(series models.PriceSeries, price float64) (regimeInputs, bool) {
	closes := series.Closes()
	if len(closes) < longSMAWindow || !allFinite(closes) {
		return regimeInputs{}, false
	}
	if !finite(price) || price <= 0 {
		price = closes[len(closes)-1]
	}

	in := regimeInputs{price: price}
	in.smaMedium, _ = sma(closes, mediumSMAWindow)
	in.smaLong, _ = sma(closes, longSMAWindow)

	window := series.Last(regimeRangeWindow)
	in.rangeHigh, in.rangeLow = window[0].High, window[0].Low
	for _, bar := range window {
		high, low := math.Max(bar.High, bar.Close), bar.Low
		if low <= 0 {
			low = bar.Close
		}
		in.rangeHigh = math.Max(in.rangeHigh, high)
		if in.rangeLow <= 0 || low < in.rangeLow {
			in.rangeLow = low
		}
	}

	in.returnShort = trailingReturn(closes, regimeShortReturn)
	in.returnLong = trailingReturn(closes, regimeLongReturn)

	volumes := series.Volumes()
	in.volumeZScore = zScore(volumes, VolumeWindow)
	fast, fastOK := sma(volumes, regimeVolumeFast)
	slow, slowOK := sma(volumes, VolumeWindow)
	in.volumeRising = fastOK && slowOK && slow > 0 && fast > slow*1.1

	return in, true
}

func classifyRegime(in regimeInputs) *models.Regime {
	aboveMedium := in.price > in.smaMedium
	aboveLong := in.price > in.smaLong
	stackBullish := in.smaMedium > in.smaLong && aboveMedium
	stackBearish := in.smaMedium < in.smaLong && !aboveMedium

	nearHigh := false
	if in.rangeHigh > 0 {
		dist := (in.rangeHigh - in.price) / in.rangeHigh
		nearHigh = dist >= 0 && dist < 0.05
	}
	nearLow := false
	if in.rangeLow > 0 {
		dist := (in.price - in.rangeLow) / in.rangeLow
		nearLow = dist >= 0 && dist < 0.10
	}
	volExpanding := in.volumeZScore > 0.5

	var regime string
	var confidence float64

	switch {
	case nearHigh && volExpanding && stackBullish:
		regime, confidence = models.RegimeBreakout, 0.80
	case stackBullish && in.returnShort > 0:
		regime, confidence = models.RegimeTrendUp, 0.70
	case stackBearish && !aboveLong && in.returnShort < 0:
		regime, confidence = models.RegimeTrendDown, 0.70
	case !aboveLong && in.volumeRising && in.returnLong < -10:
		regime, confidence = models.RegimeDecay, 0.65
	case nearHigh && !volExpanding && in.returnShort < 3:
		regime, confidence = models.RegimeDistribution, 0.60
	case math.Abs(in.returnShort) < 5 && in.volumeRising && volExpanding:
		regime, confidence = models.RegimeAccumulation, 0.55
	case math.Abs(in.returnLong) < 10 && !stackBullish && !stackBearish:
		regime, confidence = models.RegimeRange, 0.50
	case aboveLong && in.returnShort > 0:
		regime, confidence = models.RegimeTrendUp, 0.40
	case !aboveLong && in.returnShort < 0:
		regime, confidence = models.RegimeTrendDown, 0.40
	case nearLow && volExpanding:
		regime, confidence = models.RegimeAccumulation, 0.45
	default:
		regime, confidence = models.RegimeUndefined, 0.30
	}

	bias := models.TrendBearish
	if aboveLong {
		bias = models.TrendBullish
	}

	stack := "mixed"
	if in.smaMedium > in.smaLong {
		stack = models.TrendBullish
	} else if in.smaMedium < in.smaLong {
		stack = models.TrendBearish
	}

	return &models.Regime{
		Classification: regime,
		Confidence:     confidence,
		TrendBias:      bias,
		SMAStack:       stack,
	}
}

// trailingReturn is the percent change over the last n bars, or over the whole series when shorter
func trailingReturn(closes []float64, n int) float64 {
	if len(closes) < 2 {
		return 0
	}
	start := len(closes) - 1 - n
	if start < 0 {
		start = 0
	}
	return pctChange(closes[start], closes[len(closes)-1])
}

// zScore of the last value against the trailing n values
func zScore(values []float64, n int) float64 {
	mean, ok := sma(values, n)
	if !ok {
		return 0
	}
	window := values[len(values)-n:]
	var sq float64
	for _, v := range window {
		sq += (v - mean) * (v - mean)
	}
	std := math.Sqrt(sq / float64(n))
	if std == 0 {
		return 0
	}
	return (window[n-1] - mean) / std
}
