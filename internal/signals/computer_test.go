package signals

import (
	"math"
	"testing"
	"time"

	"github.com/ternarybob/tadawul/internal/models"
)

// seriesOf builds consecutive daily bars from closes.
func seriesOf(closes ...float64) models.PriceSeries {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make(models.PriceSeries, len(closes))
	for i, c := range closes {
		series[i] = models.Bar{Date: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: int64(1000 * (i + 1))}
	}
	return series
}

func rising(n int, from, step float64) models.PriceSeries {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = from + float64(i)*step
	}
	return seriesOf(closes...)
}

func TestSMA(t *testing.T) {
	series := seriesOf(10, 12, 14, 16, 18)

	tests := []struct {
		name string
		n    int
		want *float64
	}{
		{"window of 3", 3, ptr(16)},
		{"whole series", 5, ptr(14)},
		{"window longer than series", 6, nil},
		{"zero window", 0, nil},
		{"negative window", -1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SMA(series, tt.n)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("SMA(%d) = %v, want %v", tt.n, got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("SMA(%d) = %v, want %v", tt.n, *got, *tt.want)
			}
		})
	}

	withNaN := seriesOf(10, 12, 14)
	withNaN[2].Close = math.NaN()
	if got := SMA(withNaN, 2); got != nil {
		t.Errorf("SMA over NaN = %v, want nil", *got)
	}
}

func TestRSI(t *testing.T) {
	if got := RSI(seriesOf(1, 2, 3), 14); got != nil {
		t.Errorf("RSI with 3 closes = %v, want nil", *got)
	}

	// 15 closes, only gains
	if got := RSI(rising(15, 10, 1), 14); got == nil || *got != 100 {
		t.Errorf("RSI of monotonic rise = %v, want 100", got)
	}

	// Flat series has no losses
	if got := RSI(rising(15, 10, 0), 14); got == nil || *got != 100 {
		t.Errorf("RSI of flat series = %v, want 100", got)
	}

	// Only losses
	if got := RSI(rising(15, 30, -1), 14); got == nil || *got != 0 {
		t.Errorf("RSI of monotonic fall = %v, want 0", got)
	}

	// Alternating moves stay within bounds
	closes := []float64{44, 44.3, 44.1, 44.2, 43.6, 44.3, 44.8, 45.1, 45.4, 45.8, 46.1, 45.9, 46.2, 45.6, 46.3, 46.3, 46.0}
	got := RSI(seriesOf(closes...), 14)
	if got == nil {
		t.Fatal("RSI returned nil for sufficient data")
	}
	if *got < 0 || *got > 100 {
		t.Errorf("RSI = %v, out of [0,100]", *got)
	}
}

func TestPercentChange(t *testing.T) {
	if got := PercentChange(seriesOf(10)); got != nil {
		t.Errorf("PercentChange of one close = %v, want nil", *got)
	}
	if got := PercentChange(seriesOf(10, 11)); got == nil || *got != 10 {
		t.Errorf("PercentChange = %v, want 10", got)
	}

	zero := seriesOf(10, 11)
	zero[0].Close = 0
	// Normalize is not applied here, the zero close is seen directly
	if got := PercentChange(zero); got != nil {
		t.Errorf("PercentChange from zero = %v, want nil", *got)
	}
}

func TestAverageVolumeAndPrediction(t *testing.T) {
	series := seriesOf(10, 11, 12)
	if got := AverageVolume(series, 20); got == nil || *got != 2000 {
		t.Errorf("AverageVolume = %v, want 2000", got)
	}
	if got := AverageVolume(models.PriceSeries{}, 20); got != nil {
		t.Errorf("AverageVolume of empty = %v, want nil", *got)
	}

	if got := PredictNextClose(series, 5); got == nil || *got != 13 {
		t.Errorf("PredictNextClose = %v, want 13", got)
	}
	if got := PredictNextClose(seriesOf(10), 5); got != nil {
		t.Errorf("PredictNextClose with one close = %v, want nil", *got)
	}
}

func TestTrendAndCrossover(t *testing.T) {
	if got := Trend(rising(30, 10, 1)); got != models.TrendBullish {
		t.Errorf("Trend of rise = %q", got)
	}
	if got := Trend(rising(30, 60, -1)); got != models.TrendBearish {
		t.Errorf("Trend of fall = %q", got)
	}
	if got := Trend(seriesOf(1, 2, 3)); got != models.TrendNeutral {
		t.Errorf("Trend of short series = %q", got)
	}

	// 60 falling closes followed by a sharp rally push SMA20 over SMA50 once
	closes := make([]float64, 0, 80)
	for i := 0; i < 60; i++ {
		closes = append(closes, 100-float64(i)*0.5)
	}
	found := ""
	for i := 0; i < 20 && found == ""; i++ {
		closes = append(closes, closes[len(closes)-1]+5)
		found = Crossover(seriesOf(closes...))
	}
	if found != models.CrossGolden {
		t.Errorf("expected golden cross during rally, got %q", found)
	}
}

func TestComputer_Compute(t *testing.T) {
	computer := NewComputer()

	t.Run("empty series", func(t *testing.T) {
		ind := computer.Compute(nil, nil)
		if ind.SMA5 != nil || ind.RSI14 != nil || ind.PercentChange != nil || ind.Prediction != nil {
			t.Errorf("expected nil indicators for empty series, got %+v", ind)
		}
		if ind.Trend != models.TrendNeutral {
			t.Errorf("Trend = %q", ind.Trend)
		}
	})

	t.Run("long rising series", func(t *testing.T) {
		series := rising(60, 10, 1)
		quote := &models.Quote{Symbol: "2222.SR", Price: 70, Volume: 1_000_000}
		ind := computer.Compute(series, quote)

		if ind.SMA5 == nil || ind.SMA20 == nil || ind.SMA50 == nil {
			t.Fatal("expected all SMAs")
		}
		if ind.RSI14 == nil || *ind.RSI14 != 100 {
			t.Errorf("RSI14 = %v, want 100", ind.RSI14)
		}
		if ind.CurrentVolume == nil || *ind.CurrentVolume != 1_000_000 {
			t.Errorf("CurrentVolume = %v, want quote volume", ind.CurrentVolume)
		}
		if len(ind.Insights) == 0 {
			t.Error("expected insights")
		}
	})

	t.Run("series with bad bars", func(t *testing.T) {
		series := seriesOf(10, 12, 14)
		series[1].Close = math.Inf(1)
		ind := computer.Compute(series, nil)
		if ind.PercentChange == nil || *ind.PercentChange != 40 {
			t.Errorf("PercentChange = %v, want 40 after dropping the bad bar", ind.PercentChange)
		}
	})
}

func TestInsights(t *testing.T) {
	ind := models.Indicators{
		RSI14:         ptr(75),
		SMA20:         ptr(100),
		SMA50:         ptr(120),
		AvgVolume:     ptr(1000),
		CurrentVolume: ptr(2000),
		Crossover:     models.CrossDeath,
		Trend:         models.TrendBearish,
		Prediction:    ptr(104),
	}
	insights := Insights(ind, &models.Quote{Price: 105})

	if len(insights) != 6 {
		t.Fatalf("expected 6 insights, got %d: %v", len(insights), insights)
	}
	if got := Insights(models.Indicators{}, nil); len(got) != 0 {
		t.Errorf("expected no insights for empty indicators, got %v", got)
	}
}

func TestIndicators_Unrounded(t *testing.T) {
	t.Run("SMA is the exact mean", func(t *testing.T) {
		got := SMA(seriesOf(10.00001, 10.00002, 10.00004), 3)
		want := (10.00001 + 10.00002 + 10.00004) / 3
		if got == nil || math.Abs(*got-want) > 1e-12 {
			t.Errorf("SMA = %v, want %v", got, want)
		}
	})

	t.Run("RSI follows 100 - 100/(1+RS)", func(t *testing.T) {
		got := RSI(seriesOf(10.3, 10.1, 10.45), 2)
		gain, loss := 10.45-10.1, 10.3-10.1
		want := 100 - 100/(1+(gain/2)/(loss/2))
		if got == nil || math.Abs(*got-want) > 1e-12 {
			t.Errorf("RSI = %v, want %v", got, want)
		}
	})

	t.Run("small SMA gaps still decide the trend", func(t *testing.T) {
		closes := make([]float64, 0, 20)
		for i := 0; i < 15; i++ {
			closes = append(closes, 10)
		}
		for i := 0; i < 5; i++ {
			closes = append(closes, 10.00001)
		}
		if got := Trend(seriesOf(closes...)); got != models.TrendBullish {
			t.Errorf("Trend = %q, want %q", got, models.TrendBullish)
		}
	})
}
