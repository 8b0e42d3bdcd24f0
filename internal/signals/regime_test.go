package signals

import (
	"math"
	"testing"

	"github.com/ternarybob/tadawul/internal/models"
)

func TestRegime(t *testing.T) {
	flat := make([]float64, 60)
	for i := range flat {
		flat[i] = 50
	}

	tests := []struct {
		name       string
		series     models.PriceSeries
		price      float64
		want       string
		confidence float64
		bias       string
		stack      string
	}{
		{"breakout at range high on heavy volume", rising(60, 10, 1), 0, models.RegimeBreakout, 0.80, models.TrendBullish, models.TrendBullish},
		{"trend up above range high", rising(60, 10, 1), 70, models.RegimeTrendUp, 0.70, models.TrendBullish, models.TrendBullish},
		{"trend down", rising(60, 100, -1), 0, models.RegimeTrendDown, 0.70, models.TrendBearish, models.TrendBearish},
		{"accumulation on flat price", seriesOf(flat...), 0, models.RegimeAccumulation, 0.55, models.TrendBearish, "mixed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Regime(tt.series, tt.price)
			if got == nil {
				t.Fatal("expected a regime")
			}
			if got.Classification != tt.want {
				t.Errorf("Classification = %q, want %q", got.Classification, tt.want)
			}
			if got.Confidence != tt.confidence {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.confidence)
			}
			if got.TrendBias != tt.bias {
				t.Errorf("TrendBias = %q, want %q", got.TrendBias, tt.bias)
			}
			if got.SMAStack != tt.stack {
				t.Errorf("SMAStack = %q, want %q", got.SMAStack, tt.stack)
			}
		})
	}

	t.Run("short series", func(t *testing.T) {
		if got := Regime(rising(49, 10, 1), 0); got != nil {
			t.Errorf("expected nil regime, got %+v", got)
		}
	})
}

func TestZScore(t *testing.T) {
	if got := zScore([]float64{5, 5, 5}, 3); got != 0 {
		t.Errorf("zScore of constant values = %v, want 0", got)
	}
	if got := zScore([]float64{1, 2}, 3); got != 0 {
		t.Errorf("zScore of short input = %v, want 0", got)
	}
	if got := zScore([]float64{1, 1, 4}, 3); math.Abs(got-math.Sqrt2) > 1e-12 {
		t.Errorf("zScore = %v, want sqrt(2)", got)
	}
}
