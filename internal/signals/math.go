package signals

import "math"

// clamp restricts a value to a range
func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// finite reports whether v is neither NaN nor infinite
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// allFinite reports whether every value is finite
func allFinite(values []float64) bool {
	for _, v := range values {
		if !finite(v) {
			return false
		}
	}
	return true
}

// sma calculates the simple moving average of the last n values
func sma(values []float64, n int) (float64, bool) {
	if len(values) < n || n <= 0 {
		return 0, false
	}
	window := values[len(values)-n:]
	if !allFinite(window) {
		return 0, false
	}
	return avg(window), true
}

// avg calculates the average of all values
func avg(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// pctChange calculates the percentage change from old to new
func pctChange(old, newVal float64) float64 {
	if old == 0 {
		return 0
	}
	return ((newVal - old) / old) * 100
}

// ptr returns a pointer to v, or nil when v is not finite
func ptr(v float64) *float64 {
	if !finite(v) {
		return nil
	}
	return &v
}
