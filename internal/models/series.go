package models

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// DateLayout is the wire format for bar dates.
const DateLayout = "2006-01-02"

// Bar is one daily OHLCV record.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

type barJSON struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// MarshalJSON writes the date as YYYY-MM-DD
func (b Bar) MarshalJSON() ([]byte, error) {
	return json.Marshal(barJSON{
		Date:   b.Date.Format(DateLayout),
		Open:   b.Open,
		High:   b.High,
		Low:    b.Low,
		Close:  b.Close,
		Volume: b.Volume,
	})
}

// UnmarshalJSON reads the YYYY-MM-DD date format
func (b *Bar) UnmarshalJSON(data []byte) error {
	var raw barJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	date, err := time.Parse(DateLayout, raw.Date)
	if err != nil {
		return fmt.Errorf("invalid bar date %q: %w", raw.Date, err)
	}
	*b = Bar{Date: date, Open: raw.Open, High: raw.High, Low: raw.Low, Close: raw.Close, Volume: raw.Volume}
	return nil
}

// PriceSeries is an ordered list of bars, oldest first.
type PriceSeries []Bar

// Normalize returns a copy sorted by date with unusable bars removed.
// Bars with a non-finite or non-positive close are dropped; for duplicate dates the last one seen wins.
func (s PriceSeries) Normalize() PriceSeries {
	byDate := make(map[string]int, len(s))
	out := make(PriceSeries, 0, len(s))
	for _, bar := range s {
		if !isPositive(bar.Close) || bar.Date.IsZero() {
			continue
		}
		bar.Date = time.Date(bar.Date.Year(), bar.Date.Month(), bar.Date.Day(), 0, 0, 0, 0, time.UTC)
		key := bar.Date.Format(DateLayout)
		if idx, ok := byDate[key]; ok {
			out[idx] = bar
			continue
		}
		byDate[key] = len(out)
		out = append(out, bar)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Closes returns the close prices in order.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, bar := range s {
		closes[i] = bar.Close
	}
	return closes
}

// Volumes returns the volumes in order as floats.
func (s PriceSeries) Volumes() []float64 {
	volumes := make([]float64, len(s))
	for i, bar := range s {
		volumes[i] = float64(bar.Volume)
	}
	return volumes
}

// Last returns the trailing n bars (all of them when shorter).
func (s PriceSeries) Last(n int) PriceSeries {
	if n <= 0 || n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// Between returns bars with start <= date <= end (inclusive, date granularity).
func (s PriceSeries) Between(start, end time.Time) PriceSeries {
	out := make(PriceSeries, 0, len(s))
	for _, bar := range s {
		if bar.Date.Before(truncateDay(start)) || bar.Date.After(truncateDay(end)) {
			continue
		}
		out = append(out, bar)
	}
	return out
}

// LastClose returns the most recent close, or NaN when empty.
func (s PriceSeries) LastClose() float64 {
	if len(s) == 0 {
		return math.NaN()
	}
	return s[len(s)-1].Close
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
