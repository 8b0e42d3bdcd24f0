package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when a provider omits the quote currency.
const DefaultCurrency = "SAR"

// ErrInvalidPrice is returned by Normalize when the price is missing, non-finite or not positive.
var ErrInvalidPrice = errors.New("price must be a finite positive number")

// Quote is the normalized snapshot of one instrument.
type Quote struct {
	Symbol        string     `json:"symbol"`
	Name          string     `json:"name,omitempty"`
	Price         float64    `json:"price"`
	PreviousClose float64    `json:"previousClose"`
	Open          float64    `json:"open"`
	High          float64    `json:"high"`
	Low           float64    `json:"low"`
	Change        float64    `json:"change"`
	ChangePercent float64    `json:"changePercent"`
	Volume        int64      `json:"volume"`
	Value         float64    `json:"value"` // Turnover, price x volume
	Currency      string     `json:"currency"`
	Source        SourceName `json:"source"`
	MarketTime    *time.Time `json:"marketTime,omitempty"`
	FetchedAt     time.Time  `json:"fetchedAt"`
}

// Normalize fills defaults and derives change fields in place.
// It returns human readable notes for every value it had to adjust so callers can log them.
func (q *Quote) Normalize() ([]string, error) {
	var adjustments []string

	q.Symbol = strings.ToUpper(strings.TrimSpace(q.Symbol))
	if q.Symbol == "" {
		return nil, errors.New("symbol is required")
	}
	if !isPositive(q.Price) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrice, q.Price)
	}

	if !isPositive(q.PreviousClose) {
		q.PreviousClose = q.Price
	}
	if !isPositive(q.Open) {
		q.Open = q.Price
	}
	if !isPositive(q.High) {
		q.High = q.Price
	}
	if !isPositive(q.Low) {
		q.Low = q.Price
	}

	if q.High < q.Low {
		adjustments = append(adjustments, fmt.Sprintf("high %.4f below low %.4f, swapped", q.High, q.Low))
		q.High, q.Low = q.Low, q.High
	}
	if q.Price > q.High {
		adjustments = append(adjustments, fmt.Sprintf("high %.4f raised to price %.4f", q.High, q.Price))
		q.High = q.Price
	}
	if q.Price < q.Low {
		adjustments = append(adjustments, fmt.Sprintf("low %.4f lowered to price %.4f", q.Low, q.Price))
		q.Low = q.Price
	}

	if q.Volume < 0 {
		adjustments = append(adjustments, fmt.Sprintf("negative volume %d reset to 0", q.Volume))
		q.Volume = 0
	}

	// Unrounded so changePercent matches (price - previousClose) / previousClose * 100 and shares its sign
	q.Change = q.Price - q.PreviousClose
	q.ChangePercent = ChangePercent(q.Change, q.PreviousClose)
	q.Value = decimal.NewFromFloat(q.Price).Mul(decimal.NewFromInt(q.Volume)).Round(2).InexactFloat64()

	if q.Currency == "" {
		q.Currency = DefaultCurrency
	}
	if q.FetchedAt.IsZero() {
		q.FetchedAt = time.Now().UTC()
	}

	return adjustments, nil
}

// Direction returns 1 for an up move, -1 for a down move and 0 when unchanged.
func (q *Quote) Direction() int {
	switch {
	case q.Change > 0:
		return 1
	case q.Change < 0:
		return -1
	}
	return 0
}

// ChangePercent returns change / previousClose * 100, or 0 when previousClose is zero or the result is not finite.
func ChangePercent(change, previousClose float64) float64 {
	if previousClose == 0 {
		return 0
	}
	pct := change / previousClose * 100
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return 0
	}
	return pct
}

func isPositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
