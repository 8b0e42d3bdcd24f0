package eodhd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one daily row of /eod. Date is filled from DateStr after decoding.
type Bar struct {
	Date          time.Time `json:"-"`
	DateStr       string    `json:"date"`
	Open          Number    `json:"open"`
	High          Number    `json:"high"`
	Low           Number    `json:"low"`
	Close         Number    `json:"close"`
	AdjustedClose Number    `json:"adjusted_close"`
	Volume        Number    `json:"volume"`
}

// Quote is the /real-time (delayed) quote object.
type Quote struct {
	Code          string `json:"code"`
	Timestamp     Number `json:"timestamp"`
	GMTOffset     int    `json:"gmtoffset"`
	Open          Number `json:"open"`
	High          Number `json:"high"`
	Low           Number `json:"low"`
	Close         Number `json:"close"`
	Volume        Number `json:"volume"`
	PreviousClose Number `json:"previousClose"`
	Change        Number `json:"change"`
	ChangePercent Number `json:"change_p"`
}

// Time returns the quote timestamp, zero when the API reported none.
func (q *Quote) Time() time.Time {
	if q.Timestamp <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(q.Timestamp), 0).UTC()
}

// Number is a numeric field that EODHD may send as a number, a numeric string or "NA".
// Missing values decode to 0.
type Number float64

// UnmarshalJSON accepts 12.5, "12.5", "NA" and null
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" || s == "NA" || s == "N/A" || s == "-" {
			*n = 0
			return nil
		}
		raw = s
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("invalid numeric value %q: %w", raw, err)
	}
	*n = Number(d.InexactFloat64())
	return nil
}

// Float64 returns the value as float64.
func (n Number) Float64() float64 {
	return float64(n)
}
