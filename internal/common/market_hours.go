package common

import (
	"fmt"
	"time"

	"github.com/ternarybob/tadawul/internal/models"
)

// DefaultWorkingDays returns the Tadawul trading week (Sunday to Thursday).
func DefaultWorkingDays() []time.Weekday {
	return []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday}
}

// TradingCalendar answers session questions for the exchange.
type TradingCalendar struct {
	location    *time.Location
	preOpen     int // minutes after local midnight
	open        int
	close       int
	workingDays []time.Weekday
	holidays    []time.Time
}

// NewTradingCalendar builds a calendar from the [market] section and the catalog holidays.
func NewTradingCalendar(cfg MarketConfig, holidays []time.Time) (*TradingCalendar, error) {
	timezone := cfg.Timezone
	if timezone == "" {
		timezone = "Asia/Riyadh"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}

	open, err := parseClock(cfg.OpenTime, 10*60)
	if err != nil {
		return nil, fmt.Errorf("invalid open_time: %w", err)
	}
	closeAt, err := parseClock(cfg.CloseTime, 15*60)
	if err != nil {
		return nil, fmt.Errorf("invalid close_time: %w", err)
	}
	preOpen, err := parseClock(cfg.PreOpenTime, open)
	if err != nil {
		return nil, fmt.Errorf("invalid pre_open_time: %w", err)
	}
	if closeAt <= open || preOpen > open {
		return nil, fmt.Errorf("market hours must satisfy pre_open <= open < close")
	}

	return &TradingCalendar{
		location:    loc,
		preOpen:     preOpen,
		open:        open,
		close:       closeAt,
		workingDays: DefaultWorkingDays(),
		holidays:    holidays,
	}, nil
}

// Location returns the exchange timezone.
func (c *TradingCalendar) Location() *time.Location {
	return c.location
}

// LastTradingDay returns the most recent trading day on or before now, as a local calendar date.
func (c *TradingCalendar) LastTradingDay(now time.Time) time.Time {
	return GetLastTradingDay(now.In(c.location), c.workingDays, c.holidays)
}

// IsOpen reports whether continuous trading is running at now.
func (c *TradingCalendar) IsOpen(now time.Time) bool {
	return c.Status(now).IsOpen
}

// Status returns the session phase at now together with the next open (and close while open).
func (c *TradingCalendar) Status(now time.Time) models.MarketStatus {
	local := now.In(c.location)
	minutes := local.Hour()*60 + local.Minute()
	status := models.MarketStatus{
		Phase:     models.MarketClosed,
		Timezone:  c.location.String(),
		LocalTime: local,
	}

	if !IsWorkingDay(local, c.workingDays, c.holidays) {
		status.Reason = "weekend"
		if c.isHoliday(local) {
			status.Reason = "holiday"
		}
		status.NextOpen = c.at(GetNextTradingDay(local, c.workingDays, c.holidays), c.open)
		return status
	}

	switch {
	case minutes < c.preOpen:
		status.Reason = "before pre-open"
		status.NextOpen = c.at(local, c.open)
	case minutes < c.open:
		status.Phase = models.MarketPreOpen
		status.NextOpen = c.at(local, c.open)
	case minutes < c.close:
		status.Phase = models.MarketOpen
		status.IsOpen = true
		closeAt := c.at(local, c.close)
		status.NextClose = &closeAt
		status.NextOpen = c.at(GetNextTradingDay(local, c.workingDays, c.holidays), c.open)
	default:
		status.Reason = "after close"
		status.NextOpen = c.at(GetNextTradingDay(local, c.workingDays, c.holidays), c.open)
	}

	return status
}

func (c *TradingCalendar) isHoliday(t time.Time) bool {
	for _, h := range c.holidays {
		if sameDay(t, h) {
			return true
		}
	}
	return false
}

// at returns the given clock minute on day's calendar date in the exchange timezone.
func (c *TradingCalendar) at(day time.Time, minutes int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, c.location)
}

// IsWorkingDay checks if a given date is a working day for the exchange.
// It accounts for both weekends (based on workingDays) and holidays.
func IsWorkingDay(t time.Time, workingDays []time.Weekday, holidays []time.Time) bool {
	isWorkDay := false
	for _, wd := range workingDays {
		if wd == t.Weekday() {
			isWorkDay = true
			break
		}
	}
	if !isWorkDay {
		return false
	}

	for _, h := range holidays {
		if sameDay(t, h) {
			return false
		}
	}

	return true
}

// GetLastTradingDay returns the most recent trading day on or before the given time.
func GetLastTradingDay(t time.Time, workingDays []time.Weekday, holidays []time.Time) time.Time {
	current := t
	// Walk back at most two weeks (long Eid closures)
	for i := 0; i < 14; i++ {
		if IsWorkingDay(current, workingDays, holidays) {
			return current
		}
		current = current.AddDate(0, 0, -1)
	}
	return t
}

// GetNextTradingDay returns the next trading day strictly after the given time.
func GetNextTradingDay(t time.Time, workingDays []time.Weekday, holidays []time.Time) time.Time {
	current := t.AddDate(0, 0, 1)
	for i := 0; i < 14; i++ {
		if IsWorkingDay(current, workingDays, holidays) {
			return current
		}
		current = current.AddDate(0, 0, 1)
	}
	return t.AddDate(0, 0, 1)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// parseClock parses "HH:MM" into minutes after midnight.
func parseClock(value string, fallback int) (int, error) {
	if value == "" {
		return fallback, nil
	}
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
