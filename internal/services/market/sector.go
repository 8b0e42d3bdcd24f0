package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/tadawul/internal/common"
	"github.com/ternarybob/tadawul/internal/models"
)

// DefaultSectorWindow is the history span used when no start date is given.
const DefaultSectorWindow = 90 * 24 * time.Hour

// SectorData returns history and indicators for a sector's proxy symbol between start and end (YYYY-MM-DD, inclusive).
// Empty dates default to the trailing 90 days ending today in exchange time.
func (s *Service) SectorData(ctx context.Context, sector, start, end string) *Result {
	endpoint := common.EndpointSectorData

	entry, ok := s.catalog.Sector(sector)
	if !ok {
		return s.reject(endpoint, fmt.Errorf("%w: %q (known: %s)", ErrUnknownSector, sector, strings.Join(s.catalog.SectorKeys(), ", ")))
	}

	from, to, err := s.dateRange(start, end)
	if err != nil {
		return s.reject(endpoint, err)
	}

	params := map[string]string{
		"sector":     entry.Key,
		"start_date": from.Format(models.DateLayout),
		"end_date":   to.Format(models.DateLayout),
	}
	return s.serve(ctx, endpoint, params, func(ctx context.Context) (any, Outcome, []models.Omission, error) {
		res, err := s.resolver.ResolveSeries(ctx, entry.Proxy, from, to, s.sources)
		if err != nil {
			omitted := []models.Omission{{Symbol: entry.Proxy, Reason: s.omissionReason(ctx, err)}}
			return nil, OutcomeFailure, omitted, fmt.Errorf("%w: %v", ErrAllSourcesFailed, err)
		}

		series := res.Series.Between(from, to)
		if len(series) == 0 {
			omitted := []models.Omission{{Symbol: entry.Proxy, Reason: "no trading days in range"}}
			return nil, OutcomeFailure, omitted, fmt.Errorf("%w: no bars between %s and %s", ErrAllSourcesFailed, params["start_date"], params["end_date"])
		}

		report := models.SectorReport{
			Sector:      entry.Key,
			Name:        entry.Name,
			Symbol:      entry.Proxy,
			Start:       params["start_date"],
			End:         params["end_date"],
			Series:      series,
			Indicators:  s.computer.Compute(series, nil),
			GeneratedAt: s.now().UTC(),
		}
		return report, OutcomeSuccess, nil, nil
	})
}

// dateRange parses the optional bounds in exchange time and returns them as UTC dates.
func (s *Service) dateRange(start, end string) (time.Time, time.Time, error) {
	// Default window ends on the latest session so weekends and holidays do not shrink it
	last := s.calendar.LastTradingDay(s.now())
	to := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC)
	if end = strings.TrimSpace(end); end != "" {
		parsed, err := time.Parse(models.DateLayout, end)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: end_date %q: expected YYYY-MM-DD", ErrInvalidDateRange, end)
		}
		to = parsed
	}

	from := to.Add(-DefaultSectorWindow)
	if start = strings.TrimSpace(start); start != "" {
		parsed, err := time.Parse(models.DateLayout, start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: start_date %q: expected YYYY-MM-DD", ErrInvalidDateRange, start)
		}
		from = parsed
	}

	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start_date %s is after end_date %s", ErrInvalidDateRange, from.Format(models.DateLayout), to.Format(models.DateLayout))
	}
	return from, to, nil
}
