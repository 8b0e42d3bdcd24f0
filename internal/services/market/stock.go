package market

import (
	"context"
	"fmt"

	"github.com/ternarybob/tadawul/internal/common"
	"github.com/ternarybob/tadawul/internal/models"
	"github.com/ternarybob/tadawul/internal/services/resolver"
	"golang.org/x/sync/errgroup"
)

// StockData returns the quote, recent history and indicators for one symbol.
// A history failure leaves the indicators empty; the quote alone still counts.
func (s *Service) StockData(ctx context.Context, symbol string) *Result {
	endpoint := common.EndpointStockData

	parsed, err := common.ParseSymbol(symbol)
	if err != nil {
		return s.reject(endpoint, fmt.Errorf("%w: %q: %v", ErrInvalidSymbol, symbol, err))
	}
	canonical := parsed.String()

	params := map[string]string{"symbol": canonical}
	return s.serve(ctx, endpoint, params, func(ctx context.Context) (any, Outcome, []models.Omission, error) {
		now := s.now()
		// Calendar days comfortably covering history_days trading sessions
		from := now.AddDate(0, 0, -s.historyDays*2)

		var (
			quoteRes  *resolver.Resolution
			quoteErr  error
			seriesRes *resolver.SeriesResolution
			seriesErr error
		)
		g := new(errgroup.Group)
		g.Go(func() error {
			quoteRes, quoteErr = s.resolver.Resolve(ctx, canonical, s.sources)
			return nil
		})
		g.Go(func() error {
			seriesRes, seriesErr = s.resolver.ResolveSeries(ctx, canonical, from, now, s.sources)
			return nil
		})
		_ = g.Wait()

		if quoteErr != nil {
			omitted := []models.Omission{{Symbol: canonical, Reason: s.omissionReason(ctx, quoteErr)}}
			return nil, OutcomeFailure, omitted, fmt.Errorf("%w: %v", ErrAllSourcesFailed, quoteErr)
		}

		quote := *quoteRes.Quote
		if quote.Name == "" {
			quote.Name = s.catalog.NameFor(canonical)
		}

		report := models.StockReport{
			Quote:       quote,
			Series:      models.PriceSeries{},
			GeneratedAt: now.UTC(),
		}
		outcome := OutcomeSuccess
		if seriesErr != nil {
			report.SeriesError = s.omissionReason(ctx, seriesErr)
			outcome = OutcomePartial
		} else {
			report.Series = seriesRes.Series.Last(s.historyDays)
		}

		report.Indicators = s.computer.Compute(report.Series, &quote)
		report.Insights = report.Indicators.Insights
		return report, outcome, nil, nil
	})
}
