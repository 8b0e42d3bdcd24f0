package market

import (
	"context"
	"strings"

	"github.com/ternarybob/tadawul/internal/common"
	"github.com/ternarybob/tadawul/internal/models"
)

// MarketOverview fetches quotes for symbols and summarises them.
// An empty list falls back to the catalog's market symbols.
func (s *Service) MarketOverview(ctx context.Context, symbols []string) *Result {
	endpoint := common.EndpointMarketOverview
	if len(symbols) == 0 {
		symbols = s.catalog.MarketSymbols()
	}

	canonical, err := canonicalSymbols(symbols)
	if err != nil {
		return s.reject(endpoint, err)
	}

	params := map[string]string{"symbols": strings.Join(canonical, ",")}
	return s.serve(ctx, endpoint, params, func(ctx context.Context) (any, Outcome, []models.Omission, error) {
		set := s.fetchQuotes(ctx, canonical)
		outcome := set.outcome()
		if outcome == OutcomeFailure {
			return nil, outcome, set.omitted, allFailed(set.omitted)
		}

		snapshot := models.MarketSnapshot{
			Quotes:       set.quotes,
			Omitted:      nonNil(set.omitted),
			Summary:      Summarize(set.quotes, s.topMovers),
			Partial:      outcome == OutcomePartial,
			MarketStatus: s.calendar.Status(s.now()),
			GeneratedAt:  s.now().UTC(),
		}
		return snapshot, outcome, set.omitted, nil
	})
}

// Warm refreshes the default market overview; used by the scheduler and stream.
func (s *Service) Warm(ctx context.Context) *Result {
	return s.MarketOverview(ctx, nil)
}

func nonNil(omitted []models.Omission) []models.Omission {
	if omitted == nil {
		return []models.Omission{}
	}
	return omitted
}
