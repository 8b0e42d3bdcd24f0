package market

import (
	"context"

	"github.com/ternarybob/tadawul/internal/common"
	"github.com/ternarybob/tadawul/internal/models"
)

// Indicators returns quotes for the catalog's index and macro symbols (TASI, Brent, gold, USD/SAR).
func (s *Service) Indicators(ctx context.Context) *Result {
	endpoint := common.EndpointIndicators

	symbols, err := canonicalSymbols(s.catalog.IndexSymbols())
	if err != nil {
		return s.reject(endpoint, err)
	}

	return s.serve(ctx, endpoint, nil, func(ctx context.Context) (any, Outcome, []models.Omission, error) {
		set := s.fetchQuotes(ctx, symbols)
		outcome := set.outcome()
		if outcome == OutcomeFailure {
			return nil, outcome, set.omitted, allFailed(set.omitted)
		}

		board := models.IndexBoard{
			Indices:     make(map[string]models.IndexQuote, len(set.quotes)),
			Omitted:     nonNil(set.omitted),
			Partial:     outcome == OutcomePartial,
			GeneratedAt: s.now().UTC(),
		}
		for _, q := range set.quotes {
			board.Indices[q.Symbol] = models.IndexQuote{Name: q.Name, Quote: q}
		}
		return board, outcome, set.omitted, nil
	})
}
