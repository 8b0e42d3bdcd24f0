package market

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ternarybob/tadawul/internal/common"
	"github.com/ternarybob/tadawul/internal/models"
	"github.com/ternarybob/tadawul/internal/services/resolver"
	"github.com/ternarybob/tadawul/internal/sources"
	"golang.org/x/sync/errgroup"
)

// quoteSet is the collected outcome of a multi-symbol fetch, in request order.
type quoteSet struct {
	quotes  []models.Quote
	omitted []models.Omission
}

// outcome classifies the set: no quotes is a failure, any omission is partial.
func (q quoteSet) outcome() Outcome {
	switch {
	case len(q.quotes) == 0:
		return OutcomeFailure
	case len(q.omitted) > 0:
		return OutcomePartial
	}
	return OutcomeSuccess
}

// fetchQuotes resolves every symbol with at most maxConcurrency in flight.
// When ctx ends, whatever completed is returned; the rest are omitted with
// "deadline exceeded" and their late results are discarded.
func (s *Service) fetchQuotes(ctx context.Context, symbols []string) quoteSet {
	var (
		mu       sync.Mutex
		closed   bool
		quotes   = make(map[string]*models.Quote, len(symbols))
		failures = make(map[string]string, len(symbols))
	)

	record := func(symbol string, q *models.Quote, reason string) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		if q != nil {
			quotes[symbol] = q
		} else {
			failures[symbol] = reason
		}
	}

	done := make(chan struct{})
	common.SafeGo(s.logger, "market-fetch", func() {
		defer close(done)

		g := new(errgroup.Group)
		g.SetLimit(s.maxConcurrency)
		for _, symbol := range symbols {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				res, err := s.resolver.Resolve(ctx, symbol, s.sources)
				if err != nil {
					record(symbol, nil, s.omissionReason(ctx, err))
					return nil
				}
				record(symbol, res.Quote, "")
				return nil
			})
		}
		_ = g.Wait()
	})

	select {
	case <-done:
	case <-ctx.Done():
	}

	mu.Lock()
	closed = true
	defer mu.Unlock()

	var set quoteSet
	for _, symbol := range symbols {
		if q, ok := quotes[symbol]; ok {
			if q.Name == "" {
				q.Name = s.catalog.NameFor(symbol)
			}
			set.quotes = append(set.quotes, *q)
			continue
		}
		reason, ok := failures[symbol]
		if !ok {
			reason = deadlineReason
		}
		set.omitted = append(set.omitted, models.Omission{Symbol: symbol, Reason: reason})
	}
	return set
}

func (s *Service) omissionReason(ctx context.Context, err error) string {
	var agg *resolver.AggregateFetchError
	if errors.As(err, &agg) {
		if ctx.Err() != nil && anyTimeout(agg) {
			return deadlineReason
		}
		return agg.Reason()
	}
	return err.Error()
}

// canonicalSymbols parses, upper-cases and de-duplicates symbols, keeping request order.
func canonicalSymbols(raw []string) ([]string, error) {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		sym, err := common.ParseSymbol(r)
		if errors.Is(err, common.ErrEmptySymbol) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSymbol, r, err)
		}
		if seen[sym.String()] {
			continue
		}
		seen[sym.String()] = true
		out = append(out, sym.String())
	}
	if len(out) == 0 {
		return nil, ErrNoSymbols
	}
	return out, nil
}

func anyTimeout(agg *resolver.AggregateFetchError) bool {
	for _, fe := range agg.Errors {
		if fe.Kind == sources.KindTimeout {
			return true
		}
	}
	return false
}
