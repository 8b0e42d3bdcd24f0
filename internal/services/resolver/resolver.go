// Package resolver tries quote sources in priority order and returns the first success.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tadawul/internal/metrics"
	"github.com/ternarybob/tadawul/internal/models"
	"github.com/ternarybob/tadawul/internal/sources"
)

var errEmptyResult = errors.New("source returned no data")

// Resolution is a successful quote plus the failures that preceded it.
type Resolution struct {
	Quote    *models.Quote
	Source   models.SourceName
	Failures []*sources.FetchError
}

// SeriesResolution is a successful series plus the failures that preceded it.
type SeriesResolution struct {
	Series   models.PriceSeries
	Source   models.SourceName
	Failures []*sources.FetchError
}

// AggregateFetchError is returned when every source failed for a symbol.
type AggregateFetchError struct {
	Symbol string
	Errors []*sources.FetchError
}

func (e *AggregateFetchError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("%s: no sources configured", e.Symbol)
	}
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s=%s", fe.Source, fe.Kind))
	}
	return fmt.Sprintf("%s: all sources failed (%s)", e.Symbol, strings.Join(parts, ", "))
}

// Unwrap exposes the individual failures to errors.Is/As.
func (e *AggregateFetchError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, fe := range e.Errors {
		errs[i] = fe
	}
	return errs
}

// Timeouts reports whether every failure was a timeout.
func (e *AggregateFetchError) Timeouts() bool {
	return e.allKind(sources.KindTimeout)
}

// AllUnsupported reports whether no source could address the symbol at all.
func (e *AggregateFetchError) AllUnsupported() bool {
	return e.allKind(sources.KindUnsupported)
}

// Reason summarises the failure for the omitted list.
func (e *AggregateFetchError) Reason() string {
	switch {
	case len(e.Errors) == 0:
		return "no sources configured"
	case e.AllUnsupported():
		return "symbol not supported by any source"
	case e.Timeouts():
		return "all sources timed out"
	default:
		return "no data available from any source"
	}
}

func (e *AggregateFetchError) allKind(kind sources.ErrorKind) bool {
	if len(e.Errors) == 0 {
		return false
	}
	for _, fe := range e.Errors {
		if fe.Kind != kind {
			return false
		}
	}
	return true
}

// Resolver is stateless apart from its logger and metrics and is safe for concurrent use.
type Resolver struct {
	logger  arbor.ILogger
	metrics *metrics.Metrics
}

// New creates a Resolver. m may be nil.
func New(logger arbor.ILogger, m *metrics.Metrics) *Resolver {
	return &Resolver{
		logger:  logger,
		metrics: m,
	}
}

// Resolve asks each source in order for a quote and stops at the first success.
// If ctx ends between attempts, the remaining sources are recorded as timeouts without being called.
func (r *Resolver) Resolve(ctx context.Context, symbol string, srcs []sources.Source) (*Resolution, error) {
	var failures []*sources.FetchError

	for i, src := range srcs {
		if err := ctx.Err(); err != nil {
			failures = append(failures, skipped(srcs[i:], symbol, err)...)
			break
		}

		start := time.Now()
		quote, err := src.FetchQuote(ctx, symbol)
		if err == nil && quote == nil {
			err = errEmptyResult
		}
		if err == nil {
			r.metrics.ObserveFetch(string(src.Name()), "success", time.Since(start))
			if len(failures) > 0 {
				r.logger.Debug().
					Str("symbol", symbol).
					Str("source", string(src.Name())).
					Int("failed_before", len(failures)).
					Msg("Resolved quote from fallback source")
			}
			return &Resolution{Quote: quote, Source: src.Name(), Failures: failures}, nil
		}

		fe := asFetchError(src.Name(), symbol, err)
		r.metrics.ObserveFetch(string(src.Name()), string(fe.Kind), time.Since(start))
		r.logFailure(fe)
		failures = append(failures, fe)
	}

	return nil, &AggregateFetchError{Symbol: symbol, Errors: failures}
}

// ResolveSeries does the same over sources that can provide history; others are skipped.
func (r *Resolver) ResolveSeries(ctx context.Context, symbol string, from, to time.Time, srcs []sources.Source) (*SeriesResolution, error) {
	seriesSources := sources.SeriesSources(srcs)
	var failures []*sources.FetchError

	for i, src := range seriesSources {
		if err := ctx.Err(); err != nil {
			rest := make([]sources.Source, 0, len(seriesSources)-i)
			for _, s := range seriesSources[i:] {
				rest = append(rest, s)
			}
			failures = append(failures, skipped(rest, symbol, err)...)
			break
		}

		start := time.Now()
		series, err := src.FetchSeries(ctx, symbol, from, to)
		if err == nil && len(series) == 0 {
			err = errEmptyResult
		}
		if err == nil {
			r.metrics.ObserveFetch(string(src.Name()), "success", time.Since(start))
			return &SeriesResolution{Series: series, Source: src.Name(), Failures: failures}, nil
		}

		fe := asFetchError(src.Name(), symbol, err)
		r.metrics.ObserveFetch(string(src.Name()), string(fe.Kind), time.Since(start))
		r.logFailure(fe)
		failures = append(failures, fe)
	}

	return nil, &AggregateFetchError{Symbol: symbol, Errors: failures}
}

func (r *Resolver) logFailure(fe *sources.FetchError) {
	event := r.logger.Debug()
	if fe.Kind != sources.KindUnsupported {
		event = r.logger.Warn()
	}
	event.
		Str("symbol", fe.Symbol).
		Str("source", string(fe.Source)).
		Str("kind", string(fe.Kind)).
		Int("status", fe.Status).
		Err(fe.Err).
		Msg("Source fetch failed")
}

func skipped(rest []sources.Source, symbol string, cause error) []*sources.FetchError {
	out := make([]*sources.FetchError, 0, len(rest))
	for _, src := range rest {
		out = append(out, &sources.FetchError{
			Source: src.Name(),
			Symbol: symbol,
			Kind:   sources.KindTimeout,
			Err:    cause,
		})
	}
	return out
}

// asFetchError keeps adapter errors as-is and wraps anything else as unavailable.
func asFetchError(name models.SourceName, symbol string, err error) *sources.FetchError {
	if fe, ok := sources.AsFetchError(err); ok {
		return fe
	}
	kind := sources.KindUnavailable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = sources.KindTimeout
	}
	if errors.Is(err, errEmptyResult) {
		kind = sources.KindMalformed
	}
	return &sources.FetchError{Source: name, Symbol: symbol, Kind: kind, Err: err}
}
