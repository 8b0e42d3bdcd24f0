// Package market aggregates quotes, history and indicators for the dashboard endpoints.
// Every operation follows the same path: cache lookup, concurrent resolve on miss,
// outcome classification, cache write and JSON payload.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tadawul/internal/common"
	"github.com/ternarybob/tadawul/internal/metrics"
	"github.com/ternarybob/tadawul/internal/models"
	"github.com/ternarybob/tadawul/internal/services/cache"
	"github.com/ternarybob/tadawul/internal/services/resolver"
	"github.com/ternarybob/tadawul/internal/signals"
	"github.com/ternarybob/tadawul/internal/sources"
	"golang.org/x/sync/singleflight"
)

// Outcome classifies an aggregation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailure Outcome = "failure"
)

// Request errors.
var (
	ErrNoSymbols        = errors.New("no symbols requested")
	ErrInvalidSymbol    = errors.New("invalid symbol")
	ErrUnknownSector    = errors.New("unknown sector")
	ErrInvalidDateRange = errors.New("invalid date range")
)

// ErrAllSourcesFailed means no source produced data for the request.
var ErrAllSourcesFailed = errors.New("all sources failed")

// IsRequestError reports whether err was caused by bad input rather than upstream failure.
func IsRequestError(err error) bool {
	return errors.Is(err, ErrNoSymbols) ||
		errors.Is(err, ErrInvalidSymbol) ||
		errors.Is(err, ErrUnknownSector) ||
		errors.Is(err, ErrInvalidDateRange)
}

const (
	defaultDeadline       = 15 * time.Second
	defaultMaxConcurrency = 8
	deadlineReason        = "deadline exceeded"
)

// Result is the outcome of one aggregation request.
type Result struct {
	Endpoint string
	Outcome  Outcome
	Cached   bool
	Partial  bool
	Omitted  []models.Omission
	Payload  json.RawMessage
	Err      error
}

// payloadMeta is the subset of a cached payload needed to rebuild a Result.
type payloadMeta struct {
	Partial bool              `json:"partial"`
	Omitted []models.Omission `json:"omitted"`
}

// Service serves the four dashboard endpoints plus market status.
type Service struct {
	sources        []sources.Source
	resolver       *resolver.Resolver
	cache          *cache.Guard
	computer       *signals.Computer
	catalog        *common.Catalog
	calendar       *common.TradingCalendar
	ttl            map[string]time.Duration
	deadline       time.Duration
	maxConcurrency int
	historyDays    int
	topMovers      int
	flight         singleflight.Group
	metrics        *metrics.Metrics
	logger         arbor.ILogger
	now            func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService wires the aggregation service. srcs must be in priority order.
func NewService(
	config *common.Config,
	srcs []sources.Source,
	guard *cache.Guard,
	catalog *common.Catalog,
	calendar *common.TradingCalendar,
	logger arbor.ILogger,
	opts ...Option,
) (*Service, error) {
	if len(srcs) == 0 {
		return nil, fmt.Errorf("at least one quote source is required")
	}
	if guard == nil || catalog == nil || calendar == nil {
		return nil, fmt.Errorf("cache, catalog and calendar are required")
	}

	s := &Service{
		sources:        srcs,
		cache:          guard,
		computer:       signals.NewComputer(),
		catalog:        catalog,
		calendar:       calendar,
		ttl:            config.Cache.TTLTable(),
		deadline:       common.ParseDuration(config.Server.RequestDeadline, defaultDeadline),
		maxConcurrency: config.Sources.MaxConcurrency,
		historyDays:    config.Market.HistoryDays,
		topMovers:      config.Market.TopMovers,
		logger:         logger,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxConcurrency <= 0 {
		s.maxConcurrency = defaultMaxConcurrency
	}
	s.resolver = resolver.New(logger, s.metrics)

	logger.Info().
		Strs("sources", sources.Names(srcs)).
		Int("max_concurrency", s.maxConcurrency).
		Str("deadline", s.deadline.String()).
		Msg("Market service initialized")

	return s, nil
}

// Catalog returns the symbol catalog.
func (s *Service) Catalog() *common.Catalog {
	return s.catalog
}

// MarketStatus returns the trading session state at now.
func (s *Service) MarketStatus(now time.Time) models.MarketStatus {
	return s.calendar.Status(now)
}

// CurrentStatus returns the trading session state on the service clock.
func (s *Service) CurrentStatus() models.MarketStatus {
	return s.calendar.Status(s.now())
}

// IsMarketOpen reports whether the exchange is trading right now.
func (s *Service) IsMarketOpen() bool {
	return s.calendar.IsOpen(s.now())
}

// PurgeCache removes expired cache entries.
func (s *Service) PurgeCache(ctx context.Context) int {
	return s.cache.Purge(ctx)
}

// buildFunc produces the payload for a cache miss.
type buildFunc func(ctx context.Context) (payload any, outcome Outcome, omitted []models.Omission, err error)

// serve runs the cache-first request path for one endpoint.
// Concurrent identical misses share one build through singleflight.
func (s *Service) serve(ctx context.Context, endpoint string, params map[string]string, build buildFunc) *Result {
	key := cache.Key(endpoint, params)

	if entry := s.cache.Get(ctx, key); entry != nil {
		s.metrics.ObserveCacheLookup(endpoint, "hit")
		var meta payloadMeta
		_ = json.Unmarshal(entry.Payload, &meta)
		outcome := OutcomeSuccess
		if meta.Partial {
			outcome = OutcomePartial
		}
		s.metrics.ObserveAggregation(endpoint, "cached")
		return &Result{
			Endpoint: endpoint,
			Outcome:  outcome,
			Cached:   true,
			Partial:  meta.Partial,
			Omitted:  meta.Omitted,
			Payload:  entry.Payload,
		}
	}
	s.metrics.ObserveCacheLookup(endpoint, "miss")

	v, _, _ := s.flight.Do(key, func() (interface{}, error) {
		// The build outlives any single caller so a disconnect cannot poison shared waiters
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deadline)
		defer cancel()
		return s.execute(buildCtx, endpoint, key, build), nil
	})

	shared := v.(*Result)
	result := *shared
	return &result
}

func (s *Service) execute(ctx context.Context, endpoint, key string, build buildFunc) *Result {
	started := s.now()
	payload, outcome, omitted, err := build(ctx)

	result := &Result{
		Endpoint: endpoint,
		Outcome:  outcome,
		Partial:  outcome == OutcomePartial,
		Omitted:  omitted,
		Err:      err,
	}
	s.metrics.ObserveAggregation(endpoint, string(outcome))

	if outcome == OutcomeFailure {
		event := s.logger.Warn()
		if IsRequestError(err) {
			event = s.logger.Debug()
		}
		event.Err(err).Str("endpoint", endpoint).Msg("Aggregation failed")
		return result
	}

	data, merr := json.Marshal(payload)
	if merr != nil {
		s.logger.Error().Err(merr).Str("endpoint", endpoint).Msg("Failed to encode payload")
		result.Outcome = OutcomeFailure
		result.Err = fmt.Errorf("failed to encode %s payload: %w", endpoint, merr)
		return result
	}
	result.Payload = data

	s.cache.Set(context.WithoutCancel(ctx), key, data, s.ttl[endpoint])

	s.logger.Debug().
		Str("endpoint", endpoint).
		Str("outcome", string(outcome)).
		Int("omitted", len(omitted)).
		Str("elapsed", s.now().Sub(started).String()).
		Msg("Aggregation complete")

	return result
}

// failure builds the return tuple for a failed build.
func failure(err error) (any, Outcome, []models.Omission, error) {
	return nil, OutcomeFailure, nil, err
}

// reject returns a failure Result for invalid input without touching the cache.
func (s *Service) reject(endpoint string, err error) *Result {
	s.metrics.ObserveAggregation(endpoint, "rejected")
	return &Result{
		Endpoint: endpoint,
		Outcome:  OutcomeFailure,
		Err:      err,
	}
}
