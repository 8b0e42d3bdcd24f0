// Package sources contains one adapter per upstream quote provider.
// Every adapter makes exactly one outbound request per call, never retries,
// and reports failures as *FetchError.
package sources

import (
	"context"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tadawul/internal/common"
	"github.com/ternarybob/tadawul/internal/models"
)

// DefaultTimeout bounds a single provider call when none is configured.
const DefaultTimeout = 10 * time.Second

// Source fetches a current quote for one symbol.
type Source interface {
	Name() models.SourceName
	FetchQuote(ctx context.Context, symbol string) (*models.Quote, error)
}

// SeriesSource additionally fetches daily history.
type SeriesSource interface {
	Source
	FetchSeries(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error)
}

// QuoteNormalizer converts one provider's raw quote body into a Quote.
type QuoteNormalizer interface {
	NormalizeQuote(symbol string, body []byte) (*models.Quote, error)
}

// Options configures an HTTP adapter.
type Options struct {
	BaseURL      string
	APIKey       string
	SymbolSuffix string
	Exchange     string
	RateLimit    int
	Timeout      time.Duration
	UserAgent    string
	HTTPClient   *http.Client
	Logger       arbor.ILogger
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

func (o Options) logger() arbor.ILogger {
	if o.Logger == nil {
		return common.GetLogger()
	}
	return o.Logger
}

// parseSymbol validates the canonical symbol, mapping bad input to an unsupported error.
func parseSymbol(source models.SourceName, symbol string) (common.Symbol, *FetchError) {
	parsed, err := common.ParseSymbol(symbol)
	if err != nil {
		return common.Symbol{}, newError(source, symbol, KindUnsupported, err)
	}
	return parsed, nil
}

// finishQuote stamps source metadata and normalizes the quote, logging any value adjustments.
func finishQuote(source models.SourceName, symbol common.Symbol, q *models.Quote, logger arbor.ILogger) (*models.Quote, error) {
	q.Symbol = symbol.String()
	q.Source = source
	if q.FetchedAt.IsZero() {
		q.FetchedAt = time.Now().UTC()
	}

	adjustments, err := q.Normalize()
	if err != nil {
		return nil, malformed(source, q.Symbol, err)
	}
	for _, adjustment := range adjustments {
		logger.Warn().
			Str("source", string(source)).
			Str("symbol", q.Symbol).
			Msgf("Quote adjusted: %s", adjustment)
	}
	return q, nil
}

// finishSeries normalizes a series and rejects empty results.
func finishSeries(source models.SourceName, symbol string, series models.PriceSeries) (models.PriceSeries, error) {
	series = series.Normalize()
	if len(series) == 0 {
		return nil, malformed(source, symbol, errNoBars)
	}
	return series, nil
}
