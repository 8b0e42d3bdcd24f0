package sources

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tadawul/internal/eodhd"
	"github.com/ternarybob/tadawul/internal/models"
)

// EODHD adapts the eodhd API client, which owns ticker mapping and error classification.
type EODHD struct {
	client  *eodhd.Client
	timeout time.Duration
	logger  arbor.ILogger
}

// NewEODHD creates the EODHD adapter on top of the shared API client.
func NewEODHD(opts Options) *EODHD {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = defaultHTTPClient(opts)
	}
	clientOpts := []eodhd.ClientOption{
		eodhd.WithLogger(opts.logger()),
		eodhd.WithHTTPClient(httpClient),
		eodhd.WithExchange(opts.SymbolSuffix),
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, eodhd.WithBaseURL(opts.BaseURL))
	}
	if opts.RateLimit > 0 {
		clientOpts = append(clientOpts, eodhd.WithRateLimit(opts.RateLimit))
	}

	return &EODHD{
		client:  eodhd.NewClient(opts.APIKey, clientOpts...),
		timeout: opts.timeout(),
		logger:  opts.logger(),
	}
}

func (e *EODHD) Name() models.SourceName { return models.SourceEODHD }

func (e *EODHD) FetchQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	sym, ferr := parseSymbol(e.Name(), symbol)
	if ferr != nil {
		return nil, ferr
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rt, err := e.client.Quote(ctx, sym)
	if err != nil {
		return nil, e.fetchError(sym.String(), err)
	}

	q := &models.Quote{
		Price:         rt.Close.Float64(),
		PreviousClose: rt.PreviousClose.Float64(),
		Open:          rt.Open.Float64(),
		High:          rt.High.Float64(),
		Low:           rt.Low.Float64(),
		Volume:        int64(rt.Volume.Float64()),
	}
	if ts := rt.Time(); !ts.IsZero() {
		q.MarketTime = &ts
	}
	return finishQuote(e.Name(), sym, q, e.logger)
}

func (e *EODHD) FetchSeries(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error) {
	sym, ferr := parseSymbol(e.Name(), symbol)
	if ferr != nil {
		return nil, ferr
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	bars, err := e.client.History(ctx, sym, from, to)
	if err != nil {
		return nil, e.fetchError(sym.String(), err)
	}

	series := make(models.PriceSeries, 0, len(bars))
	for _, bar := range bars {
		series = append(series, models.Bar{
			Date:   bar.Date,
			Open:   bar.Open.Float64(),
			High:   bar.High.Float64(),
			Low:    bar.Low.Float64(),
			Close:  bar.Close.Float64(),
			Volume: int64(bar.Volume.Float64()),
		})
	}
	return finishSeries(e.Name(), sym.String(), series)
}

// fetchError translates the client's error kind; rate limiting counts as an HTTP failure.
func (e *EODHD) fetchError(symbol string, err error) *FetchError {
	apiErr, ok := eodhd.AsError(err)
	if !ok {
		return classifyTransport(e.Name(), symbol, err)
	}
	switch apiErr.Kind {
	case eodhd.KindUnsupported:
		return newError(e.Name(), symbol, KindUnsupported, err)
	case eodhd.KindStatus, eodhd.KindRateLimited:
		return httpError(e.Name(), symbol, apiErr.Status, err)
	case eodhd.KindDecode:
		return malformed(e.Name(), symbol, err)
	case eodhd.KindTimeout:
		return newError(e.Name(), symbol, KindTimeout, err)
	}
	return newError(e.Name(), symbol, KindUnavailable, err)
}
