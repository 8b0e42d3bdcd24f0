package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/tadawul/internal/common"
	"github.com/ternarybob/tadawul/internal/models"
)

const defaultAlphaVantageURL = "https://www.alphavantage.co"

// AlphaVantage reads GLOBAL_QUOTE and TIME_SERIES_DAILY. Listings use the CODE.SAU form.
type AlphaVantage struct {
	baseURL string
	apiKey  string
	suffix  string
	fetch   *fetcher
}

// NewAlphaVantage creates the Alpha Vantage adapter.
func NewAlphaVantage(opts Options) *AlphaVantage {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultAlphaVantageURL
	}
	suffix := opts.SymbolSuffix
	if suffix == "" {
		suffix = ".SAU"
	}
	return &AlphaVantage{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  opts.APIKey,
		suffix:  suffix,
		fetch:   newFetcher(models.SourceAlphaVantage, opts, 1),
	}
}

func (a *AlphaVantage) Name() models.SourceName { return models.SourceAlphaVantage }

// FetchQuote calls function=GLOBAL_QUOTE.
func (a *AlphaVantage) FetchQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	sym, ferr := a.address(symbol)
	if ferr != nil {
		return nil, ferr
	}

	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	body, ferr := a.fetch.get(ctx, sym.String(), a.endpoint(sym, params))
	if ferr != nil {
		return nil, ferr
	}

	q, err := a.NormalizeQuote(sym.String(), body)
	if err != nil {
		return nil, err
	}
	return finishQuote(a.Name(), sym, q, a.fetch.logger)
}

// NormalizeQuote reads the "Global Quote" map whose keys are numbered labels and values are strings.
func (a *AlphaVantage) NormalizeQuote(symbol string, body []byte) (*models.Quote, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, malformed(a.Name(), symbol, err)
	}
	if err := a.checkNotices(symbol, raw); err != nil {
		return nil, err
	}

	var global map[string]string
	if data, ok := raw["Global Quote"]; ok {
		if err := json.Unmarshal(data, &global); err != nil {
			return nil, malformed(a.Name(), symbol, err)
		}
	}
	if len(global) == 0 {
		return nil, malformed(a.Name(), symbol, fmt.Errorf("empty Global Quote"))
	}

	price, err := parseNumber(global["05. price"])
	if err != nil {
		return nil, malformed(a.Name(), symbol, fmt.Errorf("price: %w", err))
	}

	q := &models.Quote{Symbol: symbol, Price: price}
	fields := []struct {
		key string
		dst *float64
	}{
		{"02. open", &q.Open},
		{"03. high", &q.High},
		{"04. low", &q.Low},
		{"08. previous close", &q.PreviousClose},
	}
	for _, f := range fields {
		v, err := parseOptional(global[f.key])
		if err != nil {
			return nil, malformed(a.Name(), symbol, fmt.Errorf("%s: %w", f.key, err))
		}
		*f.dst = v
	}

	volume, err := parseOptional(global["06. volume"])
	if err != nil {
		return nil, malformed(a.Name(), symbol, fmt.Errorf("volume: %w", err))
	}
	q.Volume = int64(volume)

	if day, err := time.Parse(models.DateLayout, global["07. latest trading day"]); err == nil {
		q.MarketTime = &day
	}
	return q, nil
}

// FetchSeries calls function=TIME_SERIES_DAILY and trims to [from, to].
func (a *AlphaVantage) FetchSeries(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error) {
	sym, ferr := a.address(symbol)
	if ferr != nil {
		return nil, ferr
	}

	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY")
	// compact returns the latest 100 points
	if time.Since(from) > 100*24*time.Hour {
		params.Set("outputsize", "full")
	} else {
		params.Set("outputsize", "compact")
	}
	body, ferr := a.fetch.get(ctx, sym.String(), a.endpoint(sym, params))
	if ferr != nil {
		return nil, ferr
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, malformed(a.Name(), sym.String(), err)
	}
	if err := a.checkNotices(sym.String(), raw); err != nil {
		return nil, err
	}

	var daily map[string]map[string]string
	if data, ok := raw["Time Series (Daily)"]; ok {
		if err := json.Unmarshal(data, &daily); err != nil {
			return nil, malformed(a.Name(), sym.String(), err)
		}
	}

	series := make(models.PriceSeries, 0, len(daily))
	for day, values := range daily {
		date, err := time.Parse(models.DateLayout, day)
		if err != nil {
			continue
		}
		closeValue, err := parseNumber(values["4. close"])
		if err != nil {
			continue
		}
		open, _ := parseOptional(values["1. open"])
		high, _ := parseOptional(values["2. high"])
		low, _ := parseOptional(values["3. low"])
		volume, _ := parseOptional(values["5. volume"])
		series = append(series, models.Bar{
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closeValue,
			Volume: int64(volume),
		})
	}

	return finishSeries(a.Name(), sym.String(), series.Normalize().Between(from, to))
}

func (a *AlphaVantage) address(symbol string) (common.Symbol, *FetchError) {
	sym, ferr := parseSymbol(a.Name(), symbol)
	if ferr != nil {
		return sym, ferr
	}
	if a.apiKey == "" {
		return sym, unsupported(a.Name(), sym.String(), "no API key configured")
	}
	if sym.IsMacro() || !sym.IsTadawul() {
		return sym, unsupported(a.Name(), sym.String(), "only Tadawul listings are addressable")
	}
	return sym, nil
}

func (a *AlphaVantage) endpoint(sym common.Symbol, params url.Values) string {
	params.Set("symbol", sym.WithSuffix(a.suffix))
	params.Set("apikey", a.apiKey)
	return a.baseURL + "/query?" + params.Encode()
}

// checkNotices maps throttling notes (returned with HTTP 200) to http 429 and error messages to http 400.
func (a *AlphaVantage) checkNotices(symbol string, raw map[string]json.RawMessage) error {
	for _, key := range []string{"Note", "Information"} {
		if msg, ok := raw[key]; ok {
			return httpError(a.Name(), symbol, 429, fmt.Errorf("%s", strings.Trim(string(msg), `"`)))
		}
	}
	if msg, ok := raw["Error Message"]; ok {
		return httpError(a.Name(), symbol, 400, fmt.Errorf("%s", strings.Trim(string(msg), `"`)))
	}
	return nil
}
