// Package eodhd is a client for the EODHD real-time and end-of-day endpoints,
// addressed by canonical Tadawul symbols.
package eodhd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tadawul/internal/common"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 10 // requests per second

	// DefaultExchange is the EODHD exchange code for Saudi listings
	DefaultExchange = ".SR"

	dateLayout = "2006-01-02"
)

// Client calls EODHD for Tadawul equities. Indices and macro series have no EODHD listing.
type Client struct {
	baseURL    string
	apiKey     string
	exchange   string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithExchange replaces the ".SR" suffix sent to EODHD (e.g. ".SAU" on some plans).
func WithExchange(suffix string) ClientOption {
	return func(c *Client) {
		if suffix != "" {
			c.exchange = suffix
		}
	}
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		apiKey:   apiKey,
		exchange: DefaultExchange,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger:  arbor.NewLogger(),
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Ticker maps a canonical symbol onto the EODHD ticker.
// Only Tadawul equities are listed: "2222.SR" -> "2222.SR", or "2222.SAU" with WithExchange(".SAU").
func (c *Client) Ticker(sym common.Symbol) (string, error) {
	if c.apiKey == "" {
		return "", &Error{Kind: KindUnsupported, Ticker: sym.String(), Err: fmt.Errorf("no API key configured")}
	}
	if sym.IsMacro() || !sym.IsTadawul() {
		return "", &Error{Kind: KindUnsupported, Ticker: sym.String(), Err: fmt.Errorf("only Tadawul listings are addressable")}
	}
	return sym.WithSuffix(c.exchange), nil
}

// Quote calls /real-time/{ticker}. The data is delayed by the provider.
func (c *Client) Quote(ctx context.Context, sym common.Symbol) (*Quote, error) {
	ticker, err := c.Ticker(sym)
	if err != nil {
		return nil, err
	}

	var result Quote
	if err := c.get(ctx, ticker, "/real-time/"+ticker, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// History calls /eod/{ticker} for daily bars between from and to, oldest first.
func (c *Client) History(ctx context.Context, sym common.Symbol, from, to time.Time) ([]Bar, error) {
	ticker, err := c.Ticker(sym)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("period", "d")
	params.Set("order", "a")
	if !from.IsZero() {
		params.Set("from", from.Format(dateLayout))
	}
	if !to.IsZero() {
		params.Set("to", to.Format(dateLayout))
	}

	var bars []Bar
	if err := c.get(ctx, ticker, "/eod/"+ticker, params, &bars); err != nil {
		return nil, err
	}

	for i := range bars {
		date, err := time.Parse(dateLayout, bars[i].DateStr)
		if err != nil {
			return nil, &Error{Kind: KindDecode, Ticker: ticker, Err: fmt.Errorf("bar %d: %w", i, err)}
		}
		bars[i].Date = date
	}
	return bars, nil
}

// get performs one rate limited GET and decodes the JSON body into result.
func (c *Client) get(ctx context.Context, ticker, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &Error{Kind: KindTimeout, Ticker: ticker, Err: fmt.Errorf("waiting for rate limiter: %w", err)}
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return &Error{Kind: KindTransport, Ticker: ticker, Err: err}
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return statusError(ticker, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &Error{Kind: KindDecode, Ticker: ticker, Err: err}
	}
	return nil
}
