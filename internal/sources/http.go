package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tadawul/internal/models"
	"golang.org/x/time/rate"
)

// maxBodyBytes caps how much of a provider response is read.
const maxBodyBytes = 4 << 20

var errNoBars = errors.New("response contained no usable bars")

// fetcher performs the single rate-limited GET shared by the HTTP adapters.
type fetcher struct {
	source    models.SourceName
	client    *http.Client
	limiter   *rate.Limiter
	opts      Options
	logger    arbor.ILogger
	userAgent string
}

func newFetcher(source models.SourceName, opts Options, defaultRate int) *fetcher {
	client := opts.HTTPClient
	if client == nil {
		client = defaultHTTPClient(opts)
	}

	rps := opts.RateLimit
	if rps <= 0 {
		rps = defaultRate
	}

	return &fetcher{
		source:    source,
		client:    client,
		limiter:   rate.NewLimiter(rate.Limit(rps), rps),
		opts:      opts,
		logger:    opts.logger(),
		userAgent: opts.UserAgent,
	}
}

// get issues one request to rawURL and returns the body of a 200 response.
func (f *fetcher) get(ctx context.Context, symbol, rawURL string) ([]byte, *FetchError) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.timeout())
	defer cancel()

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, newError(f.source, symbol, KindTimeout, fmt.Errorf("rate limiter: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, newError(f.source, symbol, KindUnavailable, fmt.Errorf("failed to create request: %w", err))
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "application/json, text/html;q=0.9")

	f.logger.Debug().
		Str("source", string(f.source)).
		Str("symbol", symbol).
		Str("url", redact(rawURL, f.opts.APIKey)).
		Msg("Provider request")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransport(f.source, symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classifyTransport(f.source, symbol, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, httpError(f.source, symbol, resp.StatusCode, fmt.Errorf("unexpected status: %s", snippet(body)))
	}

	return body, nil
}

func defaultHTTPClient(opts Options) *http.Client {
	return &http.Client{Timeout: opts.timeout()}
}

// redact hides the API key in logged URLs
func redact(rawURL, secret string) string {
	if secret == "" {
		return rawURL
	}
	return strings.ReplaceAll(rawURL, secret, "***")
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
