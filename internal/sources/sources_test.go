package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tadawul/internal/common"
	"github.com/ternarybob/tadawul/internal/models"
)

func createTestLogger() arbor.ILogger {
	return arbor.NewLogger()
}

// fakeProvider serves body with status and counts requests.
func fakeProvider(t *testing.T, status int, body string, check func(r *http.Request)) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if check != nil {
			check(r)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func testOptions(baseURL string) Options {
	return Options{
		BaseURL:   baseURL,
		APIKey:    "test-key",
		RateLimit: 100,
		Timeout:   2 * time.Second,
		Logger:    createTestLogger(),
	}
}

func requireKind(t *testing.T, err error, kind ErrorKind) *FetchError {
	t.Helper()
	fe, ok := AsFetchError(err)
	require.True(t, ok, "expected *FetchError, got %v", err)
	assert.Equal(t, kind, fe.Kind, "error: %v", err)
	return fe
}

const yahooQuoteBody = `{"chart":{"result":[{"meta":{"currency":"SAR","symbol":"2222.SR","longName":"Saudi Arabian Oil Company","regularMarketPrice":27.45,"regularMarketTime":1736150400,"regularMarketDayHigh":27.6,"regularMarketDayLow":27.1,"regularMarketVolume":15000000,"chartPreviousClose":27.2},"timestamp":[1736150400],"indicators":{"quote":[{"open":[27.3],"high":[27.6],"low":[27.1],"close":[27.45],"volume":[15000000]}]}}],"error":null}}`

func TestYahoo_FetchQuote(t *testing.T) {
	server, _ := fakeProvider(t, http.StatusOK, yahooQuoteBody, func(r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/2222.SR", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("range"))
	})

	q, err := NewYahoo(testOptions(server.URL)).FetchQuote(context.Background(), "2222.sr")
	require.NoError(t, err)

	assert.Equal(t, "2222.SR", q.Symbol)
	assert.Equal(t, models.SourceYahoo, q.Source)
	assert.Equal(t, 27.45, q.Price)
	assert.Equal(t, 27.2, q.PreviousClose)
	assert.Equal(t, 27.3, q.Open)
	assert.InDelta(t, 0.25, q.Change, 1e-9)
	assert.Equal(t, "Saudi Arabian Oil Company", q.Name)
	require.NotNil(t, q.MarketTime)
}

func TestYahoo_FetchSeriesSkipsNullBars(t *testing.T) {
	body := `{"chart":{"result":[{"meta":{},"timestamp":[1736064000,1736150400,1736236800],"indicators":{"quote":[{"open":[1,null,3],"high":[1,null,3],"low":[1,null,3],"close":[10,null,12],"volume":[100,null,300]}]}}],"error":null}}`
	server, _ := fakeProvider(t, http.StatusOK, body, nil)

	from := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	series, err := NewYahoo(testOptions(server.URL)).FetchSeries(context.Background(), "^TASI.SR", from, from.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 12}, series.Closes())
}

func TestYahoo_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   ErrorKind
	}{
		{"server error", http.StatusServiceUnavailable, "down", KindHTTP},
		{"not json", http.StatusOK, "<html>", KindMalformed},
		{"empty result", http.StatusOK, `{"chart":{"result":[],"error":null}}`, KindMalformed},
		{"not found envelope", http.StatusOK, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`, KindHTTP},
		{"zero price", http.StatusOK, `{"chart":{"result":[{"meta":{"regularMarketPrice":0}}],"error":null}}`, KindMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := fakeProvider(t, tt.status, tt.body, nil)
			_, err := NewYahoo(testOptions(server.URL)).FetchQuote(context.Background(), "2222.SR")
			requireKind(t, err, tt.kind)
		})
	}
}

func TestFetch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	opts := testOptions(server.URL)
	opts.Timeout = 50 * time.Millisecond
	_, err := NewYahoo(opts).FetchQuote(context.Background(), "2222.SR")
	requireKind(t, err, KindTimeout)
}

func TestFetch_ConnectionRefused(t *testing.T) {
	server, _ := fakeProvider(t, http.StatusOK, "", nil)
	baseURL := server.URL
	server.Close()

	_, err := NewYahoo(testOptions(baseURL)).FetchQuote(context.Background(), "2222.SR")
	requireKind(t, err, KindUnavailable)
}

func TestEmptySymbolIsUnsupported(t *testing.T) {
	server, calls := fakeProvider(t, http.StatusOK, yahooQuoteBody, nil)
	_, err := NewYahoo(testOptions(server.URL)).FetchQuote(context.Background(), "  ")
	requireKind(t, err, KindUnsupported)
	assert.Zero(t, atomic.LoadInt32(calls))
}

func TestTwelveData_FetchQuote(t *testing.T) {
	body := `{"symbol":"2222","name":"Saudi Arabian Oil Co","exchange":"Tadawul","currency":"SAR","timestamp":1736150400,"open":"27.30000","high":"27.60000","low":"27.10000","close":"27.45000","volume":"15000000","previous_close":"27.20000","change":"0.25","percent_change":"0.91912"}`
	server, _ := fakeProvider(t, http.StatusOK, body, func(r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, "2222", r.URL.Query().Get("symbol"))
		assert.Equal(t, "Tadawul", r.URL.Query().Get("exchange"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
	})

	q, err := NewTwelveData(testOptions(server.URL)).FetchQuote(context.Background(), "2222.SR")
	require.NoError(t, err)
	assert.Equal(t, 27.45, q.Price)
	assert.Equal(t, int64(15000000), q.Volume)
	assert.Equal(t, models.SourceTwelveData, q.Source)
}

func TestTwelveData_ErrorEnvelope(t *testing.T) {
	server, _ := fakeProvider(t, http.StatusOK, `{"code":429,"message":"You have run out of API credits","status":"error"}`, nil)
	_, err := NewTwelveData(testOptions(server.URL)).FetchQuote(context.Background(), "2222.SR")
	fe := requireKind(t, err, KindHTTP)
	assert.Equal(t, 429, fe.Status)
}

func TestTwelveData_SeriesIsAscending(t *testing.T) {
	body := `{"meta":{},"values":[{"datetime":"2025-01-07","open":"3","high":"3","low":"3","close":"3","volume":"30"},{"datetime":"2025-01-06","open":"2","high":"2","low":"2","close":"2","volume":"20"}],"status":"ok"}`
	server, _ := fakeProvider(t, http.StatusOK, body, nil)

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	series, err := NewTwelveData(testOptions(server.URL)).FetchSeries(context.Background(), "2222.SR", from, from.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3}, series.Closes())
}

func TestUnsupportedSymbolsMakeNoRequest(t *testing.T) {
	server, calls := fakeProvider(t, http.StatusOK, "{}", nil)
	opts := testOptions(server.URL)
	noKey := opts
	noKey.APIKey = ""

	cases := []struct {
		name   string
		source Source
		symbol string
	}{
		{"twelvedata index", NewTwelveData(opts), "^TASI.SR"},
		{"twelvedata no key", NewTwelveData(noKey), "2222.SR"},
		{"alphavantage fx", NewAlphaVantage(opts), "SAR=X"},
		{"alphavantage no key", NewAlphaVantage(noKey), "2222.SR"},
		{"eodhd commodity", NewEODHD(opts), "BZ=F"},
		{"googlefinance index", NewGoogleFinance(opts), "^TASI.SR"},
		{"bridge without command", NewBridge(BridgeOptions{Logger: createTestLogger()}), "2222.SR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.source.FetchQuote(context.Background(), tc.symbol)
			requireKind(t, err, KindUnsupported)
		})
	}
	assert.Zero(t, atomic.LoadInt32(calls))
}

func TestAlphaVantage_FetchQuote(t *testing.T) {
	body := `{"Global Quote":{"01. symbol":"2222.SAU","02. open":"27.3000","03. high":"27.6000","04. low":"27.1000","05. price":"27.4500","06. volume":"15000000","07. latest trading day":"2025-01-06","08. previous close":"27.2000","09. change":"0.2500","10. change percent":"0.9191%"}}`
	server, _ := fakeProvider(t, http.StatusOK, body, func(r *http.Request) {
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "2222.SAU", r.URL.Query().Get("symbol"))
	})

	q, err := NewAlphaVantage(testOptions(server.URL)).FetchQuote(context.Background(), "2222.SR")
	require.NoError(t, err)
	assert.Equal(t, "2222.SR", q.Symbol)
	assert.Equal(t, 27.45, q.Price)
	assert.Equal(t, 27.2, q.PreviousClose)
	assert.InDelta(t, 0.25/27.2*100, q.ChangePercent, 1e-9)
}

func TestAlphaVantage_Notices(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		kind   ErrorKind
		status int
	}{
		{"throttle note", `{"Note":"Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute"}`, KindHTTP, 429},
		{"information", `{"Information":"premium endpoint"}`, KindHTTP, 429},
		{"error message", `{"Error Message":"Invalid API call"}`, KindHTTP, 400},
		{"empty quote", `{"Global Quote":{}}`, KindMalformed, 0},
		{"bad price", `{"Global Quote":{"05. price":"n/a"}}`, KindMalformed, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := fakeProvider(t, http.StatusOK, tt.body, nil)
			_, err := NewAlphaVantage(testOptions(server.URL)).FetchQuote(context.Background(), "2222.SR")
			fe := requireKind(t, err, tt.kind)
			assert.Equal(t, tt.status, fe.Status)
		})
	}
}

func TestAlphaVantage_FetchSeries(t *testing.T) {
	body := `{"Meta Data":{},"Time Series (Daily)":{"2025-01-07":{"1. open":"3","2. high":"3","3. low":"3","4. close":"3.0000","5. volume":"300"},"2025-01-06":{"1. open":"2","2. high":"2","3. low":"2","4. close":"2.0000","5. volume":"200"},"2024-12-01":{"4. close":"1"}}}`
	server, _ := fakeProvider(t, http.StatusOK, body, nil)

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	series, err := NewAlphaVantage(testOptions(server.URL)).FetchSeries(context.Background(), "2222.SR", from, from.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3}, series.Closes())
	assert.Equal(t, int64(300), series[1].Volume)
}

func TestEODHD_FetchQuote(t *testing.T) {
	body := `{"code":"2222.SR","timestamp":1736150400,"gmtoffset":0,"open":27.3,"high":27.6,"low":27.1,"close":27.45,"volume":15000000,"previousClose":27.2,"change":0.25,"change_p":0.9191}`
	server, _ := fakeProvider(t, http.StatusOK, body, func(r *http.Request) {
		assert.Equal(t, "/real-time/2222.SR", r.URL.Path)
	})

	q, err := NewEODHD(testOptions(server.URL)).FetchQuote(context.Background(), "2222.SR")
	require.NoError(t, err)
	assert.Equal(t, 27.45, q.Price)
	assert.Equal(t, models.SourceEODHD, q.Source)
}

func TestEODHD_ErrorKinds(t *testing.T) {
	server, _ := fakeProvider(t, http.StatusUnauthorized, "Unauthenticated", nil)
	_, err := NewEODHD(testOptions(server.URL)).FetchQuote(context.Background(), "2222.SR")
	fe := requireKind(t, err, KindHTTP)
	assert.Equal(t, http.StatusUnauthorized, fe.Status)

	server, _ = fakeProvider(t, http.StatusTooManyRequests, "limit reached", nil)
	_, err = NewEODHD(testOptions(server.URL)).FetchQuote(context.Background(), "2222.SR")
	fe = requireKind(t, err, KindHTTP)
	assert.Equal(t, http.StatusTooManyRequests, fe.Status)

	server, _ = fakeProvider(t, http.StatusOK, "not json", nil)
	_, err = NewEODHD(testOptions(server.URL)).FetchQuote(context.Background(), "2222.SR")
	requireKind(t, err, KindMalformed)

	noKey := testOptions(server.URL)
	noKey.APIKey = ""
	_, err = NewEODHD(noKey).FetchQuote(context.Background(), "2222.SR")
	requireKind(t, err, KindUnsupported)
}

func TestEODHD_FetchSeriesUsesConfiguredExchange(t *testing.T) {
	body := `[{"date":"2025-01-06","open":2,"high":2,"low":2,"close":2,"volume":200},{"date":"2025-01-07","open":3,"high":3,"low":3,"close":3,"volume":300}]`
	server, _ := fakeProvider(t, http.StatusOK, body, func(r *http.Request) {
		assert.Equal(t, "/eod/2222.SAU", r.URL.Path)
	})

	opts := testOptions(server.URL)
	opts.SymbolSuffix = ".SAU"
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	series, err := NewEODHD(opts).FetchSeries(context.Background(), "2222.SR", from, from.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3}, series.Closes())
}

const googlePage = `<html><body>
<div class="zzDege">Saudi Arabian Oil Co</div>
<div class="YMlKec fxKbKc">SAR 27.45</div>
<div class="gyFHrc"><div class="mfs7Fc">Previous close</div><div class="P6K39c">SAR 27.20</div></div>
<div class="gyFHrc"><div class="mfs7Fc">Day range</div><div class="P6K39c">SAR 27.10 - SAR 27.60</div></div>
</body></html>`

func TestGoogleFinance_FetchQuote(t *testing.T) {
	server, _ := fakeProvider(t, http.StatusOK, googlePage, func(r *http.Request) {
		assert.Equal(t, "/finance/quote/2222:TADAWUL", r.URL.Path)
	})

	q, err := NewGoogleFinance(testOptions(server.URL)).FetchQuote(context.Background(), "2222.SR")
	require.NoError(t, err)
	assert.Equal(t, 27.45, q.Price)
	assert.Equal(t, 27.2, q.PreviousClose)
	assert.Equal(t, 27.1, q.Low)
	assert.Equal(t, 27.6, q.High)
	assert.Equal(t, "Saudi Arabian Oil Co", q.Name)
}

func TestGoogleFinance_MissingPrice(t *testing.T) {
	server, _ := fakeProvider(t, http.StatusOK, `<html><body>consent page</body></html>`, nil)
	_, err := NewGoogleFinance(testOptions(server.URL)).FetchQuote(context.Background(), "2222.SR")
	requireKind(t, err, KindMalformed)
}

func shellBridge(t *testing.T, script string) *Bridge {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	return NewBridge(BridgeOptions{
		Command: "sh",
		Args:    []string{"-c", script, "bridge"},
		Timeout: time.Second,
		Logger:  createTestLogger(),
	})
}

func TestBridge(t *testing.T) {
	t.Run("quote", func(t *testing.T) {
		b := shellBridge(t, `echo '{"symbol":"2222.SR","price":"27.45","previousClose":27.2,"volume":1000}'`)
		q, err := b.FetchQuote(context.Background(), "2222.SR")
		require.NoError(t, err)
		assert.Equal(t, 27.45, q.Price)
		assert.Equal(t, models.SourceBridge, q.Source)
	})

	t.Run("error object", func(t *testing.T) {
		b := shellBridge(t, `echo '{"error":"symbol not found"}'`)
		_, err := b.FetchQuote(context.Background(), "2222.SR")
		requireKind(t, err, KindUnavailable)
	})

	t.Run("two objects", func(t *testing.T) {
		b := shellBridge(t, `echo '{"price":1}{"price":2}'`)
		_, err := b.FetchQuote(context.Background(), "2222.SR")
		requireKind(t, err, KindMalformed)
	})

	t.Run("non-zero exit", func(t *testing.T) {
		b := shellBridge(t, `echo boom >&2; exit 3`)
		_, err := b.FetchQuote(context.Background(), "2222.SR")
		requireKind(t, err, KindUnavailable)
	})

	t.Run("timeout", func(t *testing.T) {
		b := shellBridge(t, `exec sleep 5`)
		b.timeout = 50 * time.Millisecond
		_, err := b.FetchQuote(context.Background(), "2222.SR")
		requireKind(t, err, KindTimeout)
	})

	t.Run("series", func(t *testing.T) {
		b := shellBridge(t, `echo '{"series":[{"date":"2025-01-07","close":3},{"date":"2025-01-06","close":2}]}'`)
		from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		series, err := b.FetchSeries(context.Background(), "2222.SR", from, from.AddDate(0, 0, 10))
		require.NoError(t, err)
		assert.Equal(t, []float64{2, 3}, series.Closes())
	})
}

func TestNewFromConfig(t *testing.T) {
	cfg := common.NewDefaultConfig().Sources
	cfg.Priority = []string{"eodhd", "yahoo", "googlefinance", "yahoo"}

	all, err := NewFromConfig(cfg, createTestLogger())
	require.NoError(t, err)
	// googlefinance is disabled by default; duplicates collapse
	assert.Equal(t, []string{"eodhd", "yahoo"}, Names(all))
	assert.Len(t, SeriesSources(all), 2)

	cfg.Priority = []string{"googlefinance"}
	_, err = NewFromConfig(cfg, createTestLogger())
	assert.Error(t, err)
}
