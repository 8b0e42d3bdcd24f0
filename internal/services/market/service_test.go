package market

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tadawul/internal/common"
	"github.com/ternarybob/tadawul/internal/models"
	"github.com/ternarybob/tadawul/internal/services/cache"
	"github.com/ternarybob/tadawul/internal/sources"
	"github.com/ternarybob/tadawul/internal/storage/memory"
)

const testCatalog = `
market:
  - {symbol: "2222.SR", name: "Saudi Aramco", sector: energy}
  - {symbol: "1120.SR", name: "Al Rajhi Bank", sector: banks}
  - {symbol: "2010.SR", name: "SABIC", sector: materials}
  - {symbol: "7010.SR", name: "STC", sector: telecom}
  - {symbol: "1180.SR", name: "SNB", sector: banks}
indices:
  - {symbol: "^TASI.SR", name: "TASI"}
  - {symbol: "BZ=F", name: "Brent Crude"}
sectors:
  - {key: banks, name: "Banks", proxy: "1120.SR"}
`

// fakeSource serves per-symbol quotes, series and errors.
type fakeSource struct {
	name   models.SourceName
	quotes map[string]models.Quote
	series map[string]models.PriceSeries
	errs   map[string]sources.ErrorKind
	delay  time.Duration
	calls  atomic.Int32
}

func newFakeSource(name string) *fakeSource {
	return &fakeSource{
		name:   models.SourceName(name),
		quotes: map[string]models.Quote{},
		series: map[string]models.PriceSeries{},
		errs:   map[string]sources.ErrorKind{},
	}
}

func (f *fakeSource) Name() models.SourceName { return f.name }

func (f *fakeSource) wait(ctx context.Context, symbol string) error {
	if f.delay == 0 {
		return nil
	}
	select {
	case <-time.After(f.delay):
		return nil
	case <-ctx.Done():
		return &sources.FetchError{Source: f.name, Symbol: symbol, Kind: sources.KindTimeout, Err: ctx.Err()}
	}
}

func (f *fakeSource) FetchQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	f.calls.Add(1)
	if err := f.wait(ctx, symbol); err != nil {
		return nil, err
	}
	if kind, ok := f.errs[symbol]; ok {
		return nil, &sources.FetchError{Source: f.name, Symbol: symbol, Kind: kind, Err: errors.New("fake failure")}
	}
	q, ok := f.quotes[symbol]
	if !ok {
		return nil, &sources.FetchError{Source: f.name, Symbol: symbol, Kind: sources.KindHTTP, Status: 404}
	}
	q.Symbol = symbol
	q.Source = f.name
	if _, err := q.Normalize(); err != nil {
		return nil, err
	}
	return &q, nil
}

func (f *fakeSource) FetchSeries(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error) {
	f.calls.Add(1)
	if err := f.wait(ctx, symbol); err != nil {
		return nil, err
	}
	s, ok := f.series[symbol]
	if !ok {
		return nil, &sources.FetchError{Source: f.name, Symbol: symbol, Kind: sources.KindHTTP, Status: 404}
	}
	return s, nil
}

type fixture struct {
	service *Service
	store   *memory.CacheStorage
	now     time.Time
}

func newFixture(t *testing.T, srcs ...sources.Source) *fixture {
	t.Helper()
	catalog, err := common.ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)

	config := common.NewDefaultConfig()
	config.Server.RequestDeadline = "2s"
	config.Market.TopMovers = 2

	calendar, err := common.NewTradingCalendar(config.Market, nil)
	require.NoError(t, err)

	f := &fixture{now: time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC)} // Sunday 11:00 Riyadh
	f.store = memory.NewCacheStorage(func() time.Time { return f.now })
	logger := arbor.NewLogger()
	guard := cache.NewGuard(f.store, logger, nil)

	f.service, err = NewService(config, srcs, guard, catalog, calendar, logger, WithClock(func() time.Time { return f.now }))
	require.NoError(t, err)
	return f
}

func quote(price, prev float64, volume int64) models.Quote {
	return models.Quote{Price: price, PreviousClose: prev, Volume: volume}
}

func decodeSnapshot(t *testing.T, res *Result) models.MarketSnapshot {
	t.Helper()
	var snap models.MarketSnapshot
	require.NoError(t, json.Unmarshal(res.Payload, &snap))
	return snap
}

func TestMarketOverview_OneSymbolOmitted(t *testing.T) {
	src := newFakeSource("yahoo")
	src.quotes["2222.SR"] = quote(27.5, 27.0, 1000)
	src.quotes["1120.SR"] = quote(80.0, 82.0, 500)
	src.quotes["2010.SR"] = quote(70.0, 70.0, 300)
	src.quotes["7010.SR"] = quote(40.0, 39.0, 200)
	src.errs["1180.SR"] = sources.KindMalformed

	f := newFixture(t, src)
	res := f.service.MarketOverview(context.Background(), []string{"2222.SR", "1120.SR", "2010.SR", "7010.SR", "1180.SR"})

	require.NoError(t, res.Err)
	assert.Equal(t, OutcomePartial, res.Outcome)
	assert.True(t, res.Partial)
	assert.False(t, res.Cached)
	require.Len(t, res.Omitted, 1)
	assert.Equal(t, "1180.SR", res.Omitted[0].Symbol)

	snap := decodeSnapshot(t, res)
	require.Len(t, snap.Quotes, 4)
	assert.Equal(t, []string{"2222.SR", "1120.SR", "2010.SR", "7010.SR"},
		[]string{snap.Quotes[0].Symbol, snap.Quotes[1].Symbol, snap.Quotes[2].Symbol, snap.Quotes[3].Symbol},
		"quotes keep request order")
	assert.Equal(t, "Saudi Aramco", snap.Quotes[0].Name, "names come from the catalog")
	assert.True(t, snap.Partial)

	assert.Equal(t, 2, snap.Summary.UpCount)
	assert.Equal(t, 1, snap.Summary.DownCount)
	assert.Equal(t, 1, snap.Summary.StableCount)
	assert.Equal(t, int64(2000), snap.Summary.TotalVolume)
	require.Len(t, snap.Summary.TopGainers, 2)
	assert.Equal(t, "7010.SR", snap.Summary.TopGainers[0].Symbol)
	assert.Equal(t, "1120.SR", snap.Summary.TopLosers[0].Symbol)
	assert.Equal(t, models.MarketOpen, snap.MarketStatus.Phase)
}

func TestMarketOverview_FallbackEndToEnd(t *testing.T) {
	a := newFakeSource("a")
	a.errs["2222.SR"] = sources.KindUnsupported
	b := newFakeSource("b")
	b.errs["2222.SR"] = sources.KindTimeout
	c := newFakeSource("c")
	c.quotes["2222.SR"] = quote(27.5, 27.0, 10)

	f := newFixture(t, a, b, c)
	res := f.service.MarketOverview(context.Background(), []string{"2222.sr"})

	require.NoError(t, res.Err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	snap := decodeSnapshot(t, res)
	require.Len(t, snap.Quotes, 1)
	assert.Equal(t, models.SourceName("c"), snap.Quotes[0].Source)
	assert.InDelta(t, 1.85, snap.Quotes[0].ChangePercent, 0.01)
	assert.Empty(t, snap.Omitted)
}

func TestMarketOverview_CacheHit(t *testing.T) {
	src := newFakeSource("yahoo")
	src.quotes["2222.SR"] = quote(27.5, 27.0, 10)

	f := newFixture(t, src)
	first := f.service.MarketOverview(context.Background(), []string{"2222.SR"})
	require.NoError(t, first.Err)
	assert.Equal(t, int32(1), src.calls.Load())

	second := f.service.MarketOverview(context.Background(), []string{" 2222.SR "})
	require.NoError(t, second.Err)
	assert.True(t, second.Cached)
	assert.Equal(t, OutcomeSuccess, second.Outcome)
	assert.JSONEq(t, string(first.Payload), string(second.Payload))
	assert.Equal(t, int32(1), src.calls.Load(), "cache hit must not reach the source")

	// Past the 30s TTL the entry is dead and the source is asked again
	f.now = f.now.Add(31 * time.Second)
	third := f.service.MarketOverview(context.Background(), []string{"2222.SR"})
	assert.False(t, third.Cached)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestMarketOverview_AllFailedIsNotCached(t *testing.T) {
	src := newFakeSource("yahoo")
	src.errs["2222.SR"] = sources.KindHTTP

	f := newFixture(t, src)
	res := f.service.MarketOverview(context.Background(), []string{"2222.SR"})
	assert.Equal(t, OutcomeFailure, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrAllSourcesFailed)
	assert.False(t, IsRequestError(res.Err))
	assert.Nil(t, res.Payload)
	assert.Equal(t, 0, f.store.Len())

	f.service.MarketOverview(context.Background(), []string{"2222.SR"})
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestMarketOverview_DeadlineYieldsPartial(t *testing.T) {
	fast := newFakeSource("fast")
	fast.quotes["2222.SR"] = quote(27.5, 27.0, 10)
	slow := newFakeSource("slow")
	slow.delay = 5 * time.Second
	slow.quotes["1120.SR"] = quote(80, 79, 10)

	f := newFixture(t, fast, slow)
	f.service.deadline = 100 * time.Millisecond

	started := time.Now()
	res := f.service.MarketOverview(context.Background(), []string{"2222.SR", "1120.SR"})
	assert.Less(t, time.Since(started), 2*time.Second)

	require.NoError(t, res.Err)
	assert.Equal(t, OutcomePartial, res.Outcome)
	require.Len(t, res.Omitted, 1)
	assert.Equal(t, "1120.SR", res.Omitted[0].Symbol)
	assert.Equal(t, "deadline exceeded", res.Omitted[0].Reason)
}

func TestMarketOverview_ConcurrentMissesShareOneFetch(t *testing.T) {
	src := newFakeSource("yahoo")
	src.delay = 50 * time.Millisecond
	src.quotes["2222.SR"] = quote(27.5, 27.0, 10)
	src.quotes["1120.SR"] = quote(80, 79, 10)

	f := newFixture(t, src)

	var wg sync.WaitGroup
	results := make([]*Result, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.service.MarketOverview(context.Background(), []string{"2222.SR", "1120.SR"})
		}(i)
	}
	wg.Wait()

	for _, res := range results {
		require.NoError(t, res.Err)
		assert.NotEmpty(t, res.Payload)
	}
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestRequestErrors(t *testing.T) {
	src := newFakeSource("yahoo")
	f := newFixture(t, src)
	ctx := context.Background()

	tests := []struct {
		name string
		res  *Result
		want error
	}{
		{"no symbols", f.service.MarketOverview(ctx, []string{" ", ""}), ErrNoSymbols},
		{"invalid symbol", f.service.MarketOverview(ctx, []string{"2222.SR", "$$$"}), ErrInvalidSymbol},
		{"invalid stock symbol", f.service.StockData(ctx, "not a symbol"), ErrInvalidSymbol},
		{"empty stock symbol", f.service.StockData(ctx, ""), ErrInvalidSymbol},
		{"unknown sector", f.service.SectorData(ctx, "shipping", "", ""), ErrUnknownSector},
		{"bad date", f.service.SectorData(ctx, "banks", "2025-13-01", ""), ErrInvalidDateRange},
		{"reversed range", f.service.SectorData(ctx, "banks", "2025-02-01", "2025-01-01"), ErrInvalidDateRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, OutcomeFailure, tt.res.Outcome)
			assert.ErrorIs(t, tt.res.Err, tt.want)
			assert.True(t, IsRequestError(tt.res.Err))
		})
	}
	assert.Equal(t, int32(0), src.calls.Load())
}

func risingSeries(start time.Time, n int) models.PriceSeries {
	series := make(models.PriceSeries, 0, n)
	for i := 0; i < n; i++ {
		series = append(series, models.Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   float64(10 + i),
			High:   float64(11 + i),
			Low:    float64(9 + i),
			Close:  float64(10 + i),
			Volume: 1000,
		})
	}
	return series
}

func TestStockData(t *testing.T) {
	src := newFakeSource("yahoo")
	src.quotes["2010.SR"] = quote(70, 69, 5000)
	src.series["2010.SR"] = risingSeries(time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC), 60)

	f := newFixture(t, src)
	res := f.service.StockData(context.Background(), "2010")
	require.NoError(t, res.Err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)

	var report models.StockReport
	require.NoError(t, json.Unmarshal(res.Payload, &report))
	assert.Equal(t, "2010.SR", report.Quote.Symbol)
	assert.Equal(t, "SABIC", report.Quote.Name)
	assert.Len(t, report.Series, 60)
	require.NotNil(t, report.Indicators.SMA50)
	assert.Equal(t, models.TrendBullish, report.Indicators.Trend)
	assert.NotEmpty(t, report.Insights)
	assert.Empty(t, report.SeriesError)
}

func TestStockData_SeriesFailureKeepsQuote(t *testing.T) {
	src := newFakeSource("yahoo")
	src.quotes["2010.SR"] = quote(70, 69, 5000)

	f := newFixture(t, src)
	res := f.service.StockData(context.Background(), "2010.SR")
	require.NoError(t, res.Err)
	assert.Equal(t, OutcomePartial, res.Outcome)

	var report models.StockReport
	require.NoError(t, json.Unmarshal(res.Payload, &report))
	assert.Equal(t, 70.0, report.Quote.Price)
	assert.Empty(t, report.Series)
	assert.Nil(t, report.Indicators.SMA5)
	assert.Nil(t, report.Indicators.RSI14)
	assert.NotEmpty(t, report.SeriesError)
}

func TestStockData_QuoteFailure(t *testing.T) {
	src := newFakeSource("yahoo")
	f := newFixture(t, src)

	res := f.service.StockData(context.Background(), "2010.SR")
	assert.Equal(t, OutcomeFailure, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrAllSourcesFailed)
	require.Len(t, res.Omitted, 1)
}

func TestIndicators(t *testing.T) {
	src := newFakeSource("yahoo")
	src.quotes["^TASI.SR"] = quote(12000, 11900, 0)
	src.errs["BZ=F"] = sources.KindHTTP

	f := newFixture(t, src)
	res := f.service.Indicators(context.Background())
	require.NoError(t, res.Err)
	assert.Equal(t, OutcomePartial, res.Outcome)

	var board models.IndexBoard
	require.NoError(t, json.Unmarshal(res.Payload, &board))
	require.Contains(t, board.Indices, "^TASI.SR")
	assert.Equal(t, "TASI", board.Indices["^TASI.SR"].Name)
	require.Len(t, board.Omitted, 1)
	assert.Equal(t, "BZ=F", board.Omitted[0].Symbol)
}

func TestSectorData(t *testing.T) {
	src := newFakeSource("yahoo")
	src.series["1120.SR"] = risingSeries(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), 40)

	f := newFixture(t, src)
	res := f.service.SectorData(context.Background(), "Banks", "2024-12-10", "2024-12-31")
	require.NoError(t, res.Err)

	var report models.SectorReport
	require.NoError(t, json.Unmarshal(res.Payload, &report))
	assert.Equal(t, "banks", report.Sector)
	assert.Equal(t, "1120.SR", report.Symbol)
	assert.Equal(t, "2024-12-10", report.Start)
	assert.Len(t, report.Series, 22)
	assert.NotNil(t, report.Indicators.SMA20)

	empty := f.service.SectorData(context.Background(), "banks", "2020-01-01", "2020-02-01")
	assert.ErrorIs(t, empty.Err, ErrAllSourcesFailed)
}

func TestSummarize_TieBreakAndCap(t *testing.T) {
	quotes := []models.Quote{
		{Symbol: "B", ChangePercent: 2, Change: 1},
		{Symbol: "A", ChangePercent: 2, Change: 1},
		{Symbol: "C", ChangePercent: -3, Change: -1},
		{Symbol: "D", ChangePercent: 0},
	}
	summary := Summarize(quotes, 3)

	gainers := make([]string, 0, len(summary.TopGainers))
	for _, m := range summary.TopGainers {
		gainers = append(gainers, m.Symbol)
	}
	assert.Equal(t, []string{"A", "B", "D"}, gainers)
	assert.Equal(t, "C", summary.TopLosers[0].Symbol)
	assert.Equal(t, 0.25, summary.AverageChangePercent)

	empty := Summarize(nil, 5)
	assert.NotNil(t, empty.TopGainers)
	assert.Equal(t, 0, empty.UpCount)
}

func TestMarketStatus(t *testing.T) {
	f := newFixture(t, newFakeSource("yahoo"))
	status := f.service.MarketStatus(time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)) // Friday
	assert.Equal(t, models.MarketClosed, status.Phase)
	assert.False(t, status.IsOpen)
	assert.True(t, f.service.IsMarketOpen())
	assert.Equal(t, models.MarketOpen, f.service.CurrentStatus().Phase)
}
