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

const defaultYahooURL = "https://query1.finance.yahoo.com"

// Yahoo reads the public chart endpoint. It is the only adapter that can address indices, FX and futures.
type Yahoo struct {
	baseURL string
	fetch   *fetcher
}

// NewYahoo creates the Yahoo chart adapter.
func NewYahoo(opts Options) *Yahoo {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultYahooURL
	}
	return &Yahoo{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetch:   newFetcher(models.SourceYahoo, opts, 5),
	}
}

func (y *Yahoo) Name() models.SourceName { return models.SourceYahoo }

type yahooChartResponse struct {
	Chart struct {
		Result []yahooChartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type yahooChartResult struct {
	Meta struct {
		Currency             string  `json:"currency"`
		Symbol               string  `json:"symbol"`
		LongName             string  `json:"longName"`
		ShortName            string  `json:"shortName"`
		RegularMarketPrice   float64 `json:"regularMarketPrice"`
		RegularMarketTime    int64   `json:"regularMarketTime"`
		RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
		RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
		RegularMarketVolume  int64   `json:"regularMarketVolume"`
		PreviousClose        float64 `json:"previousClose"`
		ChartPreviousClose   float64 `json:"chartPreviousClose"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// FetchQuote reads the one-day chart meta block.
func (y *Yahoo) FetchQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	sym, ferr := parseSymbol(y.Name(), symbol)
	if ferr != nil {
		return nil, ferr
	}

	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("range", "1d")
	body, ferr := y.fetch.get(ctx, sym.String(), y.chartURL(sym, params))
	if ferr != nil {
		return nil, ferr
	}

	q, err := y.NormalizeQuote(sym.String(), body)
	if err != nil {
		return nil, err
	}
	return finishQuote(y.Name(), sym, q, y.fetch.logger)
}

// NormalizeQuote maps chart.result[0].meta onto a Quote.
func (y *Yahoo) NormalizeQuote(symbol string, body []byte) (*models.Quote, error) {
	result, err := y.decode(symbol, body)
	if err != nil {
		return nil, err
	}

	meta := result.Meta
	q := &models.Quote{
		Symbol:        symbol,
		Name:          firstNonEmpty(meta.LongName, meta.ShortName),
		Price:         meta.RegularMarketPrice,
		PreviousClose: meta.PreviousClose,
		High:          meta.RegularMarketDayHigh,
		Low:           meta.RegularMarketDayLow,
		Volume:        meta.RegularMarketVolume,
		Currency:      meta.Currency,
	}
	if q.PreviousClose == 0 {
		q.PreviousClose = meta.ChartPreviousClose
	}
	if len(result.Indicators.Quote) > 0 {
		if open := lastValue(result.Indicators.Quote[0].Open); open != nil {
			q.Open = *open
		}
	}
	if meta.RegularMarketTime > 0 {
		marketTime := time.Unix(meta.RegularMarketTime, 0).UTC()
		q.MarketTime = &marketTime
	}
	return q, nil
}

// FetchSeries reads daily bars between from and to.
func (y *Yahoo) FetchSeries(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error) {
	sym, ferr := parseSymbol(y.Name(), symbol)
	if ferr != nil {
		return nil, ferr
	}

	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("period1", fmt.Sprintf("%d", from.Unix()))
	params.Set("period2", fmt.Sprintf("%d", to.AddDate(0, 0, 1).Unix()))
	body, ferr := y.fetch.get(ctx, sym.String(), y.chartURL(sym, params))
	if ferr != nil {
		return nil, ferr
	}

	result, err := y.decode(sym.String(), body)
	if err != nil {
		return nil, err
	}
	if len(result.Indicators.Quote) == 0 {
		return nil, malformed(y.Name(), sym.String(), errNoBars)
	}

	quote := result.Indicators.Quote[0]
	series := make(models.PriceSeries, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		closeValue := valueAt(quote.Close, i)
		if closeValue == nil {
			continue
		}
		bar := models.Bar{
			Date:  time.Unix(ts, 0).UTC(),
			Close: *closeValue,
		}
		if v := valueAt(quote.Open, i); v != nil {
			bar.Open = *v
		}
		if v := valueAt(quote.High, i); v != nil {
			bar.High = *v
		}
		if v := valueAt(quote.Low, i); v != nil {
			bar.Low = *v
		}
		if v := valueAt(quote.Volume, i); v != nil {
			bar.Volume = int64(*v)
		}
		series = append(series, bar)
	}

	return finishSeries(y.Name(), sym.String(), series)
}

func (y *Yahoo) chartURL(sym common.Symbol, params url.Values) string {
	return fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.baseURL, url.PathEscape(sym.String()), params.Encode())
}

func (y *Yahoo) decode(symbol string, body []byte) (*yahooChartResult, error) {
	var resp yahooChartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, malformed(y.Name(), symbol, err)
	}
	if resp.Chart.Error != nil {
		if resp.Chart.Error.Code == "Not Found" {
			return nil, httpError(y.Name(), symbol, 404, fmt.Errorf("%s", resp.Chart.Error.Description))
		}
		return nil, malformed(y.Name(), symbol, fmt.Errorf("%s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description))
	}
	if len(resp.Chart.Result) == 0 {
		return nil, malformed(y.Name(), symbol, fmt.Errorf("chart result is empty"))
	}
	return &resp.Chart.Result[0], nil
}

func valueAt(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

func lastValue(values []*float64) *float64 {
	for i := len(values) - 1; i >= 0; i-- {
		if values[i] != nil {
			return values[i]
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
