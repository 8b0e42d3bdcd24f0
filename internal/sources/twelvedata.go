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

const defaultTwelveDataURL = "https://api.twelvedata.com"

// TwelveData reads the /quote and /time_series endpoints, addressing listings as symbol=CODE&exchange=Tadawul.
type TwelveData struct {
	baseURL  string
	apiKey   string
	exchange string
	fetch    *fetcher
}

// NewTwelveData creates the Twelve Data adapter.
func NewTwelveData(opts Options) *TwelveData {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultTwelveDataURL
	}
	exchange := opts.Exchange
	if exchange == "" {
		exchange = "Tadawul"
	}
	return &TwelveData{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   opts.APIKey,
		exchange: exchange,
		fetch:    newFetcher(models.SourceTwelveData, opts, 1),
	}
}

func (t *TwelveData) Name() models.SourceName { return models.SourceTwelveData }

// twelveDataStatus is the error envelope the API returns with HTTP 200.
type twelveDataStatus struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type twelveDataQuote struct {
	twelveDataStatus
	Symbol        string     `json:"symbol"`
	Name          string     `json:"name"`
	Currency      string     `json:"currency"`
	Timestamp     int64      `json:"timestamp"`
	Open          flexNumber `json:"open"`
	High          flexNumber `json:"high"`
	Low           flexNumber `json:"low"`
	Close         flexNumber `json:"close"`
	Volume        flexNumber `json:"volume"`
	PreviousClose flexNumber `json:"previous_close"`
}

type twelveDataSeries struct {
	twelveDataStatus
	Values []struct {
		Datetime string     `json:"datetime"`
		Open     flexNumber `json:"open"`
		High     flexNumber `json:"high"`
		Low      flexNumber `json:"low"`
		Close    flexNumber `json:"close"`
		Volume   flexNumber `json:"volume"`
	} `json:"values"`
}

// FetchQuote calls /quote.
func (t *TwelveData) FetchQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	sym, ferr := t.address(symbol)
	if ferr != nil {
		return nil, ferr
	}

	body, ferr := t.fetch.get(ctx, sym.String(), t.endpoint("/quote", sym, nil))
	if ferr != nil {
		return nil, ferr
	}

	q, err := t.NormalizeQuote(sym.String(), body)
	if err != nil {
		return nil, err
	}
	return finishQuote(t.Name(), sym, q, t.fetch.logger)
}

// NormalizeQuote decodes the /quote object; numeric fields arrive as strings.
func (t *TwelveData) NormalizeQuote(symbol string, body []byte) (*models.Quote, error) {
	var raw twelveDataQuote
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, malformed(t.Name(), symbol, err)
	}
	if err := t.checkStatus(symbol, raw.twelveDataStatus); err != nil {
		return nil, err
	}

	q := &models.Quote{
		Symbol:        symbol,
		Name:          raw.Name,
		Price:         raw.Close.float(),
		PreviousClose: raw.PreviousClose.float(),
		Open:          raw.Open.float(),
		High:          raw.High.float(),
		Low:           raw.Low.float(),
		Volume:        raw.Volume.int64(),
		Currency:      raw.Currency,
	}
	if raw.Timestamp > 0 {
		marketTime := time.Unix(raw.Timestamp, 0).UTC()
		q.MarketTime = &marketTime
	}
	return q, nil
}

// FetchSeries calls /time_series with interval=1day. Values arrive newest first.
func (t *TwelveData) FetchSeries(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error) {
	sym, ferr := t.address(symbol)
	if ferr != nil {
		return nil, ferr
	}

	params := url.Values{}
	params.Set("interval", "1day")
	params.Set("start_date", from.Format(models.DateLayout))
	params.Set("end_date", to.Format(models.DateLayout))
	params.Set("outputsize", "5000")
	body, ferr := t.fetch.get(ctx, sym.String(), t.endpoint("/time_series", sym, params))
	if ferr != nil {
		return nil, ferr
	}

	var raw twelveDataSeries
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, malformed(t.Name(), sym.String(), err)
	}
	if err := t.checkStatus(sym.String(), raw.twelveDataStatus); err != nil {
		return nil, err
	}

	series := make(models.PriceSeries, 0, len(raw.Values))
	for _, v := range raw.Values {
		date, err := time.Parse(models.DateLayout, v.Datetime)
		if err != nil {
			continue
		}
		series = append(series, models.Bar{
			Date:   date,
			Open:   v.Open.float(),
			High:   v.High.float(),
			Low:    v.Low.float(),
			Close:  v.Close.float(),
			Volume: v.Volume.int64(),
		})
	}
	return finishSeries(t.Name(), sym.String(), series)
}

// address rejects symbols Twelve Data cannot serve without making a request.
func (t *TwelveData) address(symbol string) (common.Symbol, *FetchError) {
	sym, ferr := parseSymbol(t.Name(), symbol)
	if ferr != nil {
		return sym, ferr
	}
	if t.apiKey == "" {
		return sym, unsupported(t.Name(), sym.String(), "no API key configured")
	}
	if sym.IsMacro() || !sym.IsTadawul() {
		return sym, unsupported(t.Name(), sym.String(), "only Tadawul listings are addressable")
	}
	return sym, nil
}

func (t *TwelveData) endpoint(path string, sym common.Symbol, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("symbol", sym.Code)
	params.Set("exchange", t.exchange)
	params.Set("apikey", t.apiKey)
	return t.baseURL + path + "?" + params.Encode()
}

func (t *TwelveData) checkStatus(symbol string, status twelveDataStatus) error {
	if status.Status != "error" {
		return nil
	}
	code := status.Code
	if code == 0 {
		code = 400
	}
	return httpError(t.Name(), symbol, code, fmt.Errorf("%s", status.Message))
}
