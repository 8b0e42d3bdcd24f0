package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/tadawul/internal/models"
)

const defaultGoogleFinanceURL = "https://www.google.com"

// Google Finance page selectors
const (
	googlePriceSelector   = "div.YMlKec.fxKbKc"
	googleStatRowSelector = "div.gyFHrc"
	googleStatLabelSel    = "div.mfs7Fc"
	googleStatValueSel    = "div.P6K39c"
	googleNameSelector    = "div.zzDege"
	googlePrevCloseLabel  = "previous close"
	googleDayRangeLabel   = "day range"
)

// GoogleFinance scrapes the public quote page (CODE:TADAWUL). It has no history endpoint.
type GoogleFinance struct {
	baseURL  string
	exchange string
	fetch    *fetcher
}

// NewGoogleFinance creates the HTML quote adapter.
func NewGoogleFinance(opts Options) *GoogleFinance {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultGoogleFinanceURL
	}
	exchange := opts.Exchange
	if exchange == "" {
		exchange = "TADAWUL"
	}
	return &GoogleFinance{
		baseURL:  strings.TrimRight(baseURL, "/"),
		exchange: exchange,
		fetch:    newFetcher(models.SourceGoogleFinance, opts, 2),
	}
}

func (g *GoogleFinance) Name() models.SourceName { return models.SourceGoogleFinance }

// FetchQuote downloads /finance/quote/CODE:TADAWUL.
func (g *GoogleFinance) FetchQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	sym, ferr := parseSymbol(g.Name(), symbol)
	if ferr != nil {
		return nil, ferr
	}
	if sym.IsMacro() || !sym.IsTadawul() {
		return nil, unsupported(g.Name(), sym.String(), "only Tadawul listings are addressable")
	}

	pageURL := fmt.Sprintf("%s/finance/quote/%s?hl=en", g.baseURL, url.PathEscape(sym.ExchangeCode(g.exchange)))
	body, ferr := g.fetch.get(ctx, sym.String(), pageURL)
	if ferr != nil {
		return nil, ferr
	}

	q, err := g.NormalizeQuote(sym.String(), body)
	if err != nil {
		return nil, err
	}
	return finishQuote(g.Name(), sym, q, g.fetch.logger)
}

// NormalizeQuote extracts the last price and the stats rows from the page.
func (g *GoogleFinance) NormalizeQuote(symbol string, body []byte) (*models.Quote, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, malformed(g.Name(), symbol, err)
	}

	priceText := strings.TrimSpace(doc.Find(googlePriceSelector).First().Text())
	if priceText == "" {
		return nil, malformed(g.Name(), symbol, fmt.Errorf("price element %q not found", googlePriceSelector))
	}
	price, err := parseNumber(priceText)
	if err != nil {
		return nil, malformed(g.Name(), symbol, fmt.Errorf("price: %w", err))
	}

	q := &models.Quote{
		Symbol: symbol,
		Name:   strings.TrimSpace(doc.Find(googleNameSelector).First().Text()),
		Price:  price,
	}

	stats := map[string]string{}
	doc.Find(googleStatRowSelector).Each(func(_ int, row *goquery.Selection) {
		label := strings.ToLower(strings.TrimSpace(row.Find(googleStatLabelSel).First().Text()))
		value := strings.TrimSpace(row.Find(googleStatValueSel).First().Text())
		if label != "" && value != "" {
			stats[label] = value
		}
	})

	prevClose := stats[googlePrevCloseLabel]
	if prevClose == "" {
		// Older layouts have no labels; previous close is the first stat value
		prevClose = strings.TrimSpace(doc.Find(googleStatValueSel).First().Text())
	}
	if prevClose != "" {
		if v, err := parseNumber(prevClose); err == nil {
			q.PreviousClose = v
		}
	}

	if dayRange := stats[googleDayRangeLabel]; dayRange != "" {
		if parts := strings.SplitN(dayRange, "-", 2); len(parts) == 2 {
			low, lowErr := parseNumber(parts[0])
			high, highErr := parseNumber(parts[1])
			if lowErr == nil && highErr == nil {
				q.Low, q.High = low, high
			}
		}
	}

	return q, nil
}

var _ QuoteNormalizer = (*GoogleFinance)(nil)
