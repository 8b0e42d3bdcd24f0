package handlers

import (
	"context"

	"github.com/ternarybob/tadawul/internal/models"
	"github.com/ternarybob/tadawul/internal/services/market"
)

// MarketService is the aggregation surface the market handler depends on.
type MarketService interface {
	MarketOverview(ctx context.Context, symbols []string) *market.Result
	StockData(ctx context.Context, symbol string) *market.Result
	Indicators(ctx context.Context) *market.Result
	SectorData(ctx context.Context, sector, start, end string) *market.Result
	CurrentStatus() models.MarketStatus
}
