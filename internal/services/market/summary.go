package market

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/ternarybob/tadawul/internal/models"
)

// Summarize computes breadth, totals and the top movers for a set of quotes.
// Gainers are ordered by changePercent descending, losers ascending; ties go to the lower symbol.
func Summarize(quotes []models.Quote, topN int) models.MarketSummary {
	summary := models.MarketSummary{
		TopGainers: []models.Mover{},
		TopLosers:  []models.Mover{},
	}
	if len(quotes) == 0 {
		return summary
	}

	totalValue := decimal.Zero
	totalPct := decimal.Zero
	for _, q := range quotes {
		switch q.Direction() {
		case 1:
			summary.UpCount++
		case -1:
			summary.DownCount++
		default:
			summary.StableCount++
		}
		summary.TotalVolume += q.Volume
		totalValue = totalValue.Add(decimal.NewFromFloat(q.Value))
		totalPct = totalPct.Add(decimal.NewFromFloat(q.ChangePercent))
	}
	summary.TotalValue = totalValue.Round(2).InexactFloat64()
	summary.AverageChangePercent = totalPct.Div(decimal.NewFromInt(int64(len(quotes)))).Round(2).InexactFloat64()

	movers := make([]models.Mover, 0, len(quotes))
	for _, q := range quotes {
		movers = append(movers, models.Mover{
			Symbol:        q.Symbol,
			Name:          q.Name,
			Price:         q.Price,
			Change:        q.Change,
			ChangePercent: q.ChangePercent,
			Volume:        q.Volume,
		})
	}

	gainers := append([]models.Mover(nil), movers...)
	sort.SliceStable(gainers, func(i, j int) bool {
		if gainers[i].ChangePercent != gainers[j].ChangePercent {
			return gainers[i].ChangePercent > gainers[j].ChangePercent
		}
		return gainers[i].Symbol < gainers[j].Symbol
	})

	losers := append([]models.Mover(nil), movers...)
	sort.SliceStable(losers, func(i, j int) bool {
		if losers[i].ChangePercent != losers[j].ChangePercent {
			return losers[i].ChangePercent < losers[j].ChangePercent
		}
		return losers[i].Symbol < losers[j].Symbol
	})

	summary.TopGainers = capMovers(gainers, topN)
	summary.TopLosers = capMovers(losers, topN)
	return summary
}

func capMovers(movers []models.Mover, n int) []models.Mover {
	if n > 0 && len(movers) > n {
		return movers[:n]
	}
	return movers
}
