package signals

import (
	"fmt"

	"github.com/ternarybob/tadawul/internal/models"
)

// Insight thresholds
const (
	RSIOverbought     = 70.0
	RSIOversold       = 30.0
	VolumeSpikeFactor = 1.5
)

// Insights renders templated text from indicator thresholds. Absent indicators produce no text.
func Insights(ind models.Indicators, quote *models.Quote) []string {
	insights := make([]string, 0, 6)

	if comment := rsiComment(ind.RSI14); comment != "" {
		insights = append(insights, comment)
	}

	if quote != nil && quote.Price > 0 {
		if comment := smaComment(quote.Price, ind.SMA20, "20"); comment != "" {
			insights = append(insights, comment)
		}
		if comment := smaComment(quote.Price, ind.SMA50, "50"); comment != "" {
			insights = append(insights, comment)
		}
	}

	if ind.CurrentVolume != nil && ind.AvgVolume != nil && *ind.AvgVolume > 0 {
		ratio := *ind.CurrentVolume / *ind.AvgVolume
		if ratio >= VolumeSpikeFactor {
			insights = append(insights, fmt.Sprintf("Volume is %.1fx the 20-day average, indicating unusually strong interest.", ratio))
		}
	}

	switch ind.Crossover {
	case models.CrossGolden:
		insights = append(insights, "Golden cross: the 20-day average moved above the 50-day average, a bullish signal.")
	case models.CrossDeath:
		insights = append(insights, "Death cross: the 20-day average moved below the 50-day average, a bearish signal.")
	}

	if comment := trendComment(ind.Trend, ind.Prediction, quote); comment != "" {
		insights = append(insights, comment)
	}

	return insights
}

// rsiComment generates a comment for the RSI reading
func rsiComment(rsi *float64) string {
	if rsi == nil {
		return ""
	}
	switch {
	case *rsi >= RSIOverbought:
		return fmt.Sprintf("RSI at %.1f is in overbought territory. A pullback or consolidation is possible.", *rsi)
	case *rsi <= RSIOversold:
		return fmt.Sprintf("RSI at %.1f is in oversold territory. Selling pressure may be exhausted.", *rsi)
	}
	return ""
}

// smaComment compares the price with a moving average
func smaComment(price float64, average *float64, window string) string {
	if average == nil || *average == 0 {
		return ""
	}
	diff := pctChange(*average, price)
	switch {
	case diff > 0:
		return fmt.Sprintf("Price is %.2f%% above its %s-day moving average.", diff, window)
	case diff < 0:
		return fmt.Sprintf("Price is %.2f%% below its %s-day moving average.", -diff, window)
	}
	return fmt.Sprintf("Price is trading at its %s-day moving average.", window)
}

// trendComment summarizes the trend label with the next-close estimate
func trendComment(trend string, prediction *float64, quote *models.Quote) string {
	var text string
	switch trend {
	case models.TrendBullish:
		text = "Short-term trend is bullish."
	case models.TrendBearish:
		text = "Short-term trend is bearish."
	default:
		return ""
	}
	if prediction != nil && quote != nil && quote.Price > 0 {
		text += fmt.Sprintf(" Recent momentum points to a next close near %.2f.", *prediction)
	}
	return text
}
