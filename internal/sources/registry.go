package sources

import (
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tadawul/internal/common"
	"github.com/ternarybob/tadawul/internal/models"
)

// NewFromConfig builds the enabled adapters in [sources] priority order.
// Disabled or unknown names are skipped with a warning.
func NewFromConfig(cfg common.SourcesConfig, logger arbor.ILogger) ([]Source, error) {
	timeout := common.ParseDuration(cfg.Timeout, DefaultTimeout)
	httpClient := &http.Client{Timeout: timeout}

	options := func(p common.ProviderConfig) Options {
		return Options{
			BaseURL:      p.BaseURL,
			APIKey:       p.APIKey,
			SymbolSuffix: p.SymbolSuffix,
			Exchange:     p.Exchange,
			RateLimit:    p.RateLimit,
			Timeout:      timeout,
			UserAgent:    cfg.UserAgent,
			HTTPClient:   httpClient,
			Logger:       logger,
		}
	}

	result := make([]Source, 0, len(cfg.Priority))
	seen := make(map[models.SourceName]bool)
	for _, raw := range cfg.Priority {
		name := models.SourceName(raw)
		if seen[name] {
			continue
		}
		seen[name] = true

		var source Source
		switch name {
		case models.SourceYahoo:
			if cfg.Yahoo.Enabled {
				source = NewYahoo(options(cfg.Yahoo))
			}
		case models.SourceTwelveData:
			if cfg.TwelveData.Enabled {
				source = NewTwelveData(options(cfg.TwelveData))
			}
		case models.SourceAlphaVantage:
			if cfg.AlphaVantage.Enabled {
				source = NewAlphaVantage(options(cfg.AlphaVantage))
			}
		case models.SourceEODHD:
			if cfg.EODHD.Enabled {
				source = NewEODHD(options(cfg.EODHD))
			}
		case models.SourceGoogleFinance:
			if cfg.GoogleFinance.Enabled {
				source = NewGoogleFinance(options(cfg.GoogleFinance))
			}
		case models.SourceBridge:
			if cfg.Bridge.Enabled {
				source = NewBridge(BridgeOptions{
					Command: cfg.Bridge.Command,
					Args:    cfg.Bridge.Args,
					Timeout: common.ParseDuration(cfg.Bridge.Timeout, 2*timeout),
					Logger:  logger,
				})
			}
		default:
			return nil, fmt.Errorf("unknown source %q in sources.priority", raw)
		}

		if source == nil {
			logger.Warn().Str("source", raw).Msg("Source listed in priority but disabled")
			continue
		}
		result = append(result, source)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("no quote sources enabled")
	}

	return result, nil
}

// SeriesSources filters the adapters that can return history, keeping order.
func SeriesSources(all []Source) []SeriesSource {
	out := make([]SeriesSource, 0, len(all))
	for _, s := range all {
		if ss, ok := s.(SeriesSource); ok {
			out = append(out, ss)
		}
	}
	return out
}

// Names returns the adapter names in order.
func Names(all []Source) []string {
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = string(s.Name())
	}
	return names
}
