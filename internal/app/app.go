package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tadawul/internal/common"
	"github.com/ternarybob/tadawul/internal/handlers"
	"github.com/ternarybob/tadawul/internal/interfaces"
	"github.com/ternarybob/tadawul/internal/metrics"
	"github.com/ternarybob/tadawul/internal/services/cache"
	"github.com/ternarybob/tadawul/internal/services/market"
	"github.com/ternarybob/tadawul/internal/services/scheduler"
	"github.com/ternarybob/tadawul/internal/sources"
	"github.com/ternarybob/tadawul/internal/storage"
)

// Scheduled job names
const (
	JobCachePurge   = "cache-purge"
	JobMarketWarmup = "market-warmup"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager
	Metrics        *metrics.Metrics

	Catalog  *common.Catalog
	Calendar *common.TradingCalendar
	Sources  []sources.Source

	// Services
	CacheGuard       *cache.Guard
	MarketService    *market.Service
	SchedulerService interfaces.SchedulerService

	// HTTP handlers
	APIHandler       *handlers.APIHandler
	MarketHandler    *handlers.MarketHandler
	StreamHandler    *handlers.StreamHandler
	SchedulerHandler *handlers.SchedulerHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	if err := app.initMarketData(); err != nil {
		return nil, fmt.Errorf("failed to load market data: %w", err)
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize cache storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.StorageManager.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	if err := app.initScheduler(); err != nil {
		app.StorageManager.Close()
		return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	logger.Info().
		Str("cache_backend", app.StorageManager.Backend()).
		Strs("sources", sources.Names(app.Sources)).
		Int("symbols", len(app.Catalog.MarketSymbols())).
		Msg("Application initialized")

	return app, nil
}

// RequestDeadline is the overall budget for one aggregation request
func (a *App) RequestDeadline() time.Duration {
	return common.ParseDuration(a.Config.Server.RequestDeadline, 15*time.Second)
}

// initMarketData loads the symbol catalog and the trading calendar
func (a *App) initMarketData() error {
	catalog, err := common.LoadCatalog(a.Config.Market.CatalogFile)
	if err != nil {
		return err
	}
	a.Catalog = catalog

	calendar, err := common.NewTradingCalendar(a.Config.Market, catalog.HolidayDates())
	if err != nil {
		return err
	}
	a.Calendar = calendar

	a.Logger.Debug().
		Int("market_symbols", len(catalog.MarketSymbols())).
		Int("indices", len(catalog.IndexSymbols())).
		Strs("sectors", catalog.SectorKeys()).
		Msg("Catalog loaded")

	return nil
}

// initStorage creates the cache backend selected by [cache] backend
func (a *App) initStorage() error {
	manager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return err
	}
	a.StorageManager = manager
	a.CacheGuard = cache.NewGuard(manager.CacheStorage(), a.Logger, a.Metrics)
	return nil
}

// initServices builds the quote sources and the aggregation service
func (a *App) initServices() error {
	srcs, err := sources.NewFromConfig(a.Config.Sources, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to configure sources: %w", err)
	}
	a.Sources = srcs

	a.MarketService, err = market.NewService(
		a.Config,
		srcs,
		a.CacheGuard,
		a.Catalog,
		a.Calendar,
		a.Logger,
		market.WithMetrics(a.Metrics),
	)
	if err != nil {
		return err
	}

	return nil
}

// initHandlers creates the HTTP and WebSocket handlers
func (a *App) initHandlers() {
	a.StreamHandler = handlers.NewStreamHandler(a.MarketService, a.Logger, &a.Config.WebSocket, a.Metrics)
	a.MarketHandler = handlers.NewMarketHandler(a.MarketService, a.Logger)
	a.APIHandler = handlers.NewAPIHandler(
		a.MarketService,
		a.StorageManager.Backend(),
		sources.Names(a.Sources),
		a.StreamHandler.InstanceID(),
	)
	a.SchedulerService = scheduler.NewService(a.Logger)
	a.SchedulerHandler = handlers.NewSchedulerHandler(a.SchedulerService, a.Logger)
}

// initScheduler registers the cache maintenance jobs and starts cron when enabled
func (a *App) initScheduler() error {
	if err := a.SchedulerService.RegisterJob(
		JobCachePurge,
		a.Config.Scheduler.PurgeSchedule,
		"Remove expired cache entries",
		a.purgeCache,
	); err != nil {
		return err
	}

	if err := a.SchedulerService.RegisterJob(
		JobMarketWarmup,
		a.Config.Scheduler.WarmupSchedule,
		"Refresh the market overview during trading hours and push it to stream clients",
		a.warmMarket,
	); err != nil {
		return err
	}

	if !a.Config.Scheduler.Enabled {
		a.Logger.Info().Msg("Scheduler disabled; jobs can still be triggered via /api/jobs")
		return nil
	}

	return a.SchedulerService.Start()
}

func (a *App) purgeCache(ctx context.Context) error {
	removed := a.MarketService.PurgeCache(ctx)
	a.Logger.Debug().Int("removed", removed).Msg("Cache purge complete")
	return nil
}

func (a *App) warmMarket(ctx context.Context) error {
	if !a.MarketService.IsMarketOpen() {
		a.Logger.Trace().Msg("Market closed, skipping warmup")
		return nil
	}

	result := a.MarketService.Warm(ctx)
	if result.Outcome == market.OutcomeFailure {
		return fmt.Errorf("market overview warmup failed: %w", result.Err)
	}

	if a.Config.WebSocket.Enabled {
		a.StreamHandler.Broadcast(result)
	}
	return nil
}

// Close closes all application resources
func (a *App) Close() error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
