// Package app wires the configured components for the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joseph-ayodele/receipts-sync/internal/api"
	"github.com/joseph-ayodele/receipts-sync/internal/cache"
	"github.com/joseph-ayodele/receipts-sync/internal/common"
	"github.com/joseph-ayodele/receipts-sync/internal/entity"
	"github.com/joseph-ayodele/receipts-sync/internal/events"
	"github.com/joseph-ayodele/receipts-sync/internal/export"
	"github.com/joseph-ayodele/receipts-sync/internal/ingest"
	"github.com/joseph-ayodele/receipts-sync/internal/rates"
	"github.com/joseph-ayodele/receipts-sync/internal/reconcile"
	"github.com/joseph-ayodele/receipts-sync/internal/repository"
)

// App holds the wired components. Broker is nil when AMQP is not configured.
type App struct {
	Config     *common.Config
	Logger     *slog.Logger
	DB         *repository.DB
	API        *api.HTTPClient
	Broker     *events.AMQPClient
	Store      *cache.Store
	Engine     *reconcile.Engine
	Rates      *rates.Provider
	Categories repository.CategoryRepository
	Export     *export.Service
	Ingestor   *ingest.FSIngestor
}

// New opens the local store, runs migrations, and builds every component.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.Open(ctx, repository.Config{
		DSN:         cfg.Store.DSN,
		MaxConns:    10,
		DialTimeout: cfg.Store.DialTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.Migrate(logger); err != nil {
		db.Close(logger)
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	client := api.NewHTTPClient(api.Config{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
		Timeout: cfg.API.Timeout,
	}, &http.Client{Timeout: cfg.API.Timeout}, logger)

	a := &App{
		Config:     cfg,
		Logger:     logger,
		DB:         db,
		API:        client,
		Categories: repository.NewCategoryRepository(db, logger),
		Export:     export.NewService(logger),
	}

	storeOpts := []cache.Option{}
	if cfg.AMQP.URL != "" {
		broker, err := events.NewAMQPClient(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue, logger)
		if err != nil {
			// invalidation fan-out is optional; run standalone
			logger.Warn("app.amqp.unavailable", "error", err)
		} else {
			a.Broker = broker
			storeOpts = append(storeOpts, cache.WithPublisher(broker))
		}
	}

	a.Store = cache.NewStore(client, logger, storeOpts...)
	a.Engine = reconcile.NewEngine(a.Store, client, logger,
		reconcile.WithAnalysisStore(repository.NewAnalysisRepository(db, logger)),
	)
	a.Rates = rates.NewProvider(client, cfg.Rates.Base, logger,
		rates.WithRepository(repository.NewRateRepository(db, logger)),
		rates.WithTTL(cfg.Rates.TTL),
		rates.WithStaleAfter(cfg.Rates.StaleAfter),
	)
	a.Ingestor = ingest.NewFSIngestor(a.Store, repository.NewScannedFileRepository(db, logger), logger)
	return a, nil
}

// CategoryList returns the remote categories, refreshing the local mirror,
// or the mirror when the remote is unreachable.
func (a *App) CategoryList(ctx context.Context) ([]entity.Category, error) {
	remote, err := a.API.ListCategories(ctx)
	if err == nil {
		if err := a.Categories.ReplaceCategories(ctx, remote); err != nil {
			a.Logger.Warn("app.categories.mirror_failed", "error", err)
		}
		return remote, nil
	}
	a.Logger.Warn("app.categories.remote_failed", "error", err)
	local, lerr := a.Categories.ListCategories(ctx)
	if lerr != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return local, nil
}

// Cleanup releases the broker and the store.
func (a *App) Cleanup() {
	if a.Broker != nil {
		a.Broker.Close()
	}
	a.DB.Close(a.Logger)
}
