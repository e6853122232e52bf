package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/khlemanenka99-ai/news-portal/internal/cache"
	"github.com/khlemanenka99-ai/news-portal/internal/config"
	"github.com/khlemanenka99-ai/news-portal/internal/engine"
	"github.com/khlemanenka99-ai/news-portal/internal/fetcher"
	"github.com/khlemanenka99-ai/news-portal/internal/jobs"
	"github.com/khlemanenka99-ai/news-portal/internal/observability"
	"github.com/khlemanenka99-ai/news-portal/internal/parser"
	"github.com/khlemanenka99-ai/news-portal/internal/pipeline"
	"github.com/khlemanenka99-ai/news-portal/internal/reconcile"
	"github.com/khlemanenka99-ai/news-portal/internal/storage"
)

// app holds the long-lived collaborators shared by serve and run.
type app struct {
	cfg     *config.Config
	store   storage.NewsStore
	cache   cache.Cache
	client  *fetcher.HTTPClient
	metrics *observability.Metrics
	runner  *engine.Runner
	logger  *slog.Logger
}

// newApp opens the store and cache and registers every enabled job.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	store, err := storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.store = store
	if err := store.EnsureCategories(ctx, storage.CategoriesFromConfig(cfg.Categories)); err != nil {
		a.Close()
		return nil, fmt.Errorf("seed categories: %w", err)
	}

	c, err := cache.New(ctx, cfg.Cache, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open cache: %w", err)
	}
	a.cache = c

	if cfg.Metrics.Enabled {
		a.metrics = observability.NewMetrics()
	}
	a.client = fetcher.NewHTTPClient(cfg.HTTP, logger)

	a.runner = engine.NewRunner(logger,
		engine.WithRunOnStart(cfg.Jobs.RunOnStart),
		engine.WithMetrics(a.metrics),
	)
	if err := a.registerJobs(); err != nil {
		a.Close()
		return nil, err
	}

	logger.Info("application ready",
		"storage", store.Name(),
		"cache", cfg.Cache.Type,
		"jobs", a.runner.Jobs(),
	)
	return a, nil
}

func (a *app) registerJobs() error {
	cfg := a.cfg

	if cfg.Jobs.Currency.Enabled {
		job := jobs.NewCurrencySync(a.client, a.cache, cfg.Currency, a.metrics, a.logger)
		if err := a.runner.Register(job, engine.ScheduleFrom(cfg.Jobs.Currency)); err != nil {
			return err
		}
	}

	if cfg.Jobs.Weather.Enabled {
		job := jobs.NewWeatherSync(a.client, a.cache, cfg.Weather, a.metrics, a.logger)
		if err := a.runner.Register(job, engine.ScheduleFrom(cfg.Jobs.Weather)); err != nil {
			return err
		}
	}

	if cfg.Jobs.News.Enabled {
		loader, err := fetcher.NewPageLoader(cfg, a.client, a.logger)
		if err != nil {
			return fmt.Errorf("create page loader: %w", err)
		}
		mode, err := reconcile.ParseMode(cfg.Scraper.UpsertMode)
		if err != nil {
			return err
		}
		extractor := parser.NewExtractor(cfg.Scraper.Selectors, parser.Delays{
			Scroll: cfg.Fetcher.ScrollDelay,
			Click:  cfg.Fetcher.ClickSettleDelay,
		}, a.logger)

		job := jobs.NewNewsScrape(
			loader,
			extractor,
			pipeline.Default(a.logger),
			reconcile.New(a.store, mode, a.metrics, a.logger),
			cfg.Scraper,
			a.metrics,
			a.logger,
		)
		if err := a.runner.Register(job, engine.ScheduleFrom(cfg.Jobs.News)); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the store, the cache and idle HTTP connections.
func (a *app) Close() error {
	var errs []error
	if a.client != nil {
		a.client.CloseIdleConnections()
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
