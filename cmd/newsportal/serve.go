package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/khlemanenka99-ai/news-portal/internal/api"
	"github.com/khlemanenka99-ai/news-portal/internal/bot"
	"github.com/khlemanenka99-ai/news-portal/internal/config"
	"github.com/khlemanenka99-ai/news-portal/internal/intake"
	"github.com/khlemanenka99-ai/news-portal/internal/media"
)

const shutdownTimeout = 15 * time.Second

// serveCmd creates the "serve" subcommand: scheduler, API and bot in one
// process.
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, the API and the bot",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}()

	submissions := intake.NewService(a.store, logger)
	g, gctx := errgroup.WithContext(ctx)

	if err := a.runner.Start(gctx); err != nil {
		return fmt.Errorf("start runner: %w", err)
	}
	g.Go(func() error {
		<-gctx.Done()
		a.runner.Stop()
		return nil
	})

	if cfg.API.Enabled {
		srv := api.NewServer(cfg, api.Deps{
			Store:   a.store,
			Intake:  submissions,
			Cache:   a.cache,
			Jobs:    a.runner,
			Metrics: a.metrics,
		}, logger)

		g.Go(srv.ListenAndServe)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if cfg.Bot.Enabled {
		photos, err := media.New(gctx, cfg.Media, logger)
		if err != nil {
			stop()
			_ = g.Wait()
			return fmt.Errorf("open media store: %w", err)
		}
		tg := bot.NewTelegram(cfg.Bot, logger)
		conv := bot.NewConversation(
			bot.NewCacheSessions(a.cache, cfg.Bot.SessionTTL),
			submissions,
			a.store,
			photos,
			tg,
			logger,
		)
		g.Go(func() error { return bot.NewBot(tg, conv, logger).Run(gctx) })
	}

	logger.Info("newsportal started",
		"version", config.Version,
		"api", cfg.API.Enabled,
		"bot", cfg.Bot.Enabled,
	)

	err = g.Wait()
	logger.Info("newsportal stopped")
	return err
}
