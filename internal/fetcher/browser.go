package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/khlemanenka99-ai/news-portal/internal/automation"
	"github.com/khlemanenka99-ai/news-portal/internal/config"
	"github.com/khlemanenka99-ai/news-portal/internal/types"
)

// BrowserLoader opens pages in headless Chromium via Rod. Every Open
// launches its own browser so a hung session cannot leak into the next
// source.
type BrowserLoader struct {
	cfg       config.FetcherConfig
	userAgent string
	logger    *slog.Logger
}

func NewBrowserLoader(cfg config.FetcherConfig, userAgent string, logger *slog.Logger) *BrowserLoader {
	return &BrowserLoader{
		cfg:       cfg,
		userAgent: userAgent,
		logger:    logger.With("component", "browser_loader"),
	}
}

func (bl *BrowserLoader) Type() string { return "browser" }

// Open launches a browser, navigates to rawURL, waits for waitSelector
// and then for the configured load settle delay.
func (bl *BrowserLoader) Open(ctx context.Context, rawURL, waitSelector string) (Page, error) {
	start := time.Now()
	session := &browserSession{logger: bl.logger}

	l := newLauncher(bl.cfg)
	session.launcher = l
	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		session.Close()
		return nil, &types.FetchError{URL: rawURL, Err: fmt.Errorf("launch browser: %w", err), Retryable: true}
	}

	browser := rod.New().Context(ctx).ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		session.Close()
		return nil, &types.FetchError{URL: rawURL, Err: fmt.Errorf("connect browser: %w", err), Retryable: true}
	}
	session.browser = browser

	page, err := newPage(browser, bl.cfg.Stealth)
	if err != nil {
		session.Close()
		return nil, &types.FetchError{URL: rawURL, Err: fmt.Errorf("create page: %w", err), Retryable: true}
	}
	if bl.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: bl.userAgent}); err != nil {
			bl.logger.Warn("failed to set user agent", "error", err)
		}
	}
	session.Page = automation.NewPage(page, bl.cfg.PageTimeout, bl.logger)

	if err := session.Navigate(ctx, rawURL); err != nil {
		session.Close()
		return nil, &types.FetchError{URL: rawURL, Err: err, Retryable: true}
	}

	if waitSelector != "" {
		if err := session.WaitFor(ctx, waitSelector, bl.cfg.WaitTimeout); err != nil {
			session.Close()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &types.ExtractionError{
				Stage:    "ready",
				URL:      rawURL,
				Selector: waitSelector,
				Err:      errors.Join(types.ErrElementNotFound, err),
			}
		}
	}
	if err := session.Settle(ctx, bl.cfg.LoadSettleDelay); err != nil {
		session.Close()
		return nil, err
	}

	bl.logger.Debug("page opened", "url", rawURL, "duration", time.Since(start))
	return session, nil
}

// browserSession owns one launcher process, browser and page.
type browserSession struct {
	*automation.Page
	launcher *launcher.Launcher
	browser  *rod.Browser
	logger   *slog.Logger
	once     sync.Once
}

// Close tears down the page, the browser and the launcher process. It is
// safe to call more than once.
func (s *browserSession) Close() error {
	var errs []error
	s.once.Do(func() {
		if s.Page != nil {
			if err := s.Rod().Close(); err != nil {
				errs = append(errs, fmt.Errorf("close page: %w", err))
			}
		}
		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close browser: %w", err))
			}
		}
		// Cleanup waits for the process to exit, so it must only run
		// once a process was actually started.
		if s.launcher != nil && s.launcher.PID() != 0 {
			s.launcher.Kill()
			s.launcher.Cleanup()
		}
	})
	if err := errors.Join(errs...); err != nil {
		s.logger.Debug("browser session close", "error", err)
		return err
	}
	return nil
}
