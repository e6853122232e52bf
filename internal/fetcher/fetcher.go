package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/khlemanenka99-ai/news-portal/internal/config"
	"github.com/khlemanenka99-ai/news-portal/internal/parser"
)

// Page is an opened listing page. It must be closed on every path.
type Page interface {
	parser.Document
	Close() error
}

// PageLoader opens news listing pages.
type PageLoader interface {
	// Open loads rawURL and waits until waitSelector is present.
	Open(ctx context.Context, rawURL, waitSelector string) (Page, error)

	// Type returns the loader type identifier.
	Type() string
}

// NewPageLoader builds the loader selected by cfg.Fetcher.Type.
func NewPageLoader(cfg *config.Config, client *HTTPClient, logger *slog.Logger) (PageLoader, error) {
	switch cfg.Fetcher.Type {
	case "browser":
		return NewBrowserLoader(cfg.Fetcher, cfg.HTTP.UserAgent, logger), nil
	case "http":
		return NewStaticLoader(client, logger), nil
	default:
		return nil, fmt.Errorf("unsupported fetcher type %q", cfg.Fetcher.Type)
	}
}
