package fetcher

import (
	"context"
	"log/slog"

	"github.com/khlemanenka99-ai/news-portal/internal/parser"
	"github.com/khlemanenka99-ai/news-portal/internal/types"
)

// StaticLoader opens pages without a browser. Clicking a link fetches
// its href.
type StaticLoader struct {
	client *HTTPClient
	logger *slog.Logger
}

func NewStaticLoader(client *HTTPClient, logger *slog.Logger) *StaticLoader {
	return &StaticLoader{
		client: client,
		logger: logger.With("component", "static_loader"),
	}
}

func (l *StaticLoader) Type() string { return "http" }

func (l *StaticLoader) Open(ctx context.Context, rawURL, waitSelector string) (Page, error) {
	body, finalURL, err := l.client.LoadHTML(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	doc, err := parser.NewStaticDocument(finalURL, body, l.client)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}

	if waitSelector != "" {
		found, err := doc.Find(ctx, waitSelector)
		if err != nil {
			return nil, err
		}
		// a static page never changes, so a missing marker will not appear
		if len(found) == 0 {
			return nil, &types.ExtractionError{
				Stage:    "ready",
				URL:      rawURL,
				Selector: waitSelector,
				Err:      types.ErrElementNotFound,
			}
		}
	}
	return staticPage{doc}, nil
}

type staticPage struct {
	*parser.StaticDocument
}

func (staticPage) Close() error { return nil }
