package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/khlemanenka99-ai/news-portal/internal/config"
	"github.com/khlemanenka99-ai/news-portal/internal/types"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a record with the same dedupe key
	// already exists.
	ErrDuplicate = errors.New("duplicate (title, category)")
)

// DefaultPerPage is the feed page size.
const DefaultPerPage = 12

// Filter selects and pages news items.
type Filter struct {
	Status     types.ModerationStatus // empty: any status
	CategoryID int                    // 0: any category
	Query      string                 // case-insensitive match on title or body
	Page       int                    // 1-based; out of range is clamped
	PerPage    int
}

// Page is one page of a filtered listing.
type Page struct {
	Items   []types.NewsItem `json:"items"`
	Total   int              `json:"total"`
	Page    int              `json:"page"`
	Pages   int              `json:"pages"`
	PerPage int              `json:"per_page"`
}

// NewsStore is the durable store of news items, categories and external
// authors.
type NewsStore interface {
	// UpsertScraped atomically creates item under its (title, category)
	// key or, when the key exists, refreshes body, image, author and
	// updated_at (refresh=true) or leaves the record untouched.
	// Status and views of an existing record are never changed.
	UpsertScraped(ctx context.Context, item *types.NewsItem, refresh bool) (types.UpsertOutcome, string, error)

	// Create inserts item and returns its id, or ErrDuplicate.
	Create(ctx context.Context, item *types.NewsItem) (string, error)

	Get(ctx context.Context, id string) (*types.NewsItem, error)
	List(ctx context.Context, f Filter) (*Page, error)
	ExistsByKey(ctx context.Context, key types.NewsKey) (bool, error)

	// IncrementViews atomically adds one view and returns the new count.
	IncrementViews(ctx context.Context, id string) (int64, error)
	SetStatus(ctx context.Context, id string, status types.ModerationStatus) error

	EnsureCategories(ctx context.Context, cats []types.Category) error
	Categories(ctx context.Context) ([]types.Category, error)

	// GetOrCreateAuthor returns the author with externalID, creating it on
	// first sight. A non-empty handle replaces the stored one.
	GetOrCreateAuthor(ctx context.Context, externalID int64, handle string) (*types.ExternalAuthorRef, error)

	Name() string
	Close() error
}

// Open builds the store selected by cfg.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (NewsStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(logger), nil
	case "postgres":
		return NewSQLStore(ctx, DialectPostgres, cfg.DSN, logger)
	case "sqlite":
		return NewSQLStore(ctx, DialectSQLite, cfg.DSN, logger)
	case "mongo":
		return NewMongoStore(ctx, cfg.DSN, cfg.Database, logger)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
}

// CategoriesFromConfig converts configured categories.
func CategoriesFromConfig(cfgs []config.CategoryConfig) []types.Category {
	cats := make([]types.Category, 0, len(cfgs))
	for _, c := range cfgs {
		cats = append(cats, types.Category{ID: c.ID, Name: c.Name})
	}
	return cats
}

// paginate clamps the requested page like a feed paginator does: pages
// below 1 become 1 and pages past the end become the last page.
func paginate(f Filter, total int) (page, pages, perPage, offset int) {
	perPage = f.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	pages = (total + perPage - 1) / perPage
	if pages < 1 {
		pages = 1
	}
	page = f.Page
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	return page, pages, perPage, (page - 1) * perPage
}

func wrap(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate) {
		return err
	}
	return &types.StorageError{Backend: backend, Op: op, Err: err}
}
