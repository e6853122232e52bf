package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/khlemanenka99-ai/news-portal/internal/observability"
	"github.com/khlemanenka99-ai/news-portal/internal/storage"
	"github.com/khlemanenka99-ai/news-portal/internal/types"
)

// Mode selects what happens when a scraped article already exists.
type Mode string

const (
	// ModeRefresh overwrites body, image, author and updated_at.
	ModeRefresh Mode = "refresh"
	// ModeSkip leaves the stored record untouched.
	ModeSkip Mode = "skip"
)

// ParseMode converts the scraper.upsert_mode setting.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRefresh, ModeSkip:
		return Mode(s), nil
	case "":
		return ModeRefresh, nil
	}
	return "", fmt.Errorf("unknown upsert mode %q", s)
}

// Reconciler turns extracted candidates into stored news items, at most
// one per (title, category).
type Reconciler struct {
	store   storage.NewsStore
	mode    Mode
	metrics *observability.Metrics
	now     func() time.Time
	logger  *slog.Logger
}

func New(store storage.NewsStore, mode Mode, metrics *observability.Metrics, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:   store,
		mode:    mode,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger.With("component", "reconciler", "mode", string(mode)),
	}
}

// Reconcile stores c under category. New articles are published as
// approved.
func (r *Reconciler) Reconcile(ctx context.Context, c *types.NewsCandidate, category int) (types.UpsertOutcome, error) {
	now := r.now()
	item := &types.NewsItem{
		Title:      c.Title,
		Body:       c.Body,
		ImageURL:   c.ImageURL,
		Author:     c.Author,
		CategoryID: category,
		Status:     types.StatusApproved,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	outcome, id, err := r.store.UpsertScraped(ctx, item, r.mode == ModeRefresh)
	if err != nil {
		var se *types.StorageError
		if !errors.As(err, &se) {
			err = &types.StorageError{Backend: r.store.Name(), Op: "UpsertScraped", Err: err}
		}
		return "", err
	}

	r.metrics.ObserveUpsert(string(outcome))
	r.logger.Info("news reconciled",
		"id", id,
		"title", item.Title,
		"category", category,
		"outcome", outcome,
	)
	return outcome, nil
}
