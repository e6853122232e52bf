// Package intake accepts news submitted by people: the web form and the
// messenger bot both end up in Service.Submit. Submissions are stored
// pending until a moderator approves them.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/khlemanenka99-ai/news-portal/internal/storage"
	"github.com/khlemanenka99-ai/news-portal/internal/types"
)

// Validation codes.
const (
	CodeRequired        = "required"
	CodeTooLong         = "too_long"
	CodeInvalidURL      = "invalid_url"
	CodeUnknownCategory = "unknown_category"
	CodeInvalid         = "invalid"
	CodeDuplicate       = "duplicate"
)

// SubmissionInput is a news item as submitted, before validation.
type SubmissionInput struct {
	Title          string `json:"title"`
	Content        string `json:"content"`
	ImageURL       string `json:"image_url,omitempty"`
	CategoryID     *int   `json:"category_id,omitempty"`
	ExternalID     int64  `json:"external_id,omitempty"`
	ExternalHandle string `json:"external_handle,omitempty"`
	Author         string `json:"author,omitempty"`
}

// ValidationErrors maps a field name to a validation code.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "invalid submission: " + strings.Join(parts, ", ")
}

// Normalize trims every text field.
func (in *SubmissionInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.ExternalHandle = strings.TrimPrefix(strings.TrimSpace(in.ExternalHandle), "@")
	in.Author = strings.TrimSpace(in.Author)
}

// Validate checks the fields that need no store lookup. It returns nil or
// a non-empty ValidationErrors.
func (in *SubmissionInput) Validate() error {
	errs := ValidationErrors{}

	switch {
	case in.Title == "":
		errs["title"] = CodeRequired
	case utf8.RuneCountInString(in.Title) > types.MaxTitleLength:
		errs["title"] = CodeTooLong
	}

	if in.Content == "" {
		errs["content"] = CodeRequired
	}

	if in.ImageURL != "" && !validImageURL(in.ImageURL) {
		errs["image_url"] = CodeInvalidURL
	}

	if in.CategoryID != nil && *in.CategoryID <= 0 {
		errs["category_id"] = CodeUnknownCategory
	}

	if in.ExternalID < 0 || (in.ExternalHandle != "" && in.ExternalID == 0) {
		errs["external_id"] = CodeInvalid
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// validImageURL accepts absolute http(s) URLs and root-relative paths of
// locally stored photos.
func validImageURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme == "" && u.Host == "" {
		return strings.HasPrefix(u.Path, "/") && !strings.HasPrefix(raw, "//")
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Service stores validated submissions.
type Service struct {
	store  storage.NewsStore
	logger *slog.Logger
}

func NewService(store storage.NewsStore, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger.With("component", "intake")}
}

// Submit validates in and stores it as pending. Validation failures,
// including a taken (title, category) key, are ValidationErrors.
func (s *Service) Submit(ctx context.Context, in SubmissionInput) (string, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return "", err
	}

	category := types.Uncategorized
	if in.CategoryID != nil {
		ok, err := s.categoryExists(ctx, *in.CategoryID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", ValidationErrors{"category_id": CodeUnknownCategory}
		}
		category = *in.CategoryID
	}

	key := types.NewsKey{Title: in.Title, CategoryID: category}
	exists, err := s.store.ExistsByKey(ctx, key)
	if err != nil {
		return "", fmt.Errorf("check duplicate: %w", err)
	}
	if exists {
		return "", ValidationErrors{"title": CodeDuplicate}
	}

	item := &types.NewsItem{
		Title:      in.Title,
		Body:       in.Content,
		ImageURL:   in.ImageURL,
		Author:     in.Author,
		CategoryID: category,
		Status:     types.StatusPending,
	}

	if in.ExternalID > 0 {
		author, err := s.store.GetOrCreateAuthor(ctx, in.ExternalID, in.ExternalHandle)
		if err != nil {
			return "", fmt.Errorf("resolve author: %w", err)
		}
		item.ExternalAuthorID = author.ID
		if item.Author == "" {
			item.Author = authorName(author)
		}
	}

	id, err := s.store.Create(ctx, item)
	if errors.Is(err, storage.ErrDuplicate) {
		// lost a race with another submission or the scraper
		return "", ValidationErrors{"title": CodeDuplicate}
	}
	if err != nil {
		return "", fmt.Errorf("create news: %w", err)
	}

	s.logger.Info("submission stored",
		"id", id,
		"category", category,
		"external_id", in.ExternalID,
	)
	return id, nil
}

func (s *Service) categoryExists(ctx context.Context, id int) (bool, error) {
	cats, err := s.store.Categories(ctx)
	if err != nil {
		return false, fmt.Errorf("list categories: %w", err)
	}
	for _, c := range cats {
		if c.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func authorName(a *types.ExternalAuthorRef) string {
	if a.Handle != "" {
		return "@" + a.Handle
	}
	return "tg:" + strconv.FormatInt(a.ExternalID, 10)
}
