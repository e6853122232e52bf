package types

import (
	"time"
	"unicode/utf8"
)

// ModerationStatus is the moderation state of a news item.
type ModerationStatus string

const (
	StatusPending  ModerationStatus = "pending"
	StatusApproved ModerationStatus = "approved"
	StatusRejected ModerationStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s ModerationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// MaxTitleLength is the maximum title length in runes.
const MaxTitleLength = 100

// Uncategorized is the category id used when a submission carries none.
const Uncategorized = 0

// NewsItem is a stored news record.
type NewsItem struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	Body             string           `json:"body"`
	ImageURL         string           `json:"image_url,omitempty"`
	Author           string           `json:"author,omitempty"`
	CategoryID       int              `json:"category_id"`
	Status           ModerationStatus `json:"status"`
	Views            int64            `json:"views"`
	ExternalAuthorID string           `json:"external_author_id,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Key returns the dedupe key of the item.
func (n *NewsItem) Key() NewsKey {
	return NewsKey{Title: n.Title, CategoryID: n.CategoryID}
}

// NewsKey is the dedupe key shared by the scrape and submission paths.
type NewsKey struct {
	Title      string
	CategoryID int
}

// Category is a news category.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ExternalAuthorRef identifies a contributor from outside the portal,
// e.g. a messenger user.
type ExternalAuthorRef struct {
	ID         string `json:"id"`
	ExternalID int64  `json:"external_id"`
	Handle     string `json:"handle,omitempty"`
}

// NewsCandidate is an extracted, not yet stored, news item.
type NewsCandidate struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	ImageURL  string `json:"image_url"`
	Author    string `json:"author"`
	SourceURL string `json:"source_url"`
}

// UpsertOutcome is the result of reconciling a candidate.
type UpsertOutcome string

const (
	OutcomeCreated UpsertOutcome = "created"
	OutcomeUpdated UpsertOutcome = "updated"
	OutcomeSkipped UpsertOutcome = "skipped"
)

// TruncateRunes cuts s to at most n runes.
func TruncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
