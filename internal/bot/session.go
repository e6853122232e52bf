package bot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/khlemanenka99-ai/news-portal/internal/cache"
)

// State is a step of the submission conversation.
type State string

const (
	StateAwaitingTitle        State = "awaiting_title"
	StateAwaitingContent      State = "awaiting_content"
	StateAwaitingCategory     State = "awaiting_category"
	StateAwaitingPhoto        State = "awaiting_photo"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateTerminal             State = "terminal"
)

// Session is one user's submission in progress.
type Session struct {
	UserID     int64     `json:"user_id"`
	ChatID     int64     `json:"chat_id"`
	Handle     string    `json:"handle,omitempty"`
	State      State     `json:"state"`
	Title      string    `json:"title,omitempty"`
	Content    string    `json:"content,omitempty"`
	CategoryID *int      `json:"category_id,omitempty"`
	PhotoURL   string    `json:"photo_url,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SessionStore persists sessions by user id so a restart resumes the
// conversation where it stopped.
type SessionStore interface {
	Load(ctx context.Context, userID int64) (*Session, bool, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, userID int64) error
}

// CacheSessions keeps sessions as JSON in the shared cache. Idle
// sessions expire after ttl.
type CacheSessions struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewCacheSessions(c cache.Cache, ttl time.Duration) *CacheSessions {
	return &CacheSessions{cache: c, ttl: ttl}
}

func sessionKey(userID int64) string {
	return "bot_session_" + strconv.FormatInt(userID, 10)
}

func (s *CacheSessions) Load(ctx context.Context, userID int64) (*Session, bool, error) {
	var sess Session
	found, err := cache.GetJSON(ctx, s.cache, sessionKey(userID), &sess)
	if err != nil {
		return nil, false, fmt.Errorf("load session %d: %w", userID, err)
	}
	if !found {
		return nil, false, nil
	}
	return &sess, true, nil
}

func (s *CacheSessions) Save(ctx context.Context, sess *Session) error {
	if err := cache.PutJSON(ctx, s.cache, sessionKey(sess.UserID), sess, s.ttl); err != nil {
		return fmt.Errorf("save session %d: %w", sess.UserID, err)
	}
	return nil
}

func (s *CacheSessions) Delete(ctx context.Context, userID int64) error {
	return s.cache.Delete(ctx, sessionKey(userID))
}
