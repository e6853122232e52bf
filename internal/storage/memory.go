package storage

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/khlemanenka99-ai/news-portal/internal/types"
)

// MemoryStore keeps everything in process. All operations hold one lock,
// which makes the upsert atomic per key.
type MemoryStore struct {
	mu         sync.RWMutex
	items      map[string]*types.NewsItem
	byKey      map[types.NewsKey]string
	categories map[int]types.Category
	authors    map[int64]*types.ExternalAuthorRef
	now        func() time.Time
	logger     *slog.Logger
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	return &MemoryStore{
		items:      make(map[string]*types.NewsItem),
		byKey:      make(map[types.NewsKey]string),
		categories: make(map[int]types.Category),
		authors:    make(map[int64]*types.ExternalAuthorRef),
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With("component", "memory_store"),
	}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) UpsertScraped(_ context.Context, item *types.NewsItem, refresh bool) (types.UpsertOutcome, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if id, ok := s.byKey[item.Key()]; ok {
		if !refresh {
			return types.OutcomeSkipped, id, nil
		}
		existing := s.items[id]
		existing.Body = item.Body
		existing.ImageURL = item.ImageURL
		existing.Author = item.Author
		existing.UpdatedAt = now
		return types.OutcomeUpdated, id, nil
	}

	id := s.insertLocked(item, now)
	return types.OutcomeCreated, id, nil
}

func (s *MemoryStore) Create(_ context.Context, item *types.NewsItem) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byKey[item.Key()]; ok {
		return "", ErrDuplicate
	}
	return s.insertLocked(item, s.now()), nil
}

func (s *MemoryStore) insertLocked(item *types.NewsItem, now time.Time) string {
	cp := *item
	cp.ID = uuid.NewString()
	cp.Views = 0
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.items[cp.ID] = &cp
	s.byKey[cp.Key()] = cp.ID
	return cp.ID
}

func (s *MemoryStore) Get(_ context.Context, id string) (*types.NewsItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) (*Page, error) {
	s.mu.RLock()
	var matched []types.NewsItem
	q := strings.ToLower(strings.TrimSpace(f.Query))
	for _, item := range s.items {
		if f.Status != "" && item.Status != f.Status {
			continue
		}
		if f.CategoryID != 0 && item.CategoryID != f.CategoryID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(item.Title), q) && !strings.Contains(strings.ToLower(item.Body), q) {
			continue
		}
		matched = append(matched, *item)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	page, pages, perPage, offset := paginate(f, len(matched))
	end := offset + perPage
	if end > len(matched) {
		end = len(matched)
	}
	items := []types.NewsItem{}
	if offset < end {
		items = matched[offset:end]
	}
	return &Page{Items: items, Total: len(matched), Page: page, Pages: pages, PerPage: perPage}, nil
}

func (s *MemoryStore) ExistsByKey(_ context.Context, key types.NewsKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byKey[key]
	return ok, nil
}

func (s *MemoryStore) IncrementViews(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return 0, ErrNotFound
	}
	item.Views++
	return item.Views, nil
}

func (s *MemoryStore) SetStatus(_ context.Context, id string, status types.ModerationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	item.Status = status
	item.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) EnsureCategories(_ context.Context, cats []types.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cats {
		s.categories[c.ID] = c
	}
	return nil
}

func (s *MemoryStore) Categories(_ context.Context) ([]types.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cats := make([]types.Category, 0, len(s.categories))
	for _, c := range s.categories {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].ID < cats[j].ID })
	return cats, nil
}

func (s *MemoryStore) GetOrCreateAuthor(_ context.Context, externalID int64, handle string) (*types.ExternalAuthorRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.authors[externalID]
	if !ok {
		a = &types.ExternalAuthorRef{ID: uuid.NewString(), ExternalID: externalID}
		s.authors[externalID] = a
	}
	if handle != "" {
		a.Handle = handle
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) Close() error { return nil }
