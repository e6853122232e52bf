package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khlemanenka99-ai/news-portal/internal/cache"
	"github.com/khlemanenka99-ai/news-portal/internal/config"
	"github.com/khlemanenka99-ai/news-portal/internal/engine"
	"github.com/khlemanenka99-ai/news-portal/internal/intake"
	"github.com/khlemanenka99-ai/news-portal/internal/observability"
	"github.com/khlemanenka99-ai/news-portal/internal/storage"
	"github.com/khlemanenka99-ai/news-portal/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const adminToken = "s3cret"

type fakeJobs struct {
	mu        sync.Mutex
	triggered []string
	errs      map[string]error
}

func (f *fakeJobs) Status() []engine.JobStatus {
	return []engine.JobStatus{
		{Name: "currency", State: engine.StateIdle, Interval: "10m0s"},
		{Name: "news", State: engine.StateRunning, Interval: "30m0s", Attempt: 2},
	}
}

func (f *fakeJobs) Trigger(name string) error {
	if err, ok := f.errs[name]; ok {
		return err
	}
	f.mu.Lock()
	f.triggered = append(f.triggered, name)
	f.mu.Unlock()
	return nil
}

type fixture struct {
	srv   *Server
	store *storage.MemoryStore
	cache *cache.Memory
	jobs  *fakeJobs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.API.AdminToken = adminToken
	cfg.API.PerPage = 2

	store := storage.NewMemoryStore(testLogger)
	require.NoError(t, store.EnsureCategories(context.Background(), []types.Category{{ID: 3, Name: "People"}, {ID: 5, Name: "Tech"}}))

	f := &fixture{
		store: store,
		cache: cache.NewMemory(),
		jobs: &fakeJobs{errs: map[string]error{
			"news":    types.ErrJobRunning,
			"missing": fmt.Errorf("%w: missing", types.ErrUnknownJob),
		}},
	}
	f.srv = NewServer(cfg, Deps{
		Store:   store,
		Intake:  intake.NewService(store, testLogger),
		Cache:   f.cache,
		Jobs:    f.jobs,
		Metrics: observability.NewMetrics(),
	}, testLogger)
	return f
}

func (f *fixture) seed(t *testing.T, title string, category int, status types.ModerationStatus) string {
	t.Helper()
	id, err := f.store.Create(context.Background(), &types.NewsItem{
		Title:      title,
		Body:       title + " body",
		CategoryID: category,
		Status:     status,
		CreatedAt:  time.Now().Add(-time.Duration(len(title)) * time.Minute),
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) do(t *testing.T, method, target, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "memory", body["store"])
}

func TestListShowsApprovedOnly(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Approved A", 3, types.StatusApproved)
	f.seed(t, "Approved BB", 5, types.StatusApproved)
	f.seed(t, "Approved CCC", 3, types.StatusApproved)
	f.seed(t, "Pending", 3, types.StatusPending)
	f.seed(t, "Rejected", 3, types.StatusRejected)

	rec := f.do(t, http.MethodGet, "/api/news", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[storage.Page](t, rec)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Equal(t, 2, page.PerPage)
	require.Len(t, page.Items, 2)
	// newest first
	assert.Equal(t, "Approved A", page.Items[0].Title)
	for _, item := range page.Items {
		assert.Equal(t, types.StatusApproved, item.Status)
	}

	rec = f.do(t, http.MethodGet, "/api/news?page=2", "")
	page = decode[storage.Page](t, rec)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Approved CCC", page.Items[0].Title)

	rec = f.do(t, http.MethodGet, "/api/news?category=5", "")
	page = decode[storage.Page](t, rec)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Approved BB", page.Items[0].Title)

	rec = f.do(t, http.MethodGet, "/api/news?q=ccc", "")
	page = decode[storage.Page](t, rec)
	require.Len(t, page.Items, 1)
}

func TestListPaging(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "One", 3, types.StatusApproved)

	tests := []struct {
		name  string
		query string
		page  int
	}{
		{"not a number", "?page=abc", 1},
		{"past the end", "?page=9", 1},
		{"negative", "?page=-3", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/api/news"+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.page, decode[storage.Page](t, rec).Page)
		})
	}
}

func TestListEmptyIsArray(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/news", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"items":[]`)
}

func TestListRejectsBadCategory(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/news?category=tech", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, CodeValidation, resp.Error.Code)
	assert.Equal(t, intake.CodeInvalid, resp.Error.Fields["category"])
}

func TestGetCountsViews(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t, "Read me", 3, types.StatusApproved)

	for want := int64(1); want <= 2; want++ {
		rec := f.do(t, http.MethodGet, "/api/news/"+id, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, want, decode[types.NewsItem](t, rec).Views)
	}
}

func TestGetHidesUnapproved(t *testing.T) {
	f := newFixture(t)
	pending := f.seed(t, "Waiting", 3, types.StatusPending)

	for _, id := range []string{pending, "no-such-id"} {
		rec := f.do(t, http.MethodGet, "/api/news/"+id, "")
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, CodeNotFound, decode[ErrorResponse](t, rec).Error.Code)
	}

	item, err := f.store.Get(context.Background(), pending)
	require.NoError(t, err)
	assert.Zero(t, item.Views)
}

func TestSubmit(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/news", `{"title":"Snow in Minsk","content":"Roads are white.","category_id":3}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[map[string]string](t, rec)["id"]
	require.NotEmpty(t, id)

	item, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, item.Status)

	// pending items stay out of the feed
	page := decode[storage.Page](t, f.do(t, http.MethodGet, "/api/news", ""))
	assert.Zero(t, page.Total)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		body   string
		fields map[string]string
	}{
		{"empty", `{}`, map[string]string{"title": intake.CodeRequired, "content": intake.CodeRequired}},
		{"long title", `{"title":"` + strings.Repeat("x", 101) + `","content":"c"}`, map[string]string{"title": intake.CodeTooLong}},
		{"unknown category", `{"title":"t","content":"c","category_id":42}`, map[string]string{"category_id": intake.CodeUnknownCategory}},
		{"bad image", `{"title":"t","content":"c","image_url":"javascript:x"}`, map[string]string{"image_url": intake.CodeInvalidURL}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/news", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, CodeValidation, resp.Error.Code)
			assert.Equal(t, tt.fields, resp.Error.Fields)
		})
	}
}

func TestSubmitDuplicateAndMalformed(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Taken", 3, types.StatusApproved)

	rec := f.do(t, http.MethodPost, "/api/news", `{"title":"Taken","content":"c","category_id":3}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, intake.CodeDuplicate, decode[ErrorResponse](t, rec).Error.Fields["title"])

	rec = f.do(t, http.MethodPost, "/api/news", `{"title":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeValidation, decode[ErrorResponse](t, rec).Error.Code)
}

func TestModeration(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t, "Needs review", 3, types.StatusPending)

	rec := f.do(t, http.MethodPost, "/api/news/"+id+"/approve", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = f.do(t, http.MethodPost, "/api/news/"+id+"/approve", "", "X-Admin-Token", "wrong")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/news/"+id+"/approve", "", "X-Admin-Token", adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "approved", decode[map[string]string](t, rec)["status"])

	rec = f.do(t, http.MethodGet, "/api/news/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/news/"+id+"/reject", "", "X-Admin-Token", adminToken)
	require.Equal(t, http.StatusOK, rec.Code)

	item, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusRejected, item.Status)
	assert.Equal(t, int64(1), item.Views)

	rec = f.do(t, http.MethodPost, "/api/news/nope/approve", "", "X-Admin-Token", adminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCategories(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []types.Category{{ID: 3, Name: "People"}, {ID: 5, Name: "Tech"}}, decode[[]types.Category](t, rec))
}

func TestWidgets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, cache.PutJSON(ctx, f.cache, "dollar_to_byn_rate", 3.2718, time.Hour))
	// a zero rate is a value, not an absence
	require.NoError(t, cache.PutJSON(ctx, f.cache, "euro_to_byn_rate", 0.0, time.Hour))
	require.NoError(t, cache.PutJSON(ctx, f.cache, "current_weather_minsk", types.WeatherSnapshot{City: "Minsk", Temperature: -4.5}, time.Hour))

	rec := f.do(t, http.MethodGet, "/api/widgets", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Rates   map[string]*float64                `json:"rates"`
		Weather map[string]*types.WeatherSnapshot `json:"weather"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	require.NotNil(t, body.Rates["dollar_to_byn_rate"])
	assert.InDelta(t, 3.2718, *body.Rates["dollar_to_byn_rate"], 1e-9)
	require.NotNil(t, body.Rates["euro_to_byn_rate"])
	assert.Zero(t, *body.Rates["euro_to_byn_rate"])
	assert.Contains(t, body.Rates, "ruble_to_byn_rate")
	assert.Nil(t, body.Rates["ruble_to_byn_rate"])

	require.NotNil(t, body.Weather["current_weather_minsk"])
	assert.Equal(t, -4.5, body.Weather["current_weather_minsk"].Temperature)
	assert.Contains(t, rec.Body.String(), `"ruble_to_byn_rate":null`)
}

func TestJobs(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"running"`)

	tests := []struct {
		job  string
		code int
	}{
		{"currency", http.StatusAccepted},
		{"news", http.StatusConflict},
		{"missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.job, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/jobs/"+tt.job+"/run", "", "X-Admin-Token", adminToken)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
	assert.Equal(t, []string{"currency"}, f.jobs.triggered)

	rec = f.do(t, http.MethodPost, "/api/jobs/currency/run", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRunJobBeforeStart(t *testing.T) {
	f := newFixture(t)
	f.jobs.errs["weather"] = engine.ErrNotStarted

	rec := f.do(t, http.MethodPost, "/api/jobs/weather/run", "", "X-Admin-Token", adminToken)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, CodeUnavailable, decode[ErrorResponse](t, rec).Error.Code)
}

func TestRunJobAgainstRunner(t *testing.T) {
	f := newFixture(t)
	runner := engine.NewRunner(testLogger)
	f.srv.deps.Jobs = runner

	rec := f.do(t, http.MethodPost, "/api/jobs/news/run", "", "X-Admin-Token", adminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/nothing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, decode[ErrorResponse](t, rec).Error.Code)
}
