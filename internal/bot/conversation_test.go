package bot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khlemanenka99-ai/news-portal/internal/cache"
	"github.com/khlemanenka99-ai/news-portal/internal/intake"
	"github.com/khlemanenka99-ai/news-portal/internal/media"
	"github.com/khlemanenka99-ai/news-portal/internal/storage"
	"github.com/khlemanenka99-ai/news-portal/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type fakeDownloader struct {
	data []byte
	err  error
}

func (f fakeDownloader) DownloadPhoto(context.Context, string) (*Download, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &Download{Body: io.NopCloser(bytes.NewReader(f.data)), Name: "file_7.jpg", Size: int64(len(f.data)), ContentType: "image/jpeg"}, nil
}

type fixture struct {
	store    *storage.MemoryStore
	sessions *CacheSessions
	conv     *Conversation
	photoDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore(testLogger)
	require.NoError(t, store.EnsureCategories(ctx, []types.Category{{ID: 3, Name: "People"}, {ID: 5, Name: "Tech"}}))

	dir := t.TempDir()
	photos, err := media.NewDirStore(dir, "/media/news_photos", 1<<20, testLogger)
	require.NoError(t, err)

	sessions := NewCacheSessions(cache.NewMemory(), 0)
	f := &fixture{store: store, sessions: sessions, photoDir: dir}
	f.conv = f.newConversation(fakeDownloader{data: []byte("jpeg")}, photos)
	return f
}

func (f *fixture) newConversation(dl PhotoDownloader, photos media.PhotoStore) *Conversation {
	return NewConversation(f.sessions, intake.NewService(f.store, testLogger), f.store, photos, dl, testLogger)
}

func say(t *testing.T, c *Conversation, text string) Reply {
	t.Helper()
	replies, err := c.Handle(context.Background(), Update{UserID: 42, ChatID: 100, Handle: "reporter", Text: text})
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, int64(100), replies[0].ChatID)
	return replies[0]
}

func sendPhoto(t *testing.T, c *Conversation) Reply {
	t.Helper()
	replies, err := c.Handle(context.Background(), Update{UserID: 42, ChatID: 100, Photo: &PhotoRef{FileID: "AgAD", Size: 4}})
	require.NoError(t, err)
	require.Len(t, replies, 1)
	return replies[0]
}

func (f *fixture) state(t *testing.T) (State, bool) {
	t.Helper()
	sess, found, err := f.sessions.Load(context.Background(), 42)
	require.NoError(t, err)
	if !found {
		return "", false
	}
	return sess.State, true
}

func TestConversationFullFlow(t *testing.T) {
	f := newFixture(t)

	say(t, f.conv, "/new")
	st, _ := f.state(t)
	assert.Equal(t, StateAwaitingTitle, st)

	say(t, f.conv, "New tram line opens")
	st, _ = f.state(t)
	assert.Equal(t, StateAwaitingContent, st)

	r := say(t, f.conv, "The line connects two districts.")
	assert.Equal(t, []string{"People", "Tech", CmdSkip}, r.Buttons)
	st, _ = f.state(t)
	assert.Equal(t, StateAwaitingCategory, st)

	say(t, f.conv, "people")
	st, _ = f.state(t)
	assert.Equal(t, StateAwaitingPhoto, st)

	r = sendPhoto(t, f.conv)
	assert.Contains(t, r.Text, "New tram line opens")
	assert.Equal(t, []string{"send", "cancel"}, r.Buttons)
	st, _ = f.state(t)
	assert.Equal(t, StateAwaitingConfirmation, st)

	r = say(t, f.conv, "send")
	assert.Contains(t, r.Text, "sent to moderation")
	_, found := f.state(t)
	assert.False(t, found, "terminal sessions are not kept")

	page, err := f.store.List(context.Background(), storage.Filter{Status: types.StatusPending})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	item := page.Items[0]
	assert.Equal(t, "New tram line opens", item.Title)
	assert.Equal(t, 3, item.CategoryID)
	assert.Equal(t, "telegram: @reporter", item.Author)
	assert.True(t, strings.HasPrefix(item.ImageURL, "/media/news_photos/"))

	entries, err := os.ReadDir(f.photoDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestConversationSkipsOptionalSteps(t *testing.T) {
	f := newFixture(t)
	say(t, f.conv, "/new")
	say(t, f.conv, "Title")
	say(t, f.conv, "Body")
	say(t, f.conv, "/skip")
	r := say(t, f.conv, "/skip")
	assert.NotContains(t, r.Text, "Photo attached")
	say(t, f.conv, "/send")

	page, err := f.store.List(context.Background(), storage.Filter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, types.Uncategorized, page.Items[0].CategoryID)
	assert.Empty(t, page.Items[0].ImageURL)
}

func TestConversationResumesAcrossInstances(t *testing.T) {
	f := newFixture(t)
	say(t, f.conv, "/new")
	say(t, f.conv, "Title survives restart")

	// a fresh Conversation over the same store picks up where we left
	restarted := f.newConversation(nil, nil)
	say(t, restarted, "Content after restart")
	st, _ := f.state(t)
	assert.Equal(t, StateAwaitingCategory, st)

	sess, _, err := f.sessions.Load(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "Title survives restart", sess.Title)
	assert.Equal(t, "Content after restart", sess.Content)
}

func TestConversationCancelFromAnyState(t *testing.T) {
	for _, steps := range [][]string{
		{"/new"},
		{"/new", "t"},
		{"/new", "t", "c"},
		{"/new", "t", "c", "/skip"},
		{"/new", "t", "c", "/skip", "/skip"},
	} {
		f := newFixture(t)
		for _, s := range steps {
			say(t, f.conv, s)
		}
		r := say(t, f.conv, "/cancel")
		assert.Contains(t, r.Text, "Cancelled")
		_, found := f.state(t)
		assert.False(t, found, "after %v", steps)
	}
}

func TestConversationNewRestartsFlow(t *testing.T) {
	f := newFixture(t)
	say(t, f.conv, "/new")
	say(t, f.conv, "First title")
	say(t, f.conv, "/new")

	sess, found, err := f.sessions.Load(context.Background(), 42)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StateAwaitingTitle, sess.State)
	assert.Empty(t, sess.Title)
}

func TestConversationRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	r := say(t, f.conv, "hello")
	assert.Contains(t, r.Text, "/new")

	say(t, f.conv, "/new")
	say(t, f.conv, strings.Repeat("x", types.MaxTitleLength+1))
	st, _ := f.state(t)
	assert.Equal(t, StateAwaitingTitle, st)

	say(t, f.conv, "ok title")
	say(t, f.conv, "content")
	r = say(t, f.conv, "Sports")
	assert.Contains(t, r.Text, "Unknown category")
	st, _ = f.state(t)
	assert.Equal(t, StateAwaitingCategory, st)

	say(t, f.conv, "5")
	r = say(t, f.conv, "not a photo")
	assert.Contains(t, r.Text, "photo")
	st, _ = f.state(t)
	assert.Equal(t, StateAwaitingPhoto, st)
}

func TestConversationDuplicateTitleAsksAgain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.store.UpsertScraped(ctx, &types.NewsItem{Title: "Taken", Body: "b", CategoryID: 5, Status: types.StatusApproved}, true)
	require.NoError(t, err)

	say(t, f.conv, "/new")
	say(t, f.conv, "Taken")
	say(t, f.conv, "content")
	say(t, f.conv, "Tech")
	say(t, f.conv, "/skip")
	r := say(t, f.conv, "send")
	assert.Contains(t, r.Text, "already exists")

	sess, found, err := f.sessions.Load(ctx, 42)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StateAwaitingTitle, sess.State)
	assert.Equal(t, "content", sess.Content)
}

func TestConversationPhotoDownloadFailure(t *testing.T) {
	f := newFixture(t)
	photos, err := media.NewDirStore(t.TempDir(), "/m", 0, testLogger)
	require.NoError(t, err)
	f.conv = f.newConversation(fakeDownloader{err: errors.New("telegram file: status 502")}, photos)

	say(t, f.conv, "/new")
	say(t, f.conv, "t")
	say(t, f.conv, "c")
	say(t, f.conv, "/skip")

	replies, err := f.conv.Handle(context.Background(), Update{UserID: 42, ChatID: 100, Photo: &PhotoRef{FileID: "x"}})
	require.Error(t, err)
	require.Len(t, replies, 1)
	st, _ := f.state(t)
	assert.Equal(t, StateAwaitingPhoto, st)
}

func TestCommandParsing(t *testing.T) {
	assert.Equal(t, "/new", command("/new"))
	assert.Equal(t, "/new", command("/NEW@portal_bot"))
	assert.Equal(t, "/skip", command("/skip please"))
	assert.Equal(t, "", command("new"))
}
