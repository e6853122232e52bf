package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khlemanenka99-ai/news-portal/internal/cache"
	"github.com/khlemanenka99-ai/news-portal/internal/config"
	"github.com/khlemanenka99-ai/news-portal/internal/fetcher"
	"github.com/khlemanenka99-ai/news-portal/internal/jobs/mocks"
	"github.com/khlemanenka99-ai/news-portal/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func respondJSON(body string) func(context.Context, string, any) error {
	return func(_ context.Context, _ string, out any) error {
		return json.Unmarshal([]byte(body), out)
	}
}

func currencyConfig(base string) config.CurrencyConfig {
	cfg := config.DefaultConfig().Currency
	cfg.BaseURL = base
	return cfg
}

func TestCurrencySyncWritesRates(t *testing.T) {
	ctrl := gomock.NewController(t)
	getter := mocks.NewMockJSONGetter(ctrl)
	c := cache.NewMemory()

	gomock.InOrder(
		getter.EXPECT().GetJSON(gomock.Any(), "https://api.nbrb.by/exrates/rates/431?periodicity=0", gomock.Any()).
			DoAndReturn(respondJSON(`{"Cur_ID":431,"Cur_OfficialRate":3.25}`)),
		getter.EXPECT().GetJSON(gomock.Any(), "https://api.nbrb.by/exrates/rates/451?periodicity=0", gomock.Any()).
			DoAndReturn(respondJSON(`{"Cur_OfficialRate":3.5123}`)),
		getter.EXPECT().GetJSON(gomock.Any(), "https://api.nbrb.by/exrates/rates/456?periodicity=0", gomock.Any()).
			DoAndReturn(respondJSON(`{"Cur_OfficialRate":0}`)),
	)

	job := NewCurrencySync(getter, c, currencyConfig("https://api.nbrb.by"), nil, testLogger)
	require.NoError(t, job.Run(context.Background()))

	ctx := context.Background()
	raw, found, err := c.Get(ctx, "dollar_to_byn_rate")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "3.25", string(raw))

	ttl, found, err := c.TTL(ctx, "dollar_to_byn_rate")
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, 3600, ttl.Seconds(), 5)

	// a zero rate is a value, not an absence
	var ruble float64 = -1
	found, err = cache.GetJSON(ctx, c, "ruble_to_byn_rate", &ruble)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Zero(t, ruble)
}

func TestCurrencySyncMissingFieldWritesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	getter := mocks.NewMockJSONGetter(ctrl)
	c := cache.NewMemory()

	// the job stops at the first failure: no call for 451 or 456
	getter.EXPECT().GetJSON(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(respondJSON(`{"Cur_ID":431,"Cur_Abbreviation":"USD"}`)).
		Times(1)

	job := NewCurrencySync(getter, c, currencyConfig("https://api.nbrb.by"), nil, testLogger)
	err := job.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrMissingField)

	var fe *types.FetchError
	assert.ErrorAs(t, err, &fe)

	_, found, err := c.Get(context.Background(), "dollar_to_byn_rate")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCurrencySyncKeepsEarlierKeysOnLaterFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	getter := mocks.NewMockJSONGetter(ctrl)
	c := cache.NewMemory()

	gomock.InOrder(
		getter.EXPECT().GetJSON(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(respondJSON(`{"Cur_OfficialRate":3.25}`)),
		getter.EXPECT().GetJSON(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&types.FetchError{URL: "x", StatusCode: 503, Err: errors.New("unavailable"), Retryable: true}),
	)

	job := NewCurrencySync(getter, c, currencyConfig("https://api.nbrb.by"), nil, testLogger)
	require.Error(t, job.Run(context.Background()))

	_, found, _ := c.Get(context.Background(), "dollar_to_byn_rate")
	assert.True(t, found)
	_, found, _ = c.Get(context.Background(), "euro_to_byn_rate")
	assert.False(t, found)
}

func TestCurrencySyncOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0", r.URL.Query().Get("periodicity"))
		switch r.URL.Path {
		case "/exrates/rates/431":
			_, _ = w.Write([]byte(`{"Cur_OfficialRate": 3.25}`))
		default:
			_, _ = w.Write([]byte(`{"Cur_OfficialRate": 1.1}`))
		}
	}))
	defer srv.Close()

	client := fetcher.NewHTTPClient(config.HTTPConfig{Timeout: 5 * time.Second}, testLogger)
	c := cache.NewMemory()
	job := NewCurrencySync(client, c, currencyConfig(srv.URL), nil, testLogger)
	require.NoError(t, job.Run(context.Background()))

	var rate float64
	found, err := cache.GetJSON(context.Background(), c, "dollar_to_byn_rate", &rate)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 3.25, rate)
}
