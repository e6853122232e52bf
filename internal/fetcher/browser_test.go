package fetcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khlemanenka99-ai/news-portal/internal/config"
	"github.com/khlemanenka99-ai/news-portal/internal/types"
)

func TestBrowserLoaderLaunchFailureReturns(t *testing.T) {
	cfg := config.DefaultConfig().Fetcher
	cfg.BrowserBin = "/nonexistent/chromium"
	bl := NewBrowserLoader(cfg, "", testLogger)

	done := make(chan error, 1)
	go func() {
		page, err := bl.Open(context.Background(), "http://127.0.0.1:1/", "")
		if page != nil {
			_ = page.Close()
		}
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		var fe *types.FetchError
		require.ErrorAs(t, err, &fe)
		assert.True(t, fe.Retryable)
	case <-time.After(15 * time.Second):
		t.Fatal("Open did not return after the browser failed to launch")
	}
}
