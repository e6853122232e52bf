package fetcher

import (
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/khlemanenka99-ai/news-portal/internal/config"
)

// newLauncher configures a Chromium launcher with flags that keep the
// automation banner and the webdriver blink feature off.
func newLauncher(cfg config.FetcherConfig) *launcher.Launcher {
	l := launcher.New().
		Headless(cfg.Headless).
		Leakless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}
	if cfg.WindowSize != "" {
		l = l.Set("window-size", cfg.WindowSize)
	}
	return l
}

// newPage opens a blank page, patched against fingerprinting when
// stealthMode is set.
func newPage(browser *rod.Browser, stealthMode bool) (*rod.Page, error) {
	if stealthMode {
		return stealth.Page(browser)
	}
	return browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
}
