package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	defaults := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, defaults)

	// NEWSPORTAL_STORAGE_DSN overrides storage.dsn, etc.
	v.SetEnvPrefix("NEWSPORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("newsportal")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".newsportal"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// List sections are decoded into an empty config so that a shorter
	// list in the file replaces the default list instead of overlaying it.
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	fillListDefaults(cfg, defaults)

	return cfg, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("jobs.run_on_start", cfg.Jobs.RunOnStart)
	setJobDefaults(v, "jobs.currency", cfg.Jobs.Currency)
	setJobDefaults(v, "jobs.weather", cfg.Jobs.Weather)
	setJobDefaults(v, "jobs.news", cfg.Jobs.News)

	v.SetDefault("http.timeout", cfg.HTTP.Timeout)
	v.SetDefault("http.user_agent", cfg.HTTP.UserAgent)
	v.SetDefault("http.max_body_size", cfg.HTTP.MaxBodySize)

	v.SetDefault("fetcher.type", cfg.Fetcher.Type)
	v.SetDefault("fetcher.headless", cfg.Fetcher.Headless)
	v.SetDefault("fetcher.stealth", cfg.Fetcher.Stealth)
	v.SetDefault("fetcher.proxy", cfg.Fetcher.Proxy)
	v.SetDefault("fetcher.browser_bin", cfg.Fetcher.BrowserBin)
	v.SetDefault("fetcher.window_size", cfg.Fetcher.WindowSize)
	v.SetDefault("fetcher.page_timeout", cfg.Fetcher.PageTimeout)
	v.SetDefault("fetcher.wait_timeout", cfg.Fetcher.WaitTimeout)
	v.SetDefault("fetcher.load_settle_delay", cfg.Fetcher.LoadSettleDelay)
	v.SetDefault("fetcher.scroll_delay", cfg.Fetcher.ScrollDelay)
	v.SetDefault("fetcher.click_settle_delay", cfg.Fetcher.ClickSettleDelay)

	v.SetDefault("scraper.upsert_mode", cfg.Scraper.UpsertMode)
	v.SetDefault("scraper.selectors.ready", cfg.Scraper.Selectors.Ready)

	v.SetDefault("currency.base_url", cfg.Currency.BaseURL)
	v.SetDefault("currency.ttl", cfg.Currency.TTL)
	v.SetDefault("weather.base_url", cfg.Weather.BaseURL)
	v.SetDefault("weather.ttl", cfg.Weather.TTL)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.dsn", cfg.Storage.DSN)
	v.SetDefault("storage.database", cfg.Storage.Database)

	v.SetDefault("cache.type", cfg.Cache.Type)
	v.SetDefault("cache.addr", cfg.Cache.Addr)
	v.SetDefault("cache.password", cfg.Cache.Password)
	v.SetDefault("cache.db", cfg.Cache.DB)
	v.SetDefault("cache.prefix", cfg.Cache.Prefix)

	v.SetDefault("api.enabled", cfg.API.Enabled)
	v.SetDefault("api.addr", cfg.API.Addr)
	v.SetDefault("api.admin_token", cfg.API.AdminToken)
	v.SetDefault("api.per_page", cfg.API.PerPage)
	v.SetDefault("api.read_timeout", cfg.API.ReadTimeout)
	v.SetDefault("api.write_timeout", cfg.API.WriteTimeout)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.path", cfg.Metrics.Path)

	v.SetDefault("bot.enabled", cfg.Bot.Enabled)
	v.SetDefault("bot.token", cfg.Bot.Token)
	v.SetDefault("bot.api_base", cfg.Bot.APIBase)
	v.SetDefault("bot.poll_timeout", cfg.Bot.PollTimeout)
	v.SetDefault("bot.session_ttl", cfg.Bot.SessionTTL)

	v.SetDefault("media.type", cfg.Media.Type)
	v.SetDefault("media.dir", cfg.Media.Dir)
	v.SetDefault("media.base_url", cfg.Media.BaseURL)
	v.SetDefault("media.endpoint", cfg.Media.Endpoint)
	v.SetDefault("media.access_key", cfg.Media.AccessKey)
	v.SetDefault("media.secret_key", cfg.Media.SecretKey)
	v.SetDefault("media.bucket", cfg.Media.Bucket)
	v.SetDefault("media.public_base", cfg.Media.PublicBase)
	v.SetDefault("media.max_size", cfg.Media.MaxSize)
}

func setJobDefaults(v *viper.Viper, prefix string, job JobConfig) {
	v.SetDefault(prefix+".enabled", job.Enabled)
	v.SetDefault(prefix+".interval", job.Interval)
	v.SetDefault(prefix+".max_retries", job.MaxRetries)
	v.SetDefault(prefix+".retry_delay", job.RetryDelay)
	v.SetDefault(prefix+".deadline", job.Deadline)
}

// fillListDefaults copies default lists into every list section left empty.
func fillListDefaults(cfg, defaults *Config) {
	if len(cfg.Scraper.Sources) == 0 {
		cfg.Scraper.Sources = defaults.Scraper.Sources
	}
	sel := &cfg.Scraper.Selectors
	if len(sel.ListingLink) == 0 {
		sel.ListingLink = defaults.Scraper.Selectors.ListingLink
	}
	if len(sel.Title) == 0 {
		sel.Title = defaults.Scraper.Selectors.Title
	}
	if len(sel.Author) == 0 {
		sel.Author = defaults.Scraper.Selectors.Author
	}
	if len(sel.HeaderImage) == 0 {
		sel.HeaderImage = defaults.Scraper.Selectors.HeaderImage
	}
	if len(sel.Paragraphs) == 0 {
		sel.Paragraphs = defaults.Scraper.Selectors.Paragraphs
	}
	if len(cfg.Currency.Rates) == 0 {
		cfg.Currency.Rates = defaults.Currency.Rates
	}
	if len(cfg.Weather.Cities) == 0 {
		cfg.Weather.Cities = defaults.Weather.Cities
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = defaults.Categories
	}
}
