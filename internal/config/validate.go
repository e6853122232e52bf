package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stderr" && cfg.Logging.Output != "stdout" {
		return fmt.Errorf("logging.output must be 'stderr' or 'stdout', got %q", cfg.Logging.Output)
	}

	for name, job := range map[string]JobConfig{
		"currency": cfg.Jobs.Currency,
		"weather":  cfg.Jobs.Weather,
		"news":     cfg.Jobs.News,
	} {
		if err := validateJob(name, job); err != nil {
			return err
		}
	}

	if cfg.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if cfg.HTTP.MaxBodySize <= 0 {
		return fmt.Errorf("http.max_body_size must be > 0")
	}

	if cfg.Fetcher.Type != "http" && cfg.Fetcher.Type != "browser" {
		return fmt.Errorf("fetcher.type must be 'http' or 'browser', got %q", cfg.Fetcher.Type)
	}
	if cfg.Fetcher.WaitTimeout <= 0 {
		return fmt.Errorf("fetcher.wait_timeout must be > 0")
	}
	if cfg.Fetcher.PageTimeout <= 0 {
		return fmt.Errorf("fetcher.page_timeout must be > 0")
	}
	if cfg.Fetcher.LoadSettleDelay < 0 || cfg.Fetcher.ScrollDelay < 0 || cfg.Fetcher.ClickSettleDelay < 0 {
		return fmt.Errorf("fetcher settle delays must be >= 0")
	}
	if cfg.Fetcher.Proxy != "" {
		if _, err := url.Parse(cfg.Fetcher.Proxy); err != nil {
			return fmt.Errorf("invalid proxy URL %q: %w", cfg.Fetcher.Proxy, err)
		}
	}

	if cfg.Scraper.UpsertMode != "refresh" && cfg.Scraper.UpsertMode != "skip" {
		return fmt.Errorf("scraper.upsert_mode must be 'refresh' or 'skip', got %q", cfg.Scraper.UpsertMode)
	}
	for i, src := range cfg.Scraper.Sources {
		if err := ValidateURL(src.URL); err != nil {
			return fmt.Errorf("scraper.sources[%d].url: %w", i, err)
		}
		if src.Category <= 0 {
			return fmt.Errorf("scraper.sources[%d].category must be > 0, got %d", i, src.Category)
		}
	}
	if len(cfg.Scraper.Selectors.ListingLink) == 0 || len(cfg.Scraper.Selectors.Title) == 0 {
		return fmt.Errorf("scraper.selectors.listing_link and scraper.selectors.title must not be empty")
	}

	if err := ValidateURL(cfg.Currency.BaseURL); err != nil {
		return fmt.Errorf("currency.base_url: %w", err)
	}
	if cfg.Currency.TTL <= 0 {
		return fmt.Errorf("currency.ttl must be > 0")
	}
	for i, r := range cfg.Currency.Rates {
		if r.Code <= 0 || r.Key == "" {
			return fmt.Errorf("currency.rates[%d] needs a positive code and a key", i)
		}
	}

	if err := ValidateURL(cfg.Weather.BaseURL); err != nil {
		return fmt.Errorf("weather.base_url: %w", err)
	}
	if cfg.Weather.TTL <= 0 {
		return fmt.Errorf("weather.ttl must be > 0")
	}
	for i, c := range cfg.Weather.Cities {
		if c.Key == "" {
			return fmt.Errorf("weather.cities[%d].key must not be empty", i)
		}
		if c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
			return fmt.Errorf("weather.cities[%d] has out-of-range coordinates", i)
		}
	}

	for i, c := range cfg.Categories {
		if c.ID <= 0 || c.Name == "" {
			return fmt.Errorf("categories[%d] needs a positive id and a name", i)
		}
	}

	validStorageTypes := map[string]bool{
		"memory": true, "postgres": true, "sqlite": true, "mongo": true,
	}
	if !validStorageTypes[cfg.Storage.Type] {
		return fmt.Errorf("storage.type %q is not supported (valid: memory, postgres, sqlite, mongo)", cfg.Storage.Type)
	}
	if cfg.Storage.Type != "memory" && cfg.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required for storage.type %q", cfg.Storage.Type)
	}

	if cfg.Cache.Type != "memory" && cfg.Cache.Type != "redis" {
		return fmt.Errorf("cache.type must be 'memory' or 'redis', got %q", cfg.Cache.Type)
	}
	if cfg.Cache.Type == "redis" && cfg.Cache.Addr == "" {
		return fmt.Errorf("cache.addr is required for redis")
	}

	if cfg.API.PerPage < 1 || cfg.API.PerPage > 100 {
		return fmt.Errorf("api.per_page must be 1-100, got %d", cfg.API.PerPage)
	}

	if cfg.Bot.Enabled {
		if cfg.Bot.Token == "" {
			return fmt.Errorf("bot.token is required when bot.enabled is set")
		}
		if cfg.Media.Type != "dir" && cfg.Media.Type != "minio" {
			return fmt.Errorf("media.type must be 'dir' or 'minio', got %q", cfg.Media.Type)
		}
		if cfg.Media.Type == "minio" && (cfg.Media.Endpoint == "" || cfg.Media.Bucket == "") {
			return fmt.Errorf("media.endpoint and media.bucket are required for minio")
		}
	}

	return nil
}

func validateJob(name string, job JobConfig) error {
	if !job.Enabled {
		return nil
	}
	if job.Interval <= 0 {
		return fmt.Errorf("jobs.%s.interval must be > 0", name)
	}
	if job.MaxRetries < 0 {
		return fmt.Errorf("jobs.%s.max_retries must be >= 0, got %d", name, job.MaxRetries)
	}
	if job.RetryDelay < 0 {
		return fmt.Errorf("jobs.%s.retry_delay must be >= 0", name)
	}
	if job.Deadline <= 0 {
		return fmt.Errorf("jobs.%s.deadline must be > 0", name)
	}
	return nil
}

// ValidateURL checks that a URL is an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
