package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for the news portal.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
	Jobs       JobsConfig       `mapstructure:"jobs"       yaml:"jobs"`
	HTTP       HTTPConfig       `mapstructure:"http"       yaml:"http"`
	Fetcher    FetcherConfig    `mapstructure:"fetcher"    yaml:"fetcher"`
	Scraper    ScraperConfig    `mapstructure:"scraper"    yaml:"scraper"`
	Currency   CurrencyConfig   `mapstructure:"currency"   yaml:"currency"`
	Weather    WeatherConfig    `mapstructure:"weather"    yaml:"weather"`
	Categories []CategoryConfig `mapstructure:"categories" yaml:"categories"`
	Storage    StorageConfig    `mapstructure:"storage"    yaml:"storage"`
	Cache      CacheConfig      `mapstructure:"cache"      yaml:"cache"`
	API        APIConfig        `mapstructure:"api"        yaml:"api"`
	Metrics    MetricsConfig    `mapstructure:"metrics"    yaml:"metrics"`
	Bot        BotConfig        `mapstructure:"bot"        yaml:"bot"`
	Media      MediaConfig      `mapstructure:"media"      yaml:"media"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// JobsConfig holds the schedule of every periodic job.
type JobsConfig struct {
	RunOnStart bool      `mapstructure:"run_on_start" yaml:"run_on_start"`
	Currency   JobConfig `mapstructure:"currency"     yaml:"currency"`
	Weather    JobConfig `mapstructure:"weather"      yaml:"weather"`
	News       JobConfig `mapstructure:"news"         yaml:"news"`
}

// JobConfig is the schedule and retry policy of one job.
type JobConfig struct {
	Enabled    bool          `mapstructure:"enabled"     yaml:"enabled"`
	Interval   time.Duration `mapstructure:"interval"    yaml:"interval"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	Deadline   time.Duration `mapstructure:"deadline"    yaml:"deadline"`
}

// HTTPConfig controls the outbound HTTP client.
type HTTPConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"       yaml:"timeout"`
	UserAgent   string        `mapstructure:"user_agent"    yaml:"user_agent"`
	MaxBodySize int64         `mapstructure:"max_body_size" yaml:"max_body_size"`
}

// FetcherConfig controls how news pages are loaded.
type FetcherConfig struct {
	Type             string        `mapstructure:"type"               yaml:"type"` // browser, http
	Headless         bool          `mapstructure:"headless"           yaml:"headless"`
	Stealth          bool          `mapstructure:"stealth"            yaml:"stealth"`
	Proxy            string        `mapstructure:"proxy"              yaml:"proxy"`
	BrowserBin       string        `mapstructure:"browser_bin"        yaml:"browser_bin"`
	WindowSize       string        `mapstructure:"window_size"        yaml:"window_size"`
	PageTimeout      time.Duration `mapstructure:"page_timeout"       yaml:"page_timeout"`
	WaitTimeout      time.Duration `mapstructure:"wait_timeout"       yaml:"wait_timeout"`
	LoadSettleDelay  time.Duration `mapstructure:"load_settle_delay"  yaml:"load_settle_delay"`
	ScrollDelay      time.Duration `mapstructure:"scroll_delay"       yaml:"scroll_delay"`
	ClickSettleDelay time.Duration `mapstructure:"click_settle_delay" yaml:"click_settle_delay"`
}

// ScraperConfig lists the scraped sources and how articles are found.
type ScraperConfig struct {
	UpsertMode string          `mapstructure:"upsert_mode" yaml:"upsert_mode"` // refresh, skip
	Sources    []SourceConfig  `mapstructure:"sources"     yaml:"sources"`
	Selectors  SelectorsConfig `mapstructure:"selectors"   yaml:"selectors"`
}

// SourceConfig is one scraped listing page and the category it feeds.
type SourceConfig struct {
	URL      string `mapstructure:"url"      yaml:"url"`
	Category int    `mapstructure:"category" yaml:"category"`
}

// SelectorsConfig holds the selectors used during extraction. Each list is
// tried in order; the first selector with a match wins. Prefix a selector
// with "xpath:" to use XPath on static documents.
type SelectorsConfig struct {
	Ready       string   `mapstructure:"ready"        yaml:"ready"`
	ListingLink []string `mapstructure:"listing_link" yaml:"listing_link"`
	Title       []string `mapstructure:"title"        yaml:"title"`
	Author      []string `mapstructure:"author"       yaml:"author"`
	HeaderImage []string `mapstructure:"header_image" yaml:"header_image"`
	Paragraphs  []string `mapstructure:"paragraphs"   yaml:"paragraphs"`
}

// CurrencyConfig controls the exchange-rate sync.
type CurrencyConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	TTL     time.Duration `mapstructure:"ttl"      yaml:"ttl"`
	Rates   []RateConfig  `mapstructure:"rates"    yaml:"rates"`
}

// RateConfig maps a currency code to its cache key.
type RateConfig struct {
	Code int    `mapstructure:"code" yaml:"code"`
	Key  string `mapstructure:"key"  yaml:"key"`
}

// WeatherConfig controls the weather sync.
type WeatherConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	TTL     time.Duration `mapstructure:"ttl"      yaml:"ttl"`
	Cities  []CityConfig  `mapstructure:"cities"   yaml:"cities"`
}

// CityConfig is a city whose current weather is cached.
type CityConfig struct {
	Name      string  `mapstructure:"name"      yaml:"name"`
	Key       string  `mapstructure:"key"       yaml:"key"`
	Latitude  float64 `mapstructure:"latitude"  yaml:"latitude"`
	Longitude float64 `mapstructure:"longitude" yaml:"longitude"`
}

// CategoryConfig seeds a category.
type CategoryConfig struct {
	ID   int    `mapstructure:"id"   yaml:"id"`
	Name string `mapstructure:"name" yaml:"name"`
}

// StorageConfig selects the durable store.
type StorageConfig struct {
	Type     string `mapstructure:"type"     yaml:"type"` // memory, postgres, sqlite, mongo
	DSN      string `mapstructure:"dsn"      yaml:"dsn"`
	Database string `mapstructure:"database" yaml:"database"`
}

// CacheConfig selects the shared cache.
type CacheConfig struct {
	Type     string `mapstructure:"type"     yaml:"type"` // memory, redis
	Addr     string `mapstructure:"addr"     yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db"       yaml:"db"`
	Prefix   string `mapstructure:"prefix"   yaml:"prefix"`
}

// APIConfig controls the HTTP API.
type APIConfig struct {
	Enabled      bool          `mapstructure:"enabled"       yaml:"enabled"`
	Addr         string        `mapstructure:"addr"          yaml:"addr"`
	AdminToken   string        `mapstructure:"admin_token"   yaml:"admin_token"`
	PerPage      int           `mapstructure:"per_page"      yaml:"per_page"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"  yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// BotConfig controls the Telegram submission bot.
type BotConfig struct {
	Enabled     bool          `mapstructure:"enabled"      yaml:"enabled"`
	Token       string        `mapstructure:"token"        yaml:"token"`
	APIBase     string        `mapstructure:"api_base"     yaml:"api_base"`
	PollTimeout time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout"`
	SessionTTL  time.Duration `mapstructure:"session_ttl"  yaml:"session_ttl"`
}

// MediaConfig selects where bot photos are stored.
type MediaConfig struct {
	Type       string `mapstructure:"type"        yaml:"type"` // dir, minio
	Dir        string `mapstructure:"dir"         yaml:"dir"`
	BaseURL    string `mapstructure:"base_url"    yaml:"base_url"`
	Endpoint   string `mapstructure:"endpoint"    yaml:"endpoint"`
	AccessKey  string `mapstructure:"access_key"  yaml:"access_key"`
	SecretKey  string `mapstructure:"secret_key"  yaml:"secret_key"`
	Bucket     string `mapstructure:"bucket"      yaml:"bucket"`
	PublicBase string `mapstructure:"public_base" yaml:"public_base"`
	MaxSize    int64  `mapstructure:"max_size"    yaml:"max_size"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Jobs: JobsConfig{
			RunOnStart: true,
			Currency:   defaultJob(600 * time.Second),
			Weather:    defaultJob(1000 * time.Second),
			News:       defaultJob(1800 * time.Second),
		},
		HTTP: HTTPConfig{
			Timeout:     10 * time.Second,
			UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			MaxBodySize: 10 * 1024 * 1024, // 10MB
		},
		Fetcher: FetcherConfig{
			Type:             "browser",
			Headless:         true,
			Stealth:          true,
			WindowSize:       "1366,768",
			PageTimeout:      30 * time.Second,
			WaitTimeout:      10 * time.Second,
			LoadSettleDelay:  3 * time.Second,
			ScrollDelay:      2 * time.Second,
			ClickSettleDelay: 3 * time.Second,
		},
		Scraper: ScraperConfig{
			UpsertMode: "refresh",
			Sources: []SourceConfig{
				{URL: "https://people.onliner.by/", Category: 3},
				{URL: "https://auto.onliner.by/", Category: 4},
				{URL: "https://tech.onliner.by/", Category: 5},
				{URL: "https://realt.onliner.by/", Category: 6},
				{URL: "https://money.onliner.by/", Category: 7},
			},
			Selectors: SelectorsConfig{
				Ready:       ".news-tidings__link",
				ListingLink: []string{".news-tidings__link a.news-tidings__stub, .news-tidings__link a.news-tiles__stub", "a.news-tidings__stub, a.news-tiles__stub"},
				Title:       []string{"h1"},
				Author:      []string{".news-header__author-link", ".news-header__author"},
				HeaderImage: []string{".news-header__image"},
				Paragraphs:  []string{"p"},
			},
		},
		Currency: CurrencyConfig{
			BaseURL: "https://api.nbrb.by",
			TTL:     time.Hour,
			Rates: []RateConfig{
				{Code: 431, Key: "dollar_to_byn_rate"},
				{Code: 451, Key: "euro_to_byn_rate"},
				{Code: 456, Key: "ruble_to_byn_rate"},
			},
		},
		Weather: WeatherConfig{
			BaseURL: "https://api.open-meteo.com",
			TTL:     time.Hour,
			Cities: []CityConfig{
				{Name: "Minsk", Key: "current_weather_minsk", Latitude: 53.9006, Longitude: 27.5590},
			},
		},
		Categories: []CategoryConfig{
			{ID: 3, Name: "People"},
			{ID: 4, Name: "Auto"},
			{ID: 5, Name: "Tech"},
			{ID: 6, Name: "Realt"},
			{ID: 7, Name: "Money"},
		},
		Storage: StorageConfig{
			Type:     "sqlite",
			DSN:      "file:newsportal.db?_pragma=busy_timeout(5000)",
			Database: "newsportal",
		},
		Cache: CacheConfig{
			Type:   "memory",
			Addr:   "localhost:6379",
			Prefix: "newsportal:",
		},
		API: APIConfig{
			Enabled:      true,
			Addr:         ":8080",
			PerPage:      12,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Bot: BotConfig{
			Enabled:     false,
			APIBase:     "https://api.telegram.org",
			PollTimeout: 30 * time.Second,
			SessionTTL:  24 * time.Hour,
		},
		Media: MediaConfig{
			Type:       "dir",
			Dir:        "./media/news_photos",
			BaseURL:    "/media/news_photos",
			Bucket:     "news-photos",
			PublicBase: "http://localhost:9000",
			MaxSize:    10 * 1024 * 1024,
		},
	}
}

func defaultJob(interval time.Duration) JobConfig {
	return JobConfig{
		Enabled:    true,
		Interval:   interval,
		MaxRetries: 5,
		RetryDelay: 10 * time.Second,
		Deadline:   10 * time.Minute,
	}
}
