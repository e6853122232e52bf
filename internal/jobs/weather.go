package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/khlemanenka99-ai/news-portal/internal/cache"
	"github.com/khlemanenka99-ai/news-portal/internal/config"
	"github.com/khlemanenka99-ai/news-portal/internal/observability"
	"github.com/khlemanenka99-ai/news-portal/internal/types"
)

type forecastResponse struct {
	CurrentWeather *struct {
		Temperature   *float64 `json:"temperature"`
		WindSpeed     *float64 `json:"windspeed"`
		WindDirection *float64 `json:"winddirection"`
		WeatherCode   *int     `json:"weathercode"`
	} `json:"current_weather"`
}

// WeatherSync caches the current weather of each configured city.
type WeatherSync struct {
	client  JSONGetter
	cache   cache.Cache
	cfg     config.WeatherConfig
	metrics *observability.Metrics
	now     func() time.Time
	logger  *slog.Logger
}

func NewWeatherSync(client JSONGetter, c cache.Cache, cfg config.WeatherConfig, metrics *observability.Metrics, logger *slog.Logger) *WeatherSync {
	return &WeatherSync{
		client:  client,
		cache:   c,
		cfg:     cfg,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger.With("component", "weather_sync", "job", NameWeather),
	}
}

func (j *WeatherSync) Name() string { return NameWeather }

func (j *WeatherSync) Run(ctx context.Context) error {
	for _, city := range j.cfg.Cities {
		snap, err := j.fetch(ctx, city)
		if err != nil {
			return fmt.Errorf("weather %s: %w", city.Name, err)
		}
		key := CityKey(city)
		if err := cache.PutJSON(ctx, j.cache, key, snap, j.cfg.TTL); err != nil {
			return fmt.Errorf("cache %s: %w", key, err)
		}
		j.metrics.ObserveCacheWrite(key)
		j.logger.Info("weather updated",
			"city", city.Name,
			"key", key,
			"temperature", snap.Temperature,
			"description", snap.Description,
		)
	}
	return nil
}

func (j *WeatherSync) fetch(ctx context.Context, city config.CityConfig) (*types.WeatherSnapshot, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(city.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(city.Longitude, 'f', -1, 64))
	q.Set("current_weather", "true")
	u := strings.TrimRight(j.cfg.BaseURL, "/") + "/v1/forecast?" + q.Encode()

	var resp forecastResponse
	if err := j.client.GetJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	cw := resp.CurrentWeather
	if cw == nil {
		return nil, &types.FetchError{URL: u, Err: fmt.Errorf("current_weather: %w", types.ErrMissingField)}
	}
	for _, f := range []struct {
		name    string
		missing bool
	}{
		{"temperature", cw.Temperature == nil},
		{"windspeed", cw.WindSpeed == nil},
		{"winddirection", cw.WindDirection == nil},
		{"weathercode", cw.WeatherCode == nil},
	} {
		if f.missing {
			return nil, &types.FetchError{URL: u, Err: fmt.Errorf("current_weather.%s: %w", f.name, types.ErrMissingField)}
		}
	}
	return &types.WeatherSnapshot{
		City:          city.Name,
		Temperature:   *cw.Temperature,
		WindSpeed:     *cw.WindSpeed,
		WindDirection: *cw.WindDirection,
		WeatherCode:   *cw.WeatherCode,
		Description:   DescribeWeatherCode(*cw.WeatherCode),
		CapturedAt:    j.now(),
	}, nil
}

// CityKey returns the cache key for city: its configured key or
// current_weather_<slug of name>.
func CityKey(city config.CityConfig) string {
	if city.Key != "" {
		return city.Key
	}
	return "current_weather_" + slug(city.Name)
}

// WMO weather interpretation codes.
var weatherCodes = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Light freezing drizzle",
	57: "Dense freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snow fall",
	73: "Moderate snow fall",
	75: "Heavy snow fall",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

// DescribeWeatherCode names a WMO code, or "Unknown".
func DescribeWeatherCode(code int) string {
	if d, ok := weatherCodes[code]; ok {
		return d
	}
	return "Unknown"
}
