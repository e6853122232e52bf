package types

import "time"

// RateSnapshot is the latest official rate of one currency. Cache-only.
type RateSnapshot struct {
	Code       int       `json:"code"`
	Rate       float64   `json:"rate"`
	CapturedAt time.Time `json:"captured_at"`
}

// WeatherSnapshot is the current weather of one city. Cache-only.
type WeatherSnapshot struct {
	City          string    `json:"city"`
	Temperature   float64   `json:"temperature"`
	WindSpeed     float64   `json:"windspeed"`
	WindDirection float64   `json:"winddirection"`
	WeatherCode   int       `json:"weathercode"`
	Description   string    `json:"description,omitempty"`
	CapturedAt    time.Time `json:"captured_at"`
}
