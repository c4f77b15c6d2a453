package domain

import "time"

// Forecast is a predicted booked_slots value for one zone and hour
type Forecast struct {
	TS       time.Time `json:"ts"`
	ZoneID   string    `json:"zone_id"`
	Forecast float64   `json:"forecast"`
}

// ForecastMetric is the hold-out error of a zone model
type ForecastMetric struct {
	ZoneID string  `json:"zone_id"`
	ValMAE float64 `json:"val_mae"`
}

// DailyForecast is one day of the six-week projection
type DailyForecast struct {
	Date          time.Time `json:"date"`
	ZoneID        string    `json:"zone_id"`
	ForecastDaily float64   `json:"forecast_daily"`
}

// ForecastResult groups everything the forecast engine produces
type ForecastResult struct {
	Forecast []Forecast       `json:"forecast"`
	Metrics  []ForecastMetric `json:"metrics"`
	Daily    []DailyForecast  `json:"daily"`
	Skipped  []string         `json:"skipped,omitempty"`
}
