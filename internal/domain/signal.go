package domain

import "time"

// HourlySignal is one row of the canonical signals_hourly table
type HourlySignal struct {
	TS         time.Time `json:"ts"`
	TempF      float64   `json:"temp_f"`
	PrecipProb float64   `json:"precip_prob"`
	TrafficIdx float64   `json:"traffic_idx"`
	EventScore float64   `json:"event_score"`
}

// LocalEvent is a row of the local events overlay
type LocalEvent struct {
	Start time.Time
	End   time.Time
	Score float64
	Notes string
}
