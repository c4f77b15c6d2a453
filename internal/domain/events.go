package domain

import "time"

// HourlyEvent is one row of the canonical events_hourly table
type HourlyEvent struct {
	TS          time.Time `json:"ts"`
	ZoneID      string    `json:"zone_id"`
	BookedSlots float64   `json:"booked_slots"`
	Checkins    float64   `json:"checkins"`
	EstWalkins  float64   `json:"est_walkins"`
}

// ZoneCapacity describes the physical limits of a zone
type ZoneCapacity struct {
	ZoneID          string  `json:"zone_id"`
	ZoneName        string  `json:"zone_name"`
	Layout          string  `json:"layout"`
	SetupMinutes    float64 `json:"setup_minutes"`
	CleanMinutes    float64 `json:"clean_minutes"`
	MaxSlotsPerHour float64 `json:"max_slots_per_hour"`
}

// AllZones matches every zone in a protected-hours rule
const AllZones = "ALL"

// ProtectedHoursRule blocks action types inside a weekly time window.
// Dow follows Monday=0 through Sunday=6.
type ProtectedHoursRule struct {
	ZoneID      string `json:"zone_id"`
	Dow         int    `json:"dow"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	AppliesTo   string `json:"applies_to"`
	ActionBlock string `json:"action_block"`
}

// Weekday converts t to the Monday=0 numbering used by protected hours
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
