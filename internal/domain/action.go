package domain

import "time"

// ActionType enumerates the suggestions the rule engine can make
type ActionType string

const (
	ActionCleaningWindow ActionType = "cleaning_window"
	ActionOpenOverflow   ActionType = "open_overflow"
	ActionStaffIncrease  ActionType = "staff_increase"
	ActionStaffReduce    ActionType = "staff_reduce"
)

// SuggestedAction is one row of actions_log
type SuggestedAction struct {
	TS         time.Time  `json:"ts"`
	ZoneID     string     `json:"zone_id"`
	ActionType ActionType `json:"action_type"`
	Before     string     `json:"before"`
	After      string     `json:"after"`
	Rationale  string     `json:"rationale"`
}
