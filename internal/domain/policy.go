package domain

// PolicyConfig holds the guardrails the rule engine enforces
type PolicyConfig struct {
	ScheduleChangeHours     int
	IncreaseThreshold       float64
	DecreaseThreshold       float64
	MaxDeltaPerHour         int
	MaxOverflowSlotsPerHour int
	AllowSplitLayouts       bool
	MaxTotalChangesPerDay   int
	ChangeTypesPriority     []ActionType
	ActiveMode              string
}

// DefaultPolicy returns the values used when a policy key is absent or malformed
func DefaultPolicy() PolicyConfig {
	return PolicyConfig{
		ScheduleChangeHours:     24,
		IncreaseThreshold:       0.8,
		DecreaseThreshold:       0.3,
		MaxDeltaPerHour:         1,
		MaxOverflowSlotsPerHour: 1,
		AllowSplitLayouts:       true,
		MaxTotalChangesPerDay:   20,
		ActiveMode:              "Normal",
	}
}

// Priority returns the rank of t in ChangeTypesPriority; unranked types sort last
func (p PolicyConfig) Priority(t ActionType) int {
	for i, ranked := range p.ChangeTypesPriority {
		if ranked == t {
			return i
		}
	}
	return len(p.ChangeTypesPriority) + 999
}
