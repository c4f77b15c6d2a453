package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/sportai/fincast/internal/domain"
)

var policyFileNames = []string{"policies.json", "policies.yaml", "policies.yml"}

// PolicyPath returns the first policy document present in dataDir, or
// policies.json when there is none
func PolicyPath(dataDir string) string {
	for _, name := range policyFileNames {
		path := filepath.Join(dataDir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return filepath.Join(dataDir, policyFileNames[0])
}

// LoadPolicy reads a policy document (JSON or YAML). A missing file yields
// the default policy.
func LoadPolicy(path string) (domain.PolicyConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.DefaultPolicy(), nil
	}
	if err != nil {
		return domain.PolicyConfig{}, fmt.Errorf("config: failed to read policy: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes a policy document. Keys that are absent or hold a
// value of the wrong shape keep their default.
func ParsePolicy(data []byte) (domain.PolicyConfig, error) {
	p := domain.DefaultPolicy()
	if len(strings.TrimSpace(string(data))) == 0 {
		return p, nil
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return domain.PolicyConfig{}, &domain.ConfigurationError{Source: "policy", Msg: "malformed document", Err: err}
	}

	notice := section(doc, "notice_windows")
	staffing := section(doc, "staffing")
	inventory := section(doc, "inventory")
	global := section(doc, "global")

	p.ScheduleChangeHours = intValue(notice["schedule_change_hours"], p.ScheduleChangeHours)
	p.IncreaseThreshold = floatValue(staffing["increase_threshold"], p.IncreaseThreshold)
	p.DecreaseThreshold = floatValue(staffing["decrease_threshold"], p.DecreaseThreshold)
	p.MaxDeltaPerHour = intValue(staffing["max_delta_per_hour"], p.MaxDeltaPerHour)
	p.MaxOverflowSlotsPerHour = intValue(inventory["max_overflow_slots_per_hour"], p.MaxOverflowSlotsPerHour)
	p.AllowSplitLayouts = boolValue(inventory["allow_split_layouts"], p.AllowSplitLayouts)
	p.MaxTotalChangesPerDay = intValue(global["max_total_changes_per_day"], p.MaxTotalChangesPerDay)

	if list, ok := global["change_types_priority"].([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				p.ChangeTypesPriority = append(p.ChangeTypesPriority, domain.ActionType(strings.TrimSpace(s)))
			}
		}
	}
	if mode, ok := doc["active_mode"].(string); ok && strings.TrimSpace(mode) != "" {
		p.ActiveMode = strings.TrimSpace(mode)
	}
	return p, nil
}

func section(doc map[string]any, key string) map[string]any {
	switch m := doc[key].(type) {
	case map[string]any:
		return m
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out
	}
	return map[string]any{}
}

func floatValue(v any, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f
		}
	}
	return def
}

func intValue(v any, def int) int {
	f := floatValue(v, float64(def))
	return int(f)
}

func boolValue(v any, def bool) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
			return parsed
		}
	}
	return def
}
