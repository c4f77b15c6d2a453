package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"github.com/sportai/fincast/internal/domain"
	"github.com/sportai/fincast/internal/repository/csvstore"
	"github.com/sportai/fincast/pkg/utils"
)

const (
	troughQuantile            = 0.10
	maxCleaningWindowsPerZone = 3
)

// RuleInput is everything the rule engine needs for one evaluation
type RuleInput struct {
	Forecast  []domain.Forecast
	Capacity  []domain.ZoneCapacity
	Protected []domain.ProtectedHoursRule
	Policy    domain.PolicyConfig
	Now       time.Time
}

// RuleEngine turns a forecast into guarded operational suggestions
type RuleEngine struct{}

// NewRuleEngine creates a new rule engine
func NewRuleEngine() *RuleEngine {
	return &RuleEngine{}
}

// actionGate applies protected hours and the daily cap to each candidate
type actionGate struct {
	protected []domain.ProtectedHoursRule
	maxPerDay int
	accepted  []domain.SuggestedAction
	perDay    map[string]int
}

func (g *actionGate) offer(a domain.SuggestedAction) bool {
	if isBlocked(a.TS, a.ZoneID, a.ActionType, g.protected) {
		return false
	}
	day := a.TS.Format(csvstore.DateLayout)
	if g.perDay[day] >= g.maxPerDay {
		return false
	}
	g.perDay[day]++
	g.accepted = append(g.accepted, a)
	return true
}

// Suggest evaluates the cleaning, overflow and staffing rules per zone and
// returns accepted actions ordered by (ts, policy priority)
func (e *RuleEngine) Suggest(in RuleInput) []domain.SuggestedAction {
	if len(in.Forecast) == 0 {
		return []domain.SuggestedAction{}
	}
	p := in.Policy

	maxSlots := make(map[string]float64, len(in.Capacity))
	for _, c := range in.Capacity {
		if _, dup := maxSlots[c.ZoneID]; !dup {
			maxSlots[c.ZoneID] = c.MaxSlotsPerHour
		}
	}

	gate := &actionGate{
		protected: in.Protected,
		maxPerDay: p.MaxTotalChangesPerDay,
		perDay:    make(map[string]int),
	}

	for _, zone := range groupForecastByZone(in.Forecast) {
		slots, ok := maxSlots[zone.id]
		if !ok {
			slots = 1
		}
		e.suggestCleaning(gate, zone, p, in.Now)
		e.suggestCapacity(gate, zone, p, slots)
	}

	actions := gate.accepted
	sort.SliceStable(actions, func(i, j int) bool {
		if !actions[i].TS.Equal(actions[j].TS) {
			return actions[i].TS.Before(actions[j].TS)
		}
		return p.Priority(actions[i].ActionType) < p.Priority(actions[j].ActionType)
	})
	if actions == nil {
		actions = []domain.SuggestedAction{}
	}
	return actions
}

type zoneForecast struct {
	id   string
	rows []domain.Forecast
}

func groupForecastByZone(rows []domain.Forecast) []zoneForecast {
	byZone := make(map[string][]domain.Forecast)
	for _, r := range rows {
		byZone[r.ZoneID] = append(byZone[r.ZoneID], r)
	}
	out := make([]zoneForecast, 0, len(byZone))
	for id, zr := range byZone {
		sort.SliceStable(zr, func(i, j int) bool { return zr[i].TS.Before(zr[j].TS) })
		out = append(out, zoneForecast{id: id, rows: zr})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// suggestCleaning proposes cleaning in the zone's lowest-demand hours that
// are far enough ahead of now
func (e *RuleEngine) suggestCleaning(gate *actionGate, zone zoneForecast, p domain.PolicyConfig, now time.Time) {
	values := make([]float64, len(zone.rows))
	for i, r := range zone.rows {
		values[i] = r.Forecast
	}
	sort.Float64s(values)
	threshold := stat.Quantile(troughQuantile, stat.Empirical, values, nil)
	notice := time.Duration(p.ScheduleChangeHours) * time.Hour

	accepted := 0
	for _, r := range zone.rows {
		if r.Forecast > threshold {
			continue
		}
		if r.TS.Sub(now) < notice {
			continue
		}
		ok := gate.offer(domain.SuggestedAction{
			TS:         r.TS,
			ZoneID:     zone.id,
			ActionType: domain.ActionCleaningWindow,
			After:      "Schedule cleaning",
			Rationale:  fmt.Sprintf("[%s] Trough hour; >= %dh notice", p.ActiveMode, p.ScheduleChangeHours),
		})
		if ok {
			accepted++
		}
		if accepted >= maxCleaningWindowsPerZone {
			break
		}
	}
}

// suggestCapacity proposes overflow releases and staffing deltas against the
// zone's hourly slot capacity
func (e *RuleEngine) suggestCapacity(gate *actionGate, zone zoneForecast, p domain.PolicyConfig, maxSlots float64) {
	high := p.IncreaseThreshold * maxSlots
	low := p.DecreaseThreshold * maxSlots
	highRationale := fmt.Sprintf("[%s] Forecast >= %d%% of capacity", p.ActiveMode, percent(p.IncreaseThreshold))
	lowRationale := fmt.Sprintf("[%s] Forecast < %d%% of capacity", p.ActiveMode, percent(p.DecreaseThreshold))

	overflowAfter := "Release overflow slot"
	if p.AllowSplitLayouts {
		overflowAfter += " or enable split-layout"
	}

	overflowPerHour := make(map[int64]int)
	for _, r := range zone.rows {
		if r.Forecast < high {
			continue
		}
		hour := utils.FloorHour(r.TS).Unix()
		if overflowPerHour[hour] >= p.MaxOverflowSlotsPerHour {
			continue
		}
		overflowPerHour[hour]++
		gate.offer(domain.SuggestedAction{
			TS:         r.TS,
			ZoneID:     zone.id,
			ActionType: domain.ActionOpenOverflow,
			After:      overflowAfter,
			Rationale:  highRationale,
		})
	}

	staffPerHour := make(map[int64]int)
	for _, r := range zone.rows {
		if r.Forecast < high {
			continue
		}
		hour := utils.FloorHour(r.TS).Unix()
		if staffPerHour[hour] >= p.MaxDeltaPerHour {
			continue
		}
		staffPerHour[hour]++
		gate.offer(domain.SuggestedAction{
			TS:         r.TS,
			ZoneID:     zone.id,
			ActionType: domain.ActionStaffIncrease,
			Before:     "baseline",
			After:      "+1",
			Rationale:  highRationale,
		})
	}
	for _, r := range zone.rows {
		if r.Forecast >= low {
			continue
		}
		hour := utils.FloorHour(r.TS).Unix()
		if staffPerHour[hour] <= -p.MaxDeltaPerHour {
			continue
		}
		staffPerHour[hour]--
		gate.offer(domain.SuggestedAction{
			TS:         r.TS,
			ZoneID:     zone.id,
			ActionType: domain.ActionStaffReduce,
			Before:     "baseline",
			After:      "-1",
			Rationale:  lowRationale,
		})
	}
}

// percent truncates, so 0.29 reads as 28%
func percent(ratio float64) int {
	return int(ratio * 100)
}

// isBlocked reports whether a protected-hours rule for the zone (or ALL)
// covers ts and blocks the action type. Windows compare HH:MM strings
// inclusively.
func isBlocked(ts time.Time, zoneID string, action domain.ActionType, rules []domain.ProtectedHoursRule) bool {
	dow := domain.Weekday(ts)
	clock := ts.Format("15:04")
	for _, r := range rules {
		if r.Dow != dow || (r.ZoneID != zoneID && r.ZoneID != domain.AllZones) {
			continue
		}
		if clock < r.StartTime || clock > r.EndTime {
			continue
		}
		for _, blocked := range strings.Split(r.ActionBlock, ",") {
			blocked = strings.TrimSpace(blocked)
			if blocked == string(action) || blocked == "all" {
				return true
			}
		}
	}
	return false
}

// SuggestFromDir loads forecast_48h, capacity and protected_hours from
// dataDir and evaluates the rules. A missing forecast or capacity table
// yields no actions; a missing protected_hours table means no blackouts.
func (e *RuleEngine) SuggestFromDir(dataDir string, policy domain.PolicyConfig, now time.Time) ([]domain.SuggestedAction, error) {
	forecast, err := csvstore.ReadForecast(filepath.Join(dataDir, csvstore.ForecastFile))
	if errors.Is(err, os.ErrNotExist) {
		log.Warn().Msg("forecast table not found; no actions suggested")
		return []domain.SuggestedAction{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rules: failed to load forecast: %w", err)
	}
	capacity, err := csvstore.ReadCapacity(filepath.Join(dataDir, csvstore.CapacityFile))
	if errors.Is(err, os.ErrNotExist) {
		log.Warn().Msg("capacity table not found; no actions suggested")
		return []domain.SuggestedAction{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rules: failed to load capacity: %w", err)
	}
	protected, err := csvstore.ReadProtectedHours(filepath.Join(dataDir, csvstore.ProtectedHoursFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("rules: failed to load protected hours: %w", err)
	}

	actions := e.Suggest(RuleInput{
		Forecast:  forecast,
		Capacity:  capacity,
		Protected: protected,
		Policy:    policy,
		Now:       now,
	})
	log.Info().Int("actions", len(actions)).Str("mode", policy.ActiveMode).Msg("rules evaluated")
	return actions, nil
}

// RunDir evaluates the rules for dataDir and writes actions_log.csv
func (e *RuleEngine) RunDir(dataDir string, policy domain.PolicyConfig, now time.Time) ([]domain.SuggestedAction, error) {
	actions, err := e.SuggestFromDir(dataDir, policy, now)
	if err != nil {
		return nil, err
	}
	if err := csvstore.WriteActions(filepath.Join(dataDir, csvstore.ActionsFile), actions); err != nil {
		return nil, err
	}
	return actions, nil
}
