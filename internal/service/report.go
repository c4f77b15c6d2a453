package service

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sportai/fincast/internal/domain"
)

const (
	utilizationWindowHours = 168
	reportActionRows       = 10
)

// ReportInput carries the tables summarized by the ops report
type ReportInput struct {
	RunID       uuid.UUID
	GeneratedAt time.Time
	Events      []domain.HourlyEvent
	Capacity    []domain.ZoneCapacity
	Forecast    []domain.Forecast
	Metrics     []domain.ForecastMetric
	Actions     []domain.SuggestedAction
}

// ReportService renders the one-page Markdown ops report
type ReportService struct {
	dir string
}

// NewReportService creates a report service writing into dir
func NewReportService(dir string) *ReportService {
	return &ReportService{dir: dir}
}

// Write renders the report to <dir>/Ops_Report_YYYYMMDD_HHMM.md and returns its path
func (s *ReportService) Write(in ReportInput) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("report: failed to create %s: %w", s.dir, err)
	}
	name := fmt.Sprintf("Ops_Report_%s.md", in.GeneratedAt.UTC().Format("20060102_1504"))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, []byte(s.Render(in)), 0o644); err != nil {
		return "", fmt.Errorf("report: failed to write %s: %w", path, err)
	}
	return path, nil
}

// Render builds the Markdown document
func (s *ReportService) Render(in ReportInput) string {
	var b strings.Builder
	b.WriteString("# SportAI FinCast: Ops Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n", in.GeneratedAt.UTC().Format("2006-01-02 15:04 UTC"))
	if in.RunID != uuid.Nil {
		fmt.Fprintf(&b, "Run: %s\n", in.RunID)
	}

	b.WriteString("\n## Key KPIs\n\n")
	if zone, util, ok := primaryZoneUtilization(in.Events, in.Capacity); ok {
		fmt.Fprintf(&b, "- Zone: %s\n", zone)
		fmt.Fprintf(&b, "- 7d Utilization Zone: %.1f%%\n", util*100)
	}
	fmt.Fprintf(&b, "- Suggested Actions 48h: %d\n", len(in.Actions))

	b.WriteString("\n## 48h Forecast by Zone\n\n")
	peaks := forecastPeaks(in.Forecast)
	if len(peaks) == 0 {
		b.WriteString("No forecast available.\n")
	} else {
		mae := make(map[string]float64, len(in.Metrics))
		for _, m := range in.Metrics {
			mae[m.ZoneID] = m.ValMAE
		}
		b.WriteString("| Zone | Peak hour | Peak | 48h total | Val MAE |\n")
		b.WriteString("|------|-----------|------|-----------|---------|\n")
		for _, p := range peaks {
			maeText := "n/a"
			if v, ok := mae[p.zone]; ok && !math.IsNaN(v) {
				maeText = fmt.Sprintf("%.2f", v)
			}
			fmt.Fprintf(&b, "| %s | %s | %.1f | %.1f | %s |\n",
				p.zone, p.peakTS.UTC().Format("01-02 15:04"), p.peak, p.total, maeText)
		}
	}

	b.WriteString("\n## Upcoming Suggested Actions\n\n")
	if len(in.Actions) == 0 {
		b.WriteString("No actions available.\n")
		return b.String()
	}
	actions := make([]domain.SuggestedAction, len(in.Actions))
	copy(actions, in.Actions)
	sort.SliceStable(actions, func(i, j int) bool { return actions[i].TS.Before(actions[j].TS) })
	if len(actions) > reportActionRows {
		actions = actions[:reportActionRows]
	}
	b.WriteString("| When | Zone | Action | Change | Rationale |\n")
	b.WriteString("|------|------|--------|--------|-----------|\n")
	for _, a := range actions {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			a.TS.UTC().Format("01-02 15:04"), a.ZoneID, a.ActionType, a.After, a.Rationale)
	}
	return b.String()
}

// primaryZoneUtilization returns the alphabetically first zone and its
// booked share of capacity over its last week of rows
func primaryZoneUtilization(events []domain.HourlyEvent, capacity []domain.ZoneCapacity) (string, float64, bool) {
	if len(events) == 0 {
		return "", 0, false
	}
	zone := events[0].ZoneID
	for _, ev := range events {
		if ev.ZoneID < zone {
			zone = ev.ZoneID
		}
	}
	var rows []domain.HourlyEvent
	for _, ev := range events {
		if ev.ZoneID == zone {
			rows = append(rows, ev)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TS.Before(rows[j].TS) })
	if len(rows) > utilizationWindowHours {
		rows = rows[len(rows)-utilizationWindowHours:]
	}

	var maxSlots float64
	for _, c := range capacity {
		if c.ZoneID == zone {
			maxSlots = c.MaxSlotsPerHour
			break
		}
	}
	if maxSlots <= 0 {
		return zone, 0, true
	}
	var booked float64
	for _, r := range rows {
		booked += r.BookedSlots
	}
	return zone, booked / (float64(len(rows)) * maxSlots), true
}

type zonePeak struct {
	zone   string
	peakTS time.Time
	peak   float64
	total  float64
}

func forecastPeaks(forecast []domain.Forecast) []zonePeak {
	byZone := make(map[string]*zonePeak)
	for _, f := range forecast {
		p, ok := byZone[f.ZoneID]
		if !ok {
			p = &zonePeak{zone: f.ZoneID, peak: math.Inf(-1)}
			byZone[f.ZoneID] = p
		}
		p.total += f.Forecast
		if f.Forecast > p.peak {
			p.peak = f.Forecast
			p.peakTS = f.TS
		}
	}
	out := make([]zonePeak, 0, len(byZone))
	for _, p := range byZone {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].zone < out[j].zone })
	return out
}
