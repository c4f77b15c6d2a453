package csvstore

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sportai/fincast/internal/domain"
)

func (t *Table) timestamp(rec []string, col string, row int) (time.Time, error) {
	ts, err := ParseTimestamp(t.Value(rec, col))
	if err != nil {
		return time.Time{}, &domain.ConfigurationError{
			Source: filepath.Base(t.Path),
			Msg:    fmt.Sprintf("row %d", row+2),
			Err:    err,
		}
	}
	return ts, nil
}

// ReadEvents loads an events_hourly table
func ReadEvents(path string) ([]domain.HourlyEvent, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.requireColumns(EventsColumns); err != nil {
		return nil, err
	}
	out := make([]domain.HourlyEvent, 0, t.Len())
	for i, rec := range t.Records {
		ts, err := t.timestamp(rec, "ts", i)
		if err != nil {
			return nil, err
		}
		ev := domain.HourlyEvent{TS: ts, ZoneID: t.Value(rec, "zone_id")}
		if ev.BookedSlots, err = t.floatOrZero(rec, "booked_slots", i); err != nil {
			return nil, err
		}
		if ev.Checkins, err = t.floatOrZero(rec, "checkins", i); err != nil {
			return nil, err
		}
		if ev.EstWalkins, err = t.floatOrZero(rec, "est_walkins", i); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// WriteEvents stores an events_hourly table
func WriteEvents(path string, rows []domain.HourlyEvent) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			FormatTimestamp(r.TS),
			r.ZoneID,
			FormatFloat(r.BookedSlots),
			FormatFloat(r.Checkins),
			FormatFloat(r.EstWalkins),
		})
	}
	return WriteTable(path, EventsColumns, records)
}

// ReadSignals loads a signals_hourly table
func ReadSignals(path string) ([]domain.HourlySignal, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.requireColumns(SignalsColumns); err != nil {
		return nil, err
	}
	out := make([]domain.HourlySignal, 0, t.Len())
	for i, rec := range t.Records {
		ts, err := t.timestamp(rec, "ts", i)
		if err != nil {
			return nil, err
		}
		s := domain.HourlySignal{TS: ts}
		if s.TempF, err = t.floatOrZero(rec, "temp_f", i); err != nil {
			return nil, err
		}
		if s.PrecipProb, err = t.floatOrZero(rec, "precip_prob", i); err != nil {
			return nil, err
		}
		if s.TrafficIdx, err = t.floatOrZero(rec, "traffic_idx", i); err != nil {
			return nil, err
		}
		if s.EventScore, err = t.floatOrZero(rec, "event_score", i); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// WriteSignals stores a signals_hourly table
func WriteSignals(path string, rows []domain.HourlySignal) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			FormatTimestamp(r.TS),
			FormatFloat(r.TempF),
			FormatFloat(r.PrecipProb),
			FormatFloat(r.TrafficIdx),
			FormatFloat(r.EventScore),
		})
	}
	return WriteTable(path, SignalsColumns, records)
}

// ReadCapacity loads a capacity table
func ReadCapacity(path string) ([]domain.ZoneCapacity, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.requireColumns([]string{"zone_id", "max_slots_per_hour"}); err != nil {
		return nil, err
	}
	out := make([]domain.ZoneCapacity, 0, t.Len())
	for i, rec := range t.Records {
		c := domain.ZoneCapacity{
			ZoneID:   t.Value(rec, "zone_id"),
			ZoneName: t.Value(rec, "zone_name"),
			Layout:   t.Value(rec, "layout"),
		}
		if c.SetupMinutes, err = t.floatOrZero(rec, "setup_minutes", i); err != nil {
			return nil, err
		}
		if c.CleanMinutes, err = t.floatOrZero(rec, "clean_minutes", i); err != nil {
			return nil, err
		}
		if c.MaxSlotsPerHour, err = t.floatOrZero(rec, "max_slots_per_hour", i); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// ReadProtectedHours loads a protected_hours table. Blank windows default
// to the whole day.
func ReadProtectedHours(path string) ([]domain.ProtectedHoursRule, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.requireColumns([]string{"zone_id", "dow", "action_block"}); err != nil {
		return nil, err
	}
	out := make([]domain.ProtectedHoursRule, 0, t.Len())
	for i, rec := range t.Records {
		dow, err := strconv.Atoi(t.Value(rec, "dow"))
		if err != nil {
			return nil, &domain.ConfigurationError{
				Source: filepath.Base(path),
				Msg:    fmt.Sprintf("row %d: dow %q is not an integer", i+2, t.Value(rec, "dow")),
			}
		}
		r := domain.ProtectedHoursRule{
			ZoneID:      t.Value(rec, "zone_id"),
			Dow:         dow,
			StartTime:   t.Value(rec, "start_time"),
			EndTime:     t.Value(rec, "end_time"),
			AppliesTo:   t.Value(rec, "applies_to"),
			ActionBlock: t.Value(rec, "action_block"),
		}
		if r.StartTime == "" {
			r.StartTime = "00:00"
		}
		if r.EndTime == "" {
			r.EndTime = "23:59"
		}
		out = append(out, r)
	}
	return out, nil
}

// ReadForecast loads a forecast_48h table
func ReadForecast(path string) ([]domain.Forecast, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.requireColumns(ForecastColumns); err != nil {
		return nil, err
	}
	out := make([]domain.Forecast, 0, t.Len())
	for i, rec := range t.Records {
		ts, err := t.timestamp(rec, "ts", i)
		if err != nil {
			return nil, err
		}
		f := domain.Forecast{TS: ts, ZoneID: t.Value(rec, "zone_id")}
		if f.Forecast, err = t.floatOrZero(rec, "forecast", i); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// WriteForecast stores a forecast_48h table
func WriteForecast(path string, rows []domain.Forecast) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{FormatTimestamp(r.TS), r.ZoneID, FormatFloat(r.Forecast)})
	}
	return WriteTable(path, ForecastColumns, records)
}

// WriteMetrics stores a forecast_metrics table
func WriteMetrics(path string, rows []domain.ForecastMetric) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{r.ZoneID, FormatFloat(r.ValMAE)})
	}
	return WriteTable(path, MetricsColumns, records)
}

// WriteDailyForecast stores the six-week daily projection
func WriteDailyForecast(path string, rows []domain.DailyForecast) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{r.Date.Format(DateLayout), r.ZoneID, FormatFloat(r.ForecastDaily)})
	}
	return WriteTable(path, DailyForecastColumns, records)
}

// WriteActions stores an actions_log table with ISO timestamps
func WriteActions(path string, rows []domain.SuggestedAction) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.TS.UTC().Format(ISOLayout),
			r.ZoneID,
			string(r.ActionType),
			r.Before,
			r.After,
			r.Rationale,
		})
	}
	return WriteTable(path, ActionsColumns, records)
}
