package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sportai/fincast/internal/domain"
	"github.com/sportai/fincast/internal/repository/csvstore"
	"github.com/sportai/fincast/pkg/utils"
)

// SignalRequest describes the exogenous series to build
type SignalRequest struct {
	Lat            float64
	Lon            float64
	StartDate      string
	EndDate        string
	LocalEventsCSV string
}

func (r SignalRequest) validate() error {
	if math.IsNaN(r.Lat) || r.Lat < -90 || r.Lat > 90 {
		return &domain.ConfigurationError{Source: "signals", Msg: fmt.Sprintf("latitude %v out of range", r.Lat)}
	}
	if math.IsNaN(r.Lon) || r.Lon < -180 || r.Lon > 180 {
		return &domain.ConfigurationError{Source: "signals", Msg: fmt.Sprintf("longitude %v out of range", r.Lon)}
	}
	start, err := time.Parse(csvstore.DateLayout, r.StartDate)
	if err != nil {
		return &domain.ConfigurationError{Source: "signals", Msg: "start date must be YYYY-MM-DD", Err: err}
	}
	end, err := time.Parse(csvstore.DateLayout, r.EndDate)
	if err != nil {
		return &domain.ConfigurationError{Source: "signals", Msg: "end date must be YYYY-MM-DD", Err: err}
	}
	if end.Before(start) {
		return &domain.ConfigurationError{Source: "signals", Msg: "end date is before start date"}
	}
	return nil
}

// SignalLoader combines weather, traffic and local events into the hourly
// signals table
type SignalLoader struct {
	weatherSvc *WeatherService
	trafficSvc *TrafficService
}

// NewSignalLoader creates a new signal loader
func NewSignalLoader(weatherSvc *WeatherService, trafficSvc *TrafficService) *SignalLoader {
	return &SignalLoader{weatherSvc: weatherSvc, trafficSvc: trafficSvc}
}

// Build fetches weather for the request and overlays traffic and local
// event scores. Rows are sorted by ts.
func (l *SignalLoader) Build(ctx context.Context, req SignalRequest) ([]domain.HourlySignal, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	readings, err := l.weatherSvc.GetHourly(ctx, req.Lat, req.Lon, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	var scores map[int64]float64
	if req.LocalEventsCSV != "" {
		events, err := LoadLocalEvents(req.LocalEventsCSV)
		if err != nil {
			return nil, err
		}
		scores = hourlyEventScores(events)
	}

	out := make([]domain.HourlySignal, 0, len(readings))
	for _, r := range readings {
		out = append(out, domain.HourlySignal{
			TS:         r.TS,
			TempF:      r.TempF,
			PrecipProb: r.PrecipProb,
			TrafficIdx: l.trafficSvc.Index(r.TS),
			EventScore: scores[r.TS.Unix()],
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TS.Before(out[j].TS) })

	log.Info().
		Int("hours", len(out)).
		Str("start", req.StartDate).
		Str("end", req.EndDate).
		Msg("signals built")
	return out, nil
}

// BuildCSV runs Build and writes the result to outPath
func (l *SignalLoader) BuildCSV(ctx context.Context, req SignalRequest, outPath string) ([]domain.HourlySignal, error) {
	rows, err := l.Build(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := csvstore.WriteSignals(outPath, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// LoadLocalEvents reads a local events overlay
// (date,start_time,end_time,event_score,notes). Rows that do not parse are
// skipped. A missing file yields no events.
func LoadLocalEvents(path string) ([]domain.LocalEvent, error) {
	t, err := csvstore.ReadTable(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("path", path).Msg("local events file not found")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []domain.LocalEvent
	for i, rec := range t.Records {
		ev, err := parseLocalEvent(t, rec)
		if err != nil {
			log.Warn().Int("row", i+2).Err(err).Msg("skipping local event")
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func parseLocalEvent(t *csvstore.Table, rec []string) (domain.LocalEvent, error) {
	day, err := time.ParseInLocation(csvstore.DateLayout, t.Value(rec, "date"), time.UTC)
	if err != nil {
		return domain.LocalEvent{}, fmt.Errorf("bad date: %w", err)
	}
	start, err := clockOffset(t.Value(rec, "start_time"), "00:00")
	if err != nil {
		return domain.LocalEvent{}, err
	}
	end, err := clockOffset(t.Value(rec, "end_time"), "23:59")
	if err != nil {
		return domain.LocalEvent{}, err
	}
	score, _, err := t.Float(rec, "event_score")
	if err != nil {
		return domain.LocalEvent{}, err
	}
	return domain.LocalEvent{
		Start: day.Add(start),
		End:   day.Add(end),
		Score: math.Trunc(score),
		Notes: t.Value(rec, "notes"),
	}, nil
}

func clockOffset(s, def string) (time.Duration, error) {
	if s == "" {
		s = def
	}
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("bad clock time %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock time %q out of range", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// hourlyEventScores expands events into hour buckets from the hour floor of
// the start through the end, inclusive, keyed by Unix seconds. Overlapping
// events keep the highest score.
func hourlyEventScores(events []domain.LocalEvent) map[int64]float64 {
	scores := make(map[int64]float64)
	for _, ev := range events {
		for cur := utils.FloorHour(ev.Start); !cur.After(ev.End); cur = cur.Add(time.Hour) {
			if ev.Score > scores[cur.Unix()] {
				scores[cur.Unix()] = ev.Score
			}
		}
	}
	return scores
}
