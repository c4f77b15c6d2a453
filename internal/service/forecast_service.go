package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/sportai/fincast/internal/domain"
	"github.com/sportai/fincast/internal/gbm"
	"github.com/sportai/fincast/internal/repository/csvstore"
	"github.com/sportai/fincast/pkg/utils"
)

// FeatureNames lists model inputs in column order
var FeatureNames = []string{
	"hour", "dow", "is_weekend",
	"temp_f", "precip_prob", "traffic_idx", "event_score",
	"lag_1", "lag_2", "lag_24", "rolling_24",
}

const (
	featHour = iota
	featDow
	featWeekend
	featTemp
	featPrecip
	featTraffic
	featEvent
	featLag1
	featLag2
	featLag24
	featRolling24
	numFeatures
)

// Regressor is the per-zone model contract
type Regressor interface {
	Fit(x [][]float64, y []float64) error
	Predict(x []float64) float64
}

// ForecastOptions tunes the forecast engine
type ForecastOptions struct {
	Horizon         int
	ValidationHours int
	MinTrainRows    int
	ProjectionDays  int
	Workers         int
	// Recursive feeds each prediction back into the lag features of the
	// next hour and uses known future signals.
	Recursive bool
}

// DefaultForecastOptions returns a 48h horizon, 72h hold-out, 48 training
// rows minimum and a 42 day projection
func DefaultForecastOptions() ForecastOptions {
	return ForecastOptions{
		Horizon:         48,
		ValidationHours: 72,
		MinTrainRows:    48,
		ProjectionDays:  42,
		Workers:         4,
	}
}

// ForecastService trains one model per zone and forecasts booked slots
type ForecastService struct {
	opts     ForecastOptions
	newModel func() Regressor
}

// NewForecastService creates a new forecast service. A nil newModel uses
// the gradient-boosted tree ensemble.
func NewForecastService(opts ForecastOptions, newModel func() Regressor) *ForecastService {
	if newModel == nil {
		newModel = func() Regressor { return gbm.New() }
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &ForecastService{opts: opts, newModel: newModel}
}

type featureRow struct {
	ts     time.Time
	x      [numFeatures]float64
	target float64
}

type zoneSeries struct {
	zone string
	rows []featureRow
}

type zoneOutcome struct {
	forecast []domain.Forecast
	metric   *domain.ForecastMetric
	skipped  bool
}

// Forecast trains per-zone models on events joined with signals and returns
// the 48h forecast, validation metrics and the daily projection
func (s *ForecastService) Forecast(ctx context.Context, events []domain.HourlyEvent, signals []domain.HourlySignal) (*domain.ForecastResult, error) {
	if len(events) == 0 {
		return nil, &domain.ConfigurationError{Source: "forecast", Msg: "no events to train on"}
	}

	bySignalTS := make(map[int64]domain.HourlySignal, len(signals))
	for _, sig := range signals {
		bySignalTS[sig.TS.Unix()] = sig
	}

	series, lastTS := buildZoneSeries(events, bySignalTS)
	split := lastTS.Add(-time.Duration(s.opts.ValidationHours) * time.Hour)

	outcomes := make([]zoneOutcome, len(series))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i := range series {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := s.forecastZone(series[i], split, lastTS, bySignalTS)
			if err != nil {
				return fmt.Errorf("forecast: zone %s: %w", series[i].zone, err)
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &domain.ForecastResult{}
	for i, out := range outcomes {
		if out.skipped {
			result.Skipped = append(result.Skipped, series[i].zone)
			continue
		}
		result.Forecast = append(result.Forecast, out.forecast...)
		result.Metrics = append(result.Metrics, *out.metric)
	}
	result.Daily = dailyProjection(result.Forecast, lastTS, s.opts.ProjectionDays)

	log.Info().
		Int("zones", len(series)).
		Int("trained", len(result.Metrics)).
		Int("skipped", len(result.Skipped)).
		Time("last_ts", lastTS).
		Msg("forecast generated")
	return result, nil
}

// Run reads the events and signals tables from dataDir, forecasts and
// writes forecast_48h, forecast_metrics and forecast_6weeks_daily
func (s *ForecastService) Run(ctx context.Context, dataDir string) (*domain.ForecastResult, error) {
	events, err := csvstore.ReadEvents(filepath.Join(dataDir, csvstore.EventsFile))
	if err != nil {
		return nil, &domain.ConfigurationError{Source: "forecast", Msg: "cannot load events", Err: err}
	}
	signals, err := csvstore.ReadSignals(filepath.Join(dataDir, csvstore.SignalsFile))
	if errors.Is(err, os.ErrNotExist) {
		log.Warn().Msg("signals table not found; exogenous features set to 0")
	} else if err != nil {
		return nil, &domain.ConfigurationError{Source: "forecast", Msg: "cannot load signals", Err: err}
	}

	result, err := s.Forecast(ctx, events, signals)
	if err != nil {
		return nil, err
	}
	if err := csvstore.WriteForecast(filepath.Join(dataDir, csvstore.ForecastFile), result.Forecast); err != nil {
		return nil, err
	}
	if err := csvstore.WriteMetrics(filepath.Join(dataDir, csvstore.MetricsFile), result.Metrics); err != nil {
		return nil, err
	}
	if err := csvstore.WriteDailyForecast(filepath.Join(dataDir, csvstore.DailyForecastFile), result.Daily); err != nil {
		return nil, err
	}
	return result, nil
}

// buildZoneSeries groups events by zone (sorted ids, rows sorted by ts) and
// derives calendar, signal, lag and rolling features. It also returns the
// latest event timestamp across all zones.
func buildZoneSeries(events []domain.HourlyEvent, signals map[int64]domain.HourlySignal) ([]zoneSeries, time.Time) {
	sorted := make([]domain.HourlyEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ZoneID != sorted[j].ZoneID {
			return sorted[i].ZoneID < sorted[j].ZoneID
		}
		return sorted[i].TS.Before(sorted[j].TS)
	})

	var (
		out    []zoneSeries
		lastTS time.Time
	)
	for start := 0; start < len(sorted); {
		end := start
		for end < len(sorted) && sorted[end].ZoneID == sorted[start].ZoneID {
			end++
		}
		group := sorted[start:end]
		zs := zoneSeries{zone: group[0].ZoneID, rows: make([]featureRow, len(group))}
		targets := make([]float64, len(group))
		for i, ev := range group {
			targets[i] = ev.BookedSlots
			if ev.TS.After(lastTS) {
				lastTS = ev.TS
			}
		}
		for i, ev := range group {
			row := featureRow{ts: ev.TS, target: ev.BookedSlots}
			setCalendar(&row.x, ev.TS)
			setSignal(&row.x, signals[ev.TS.Unix()])
			row.x[featLag1] = lagAt(targets, i, 1)
			row.x[featLag2] = lagAt(targets, i, 2)
			row.x[featLag24] = lagAt(targets, i, 24)
			row.x[featRolling24] = utils.Mean(targets[max(0, i-23) : i+1])
			zs.rows[i] = row
		}
		out = append(out, zs)
		start = end
	}
	return out, lastTS
}

func setCalendar(x *[numFeatures]float64, ts time.Time) {
	dow := domain.Weekday(ts)
	x[featHour] = float64(ts.Hour())
	x[featDow] = float64(dow)
	x[featWeekend] = 0
	if dow >= 5 {
		x[featWeekend] = 1
	}
}

func setSignal(x *[numFeatures]float64, sig domain.HourlySignal) {
	x[featTemp] = sig.TempF
	x[featPrecip] = sig.PrecipProb
	x[featTraffic] = sig.TrafficIdx
	x[featEvent] = sig.EventScore
}

func lagAt(values []float64, i, k int) float64 {
	if i-k < 0 {
		return 0
	}
	return values[i-k]
}

func (s *ForecastService) forecastZone(zs zoneSeries, split, lastTS time.Time, signals map[int64]domain.HourlySignal) (zoneOutcome, error) {
	var trainX [][]float64
	var trainY []float64
	var valid []featureRow
	for i := range zs.rows {
		r := &zs.rows[i]
		if r.ts.After(split) {
			valid = append(valid, *r)
			continue
		}
		trainX = append(trainX, r.x[:])
		trainY = append(trainY, r.target)
	}
	if len(trainX) < s.opts.MinTrainRows {
		log.Info().Str("zone", zs.zone).Int("train_rows", len(trainX)).Msg("insufficient history; zone skipped")
		return zoneOutcome{skipped: true}, nil
	}

	model := s.newModel()
	if err := model.Fit(trainX, trainY); err != nil {
		return zoneOutcome{}, err
	}

	mae := math.NaN()
	if len(valid) > 0 {
		errs := make([]float64, len(valid))
		for i, r := range valid {
			errs[i] = math.Abs(r.target - model.Predict(r.x[:]))
		}
		mae = stat.Mean(errs, nil)
	}

	var forecast []domain.Forecast
	if s.opts.Recursive {
		forecast = s.forecastRecursive(model, zs, lastTS, signals)
	} else {
		forecast = s.forecastCarryForward(model, zs, lastTS)
	}

	log.Debug().Str("zone", zs.zone).Int("train_rows", len(trainX)).Float64("val_mae", mae).Msg("zone trained")
	return zoneOutcome{
		forecast: forecast,
		metric:   &domain.ForecastMetric{ZoneID: zs.zone, ValMAE: mae},
	}, nil
}

// forecastCarryForward keeps the zone's last known features and only
// advances the calendar features
func (s *ForecastService) forecastCarryForward(model Regressor, zs zoneSeries, lastTS time.Time) []domain.Forecast {
	base := zs.rows[len(zs.rows)-1].x
	out := make([]domain.Forecast, 0, s.opts.Horizon)
	for h := 1; h <= s.opts.Horizon; h++ {
		ts := lastTS.Add(time.Duration(h) * time.Hour)
		x := base
		setCalendar(&x, ts)
		out = append(out, domain.Forecast{
			TS:       ts,
			ZoneID:   zs.zone,
			Forecast: utils.Clamp(model.Predict(x[:]), 0, math.Inf(1)),
		})
	}
	return out
}

func (s *ForecastService) forecastRecursive(model Regressor, zs zoneSeries, lastTS time.Time, signals map[int64]domain.HourlySignal) []domain.Forecast {
	base := zs.rows[len(zs.rows)-1].x
	history := make([]float64, len(zs.rows), len(zs.rows)+s.opts.Horizon)
	for i, r := range zs.rows {
		history[i] = r.target
	}

	out := make([]domain.Forecast, 0, s.opts.Horizon)
	for h := 1; h <= s.opts.Horizon; h++ {
		ts := lastTS.Add(time.Duration(h) * time.Hour)
		x := base
		setCalendar(&x, ts)
		if sig, ok := signals[ts.Unix()]; ok {
			setSignal(&x, sig)
		}
		n := len(history)
		x[featLag1] = lagAt(history, n, 1)
		x[featLag2] = lagAt(history, n, 2)
		x[featLag24] = lagAt(history, n, 24)
		x[featRolling24] = utils.Mean(history[max(0, n-24):])

		yhat := utils.Clamp(model.Predict(x[:]), 0, math.Inf(1))
		history = append(history, yhat)
		out = append(out, domain.Forecast{TS: ts, ZoneID: zs.zone, Forecast: yhat})
	}
	return out
}

// dailyProjection repeats each zone's mean daily forecast total for the
// days following lastTS's date
func dailyProjection(forecast []domain.Forecast, lastTS time.Time, days int) []domain.DailyForecast {
	type zoneDays struct {
		order []string
		sums  map[string]float64
	}
	byZone := make(map[string]*zoneDays)
	var zones []string
	for _, f := range forecast {
		zd, ok := byZone[f.ZoneID]
		if !ok {
			zd = &zoneDays{sums: make(map[string]float64)}
			byZone[f.ZoneID] = zd
			zones = append(zones, f.ZoneID)
		}
		day := f.TS.UTC().Format(csvstore.DateLayout)
		if _, seen := zd.sums[day]; !seen {
			zd.order = append(zd.order, day)
		}
		zd.sums[day] += f.Forecast
	}

	today := utils.FloorDay(lastTS.UTC())
	out := make([]domain.DailyForecast, 0, len(zones)*days)
	for _, z := range zones {
		zd := byZone[z]
		totals := make([]float64, 0, len(zd.order))
		for _, day := range zd.order {
			totals = append(totals, zd.sums[day])
		}
		avg := stat.Mean(totals, nil)
		for d := 1; d <= days; d++ {
			out = append(out, domain.DailyForecast{
				Date:          today.AddDate(0, 0, d),
				ZoneID:        z,
				ForecastDaily: avg,
			})
		}
	}
	return out
}
