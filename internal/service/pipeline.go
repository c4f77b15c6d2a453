package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sportai/fincast/internal/config"
	"github.com/sportai/fincast/internal/domain"
	"github.com/sportai/fincast/internal/repository/csvstore"
)

// RunObserver receives the outcome of a finished run
type RunObserver interface {
	ObserveRun(res *domain.RunResult) error
}

// RunOptions selects the inputs and optional stages of a run
type RunOptions struct {
	DataDir string
	// SourceCSV enables the import stage
	SourceCSV   string
	MappingPath string
	Timezone    string
	// Lat, Lon, StartDate and EndDate together enable the signals stage
	Lat            *float64
	Lon            *float64
	StartDate      string
	EndDate        string
	LocalEventsCSV string
	PolicyPath     string
	MakeReport     bool
	Now            time.Time
}

func (o RunOptions) mappingPath() string {
	if o.MappingPath != "" {
		return o.MappingPath
	}
	return filepath.Join(o.DataDir, "mappings", "sportskey_map.json")
}

func (o RunOptions) policyPath() string {
	if o.PolicyPath != "" {
		return o.PolicyPath
	}
	return config.PolicyPath(o.DataDir)
}

// PipelineSinks are optional destinations for run outputs. Nil fields are skipped.
type PipelineSinks struct {
	Report    *ReportService
	Repo      ResultRepository
	Publisher ActionPublisher
	Observer  RunObserver
}

// PipelineService runs validation, import, signals, forecast and rules in order
type PipelineService struct {
	validator  *Validator
	signals    *SignalLoader
	forecaster *ForecastService
	rules      *RuleEngine
	sinks      PipelineSinks
}

// NewPipelineService creates a new pipeline service
func NewPipelineService(
	validator *Validator,
	signals *SignalLoader,
	forecaster *ForecastService,
	rules *RuleEngine,
	sinks PipelineSinks,
) *PipelineService {
	return &PipelineService{
		validator:  validator,
		signals:    signals,
		forecaster: forecaster,
		rules:      rules,
		sinks:      sinks,
	}
}

// Run executes every enabled stage. A failing stage is recorded in the step
// log and the run continues with whatever inputs remain; only context
// cancellation aborts the run.
func (s *PipelineService) Run(ctx context.Context, opts RunOptions) (*domain.RunResult, error) {
	res := &domain.RunResult{RunID: uuid.New(), StartedAt: time.Now().UTC()}
	if opts.Now.IsZero() {
		opts.Now = res.StartedAt
	}
	logger := log.With().Str("run_id", res.RunID.String()).Logger()
	logger.Info().Str("data_dir", opts.DataDir).Msg("pipeline started")

	if _, err := s.validator.Validate(opts.DataDir); err != nil {
		res.Fail("Validation", err)
		logger.Warn().Err(err).Msg("validation failed; continuing")
	} else {
		res.Step("Validation: OK")
	}

	if opts.SourceCSV != "" {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		s.importBookings(res, opts)
	}

	if opts.Lat != nil && opts.Lon != nil && opts.StartDate != "" && opts.EndDate != "" {
		out := filepath.Join(opts.DataDir, csvstore.SignalsFile)
		_, err := s.signals.BuildCSV(ctx, SignalRequest{
			Lat:            *opts.Lat,
			Lon:            *opts.Lon,
			StartDate:      opts.StartDate,
			EndDate:        opts.EndDate,
			LocalEventsCSV: opts.LocalEventsCSV,
		}, out)
		if err != nil {
			res.Fail("Signals", err)
			logger.Error().Err(err).Msg("signals stage failed")
		} else {
			res.Step("Signals built → " + csvstore.SignalsFile)
		}
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	fc, err := s.forecaster.Run(ctx, opts.DataDir)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Fail("Forecast", err)
		logger.Error().Err(err).Msg("forecast stage failed")
	} else {
		res.Forecast = fc
		res.Step("Forecast generated")
	}

	s.suggest(res, opts, logger)
	s.deliver(ctx, res, opts)

	logger.Info().Strs("steps", res.Steps).Msg("pipeline finished")
	return res, nil
}

func (s *PipelineService) importBookings(res *domain.RunResult, opts RunOptions) {
	mapping, err := config.LoadMapping(opts.mappingPath())
	if err != nil {
		res.Fail("Import", err)
		return
	}
	out := filepath.Join(opts.DataDir, csvstore.EventsFile)
	if _, err := NewImporter(mapping).ImportFile(opts.SourceCSV, out, opts.Timezone); err != nil {
		res.Fail("Import", err)
		return
	}
	res.Step("Imported bookings → " + csvstore.EventsFile)
}

func (s *PipelineService) suggest(res *domain.RunResult, opts RunOptions, logger zerolog.Logger) {
	policy, err := config.LoadPolicy(opts.policyPath())
	if err != nil {
		logger.Warn().Err(err).Msg("policy unreadable; using defaults")
		policy = domain.DefaultPolicy()
	}
	if res.Forecast == nil {
		path := filepath.Join(opts.DataDir, csvstore.ForecastFile)
		if info, err := os.Stat(path); err == nil && info.ModTime().Before(res.StartedAt) {
			logger.Warn().Str("path", path).Msg("forecast table predates this run; suggestions skipped")
			res.Fail("Suggestions", fmt.Errorf("%s predates this run", csvstore.ForecastFile))
			return
		}
	}
	actions, err := s.rules.RunDir(opts.DataDir, policy, opts.Now)
	if err != nil {
		res.Fail("Suggestions", err)
		return
	}
	res.Actions = actions
	res.Step(fmt.Sprintf("Suggestions written → %s (%d rows)", csvstore.ActionsFile, len(actions)))
}

func (s *PipelineService) deliver(ctx context.Context, res *domain.RunResult, opts RunOptions) {
	if opts.MakeReport && s.sinks.Report != nil {
		path, err := s.sinks.Report.Write(s.reportInput(res, opts))
		if err != nil {
			res.Fail("Ops report", err)
		} else {
			res.ReportPath = path
			res.Step("Ops report → " + filepath.Base(path))
		}
	}

	if s.sinks.Repo != nil && res.Forecast != nil {
		if err := s.persist(ctx, res); err != nil {
			res.Fail("Persist", err)
		} else {
			res.Step("Results persisted → postgres")
		}
	}

	if s.sinks.Publisher != nil && len(res.Actions) > 0 {
		if err := s.sinks.Publisher.PublishActions(ctx, res.RunID, res.Actions); err != nil {
			res.Fail("Publish", err)
		} else {
			res.Step(fmt.Sprintf("Actions published → kafka (%d messages)", len(res.Actions)))
		}
	}

	if s.sinks.Observer != nil {
		if err := s.sinks.Observer.ObserveRun(res); err != nil {
			res.Fail("Metrics", err)
		} else {
			res.Step("Metrics written")
		}
	}
}

func (s *PipelineService) persist(ctx context.Context, res *domain.RunResult) error {
	if err := s.sinks.Repo.SaveForecast(ctx, res.RunID, res.Forecast.Forecast); err != nil {
		return err
	}
	if err := s.sinks.Repo.SaveMetrics(ctx, res.RunID, res.Forecast.Metrics); err != nil {
		return err
	}
	return s.sinks.Repo.SaveActions(ctx, res.RunID, res.Actions)
}

func (s *PipelineService) reportInput(res *domain.RunResult, opts RunOptions) ReportInput {
	in := ReportInput{RunID: res.RunID, GeneratedAt: time.Now().UTC(), Actions: res.Actions}
	if res.Forecast != nil {
		in.Forecast = res.Forecast.Forecast
		in.Metrics = res.Forecast.Metrics
	}
	if events, err := csvstore.ReadEvents(filepath.Join(opts.DataDir, csvstore.EventsFile)); err == nil {
		in.Events = events
	}
	if capacity, err := csvstore.ReadCapacity(filepath.Join(opts.DataDir, csvstore.CapacityFile)); err == nil {
		in.Capacity = capacity
	}
	return in
}
