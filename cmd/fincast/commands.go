package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/sportai/fincast/internal/config"
	"github.com/sportai/fincast/internal/domain"
	"github.com/sportai/fincast/internal/observability"
	"github.com/sportai/fincast/internal/repository/csvstore"
	"github.com/sportai/fincast/internal/repository/kafkabus"
	"github.com/sportai/fincast/internal/repository/postgres"
	"github.com/sportai/fincast/internal/service"
)

// =============================================================================
// VALIDATE
// =============================================================================

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Check the input tables of the data directory",
		Action: func(c *cli.Context) error {
			report, err := service.NewValidator().Validate(c.String("data-dir"))
			if err != nil {
				return err
			}
			for _, w := range report.Warnings {
				fmt.Printf("Warning: %s\n", w)
			}
			fmt.Println("Validation: OK")
			return nil
		},
	}
}

// =============================================================================
// IMPORT
// =============================================================================

func importCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Convert a booking export into events_hourly.csv",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "in", Usage: "Booking export CSV", Required: true},
			&cli.StringFlag{Name: "out", Usage: "Output path (default <data-dir>/events_hourly.csv)"},
			&cli.StringFlag{Name: "map", Usage: "Column mapping document (default <data-dir>/mappings/sportskey_map.json)"},
			&cli.StringFlag{Name: "tz", Value: cfg.Timezone, Usage: "Facility time zone", EnvVars: []string{"FINCAST_TIMEZONE"}},
		},
		Action: func(c *cli.Context) error {
			dataDir := c.String("data-dir")
			mapPath := c.String("map")
			if mapPath == "" {
				mapPath = filepath.Join(dataDir, "mappings", "sportskey_map.json")
			}
			mapping, err := config.LoadMapping(mapPath)
			if err != nil {
				return err
			}
			out := c.String("out")
			if out == "" {
				out = filepath.Join(dataDir, csvstore.EventsFile)
			}
			events, err := service.NewImporter(mapping).ImportFile(c.String("in"), out, c.String("tz"))
			if err != nil {
				return err
			}
			fmt.Printf("Wrote %s (%d rows)\n", out, len(events))
			return nil
		},
	}
}

// =============================================================================
// SIGNALS
// =============================================================================

func signalsCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "signals",
		Usage: "Build signals_hourly.csv from Open-Meteo and local events",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "lat", Usage: "Facility latitude", Required: true},
			&cli.Float64Flag{Name: "lon", Usage: "Facility longitude", Required: true},
			&cli.StringFlag{Name: "start", Usage: "First date (YYYY-MM-DD)", Required: true},
			&cli.StringFlag{Name: "end", Usage: "Last date (YYYY-MM-DD)", Required: true},
			&cli.StringFlag{Name: "events", Usage: "Optional local_events.csv (date,start_time,end_time,event_score)"},
			&cli.StringFlag{Name: "out", Usage: "Output path (default <data-dir>/signals_hourly.csv)"},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signalContext(c.Context)
			defer stop()

			out := c.String("out")
			if out == "" {
				out = filepath.Join(c.String("data-dir"), csvstore.SignalsFile)
			}
			signals, err := newSignalLoader(cfg).BuildCSV(ctx, service.SignalRequest{
				Lat:            c.Float64("lat"),
				Lon:            c.Float64("lon"),
				StartDate:      c.String("start"),
				EndDate:        c.String("end"),
				LocalEventsCSV: c.String("events"),
			}, out)
			if err != nil {
				return err
			}
			fmt.Printf("Wrote %s (%d rows)\n", out, len(signals))
			return nil
		},
	}
}

// =============================================================================
// FORECAST
// =============================================================================

func forecastFlags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "recursive", Usage: "Feed predictions back into lag features"},
		&cli.IntFlag{Name: "workers", Value: cfg.Workers, Usage: "Zones trained in parallel", EnvVars: []string{"FINCAST_WORKERS"}},
	}
}

func newForecastService(c *cli.Context) *service.ForecastService {
	opts := service.DefaultForecastOptions()
	opts.Recursive = c.Bool("recursive")
	opts.Workers = c.Int("workers")
	return service.NewForecastService(opts, nil)
}

func forecastCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "forecast",
		Usage: "Train per-zone models and write the 48h forecast",
		Flags: forecastFlags(cfg),
		Action: func(c *cli.Context) error {
			ctx, stop := signalContext(c.Context)
			defer stop()

			result, err := newForecastService(c).Run(ctx, c.String("data-dir"))
			if err != nil {
				return err
			}
			for _, m := range result.Metrics {
				fmt.Printf("%s val_MAE=%.3f\n", m.ZoneID, m.ValMAE)
			}
			for _, zone := range result.Skipped {
				fmt.Printf("%s skipped: insufficient history\n", zone)
			}
			fmt.Printf("Wrote %s (%d rows)\n", csvstore.ForecastFile, len(result.Forecast))
			return nil
		},
	}
}

// =============================================================================
// SUGGEST
// =============================================================================

func suggestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "policy", Usage: "Policy document (default <data-dir>/policies.json or policies.yaml)"},
		&cli.StringFlag{Name: "now", Usage: "Reference time for notice windows, UTC (default current time)"},
	}
}

func parseNow(c *cli.Context) (time.Time, error) {
	if s := c.String("now"); s != "" {
		t, err := csvstore.ParseTimestamp(s)
		if err != nil {
			return time.Time{}, &domain.ConfigurationError{Source: "--now", Msg: "invalid timestamp", Err: err}
		}
		return t, nil
	}
	return time.Now().UTC(), nil
}

func suggestCommand() *cli.Command {
	return &cli.Command{
		Name:  "suggest",
		Usage: "Evaluate the rules against the forecast and write actions_log.csv",
		Flags: suggestFlags(),
		Action: func(c *cli.Context) error {
			dataDir := c.String("data-dir")
			policyPath := c.String("policy")
			if policyPath == "" {
				policyPath = config.PolicyPath(dataDir)
			}
			policy, err := config.LoadPolicy(policyPath)
			if err != nil {
				return err
			}
			now, err := parseNow(c)
			if err != nil {
				return err
			}
			actions, err := service.NewRuleEngine().RunDir(dataDir, policy, now)
			if err != nil {
				return err
			}
			fmt.Printf("Wrote %s (%d rows)\n", csvstore.ActionsFile, len(actions))
			return nil
		},
	}
}

// =============================================================================
// RUN
// =============================================================================

func runCommand(cfg *config.Config) *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "in", Usage: "Booking export CSV; enables the import stage"},
		&cli.StringFlag{Name: "map", Usage: "Column mapping document"},
		&cli.StringFlag{Name: "tz", Value: cfg.Timezone, Usage: "Facility time zone", EnvVars: []string{"FINCAST_TIMEZONE"}},
		&cli.Float64Flag{Name: "lat", Usage: "Facility latitude; with --lon, --start and --end enables the signals stage"},
		&cli.Float64Flag{Name: "lon", Usage: "Facility longitude"},
		&cli.StringFlag{Name: "start", Usage: "First signals date (YYYY-MM-DD)"},
		&cli.StringFlag{Name: "end", Usage: "Last signals date (YYYY-MM-DD)"},
		&cli.StringFlag{Name: "events", Usage: "Optional local_events.csv"},
		&cli.BoolFlag{Name: "report", Usage: "Write a Markdown ops report"},
		&cli.StringFlag{Name: "report-dir", Value: cfg.ReportDir, Usage: "Ops report directory", EnvVars: []string{"FINCAST_REPORT_DIR"}},
		&cli.StringFlag{Name: "database-url", Value: cfg.DatabaseURL, Usage: "Postgres URL for the results mirror", EnvVars: []string{"DATABASE_URL"}},
		&cli.StringSliceFlag{Name: "kafka-brokers", Value: cli.NewStringSlice(cfg.KafkaBrokers...), Usage: "Kafka brokers for the action feed", EnvVars: []string{"KAFKA_BROKERS"}},
		&cli.StringFlag{Name: "kafka-topic", Value: cfg.KafkaActionsTopic, Usage: "Kafka topic for the action feed", EnvVars: []string{"KAFKA_ACTIONS_TOPIC"}},
		&cli.StringFlag{Name: "metrics-file", Value: cfg.MetricsFile, Usage: "Prometheus textfile written after the run", EnvVars: []string{"FINCAST_METRICS_FILE"}},
	}
	flags = append(flags, forecastFlags(cfg)...)
	flags = append(flags, suggestFlags()...)

	return &cli.Command{
		Name:  "run",
		Usage: "Run validation, import, signals, forecast and rules in order",
		Flags: flags,
		Action: func(c *cli.Context) error {
			ctx, stop := signalContext(c.Context)
			defer stop()

			now, err := parseNow(c)
			if err != nil {
				return err
			}

			sinks := service.PipelineSinks{Report: service.NewReportService(c.String("report-dir"))}

			if url := c.String("database-url"); url != "" {
				pool, err := connectPostgres(ctx, url)
				if err != nil {
					log.Warn().Err(err).Msg("Could not connect to database; results will not be persisted")
				} else {
					defer pool.Close()
					sinks.Repo = postgres.NewPostgresRepository(pool)
				}
			}

			if brokers := c.StringSlice("kafka-brokers"); len(brokers) > 0 {
				pub, err := kafkabus.NewPublisher(brokers, c.String("kafka-topic"))
				if err != nil {
					return err
				}
				defer pub.Close()
				sinks.Publisher = pub
			}

			if path := c.String("metrics-file"); path != "" {
				sinks.Observer = observability.NewMetrics(path)
			}

			pipeline := service.NewPipelineService(
				service.NewValidator(),
				newSignalLoader(cfg),
				newForecastService(c),
				service.NewRuleEngine(),
				sinks,
			)

			opts := service.RunOptions{
				DataDir:        c.String("data-dir"),
				SourceCSV:      c.String("in"),
				MappingPath:    c.String("map"),
				Timezone:       c.String("tz"),
				StartDate:      c.String("start"),
				EndDate:        c.String("end"),
				LocalEventsCSV: c.String("events"),
				PolicyPath:     c.String("policy"),
				MakeReport:     c.Bool("report"),
				Now:            now,
			}
			if c.IsSet("lat") && c.IsSet("lon") {
				lat, lon := c.Float64("lat"), c.Float64("lon")
				opts.Lat, opts.Lon = &lat, &lon
			}

			res, err := pipeline.Run(ctx, opts)
			if res != nil {
				fmt.Printf("Run %s\n", res.RunID)
				for _, step := range res.Steps {
					fmt.Printf("  - %s\n", step)
				}
			}
			return err
		},
	}
}

func newSignalLoader(cfg *config.Config) *service.SignalLoader {
	return service.NewSignalLoader(
		service.NewWeatherService(cfg.WeatherURL, cfg.WeatherRPS),
		service.NewTrafficService(),
	)
}

func connectPostgres(ctx context.Context, url string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	repo := postgres.NewPostgresRepository(pool)
	if err := repo.Health(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info().Msg("Connected to PostgreSQL")
	return pool, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
