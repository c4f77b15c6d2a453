// fincast forecasts hourly facility demand and suggests operational actions.
//
// Usage:
//
//	fincast validate --data-dir data
//	fincast import --in bookings.csv --tz America/Chicago
//	fincast signals --lat 41.88 --lon -87.63 --start 2024-01-01 --end 2024-01-03
//	fincast forecast [--recursive]
//	fincast suggest [--policy data/policies.json] [--now "2024-01-01 09:00:00"]
//	fincast run [--in bookings.csv] [--lat ... --lon ... --start ... --end ...] [--report]
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/sportai/fincast/internal/config"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()

	app := &cli.App{
		Name:    "fincast",
		Usage:   "Hourly demand forecasting and operations suggestions for sports facilities",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Value:   cfg.DataDir,
				Usage:   "Directory holding the canonical CSV tables",
				EnvVars: []string{"FINCAST_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   cfg.LogLevel,
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"FINCAST_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   cfg.LogFormat,
				Usage:   "Log format (console, json)",
				EnvVars: []string{"FINCAST_LOG_FORMAT"},
			},
		},
		Before: func(c *cli.Context) error {
			if err := setupLogger(c.String("log-level"), c.String("log-format")); err != nil {
				return err
			}
			if envErr != nil {
				log.Debug().Msg("No .env file found, using system environment")
			}
			return nil
		},
		Commands: []*cli.Command{
			validateCommand(),
			importCommand(cfg),
			signalsCommand(cfg),
			forecastCommand(cfg),
			suggestCommand(),
			runCommand(cfg),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogger(level, format string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	switch format {
	case "json":
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	case "console", "":
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	return nil
}
