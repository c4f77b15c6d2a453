// Package config loads runtime settings from the environment and the
// policy and column-mapping documents from disk.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds process-level settings. CLI flags take their defaults from it.
type Config struct {
	DataDir           string
	ReportDir         string
	Timezone          string
	LogLevel          string
	LogFormat         string
	Workers           int
	WeatherURL        string
	WeatherRPS        float64
	DatabaseURL       string
	KafkaBrokers      []string
	KafkaActionsTopic string
	MetricsFile       string
}

// Load reads Config from the environment. Call godotenv.Load first to
// pick up a .env file.
func Load() *Config {
	return &Config{
		DataDir:           getEnv("FINCAST_DATA_DIR", "data"),
		ReportDir:         getEnv("FINCAST_REPORT_DIR", "docs"),
		Timezone:          getEnv("FINCAST_TIMEZONE", "America/Chicago"),
		LogLevel:          getEnv("FINCAST_LOG_LEVEL", "info"),
		LogFormat:         getEnv("FINCAST_LOG_FORMAT", "console"),
		Workers:           getEnvInt("FINCAST_WORKERS", 4),
		WeatherURL:        getEnv("OPEN_METEO_URL", "https://api.open-meteo.com/v1/forecast"),
		WeatherRPS:        getEnvFloat("WEATHER_REQUESTS_PER_SECOND", 1),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		KafkaBrokers:      splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaActionsTopic: getEnv("KAFKA_ACTIONS_TOPIC", "fincast.actions"),
		MetricsFile:       getEnv("FINCAST_METRICS_FILE", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return v
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
