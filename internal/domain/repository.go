package domain

import (
	"context"

	"github.com/google/uuid"
)

// ResultRepository mirrors pipeline outputs into a durable store.
// Implementations must tolerate the same run being saved once per run ID.
type ResultRepository interface {
	// SaveForecast persists the 48h forecast of a run
	SaveForecast(ctx context.Context, runID uuid.UUID, rows []Forecast) error

	// SaveMetrics persists per-zone validation metrics
	SaveMetrics(ctx context.Context, runID uuid.UUID, rows []ForecastMetric) error

	// SaveActions persists the suggested actions of a run
	SaveActions(ctx context.Context, runID uuid.UUID, rows []SuggestedAction) error

	// Health checks store connectivity
	Health(ctx context.Context) error
}

// ActionPublisher announces suggested actions to downstream consumers
type ActionPublisher interface {
	PublishActions(ctx context.Context, runID uuid.UUID, actions []SuggestedAction) error
	Close() error
}
