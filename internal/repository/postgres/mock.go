package postgres

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/sportai/fincast/internal/domain"
)

// MockRepository implements domain.ResultRepository in memory
type MockRepository struct {
	mu        sync.Mutex
	forecasts map[uuid.UUID][]domain.Forecast
	metrics   map[uuid.UUID][]domain.ForecastMetric
	actions   map[uuid.UUID][]domain.SuggestedAction
}

// NewMockRepository creates a new mock repository
func NewMockRepository() *MockRepository {
	return &MockRepository{
		forecasts: make(map[uuid.UUID][]domain.Forecast),
		metrics:   make(map[uuid.UUID][]domain.ForecastMetric),
		actions:   make(map[uuid.UUID][]domain.SuggestedAction),
	}
}

// SaveForecast keeps a copy of rows under runID
func (r *MockRepository) SaveForecast(ctx context.Context, runID uuid.UUID, rows []domain.Forecast) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forecasts[runID] = append([]domain.Forecast(nil), rows...)
	return nil
}

// SaveMetrics keeps a copy of rows under runID
func (r *MockRepository) SaveMetrics(ctx context.Context, runID uuid.UUID, rows []domain.ForecastMetric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics[runID] = append([]domain.ForecastMetric(nil), rows...)
	return nil
}

// SaveActions keeps a copy of rows under runID
func (r *MockRepository) SaveActions(ctx context.Context, runID uuid.UUID, rows []domain.SuggestedAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[runID] = append([]domain.SuggestedAction(nil), rows...)
	return nil
}

// ActionsForRun returns the actions saved for runID
func (r *MockRepository) ActionsForRun(ctx context.Context, runID uuid.UUID) ([]domain.SuggestedAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.SuggestedAction(nil), r.actions[runID]...), nil
}

// ForecastForRun returns the forecast saved for runID
func (r *MockRepository) ForecastForRun(runID uuid.UUID) []domain.Forecast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Forecast(nil), r.forecasts[runID]...)
}

// Health always returns nil in mock mode
func (r *MockRepository) Health(ctx context.Context) error {
	return nil
}
