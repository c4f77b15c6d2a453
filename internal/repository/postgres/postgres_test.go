package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sportai/fincast/internal/domain"
	"github.com/sportai/fincast/internal/repository/postgres"
)

var sampleActions = []domain.SuggestedAction{
	{
		TS:         time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		ZoneID:     "Z1",
		ActionType: domain.ActionOpenOverflow,
		After:      "Release overflow slot",
		Rationale:  "[Normal] Forecast >= 80% of capacity",
	},
	{
		TS:         time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		ZoneID:     "Z1",
		ActionType: domain.ActionStaffIncrease,
		Before:     "baseline",
		After:      "+1",
		Rationale:  "[Normal] Forecast >= 80% of capacity",
	},
}

func TestMockRepositoryKeepsRunsApart(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewMockRepository()
	a, b := uuid.New(), uuid.New()
	if err := repo.SaveActions(ctx, a, sampleActions); err != nil {
		t.Fatal(err)
	}
	if err := repo.SaveActions(ctx, b, sampleActions[:1]); err != nil {
		t.Fatal(err)
	}
	got, err := repo.ActionsForRun(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(sampleActions, got); diff != "" {
		t.Fatalf("run a (-want +got):\n%s", diff)
	}
	got, _ = repo.ActionsForRun(ctx, b)
	if len(got) != 1 {
		t.Fatalf("run b has %d actions, want 1", len(got))
	}
}

func TestPostgresRepositoryRoundTrip(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	repo := postgres.NewPostgresRepository(pool)
	if err := repo.Health(ctx); err != nil {
		t.Fatalf("Health: %v", err)
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	runID := uuid.New()
	forecast := []domain.Forecast{{TS: sampleActions[0].TS, ZoneID: "Z1", Forecast: 9}}
	if err := repo.SaveForecast(ctx, runID, forecast); err != nil {
		t.Fatalf("SaveForecast: %v", err)
	}
	if err := repo.SaveMetrics(ctx, runID, []domain.ForecastMetric{{ZoneID: "Z1", ValMAE: 0.5}}); err != nil {
		t.Fatalf("SaveMetrics: %v", err)
	}
	if err := repo.SaveActions(ctx, runID, sampleActions); err != nil {
		t.Fatalf("SaveActions: %v", err)
	}
	got, err := repo.ActionsForRun(ctx, runID)
	if err != nil {
		t.Fatalf("ActionsForRun: %v", err)
	}
	if diff := cmp.Diff(sampleActions, got); diff != "" {
		t.Fatalf("actions (-want +got):\n%s", diff)
	}
}
