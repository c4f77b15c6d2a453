package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sportai/fincast/internal/config"
	"github.com/sportai/fincast/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"FINCAST_DATA_DIR", "FINCAST_WORKERS", "KAFKA_BROKERS", "OPEN_METEO_URL"} {
		t.Setenv(k, "")
	}
	cfg := config.Load()
	if cfg.DataDir != "data" || cfg.Workers != 4 || cfg.Timezone != "America/Chicago" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.WeatherURL != "https://api.open-meteo.com/v1/forecast" {
		t.Fatalf("WeatherURL = %q", cfg.WeatherURL)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Fatalf("KafkaBrokers = %v, want none", cfg.KafkaBrokers)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FINCAST_DATA_DIR", "/srv/fincast")
	t.Setenv("FINCAST_WORKERS", "8")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("WEATHER_REQUESTS_PER_SECOND", "not-a-number")
	cfg := config.Load()
	if cfg.DataDir != "/srv/fincast" || cfg.Workers != 8 {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if diff := cmp.Diff([]string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers); diff != "" {
		t.Fatalf("brokers (-want +got):\n%s", diff)
	}
	if cfg.WeatherRPS != 1 {
		t.Fatalf("WeatherRPS = %v, want fallback 1", cfg.WeatherRPS)
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want func(p *domain.PolicyConfig)
	}{
		{
			name: "empty document keeps defaults",
			doc:  "",
			want: func(p *domain.PolicyConfig) {},
		},
		{
			name: "json overrides",
			doc: `{"notice_windows": {"schedule_change_hours": 12},
				"staffing": {"increase_threshold": 0.9, "max_delta_per_hour": 2},
				"inventory": {"allow_split_layouts": false},
				"global": {"max_total_changes_per_day": 5, "change_types_priority": ["staff_increase", "open_overflow"]},
				"active_mode": "Tournament"}`,
			want: func(p *domain.PolicyConfig) {
				p.ScheduleChangeHours = 12
				p.IncreaseThreshold = 0.9
				p.MaxDeltaPerHour = 2
				p.AllowSplitLayouts = false
				p.MaxTotalChangesPerDay = 5
				p.ChangeTypesPriority = []domain.ActionType{domain.ActionStaffIncrease, domain.ActionOpenOverflow}
				p.ActiveMode = "Tournament"
			},
		},
		{
			name: "yaml with malformed values falls back",
			doc: `
staffing:
  increase_threshold: high
  decrease_threshold: "0.25"
notice_windows: 7
global:
  max_total_changes_per_day: [1, 2]
`,
			want: func(p *domain.PolicyConfig) {
				p.DecreaseThreshold = 0.25
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := config.ParsePolicy([]byte(tt.doc))
			if err != nil {
				t.Fatalf("ParsePolicy: %v", err)
			}
			want := domain.DefaultPolicy()
			tt.want(&want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("policy mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadPolicyMissingFile(t *testing.T) {
	got, err := config.LoadPolicy(filepath.Join(t.TempDir(), "policies.json"))
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if diff := cmp.Diff(domain.DefaultPolicy(), got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestParsePolicyMalformedDocument(t *testing.T) {
	_, err := config.ParsePolicy([]byte("{not: [valid"))
	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestLoadMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.json")
	doc := `{"timestamp_candidates": ["Start Time"], "zone_candidates": ["Court"],
		"zone_normalize": {"upper": true, "spaces_to_underscore": true},
		"booked_slots_per_row_default": 2}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := config.LoadMapping(path)
	if err != nil {
		t.Fatalf("LoadMapping: %v", err)
	}
	if diff := cmp.Diff([]string{"Start Time"}, m.TimestampCandidates); diff != "" {
		t.Fatalf("timestamp candidates (-want +got):\n%s", diff)
	}
	if !m.ZoneNormalize.Upper || !m.ZoneNormalize.SpacesToUnderscore {
		t.Fatalf("zone_normalize not decoded: %+v", m.ZoneNormalize)
	}
	if m.BookedSlotsPerRow() != 2 || m.EstWalkins() != 0 {
		t.Fatalf("defaults: booked=%v walkins=%v", m.BookedSlotsPerRow(), m.EstWalkins())
	}
	if m.TimezoneDefault != "America/Chicago" {
		t.Fatalf("TimezoneDefault = %q", m.TimezoneDefault)
	}

	missing, err := config.LoadMapping(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("LoadMapping(absent): %v", err)
	}
	if missing.BookedSlotsPerRow() != 1 {
		t.Fatalf("absent mapping BookedSlotsPerRow = %v", missing.BookedSlotsPerRow())
	}
}

func TestPolicyPath(t *testing.T) {
	dir := t.TempDir()
	if got, want := config.PolicyPath(dir), filepath.Join(dir, "policies.json"); got != want {
		t.Fatalf("PolicyPath = %s, want %s", got, want)
	}
	yamlPath := filepath.Join(dir, "policies.yaml")
	if err := os.WriteFile(yamlPath, []byte("active_mode: Peak\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := config.PolicyPath(dir); got != yamlPath {
		t.Fatalf("PolicyPath = %s, want %s", got, yamlPath)
	}
	policy, err := config.LoadPolicy(yamlPath)
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if policy.ActiveMode != "Peak" {
		t.Fatalf("ActiveMode = %q, want Peak", policy.ActiveMode)
	}
}
