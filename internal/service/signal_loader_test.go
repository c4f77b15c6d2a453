package service_test

import (
	"context"
	"errors"
	"net"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/sportai/fincast/internal/domain"
	"github.com/sportai/fincast/internal/repository/csvstore"
	"github.com/sportai/fincast/internal/service"
)

// openMeteoStub serves a canned hourly payload and records the last query
type openMeteoStub struct {
	url string

	mu    sync.Mutex
	query url.Values
	calls int
}

func (s *openMeteoStub) lastQuery() (url.Values, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query, s.calls
}

func newOpenMeteoStub(t *testing.T, status int, payload fiber.Map) *openMeteoStub {
	t.Helper()
	stub := &openMeteoStub{}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/v1/forecast", func(c *fiber.Ctx) error {
		q, err := url.ParseQuery(string(c.Request().URI().QueryString()))
		if err != nil {
			return err
		}
		stub.mu.Lock()
		stub.query = q
		stub.calls++
		stub.mu.Unlock()

		if status != fiber.StatusOK {
			return c.Status(status).SendString("unavailable")
		}
		return c.JSON(payload)
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	stub.url = "http://" + ln.Addr().String() + "/v1/forecast"
	return stub
}

var hourlyPayload = fiber.Map{
	"hourly": fiber.Map{
		"time":                      []string{"2024-01-01T07:00", "2024-01-01T08:00", "2024-01-01T09:00"},
		"temperature_2m":            []any{0, 20.5, nil},
		"precipitation_probability": []any{50, nil, 3},
	},
}

func newLoader(baseURL string) *service.SignalLoader {
	return service.NewSignalLoader(service.NewWeatherService(baseURL, 0), service.NewTrafficService())
}

func TestSignalLoaderBuild(t *testing.T) {
	stub := newOpenMeteoStub(t, fiber.StatusOK, hourlyPayload)
	dir := t.TempDir()
	events := writeFile(t, dir, "local_events.csv",
		"date,start_time,end_time,event_score,notes\n"+
			"2024-01-01,08:30,09:00,3,tournament\n"+
			"2024-01-01,09:00,09:30,5,concert\n"+
			"not-a-date,10:00,11:00,9,ignored\n")
	out := filepath.Join(dir, "signals_hourly.csv")

	got, err := newLoader(stub.url).BuildCSV(context.Background(), service.SignalRequest{
		Lat:            41.88,
		Lon:            -87.63,
		StartDate:      "2024-01-01",
		EndDate:        "2024-01-01",
		LocalEventsCSV: events,
	}, out)
	if err != nil {
		t.Fatalf("BuildCSV: %v", err)
	}

	want := []domain.HourlySignal{
		{TS: time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC), TempF: 32, PrecipProb: 0.5, TrafficIdx: 140},
		{TS: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC), TempF: 68.9, PrecipProb: 0, TrafficIdx: 140, EventScore: 3},
		{TS: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), TempF: 0, PrecipProb: 0.03, TrafficIdx: 100, EventScore: 5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("signals mismatch (-want +got):\n%s", diff)
	}

	q, _ := stub.lastQuery()
	for key, val := range map[string]string{
		"latitude":   "41.88",
		"longitude":  "-87.63",
		"hourly":     "temperature_2m,precipitation_probability",
		"start_date": "2024-01-01",
		"end_date":   "2024-01-01",
		"timezone":   "UTC",
	} {
		if q.Get(key) != val {
			t.Errorf("query %s = %q, want %q", key, q.Get(key), val)
		}
	}

	stored, err := csvstore.ReadSignals(out)
	if err != nil {
		t.Fatalf("ReadSignals: %v", err)
	}
	if diff := cmp.Diff(want, stored); diff != "" {
		t.Fatalf("stored signals mismatch (-want +got):\n%s", diff)
	}
}

func TestSignalLoaderProviderError(t *testing.T) {
	stub := newOpenMeteoStub(t, fiber.StatusServiceUnavailable, nil)
	_, err := newLoader(stub.url).Build(context.Background(), service.SignalRequest{
		Lat: 41.88, Lon: -87.63, StartDate: "2024-01-01", EndDate: "2024-01-02",
	})
	var serr *domain.ExternalServiceError
	if !errors.As(err, &serr) {
		t.Fatalf("Build error = %v, want ExternalServiceError", err)
	}
	if serr.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("StatusCode = %d, want 503", serr.StatusCode)
	}
}

func TestSignalLoaderRejectsBadRequest(t *testing.T) {
	stub := newOpenMeteoStub(t, fiber.StatusOK, hourlyPayload)
	tests := []struct {
		name string
		req  service.SignalRequest
	}{
		{"bad start date", service.SignalRequest{Lat: 1, Lon: 1, StartDate: "01/01/2024", EndDate: "2024-01-02"}},
		{"end before start", service.SignalRequest{Lat: 1, Lon: 1, StartDate: "2024-01-02", EndDate: "2024-01-01"}},
		{"latitude out of range", service.SignalRequest{Lat: 91, Lon: 1, StartDate: "2024-01-01", EndDate: "2024-01-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newLoader(stub.url).Build(context.Background(), tt.req)
			var cerr *domain.ConfigurationError
			if !errors.As(err, &cerr) {
				t.Fatalf("Build error = %v, want ConfigurationError", err)
			}
		})
	}
	if _, calls := stub.lastQuery(); calls != 0 {
		t.Fatalf("provider called %d times for invalid requests", calls)
	}
}

func TestLoadLocalEventsMissingFile(t *testing.T) {
	events, err := service.LoadLocalEvents(filepath.Join(t.TempDir(), "nope.csv"))
	if err != nil {
		t.Fatalf("LoadLocalEvents: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("got %d events, want none", len(events))
	}
}
