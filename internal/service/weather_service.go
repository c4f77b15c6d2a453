package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/sportai/fincast/internal/domain"
	"github.com/sportai/fincast/pkg/utils"
)

// OpenMeteoURL is the public hourly forecast endpoint
const OpenMeteoURL = "https://api.open-meteo.com/v1/forecast"

const weatherProvider = "open-meteo"

// WeatherReading is one hour of weather converted to facility units
type WeatherReading struct {
	TS         time.Time
	TempF      float64
	PrecipProb float64
}

// WeatherService fetches hourly weather from Open-Meteo
type WeatherService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewWeatherService creates a new weather service. rps <= 0 disables pacing.
func NewWeatherService(baseURL string, rps float64) *WeatherService {
	if baseURL == "" {
		baseURL = OpenMeteoURL
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &WeatherService{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// OpenMeteoResponse is the subset of the Open-Meteo payload we read
type OpenMeteoResponse struct {
	Hourly struct {
		Time                     []string   `json:"time"`
		Temperature2m            []*float64 `json:"temperature_2m"`
		PrecipitationProbability []*float64 `json:"precipitation_probability"`
	} `json:"hourly"`
}

// GetHourly fetches UTC hourly readings for the inclusive date range.
// Provider failures are returned as *domain.ExternalServiceError.
func (s *WeatherService) GetHourly(ctx context.Context, lat, lon float64, startDate, endDate string) ([]WeatherReading, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("weather: rate limiter: %w", err)
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("hourly", "temperature_2m,precipitation_probability")
	q.Set("start_date", startDate)
	q.Set("end_date", endDate)
	q.Set("timezone", "UTC")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("weather: failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &domain.ExternalServiceError{Provider: weatherProvider, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.ExternalServiceError{Provider: weatherProvider, StatusCode: resp.StatusCode}
	}

	var om OpenMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&om); err != nil {
		return nil, &domain.ExternalServiceError{
			Provider: weatherProvider,
			Err:      fmt.Errorf("failed to decode response: %w", err),
		}
	}
	return convertHourly(om)
}

func convertHourly(om OpenMeteoResponse) ([]WeatherReading, error) {
	out := make([]WeatherReading, 0, len(om.Hourly.Time))
	for i, raw := range om.Hourly.Time {
		ts, err := time.ParseInLocation("2006-01-02T15:04", raw, time.UTC)
		if err != nil {
			return nil, &domain.ExternalServiceError{
				Provider: weatherProvider,
				Err:      fmt.Errorf("bad hourly time %q: %w", raw, err),
			}
		}
		r := WeatherReading{TS: ts}
		if c := valueAt(om.Hourly.Temperature2m, i); c != nil {
			r.TempF = utils.RoundTo(utils.CelsiusToFahrenheit(*c), 1)
		}
		if p := valueAt(om.Hourly.PrecipitationProbability, i); p != nil {
			r.PrecipProb = utils.RoundTo(*p/100, 2)
		}
		out = append(out, r)
	}
	return out, nil
}

func valueAt(values []*float64, i int) *float64 {
	if i < len(values) {
		return values[i]
	}
	return nil
}
