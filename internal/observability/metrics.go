// Package observability exports run metrics in the Prometheus text format
// for a node_exporter textfile collector.
package observability

import (
	"fmt"
	"math"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sportai/fincast/internal/domain"
)

// Metrics holds the gauges describing the latest pipeline run
type Metrics struct {
	path     string
	registry *prometheus.Registry

	valMAE        *prometheus.GaugeVec
	forecastRows  prometheus.Gauge
	skippedZones  prometheus.Gauge
	actions       *prometheus.GaugeVec
	stageFailures *prometheus.CounterVec
	lastRun       prometheus.Gauge
}

// NewMetrics creates metrics that are written to path after each run
func NewMetrics(path string) *Metrics {
	m := &Metrics{
		path:     path,
		registry: prometheus.NewRegistry(),
		valMAE: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fincast_zone_val_mae",
			Help: "Hold-out mean absolute error of each zone model.",
		}, []string{"zone"}),
		forecastRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fincast_forecast_rows",
			Help: "Rows in the latest 48h forecast.",
		}),
		skippedZones: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fincast_skipped_zones",
			Help: "Zones skipped for insufficient history.",
		}),
		actions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fincast_suggested_actions",
			Help: "Suggested actions in the latest run by type.",
		}, []string{"action_type"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fincast_stage_failures_total",
			Help: "Pipeline stage failures by stage.",
		}, []string{"stage"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fincast_last_run_timestamp_seconds",
			Help: "Start time of the latest run.",
		}),
	}

	m.registry.MustRegister(
		m.valMAE,
		m.forecastRows,
		m.skippedZones,
		m.actions,
		m.stageFailures,
		m.lastRun,
	)

	for _, t := range []domain.ActionType{
		domain.ActionCleaningWindow,
		domain.ActionOpenOverflow,
		domain.ActionStaffIncrease,
		domain.ActionStaffReduce,
	} {
		m.actions.WithLabelValues(string(t)).Set(0)
	}

	return m
}

// ObserveRun records res and rewrites the textfile
func (m *Metrics) ObserveRun(res *domain.RunResult) error {
	m.lastRun.Set(float64(res.StartedAt.Unix()))

	m.valMAE.Reset()
	m.forecastRows.Set(0)
	m.skippedZones.Set(0)
	if res.Forecast != nil {
		m.forecastRows.Set(float64(len(res.Forecast.Forecast)))
		m.skippedZones.Set(float64(len(res.Forecast.Skipped)))
		for _, metric := range res.Forecast.Metrics {
			if !math.IsNaN(metric.ValMAE) {
				m.valMAE.WithLabelValues(metric.ZoneID).Set(metric.ValMAE)
			}
		}
	}

	counts := map[domain.ActionType]int{
		domain.ActionCleaningWindow: 0,
		domain.ActionOpenOverflow:   0,
		domain.ActionStaffIncrease:  0,
		domain.ActionStaffReduce:    0,
	}
	for _, a := range res.Actions {
		counts[a.ActionType]++
	}
	for t, n := range counts {
		m.actions.WithLabelValues(string(t)).Set(float64(n))
	}

	for _, stage := range res.Failed {
		m.stageFailures.WithLabelValues(stage).Inc()
	}

	if m.path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(m.path, m.registry); err != nil {
		return fmt.Errorf("observability: failed to write %s: %w", m.path, err)
	}
	return nil
}
