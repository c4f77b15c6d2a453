package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunResult summarizes one pipeline run
type RunResult struct {
	RunID      uuid.UUID         `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	Steps      []string          `json:"steps"`
	Failed     []string          `json:"failed,omitempty"`
	ReportPath string            `json:"report_path,omitempty"`
	Forecast   *ForecastResult   `json:"-"`
	Actions    []SuggestedAction `json:"-"`
}

// Step appends a step log line
func (r *RunResult) Step(line string) {
	r.Steps = append(r.Steps, line)
}

// Fail records a failed stage and its step log line
func (r *RunResult) Fail(stage string, err error) {
	r.Failed = append(r.Failed, stage)
	r.Steps = append(r.Steps, stage+" failed: "+err.Error())
}
