package domain

import (
	"fmt"
	"net/http"
)

// ValidationError is a fatal data-quality condition found by the validator.
// Rule reads as a continuation of File, e.g. "capacity.csv" "is empty".
type ValidationError struct {
	File string
	Rule string
}

func (e *ValidationError) Error() string {
	if e.File == "" {
		return e.Rule
	}
	return e.File + " " + e.Rule
}

// ConfigurationError reports missing inputs or unusable settings
type ConfigurationError struct {
	Source string
	Msg    string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := e.Msg
	if e.Source != "" {
		msg = e.Source + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ExternalServiceError wraps a failed call to a third-party provider.
// StatusCode is zero when the request never produced a response.
type ExternalServiceError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ExternalServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d %s", e.Provider, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: request failed: %v", e.Provider, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// Warning is a non-fatal data-quality finding
type Warning struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

func (w Warning) String() string { return w.Message }
