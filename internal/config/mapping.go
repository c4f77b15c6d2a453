package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/sportai/fincast/internal/domain"
)

// DefaultMappingPath is where the importer looks for a column mapping
const DefaultMappingPath = "data/mappings/sportskey_map.json"

// ZoneNormalize controls zone identifier cleanup
type ZoneNormalize struct {
	Upper              bool `yaml:"upper"`
	SpacesToUnderscore bool `yaml:"spaces_to_underscore"`
}

// ImportMapping tells the importer how to read a booking export
type ImportMapping struct {
	TimestampCandidates       []string      `yaml:"timestamp_candidates"`
	EndTimeCandidates         []string      `yaml:"endtime_candidates"`
	ZoneCandidates            []string      `yaml:"zone_candidates"`
	DurationMinutesCandidates []string      `yaml:"duration_minutes_candidates"`
	CheckinsCandidates        []string      `yaml:"checkins_candidates"`
	ZoneNormalize             ZoneNormalize `yaml:"zone_normalize"`
	TimezoneDefault           string        `yaml:"timezone_default"`
	BookedSlotsPerRowDefault  *float64      `yaml:"booked_slots_per_row_default"`
	EstWalkinsDefault         *float64      `yaml:"est_walkins_default"`
}

// DefaultMapping is used when no mapping document exists
func DefaultMapping() ImportMapping {
	return ImportMapping{TimezoneDefault: "America/Chicago"}
}

// BookedSlotsPerRow returns the slots credited to each expanded hour
func (m ImportMapping) BookedSlotsPerRow() float64 {
	if m.BookedSlotsPerRowDefault == nil {
		return 1
	}
	return *m.BookedSlotsPerRowDefault
}

// EstWalkins returns the walk-in estimate credited to each expanded hour
func (m ImportMapping) EstWalkins() float64 {
	if m.EstWalkinsDefault == nil {
		return 0
	}
	return *m.EstWalkinsDefault
}

// LoadMapping reads a mapping document (JSON or YAML). A missing file
// yields DefaultMapping.
func LoadMapping(path string) (ImportMapping, error) {
	if path == "" {
		return DefaultMapping(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultMapping(), nil
	}
	if err != nil {
		return ImportMapping{}, fmt.Errorf("config: failed to read mapping: %w", err)
	}
	return ParseMapping(data)
}

// ParseMapping decodes a mapping document
func ParseMapping(data []byte) (ImportMapping, error) {
	m := DefaultMapping()
	if err := yaml.Unmarshal(data, &m); err != nil {
		return ImportMapping{}, &domain.ConfigurationError{Source: "mapping", Msg: "malformed document", Err: err}
	}
	if m.TimezoneDefault == "" {
		m.TimezoneDefault = "America/Chicago"
	}
	return m, nil
}
