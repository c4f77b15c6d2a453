package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sportai/fincast/internal/domain"
	"github.com/sportai/fincast/internal/repository/csvstore"
)

var clockPattern = regexp.MustCompile(`^\d{2}:\d{2}$`)

// ValidationReport carries the non-fatal findings of a successful validation
type ValidationReport struct {
	Warnings []domain.Warning `json:"warnings"`
}

// Validator checks the four input tables of a data directory before a run
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

type validationInputs struct {
	events, signals, capacity, protected *csvstore.Table
}

// Validate stops at the first fatal condition and returns it as a
// *domain.ValidationError. Warnings are logged and collected in the report.
func (v *Validator) Validate(dataDir string) (*ValidationReport, error) {
	in, err := v.load(dataDir)
	if err != nil {
		return nil, err
	}
	report := &ValidationReport{}

	if err := v.checkEvents(in.events, report); err != nil {
		return nil, err
	}
	if err := v.checkSignals(in.signals); err != nil {
		return nil, err
	}
	if err := v.checkCapacity(in.capacity, report); err != nil {
		return nil, err
	}
	if err := v.checkProtected(in.protected); err != nil {
		return nil, err
	}
	if err := v.checkCoverage(in, report); err != nil {
		return nil, err
	}

	for _, w := range report.Warnings {
		log.Warn().Str("source", w.Source).Msg(w.Message)
	}
	log.Info().Int("warnings", len(report.Warnings)).Msg("data validation passed")
	return report, nil
}

func (v *Validator) load(dataDir string) (*validationInputs, error) {
	read := func(name string, cols []string) (*csvstore.Table, error) {
		t, err := csvstore.ReadTable(filepath.Join(dataDir, name))
		if errors.Is(err, os.ErrNotExist) {
			return nil, &domain.ValidationError{Rule: "Missing file: " + name}
		}
		if err != nil {
			return nil, &domain.ValidationError{Rule: fmt.Sprintf("Could not read %s: %v", name, err)}
		}
		if missing := t.Missing(cols...); len(missing) > 0 {
			return nil, &domain.ValidationError{File: name, Rule: fmt.Sprintf("missing required column '%s'", missing[0])}
		}
		return t, nil
	}

	var in validationInputs
	var err error
	if in.events, err = read(csvstore.EventsFile, csvstore.EventsColumns); err != nil {
		return nil, err
	}
	if in.signals, err = read(csvstore.SignalsFile, csvstore.SignalsColumns); err != nil {
		return nil, err
	}
	if in.capacity, err = read(csvstore.CapacityFile, csvstore.CapacityColumns); err != nil {
		return nil, err
	}
	if in.protected, err = read(csvstore.ProtectedHoursFile, csvstore.ProtectedHoursColumns); err != nil {
		return nil, err
	}
	return &in, nil
}

// anyNumeric reports whether some parseable value of col satisfies bad.
// Blank cells are skipped; unparseable cells are fatal.
func anyNumeric(t *csvstore.Table, file, col string, bad func(float64) bool) (bool, error) {
	for _, rec := range t.Records {
		val, ok, err := t.Float(rec, col)
		if err != nil {
			return false, &domain.ValidationError{File: file, Rule: err.Error()}
		}
		if ok && bad(val) {
			return true, nil
		}
	}
	return false, nil
}

func (v *Validator) checkEvents(t *csvstore.Table, report *ValidationReport) error {
	const file = csvstore.EventsFile
	if t.Len() == 0 {
		return &domain.ValidationError{File: file, Rule: "is empty"}
	}
	for _, col := range []string{"booked_slots", "checkins", "est_walkins"} {
		neg, err := anyNumeric(t, file, col, func(x float64) bool { return x < 0 })
		if err != nil {
			return err
		}
		if neg {
			return &domain.ValidationError{File: file, Rule: "has negative " + col}
		}
	}

	seen := make(map[[2]string]struct{}, t.Len())
	dups := 0
	for _, rec := range t.Records {
		key := [2]string{normalizeTS(t.Value(rec, "ts")), t.Value(rec, "zone_id")}
		if _, ok := seen[key]; ok {
			dups++
			continue
		}
		seen[key] = struct{}{}
	}
	if dups > 0 {
		report.Warnings = append(report.Warnings, domain.Warning{
			Source:  file,
			Message: fmt.Sprintf("%s has %d duplicate (ts, zone_id) rows", file, dups),
		})
	}
	return nil
}

func (v *Validator) checkSignals(t *csvstore.Table) error {
	const file = csvstore.SignalsFile
	if t.Len() == 0 {
		return &domain.ValidationError{File: file, Rule: "is empty"}
	}
	outside, err := anyNumeric(t, file, "precip_prob", func(x float64) bool { return x < 0 || x > 1 })
	if err != nil {
		return err
	}
	if outside {
		return &domain.ValidationError{File: file, Rule: "precip_prob must be in [0,1]"}
	}
	neg, err := anyNumeric(t, file, "traffic_idx", func(x float64) bool { return x < 0 })
	if err != nil {
		return err
	}
	if neg {
		return &domain.ValidationError{File: file, Rule: "traffic_idx must be >= 0"}
	}
	for _, rec := range t.Records {
		if t.Value(rec, "ts") == "" {
			return &domain.ValidationError{File: file, Rule: "has null ts"}
		}
	}
	return nil
}

func (v *Validator) checkCapacity(t *csvstore.Table, report *ValidationReport) error {
	const file = csvstore.CapacityFile
	if t.Len() == 0 {
		return &domain.ValidationError{File: file, Rule: "is empty"}
	}
	for _, col := range []string{"setup_minutes", "clean_minutes", "max_slots_per_hour"} {
		bad, err := anyNumeric(t, file, col, func(x float64) bool { return x <= 0 })
		if err != nil {
			return err
		}
		if bad {
			return &domain.ValidationError{File: file, Rule: col + " must be > 0"}
		}
	}
	seen := make(map[string]struct{}, t.Len())
	for _, rec := range t.Records {
		z := t.Value(rec, "zone_id")
		if _, ok := seen[z]; ok {
			report.Warnings = append(report.Warnings, domain.Warning{
				Source:  file,
				Message: file + " has duplicated zone_id; ensure uniqueness",
			})
			break
		}
		seen[z] = struct{}{}
	}
	return nil
}

func (v *Validator) checkProtected(t *csvstore.Table) error {
	const file = csvstore.ProtectedHoursFile
	bad, err := anyNumeric(t, file, "dow", func(x float64) bool { return x < 0 || x > 6 })
	if err != nil {
		return err
	}
	if bad {
		return &domain.ValidationError{File: file, Rule: "dow must be 0-6 (Mon=0)"}
	}
	for _, col := range []string{"start_time", "end_time"} {
		for _, rec := range t.Records {
			if !clockPattern.MatchString(t.Value(rec, col)) {
				return &domain.ValidationError{File: file, Rule: fmt.Sprintf("bad time format in %s; expected HH:MM", col)}
			}
		}
	}
	return nil
}

func (v *Validator) checkCoverage(in *validationInputs, report *ValidationReport) error {
	signalTS := make(map[string]struct{}, in.signals.Len())
	for _, rec := range in.signals.Records {
		signalTS[normalizeTS(in.signals.Value(rec, "ts"))] = struct{}{}
	}
	missingTS := make(map[string]struct{})
	for _, rec := range in.events.Records {
		ts := normalizeTS(in.events.Value(rec, "ts"))
		if _, ok := signalTS[ts]; !ok {
			missingTS[ts] = struct{}{}
		}
	}
	if n := len(missingTS); n > 0 {
		report.Warnings = append(report.Warnings, domain.Warning{
			Source:  "coverage",
			Message: fmt.Sprintf("%d event timestamps missing from signals; forward-fill may occur", n),
		})
	}

	zones := make(map[string]struct{}, in.capacity.Len())
	for _, rec := range in.capacity.Records {
		zones[in.capacity.Value(rec, "zone_id")] = struct{}{}
	}
	missing := make(map[string]struct{})
	for _, rec := range in.events.Records {
		z := in.events.Value(rec, "zone_id")
		if _, ok := zones[z]; !ok {
			missing[z] = struct{}{}
		}
	}
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for z := range missing {
			names = append(names, "'"+z+"'")
		}
		sort.Strings(names)
		return &domain.ValidationError{Rule: fmt.Sprintf("Zones missing from capacity.csv: [%s]", strings.Join(names, ", "))}
	}
	return nil
}

// normalizeTS maps equivalent spellings of a timestamp to one key. Values
// that do not parse are compared verbatim.
func normalizeTS(s string) string {
	if ts, err := csvstore.ParseTimestamp(s); err == nil {
		return csvstore.FormatTimestamp(ts)
	}
	return s
}
