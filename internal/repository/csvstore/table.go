// Package csvstore reads and writes the canonical CSV tables exchanged
// between pipeline stages.
package csvstore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sportai/fincast/internal/domain"
)

// Canonical file names inside a data directory
const (
	EventsFile         = "events_hourly.csv"
	SignalsFile        = "signals_hourly.csv"
	CapacityFile       = "capacity.csv"
	ProtectedHoursFile = "protected_hours.csv"
	ForecastFile       = "forecast_48h.csv"
	MetricsFile        = "forecast_metrics.csv"
	DailyForecastFile  = "forecast_6weeks_daily.csv"
	ActionsFile        = "actions_log.csv"
)

// Column sets, in on-disk order
var (
	EventsColumns         = []string{"ts", "zone_id", "booked_slots", "checkins", "est_walkins"}
	SignalsColumns        = []string{"ts", "temp_f", "precip_prob", "traffic_idx", "event_score"}
	CapacityColumns       = []string{"zone_id", "zone_name", "layout", "setup_minutes", "clean_minutes", "max_slots_per_hour"}
	ProtectedHoursColumns = []string{"zone_id", "dow", "start_time", "end_time", "applies_to", "action_block"}
	ForecastColumns       = []string{"ts", "zone_id", "forecast"}
	MetricsColumns        = []string{"zone_id", "val_mae"}
	DailyForecastColumns  = []string{"date", "zone_id", "forecast_daily"}
	ActionsColumns        = []string{"ts", "zone_id", "action_type", "before", "after", "rationale"}
)

// Table is a CSV file held as a header and raw string records
type Table struct {
	Path    string
	Header  []string
	Records [][]string
	index   map[string]int
}

// ReadTable loads a whole CSV file. A missing file yields an error
// satisfying errors.Is(err, os.ErrNotExist).
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseTable(path, f)
}

// ParseTable reads CSV content from r
func ParseTable(name string, r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return &Table{Path: name, index: map[string]int{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csvstore: failed to read header of %s: %w", name, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := &Table{Path: name, Header: header, index: make(map[string]int, len(header))}
	for i, h := range header {
		h = strings.TrimSpace(h)
		header[i] = h
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}

	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvstore: failed to read %s: %w", name, err)
		}
		if isBlank(rec) {
			continue
		}
		t.Records = append(t.Records, rec)
	}
	return t, nil
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Len returns the number of data records
func (t *Table) Len() int { return len(t.Records) }

// Has reports whether the header contains col
func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// Missing returns the columns of want absent from the header, in order
func (t *Table) Missing(want ...string) []string {
	var missing []string
	for _, c := range want {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// Value returns the trimmed cell of rec under col, or "" when absent
func (t *Table) Value(rec []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// Float parses a numeric cell. Empty cells are reported with ok=false.
func (t *Table) Float(rec []string, col string) (v float64, ok bool, err error) {
	s := t.Value(rec, col)
	if s == "" || strings.EqualFold(s, "nan") {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("column %q: %q is not numeric", col, s)
	}
	return v, true, nil
}

func (t *Table) requireColumns(cols []string) error {
	if missing := t.Missing(cols...); len(missing) > 0 {
		return &domain.ConfigurationError{
			Source: filepath.Base(t.Path),
			Msg:    fmt.Sprintf("missing required column '%s'", missing[0]),
		}
	}
	return nil
}

func (t *Table) floatOrZero(rec []string, col string, row int) (float64, error) {
	v, _, err := t.Float(rec, col)
	if err != nil {
		return 0, &domain.ConfigurationError{
			Source: filepath.Base(t.Path),
			Msg:    fmt.Sprintf("row %d", row+2),
			Err:    err,
		}
	}
	return v, nil
}

// WriteTable replaces path with header and rows, creating parent directories.
// The file is written to a temporary sibling and renamed into place.
func WriteTable(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("csvstore: failed to create directory for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("csvstore: failed to create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("csvstore: failed to write %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("csvstore: failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("csvstore: failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("csvstore: failed to replace %s: %w", path, err)
	}
	return nil
}

// FormatFloat renders v with the shortest exact representation
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
