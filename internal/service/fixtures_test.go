package service_test

import (
	"os"
	"path/filepath"
	"testing"
)

const (
	validEvents = `ts,zone_id,booked_slots,checkins,est_walkins
2024-01-01 10:00:00,Z1,5,4,0
2024-01-01 11:00:00,Z1,6,5,0
`
	validSignals = `ts,temp_f,precip_prob,traffic_idx,event_score
2024-01-01 10:00:00,40.1,0.1,100,0
2024-01-01 11:00:00,41.0,0.2,100,0
`
	validCapacity = `zone_id,zone_name,layout,setup_minutes,clean_minutes,max_slots_per_hour
Z1,Court 1,full,10,15,10
`
	validProtected = `zone_id,dow,start_time,end_time,applies_to,action_block
Z1,6,08:00,12:00,ALL,staff_reduce
`
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(raw)
}

// dataDir writes the four validator inputs into a temp dir. Entries in
// overrides replace the default content of a file; an empty override
// removes the file.
func dataDir(t *testing.T, overrides map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"events_hourly.csv":   validEvents,
		"signals_hourly.csv":  validSignals,
		"capacity.csv":        validCapacity,
		"protected_hours.csv": validProtected,
	}
	for name, content := range overrides {
		files[name] = content
	}
	for name, content := range files {
		if content == "" {
			continue
		}
		writeFile(t, dir, name, content)
	}
	return dir
}
