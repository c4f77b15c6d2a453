package service_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/sportai/fincast/internal/config"
	"github.com/sportai/fincast/internal/domain"
	"github.com/sportai/fincast/internal/repository/csvstore"
	"github.com/sportai/fincast/internal/service"
)

func TestResolveColumn(t *testing.T) {
	tests := []struct {
		name       string
		headers    []string
		candidates []string
		want       string
		ok         bool
	}{
		{"exact", []string{"start time", "Start"}, []string{"Start"}, "Start", true},
		{"case insensitive", []string{"START TIME"}, []string{"start time"}, "START TIME", true},
		{"whitespace squashed", []string{"StartTime"}, []string{"start time"}, "StartTime", true},
		{"earlier candidate case insensitive", []string{"begin", "START"}, []string{"Start", "begin"}, "START", true},
		{"later exact beats earlier squashed", []string{"StartTime", "begin"}, []string{"start time", "begin"}, "begin", true},
		{"candidate order within matcher", []string{"Begin", "Start"}, []string{"Start", "Begin"}, "Start", true},
		{"no match", []string{"Resource"}, []string{"Start"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := service.ResolveColumn(tt.headers, tt.candidates)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("ResolveColumn = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func testMapping() config.ImportMapping {
	return config.ImportMapping{
		TimestampCandidates:       []string{"Start Time"},
		EndTimeCandidates:         []string{"End Time"},
		ZoneCandidates:            []string{"Court"},
		DurationMinutesCandidates: []string{"Minutes"},
		CheckinsCandidates:        []string{"Checked In"},
		ZoneNormalize:             config.ZoneNormalize{Upper: true, SpacesToUnderscore: true},
		TimezoneDefault:           "UTC",
	}
}

func importString(t *testing.T, mapping config.ImportMapping, csv, tz string) ([]domain.HourlyEvent, error) {
	t.Helper()
	table, err := csvstore.ParseTable("bookings.csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	return service.NewImporter(mapping).Import(table, tz)
}

func at(s string) time.Time {
	ts, err := csvstore.ParseTimestamp(s)
	if err != nil {
		panic(err)
	}
	return ts
}

func TestImportBookingLength(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want []domain.HourlyEvent
	}{
		{
			name: "default one hour",
			csv:  "Start Time,Court\n2024-01-01 10:00,court 1\n",
			want: []domain.HourlyEvent{
				{TS: at("2024-01-01 10:00:00"), ZoneID: "COURT_1", BookedSlots: 1},
			},
		},
		{
			name: "duration spans two hours",
			csv:  "Start Time,Court,Minutes\n2024-01-01 10:00,court 1,90\n",
			want: []domain.HourlyEvent{
				{TS: at("2024-01-01 10:00:00"), ZoneID: "COURT_1", BookedSlots: 1},
				{TS: at("2024-01-01 11:00:00"), ZoneID: "COURT_1", BookedSlots: 1},
			},
		},
		{
			name: "end column wins over duration",
			csv:  "Start Time,End Time,Court,Minutes\n2024-01-01 10:30,2024-01-01 11:00,court 1,240\n",
			want: []domain.HourlyEvent{
				{TS: at("2024-01-01 10:00:00"), ZoneID: "COURT_1", BookedSlots: 1},
			},
		},
		{
			name: "aggregates bookings and checkins",
			csv: "Start Time,Court,Checked In\n" +
				"2024-01-01 10:00,court 1,3\n" +
				"2024-01-01 10:15,Court 1,2\n" +
				"2024-01-01 10:00,,1\n",
			want: []domain.HourlyEvent{
				{TS: at("2024-01-01 10:00:00"), ZoneID: "COURT_1", BookedSlots: 2, Checkins: 5},
				{TS: at("2024-01-01 10:00:00"), ZoneID: "UNKNOWN", BookedSlots: 1, Checkins: 1},
				{TS: at("2024-01-01 11:00:00"), ZoneID: "COURT_1", BookedSlots: 1, Checkins: 2},
			},
		},
		{
			name: "offset aware input",
			csv:  "Start Time,Court\n2024-01-01T10:00:00-06:00,z1\n",
			want: []domain.HourlyEvent{
				{TS: at("2024-01-01 16:00:00"), ZoneID: "Z1", BookedSlots: 1},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := importString(t, testMapping(), tt.csv, "")
			if err != nil {
				t.Fatalf("Import: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Import mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestImportDropsDSTGaps(t *testing.T) {
	csv := "Start Time,Court\n" +
		"2024-03-10 01:00,z1\n" + // CST, exists
		"2024-03-10 02:30,z1\n" + // skipped by spring forward
		"2024-11-03 01:30,z1\n" // occurs twice
	got, err := importString(t, testMapping(), csv, "America/Chicago")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	want := []domain.HourlyEvent{
		{TS: at("2024-03-10 07:00:00"), ZoneID: "Z1", BookedSlots: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Import mismatch (-want +got):\n%s", diff)
	}
}

func TestImportHalfHourOffsetZone(t *testing.T) {
	csv := "Start Time,Court,Minutes\n" +
		"2024-01-01 10:00,z1,60\n" + // local hour 10:00 is 04:30 UTC
		"2024-01-01 10:30,z1,30\n" + // same local hour
		"2024-01-01 11:00,z1,60\n" // 05:30 UTC
	got, err := importString(t, testMapping(), csv, "Asia/Kolkata")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	want := []domain.HourlyEvent{
		{TS: at("2024-01-01 04:00:00"), ZoneID: "Z1", BookedSlots: 2},
		{TS: at("2024-01-01 05:00:00"), ZoneID: "Z1", BookedSlots: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Import mismatch (-want +got):\n%s", diff)
	}
	for _, ev := range got {
		if ev.TS.Minute() != 0 || ev.TS.Location() != time.UTC {
			t.Fatalf("ts %v is not a UTC hour", ev.TS)
		}
	}
}

func TestImportErrors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want string
	}{
		{
			name: "columns not found",
			csv:  "When,Where\n2024-01-01 10:00,z1\n",
			want: "could not locate timestamp/zone columns (ts=Start, zone=Resource)",
		},
		{
			name: "no usable rows",
			csv:  "Start Time,Court\nyesterday,z1\n",
			want: "No usable rows were parsed from the CSV. Check mappings and time columns.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := importString(t, testMapping(), tt.csv, "")
			var cerr *domain.ConfigurationError
			if !errors.As(err, &cerr) {
				t.Fatalf("Import error = %v, want ConfigurationError", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Import error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestImportFileIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "bookings.csv",
		"Start Time,Court,Minutes\n2024-01-01 10:00,court 1,120\n2024-01-01 09:00,court 2,60\n")
	out := filepath.Join(dir, "events_hourly.csv")
	im := service.NewImporter(testMapping())

	if _, err := im.ImportFile(in, out, ""); err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	first := readFile(t, out)
	if _, err := im.ImportFile(in, out, ""); err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if second := readFile(t, out); second != first {
		t.Fatalf("second import differs:\n%s\nvs\n%s", first, second)
	}

	want := "ts,zone_id,booked_slots,checkins,est_walkins\n" +
		"2024-01-01 09:00:00,COURT_2,1,0,0\n" +
		"2024-01-01 10:00:00,COURT_1,1,0,0\n" +
		"2024-01-01 11:00:00,COURT_1,1,0,0\n"
	if first != want {
		t.Fatalf("events file:\n%s\nwant:\n%s", first, want)
	}
}
