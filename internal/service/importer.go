package service

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sportai/fincast/internal/config"
	"github.com/sportai/fincast/internal/domain"
	"github.com/sportai/fincast/internal/repository/csvstore"
	"github.com/sportai/fincast/pkg/utils"
)

// Header names tried when the mapping has no usable candidate
const (
	fallbackTimestampColumn = "Start"
	fallbackZoneColumn      = "Resource"
	unknownZone             = "UNKNOWN"
)

var offsetLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04Z07:00",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05 -0700",
}

var naiveLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02 3:04 PM",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"2006-01-02",
	"1/2/2006",
}

// Importer converts booking exports into the canonical hourly events table
type Importer struct {
	mapping config.ImportMapping
	upper   cases.Caser
}

// NewImporter creates a new importer for the given column mapping
func NewImporter(mapping config.ImportMapping) *Importer {
	return &Importer{mapping: mapping, upper: cases.Upper(language.Und)}
}

type bookingColumns struct {
	start, end, zone, duration, checkins string
}

func (im *Importer) resolveColumns(t *csvstore.Table) (bookingColumns, error) {
	var cols bookingColumns
	var ok bool

	if cols.start, ok = ResolveColumn(t.Header, im.mapping.TimestampCandidates); !ok {
		cols.start = fallbackTimestampColumn
	}
	if cols.zone, ok = ResolveColumn(t.Header, im.mapping.ZoneCandidates); !ok {
		cols.zone = fallbackZoneColumn
	}
	if !t.Has(cols.start) || !t.Has(cols.zone) {
		return cols, &domain.ConfigurationError{
			Source: filepath.Base(t.Path),
			Msg:    fmt.Sprintf("could not locate timestamp/zone columns (ts=%s, zone=%s)", cols.start, cols.zone),
		}
	}
	cols.end, _ = ResolveColumn(t.Header, im.mapping.EndTimeCandidates)
	cols.duration, _ = ResolveColumn(t.Header, im.mapping.DurationMinutesCandidates)
	cols.checkins, _ = ResolveColumn(t.Header, im.mapping.CheckinsCandidates)
	return cols, nil
}

// Import expands every booking into the hours it overlaps and sums the
// result per (hour, zone). tzName overrides the mapping's default timezone.
// Stored timestamps are UTC.
func (im *Importer) Import(t *csvstore.Table, tzName string) ([]domain.HourlyEvent, error) {
	if tzName == "" {
		tzName = im.mapping.TimezoneDefault
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, &domain.ConfigurationError{Source: "importer", Msg: "unknown timezone " + tzName, Err: err}
	}
	cols, err := im.resolveColumns(t)
	if err != nil {
		return nil, err
	}

	type key struct {
		ts   int64
		zone string
	}
	sums := make(map[key]*domain.HourlyEvent)
	booked := im.mapping.BookedSlotsPerRow()
	walkins := im.mapping.EstWalkins()
	skipped := 0

	for _, rec := range t.Records {
		start, ok := parseLocalTimestamp(t.Value(rec, cols.start), loc)
		if !ok {
			skipped++
			continue
		}
		end, ok := im.bookingEnd(t, rec, cols, start, loc)
		if !ok || !start.Before(end) {
			skipped++
			continue
		}
		zone := im.normalizeZone(t.Value(rec, cols.zone))
		checkins := 0.0
		if cols.checkins != "" {
			if v, ok, err := t.Float(rec, cols.checkins); err == nil && ok {
				checkins = math.Trunc(v)
			}
		}

		for cur := utils.FloorHour(start); cur.Before(end); cur = cur.Add(time.Hour) {
			// local hours of half-hour offset zones fall on :30 in UTC
			hour := utils.FloorHour(cur.UTC())
			k := key{ts: hour.Unix(), zone: zone}
			ev, ok := sums[k]
			if !ok {
				ev = &domain.HourlyEvent{TS: hour, ZoneID: zone}
				sums[k] = ev
			}
			ev.BookedSlots += booked
			ev.Checkins += checkins
			ev.EstWalkins += walkins
		}
	}

	if len(sums) == 0 {
		return nil, &domain.ConfigurationError{
			Source: filepath.Base(t.Path),
			Msg:    "No usable rows were parsed from the CSV. Check mappings and time columns.",
		}
	}

	out := make([]domain.HourlyEvent, 0, len(sums))
	for _, ev := range sums {
		out = append(out, *ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TS.Equal(out[j].TS) {
			return out[i].TS.Before(out[j].TS)
		}
		return out[i].ZoneID < out[j].ZoneID
	})

	log.Info().
		Int("bookings", t.Len()).
		Int("skipped", skipped).
		Int("hours", len(out)).
		Str("tz", tzName).
		Msg("bookings imported")
	return out, nil
}

// ImportFile reads inPath, imports it and writes the events table to outPath
func (im *Importer) ImportFile(inPath, outPath, tzName string) ([]domain.HourlyEvent, error) {
	t, err := csvstore.ReadTable(inPath)
	if err != nil {
		return nil, &domain.ConfigurationError{Source: "importer", Msg: "cannot read export", Err: err}
	}
	rows, err := im.Import(t, tzName)
	if err != nil {
		return nil, err
	}
	if err := csvstore.WriteEvents(outPath, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (im *Importer) bookingEnd(t *csvstore.Table, rec []string, cols bookingColumns, start time.Time, loc *time.Location) (time.Time, bool) {
	switch {
	case cols.end != "":
		return parseLocalTimestamp(t.Value(rec, cols.end), loc)
	case cols.duration != "":
		minutes, err := strconv.ParseFloat(t.Value(rec, cols.duration), 64)
		if err != nil || math.IsNaN(minutes) || math.IsInf(minutes, 0) {
			return time.Time{}, false
		}
		return start.Add(time.Duration(minutes * float64(time.Minute))), true
	default:
		return start.Add(60 * time.Minute), true
	}
}

func (im *Importer) normalizeZone(raw string) string {
	z := strings.TrimSpace(raw)
	if z == "" {
		return unknownZone
	}
	if im.mapping.ZoneNormalize.Upper {
		z = im.upper.String(z)
	}
	if im.mapping.ZoneNormalize.SpacesToUnderscore {
		z = strings.ReplaceAll(z, " ", "_")
	}
	return z
}

// parseLocalTimestamp converts values carrying an offset into loc and
// localizes naive values in loc. Naive wall times that do not exist or occur
// twice in loc are rejected.
func parseLocalTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc), true
		}
	}
	upper := strings.ToUpper(s)
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, upper, time.UTC); err == nil {
			return localize(t, loc)
		}
	}
	return time.Time{}, false
}

// localize interprets the wall clock of naive in loc
func localize(naive time.Time, loc *time.Location) (time.Time, bool) {
	t := time.Date(naive.Year(), naive.Month(), naive.Day(), naive.Hour(), naive.Minute(), naive.Second(), naive.Nanosecond(), loc)
	if !sameWallClock(t, naive) {
		return time.Time{}, false
	}
	_, offset := t.Zone()
	for _, shift := range []time.Duration{-3 * time.Hour, 3 * time.Hour} {
		_, other := t.Add(shift).Zone()
		if other == offset {
			continue
		}
		alt := t.Add(time.Duration(offset-other) * time.Second)
		if sameWallClock(alt, naive) {
			return time.Time{}, false
		}
	}
	return t, true
}

func sameWallClock(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ah, amin, as := a.Clock()
	bh, bmin, bs := b.Clock()
	return ay == by && am == bm && ad == bd && ah == bh && amin == bmin && as == bs
}
