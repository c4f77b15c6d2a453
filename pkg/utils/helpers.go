package utils

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Clamp limits a value between min and max
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// RoundTo rounds a float half away from zero to the given decimal places
func RoundTo(value float64, places int) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return value
	}
	return decimal.NewFromFloat(value).Round(int32(places)).InexactFloat64()
}

// CelsiusToFahrenheit converts a temperature reading
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// FloorHour drops minutes and below of t's wall clock. It subtracts rather
// than rebuilding the time so an hour repeated by a DST change stays on the
// same offset.
func FloorHour(t time.Time) time.Time {
	return t.Add(-(time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())))
}

// FloorDay returns midnight of t's calendar day in t's location
func FloorDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Mean returns the arithmetic mean, or 0 for an empty slice
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
