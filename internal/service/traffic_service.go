package service

import "time"

// Traffic index baseline and the rush-hour bump applied on top of it
const (
	trafficBaseline = 100.0
	trafficRushBump = 40.0
)

// TrafficService estimates road congestion around the facility
type TrafficService struct{}

// NewTrafficService creates a new traffic service
func NewTrafficService() *TrafficService {
	return &TrafficService{}
}

// Index returns the traffic index for the hour containing ts
func (s *TrafficService) Index(ts time.Time) float64 {
	return s.calculateCongestionIndex(ts.Hour())
}

// calculateCongestionIndex is a flat baseline with morning and evening rush bumps
func (s *TrafficService) calculateCongestionIndex(hour int) float64 {
	switch hour {
	case 7, 8, 16, 17:
		return trafficBaseline + trafficRushBump
	default:
		return trafficBaseline
	}
}
