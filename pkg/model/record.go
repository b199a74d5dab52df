package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/zenride/pkg/geo"
)

// DriveRecord groups all sessions driven between the same (approximate)
// origin and destination. Sessions are ordered most recent first.
type DriveRecord struct {
	ID               uuid.UUID      `json:"id"`
	RouteFingerprint string         `json:"routeFingerprint"`
	DestinationName  string         `json:"destinationName"`
	Origin           geo.Coordinate `json:"origin"`
	Destination      geo.Coordinate `json:"destination"`
	Bookmarked       bool           `json:"bookmarked"`
	Sessions         []DriveSession `json:"sessions"`
}

func (r *DriveRecord) SessionCount() int {
	return len(r.Sessions)
}

// AllTimeAvgSpeedMph is the mean of the session averages
func (r *DriveRecord) AllTimeAvgSpeedMph() float64 {
	if len(r.Sessions) == 0 {
		return 0
	}
	return lo.SumBy(r.Sessions, func(s DriveSession) float64 {
		return s.AvgSpeedMph
	}) / float64(len(r.Sessions))
}

func (r *DriveRecord) AllTimeTopSpeedMph() float64 {
	return lo.Reduce(r.Sessions, func(acc float64, s DriveSession, _ int) float64 {
		return max(acc, s.TopSpeedMph)
	}, 0)
}

func (r *DriveRecord) AllTimeMoneySaved() decimal.Decimal {
	return lo.Reduce(r.Sessions, func(acc decimal.Decimal, s DriveSession, _ int) decimal.Decimal {
		return acc.Add(s.MoneySaved)
	}, decimal.Zero)
}

func (r *DriveRecord) TotalDistanceMiles() float64 {
	return lo.SumBy(r.Sessions, func(s DriveSession) float64 { return s.DistanceMiles })
}

func (r *DriveRecord) TotalTimeDrivenSeconds() float64 {
	return lo.SumBy(r.Sessions, func(s DriveSession) float64 { return s.DurationSeconds })
}

// LastDrivenDate returns the start time of the latest session.
// The zero time is returned for a record without sessions.
func (r *DriveRecord) LastDrivenDate() time.Time {
	return lo.Reduce(r.Sessions, func(acc time.Time, s DriveSession, _ int) time.Time {
		if s.StartTime.After(acc) {
			return s.StartTime
		}
		return acc
	}, time.Time{})
}
