package store

import (
	"slices"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/zenride/pkg/model"
)

// Stats aggregates all records of the store
type Stats struct {
	TotalSavedAllTime      decimal.Decimal `json:"totalSavedAllTime"`
	TotalRideCount         int             `json:"totalRideCount"`
	TotalSavedCameras      int             `json:"totalSavedCameras"`
	TotalDistanceMiles     float64         `json:"totalDistanceMiles"`
	TotalTimeDrivenSeconds float64         `json:"totalTimeDrivenSeconds"`
	AllTimeTopSpeedMph     float64         `json:"allTimeTopSpeedMph"`
	AvgZenScore            int             `json:"avgZenScore"`
	CurrentStreak          int             `json:"currentStreak"`
	TodayMiles             float64         `json:"todayMiles"`
}

func (s *RecordStore) Stats() Stats {
	records := s.Records()
	now := s.now()
	sessions := lo.FlatMap(records, func(r model.DriveRecord, _ int) []model.DriveSession {
		return r.Sessions
	})

	ret := Stats{
		TotalSavedAllTime: lo.Reduce(records,
			func(acc decimal.Decimal, r model.DriveRecord, _ int) decimal.Decimal {
				return acc.Add(r.AllTimeMoneySaved())
			}, decimal.Zero),
		TotalRideCount: len(sessions),
		TotalSavedCameras: lo.SumBy(sessions, func(s model.DriveSession) int {
			return s.SavedCameraCount()
		}),
		TotalDistanceMiles: lo.SumBy(records, func(r model.DriveRecord) float64 {
			return r.TotalDistanceMiles()
		}),
		TotalTimeDrivenSeconds: lo.SumBy(records, func(r model.DriveRecord) float64 {
			return r.TotalTimeDrivenSeconds()
		}),
		AllTimeTopSpeedMph: lo.Reduce(records, func(acc float64, r model.DriveRecord, _ int) float64 {
			return max(acc, r.AllTimeTopSpeedMph())
		}, 0),
		CurrentStreak: currentStreak(sessions, now),
	}
	if len(sessions) > 0 {
		ret.AvgZenScore = lo.SumBy(sessions, func(s model.DriveSession) int {
			return s.ZenScore
		}) / len(sessions)
	}
	today := startOfDay(now)
	ret.TodayMiles = lo.SumBy(sessions, func(s model.DriveSession) float64 {
		if startOfDay(s.StartTime.In(now.Location())).Equal(today) {
			return s.DistanceMiles
		}
		return 0
	})
	return ret
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// currentStreak counts consecutive days with at least one session, ending
// today. No session today means no streak. Sessions in the future are ignored.
func currentStreak(sessions []model.DriveSession, now time.Time) int {
	days := lo.Uniq(lo.Map(sessions, func(s model.DriveSession, _ int) time.Time {
		return startOfDay(s.StartTime.In(now.Location()))
	}))
	slices.SortFunc(days, func(a, b time.Time) int { return b.Compare(a) })

	streak := 0
	cursor := startOfDay(now)
	for _, day := range days {
		switch {
		case day.Equal(cursor):
			streak++
			cursor = startOfDay(cursor.AddDate(0, 0, -1))
		case day.Before(cursor):
			return streak
		}
	}
	return streak
}
