// Package achievement derives badges from the drive journal.
package achievement

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/zenride/pkg/model"
	"github.com/mpapenbr/zenride/pkg/store"
)

type Achievement struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Subtitle string  `json:"subtitle"`
	Earned   bool    `json:"earned"`
	Progress float64 `json:"progress"` // 0..1
}

// Journal is the part of the record store achievements are computed from
type Journal interface {
	Records() []model.DriveRecord
	Stats() store.Stats
}

var _ Journal = (*store.RecordStore)(nil)

func ratio(v, target float64) float64 {
	return min(1, v/target)
}

func count(n, target int) (bool, float64) {
	return n >= target, ratio(float64(n), float64(target))
}

// perfect means at least one camera zone and all of them passed safely
func perfect(s *model.DriveSession) bool {
	return len(s.ZoneEvents) > 0 && s.PotentialTicketCount() == 0
}

// Compute returns all badges in display order.
//
//nolint:funlen // a list of definitions
func Compute(j Journal) []Achievement {
	st := j.Stats()
	sessions := lo.FlatMap(j.Records(), func(r model.DriveRecord, _ int) []model.DriveSession {
		return r.Sessions
	})
	byTimeOfDay := func(tod model.TimeOfDay) int {
		return lo.CountBy(sessions, func(s model.DriveSession) bool { return s.TimeOfDay == tod })
	}
	perfectRides := lo.CountBy(sessions, func(s model.DriveSession) bool { return perfect(&s) })

	ret := make([]Achievement, 0, 10)
	add := func(id, title, subtitle string, earned bool, progress float64) {
		ret = append(ret, Achievement{
			ID: id, Title: title, Subtitle: subtitle, Earned: earned, Progress: progress,
		})
	}

	earned, progress := count(st.TotalRideCount, 10)
	add("road_warrior", "Road Warrior", "Complete 10 rides", earned, progress)

	zenProgress := ratio(float64(st.TotalRideCount), 10)
	if st.TotalRideCount >= 10 {
		zenProgress = ratio(float64(st.AvgZenScore), 80)
	}
	add("zen_master", "Zen Master", "Avg Zen Score ≥ 80 over 10 rides",
		st.AvgZenScore >= 80 && st.TotalRideCount >= 10, zenProgress)

	earned, progress = count(byTimeOfDay(model.Night), 5)
	add("night_rider", "Night Rider", "5 night rides", earned, progress)

	earned, progress = count(st.TotalSavedCameras, 10)
	add("camera_dodger", "Camera Dodger", "Avoid 10 speed cameras", earned, progress)

	add("speed_demon", "Speed Demon", "Record a top speed > 80 mph",
		st.AllTimeTopSpeedMph > 80, ratio(st.AllTimeTopSpeedMph, 80))

	add("explorer", "Explorer", "Ride 100+ miles total",
		st.TotalDistanceMiles >= 100, ratio(st.TotalDistanceMiles, 100))

	earned, progress = count(byTimeOfDay(model.MorningCommute), 5)
	add("early_bird", "Early Bird", "5 morning commute rides", earned, progress)

	earned, progress = count(perfectRides, 5)
	add("ghost_rider", "Ghost Rider", "5 rides with zero camera incidents", earned, progress)

	earned, progress = count(st.CurrentStreak, 3)
	add("on_a_streak", "On a Streak", "Ride 3 days in a row", earned, progress)

	saved := st.TotalSavedAllTime.InexactFloat64()
	add("money_saver", "Money Saver", "Save $500+ in potential fines",
		st.TotalSavedAllTime.GreaterThanOrEqual(decimal.NewFromInt(500)), ratio(saved, 500))

	return ret
}

func EarnedCount(j Journal) int {
	return lo.CountBy(Compute(j), func(a Achievement) bool { return a.Earned })
}

// RecentlyEarned returns the last earned badge in display order if more
// badges are earned than previousCount.
func RecentlyEarned(j Journal, previousCount int) (Achievement, bool) {
	earned := lo.Filter(Compute(j), func(a Achievement, _ int) bool { return a.Earned })
	if len(earned) <= previousCount {
		return Achievement{}, false
	}
	return earned[len(earned)-1], true
}
