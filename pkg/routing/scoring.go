package routing

import (
	"math"

	"github.com/samber/lo"

	"github.com/mpapenbr/zenride/pkg/geo"
	"github.com/mpapenbr/zenride/pkg/model"
)

// CountHazards returns the number of distinct hazards which have at least one
// polyline point closer than matchMeters. A padded bounding box of the
// polyline is used to skip hazards which cannot match.
//
//nolint:whitespace // editor/linter issue
func CountHazards(
	polyline []geo.Coordinate,
	hazards []model.Hazard,
	matchMeters, padDegrees float64,
) int {
	if len(polyline) == 0 {
		return 0
	}
	box := geo.BoxOf(polyline).Pad(padDegrees)
	return lo.CountBy(hazards, func(h model.Hazard) bool {
		if !box.Contains(h.Location) {
			return false
		}
		return lo.ContainsBy(polyline, func(p geo.Coordinate) bool {
			return geo.DistanceMeters(p, h.Location) < matchMeters
		})
	})
}

// AvoidAreas builds the avoidance footprints for all hazards
func AvoidAreas(hazards []model.Hazard, radiusMeters float64) []geo.BoundingBox {
	return lo.Map(hazards, func(h model.Hazard, _ int) geo.BoundingBox {
		return h.AvoidanceFootprint(radiusMeters)
	})
}

// MergeRoutes appends the hazard-free routes to the standard ones, dropping each
// hazard-free route that duplicates an already kept route.
func MergeRoutes(standard, hazardFree []model.Route, cfg *Config) []model.Route {
	ret := append(make([]model.Route, 0, len(standard)+len(hazardFree)), standard...)
	for _, candidate := range hazardFree {
		dup := lo.ContainsBy(ret, func(kept model.Route) bool {
			return isDuplicate(&kept, &candidate, cfg)
		})
		if !dup {
			ret = append(ret, candidate)
		}
	}
	return ret
}

func isDuplicate(a, b *model.Route, cfg *Config) bool {
	return math.Abs(a.TravelTimeSeconds-b.TravelTimeSeconds) < cfg.DuplicateTimeSeconds &&
		math.Abs(a.LengthMeters-b.LengthMeters) < cfg.DuplicateLengthMeters
}

// DefaultIndex picks the route to preselect.
// With hazard avoidance the first hazard-free route wins, otherwise the first one.
func DefaultIndex(routes []model.Route, prefs model.Preferences) int {
	if !prefs.AvoidHazards {
		return 0
	}
	_, idx, ok := lo.FindIndexOf(routes, func(r model.Route) bool { return r.HazardFree })
	if !ok {
		return 0
	}
	return idx
}
