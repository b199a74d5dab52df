package routing

import (
	"math"

	"github.com/mpapenbr/zenride/pkg/geo"
	"github.com/mpapenbr/zenride/pkg/model"
)

// ActiveRoute is the route selected for navigation together with its
// cumulative distance table. The table is the single source of truth for the
// distance travelled along the route.
type ActiveRoute struct {
	Index      int
	Route      model.Route
	cumulative []float64
}

// Select builds the ActiveRoute for routes[index]
func Select(routes []model.Route, index int) (*ActiveRoute, error) {
	if len(routes) == 0 {
		return nil, ErrNoRoutes
	}
	if index < 0 || index >= len(routes) {
		return nil, ErrIndexOutOfRange
	}
	return &ActiveRoute{
		Index:      index,
		Route:      routes[index],
		cumulative: geo.CumulativeDistances(routes[index].Polyline),
	}, nil
}

// DistanceTraveled returns the distance from the start up to the vertex at
// progressIndex. The index is clamped to the polyline.
func (a *ActiveRoute) DistanceTraveled(progressIndex int) float64 {
	if len(a.cumulative) == 0 {
		return 0
	}
	return a.cumulative[max(0, min(progressIndex, len(a.cumulative)-1))]
}

// TotalMeters is the polyline length
func (a *ActiveRoute) TotalMeters() float64 {
	if len(a.cumulative) == 0 {
		return 0
	}
	return a.cumulative[len(a.cumulative)-1]
}

// NextInstruction returns the index of the first instruction ahead of
// traveledMeters or -1 if there is none.
func (a *ActiveRoute) NextInstruction(traveledMeters float64) int {
	for i := range a.Route.Instructions {
		if a.Route.Instructions[i].RouteOffsetMeters > traveledMeters {
			return i
		}
	}
	return -1
}

// NextAlternative returns the index following current in round-robin order
func NextAlternative(current, count int) int {
	if count <= 0 {
		return 0
	}
	return (current + 1) % count
}

// RerouteSignal is returned by CheckReroute when the position left the route
type RerouteSignal struct {
	DistanceMeters float64
	ProgressIndex  int
}

// CheckReroute matches pos against the segments of polyline starting at
// progressIndex (bounded by lookAhead segments).
// It returns the (never decreasing) progress index and a signal if the
// distance to the route exceeds offRouteMeters.
//
//nolint:whitespace // editor/linter issue
func CheckReroute(
	pos geo.Coordinate,
	polyline []geo.Coordinate,
	progressIndex int,
	cfg *Config,
) (*RerouteSignal, int, error) {
	n := len(polyline)
	if n < 2 {
		return nil, progressIndex, ErrPolylineTooShort
	}
	progressIndex = max(0, progressIndex)
	minDist := math.MaxFloat64
	newProgress := progressIndex
	if progressIndex < n-1 {
		end := min(progressIndex+cfg.LookAheadSegments, n-1)
		closest := progressIndex
		for i := progressIndex; i < end; i++ {
			if d := geo.DistanceToSegmentMeters(pos, polyline[i], polyline[i+1]); d < minDist {
				minDist, closest = d, i
			}
		}
		if closest > progressIndex {
			newProgress = closest
		}
	} else {
		minDist = geo.DistanceMeters(pos, polyline[n-1])
	}
	if minDist > cfg.OffRouteMeters {
		return &RerouteSignal{DistanceMeters: minDist, ProgressIndex: newProgress},
			newProgress, nil
	}
	return nil, newProgress, nil
}
