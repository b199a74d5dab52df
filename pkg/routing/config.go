package routing

import "time"

// Config holds the tunable thresholds of route acquisition and reroute detection.
type Config struct {
	// hazard footprint half size used for avoid areas
	AvoidRadiusMeters float64
	// a polyline point closer than this to a hazard counts the hazard
	HazardMatchMeters float64
	// polyline bounding box padding (degrees) for the hazard pre-filter
	HazardPrefilterPadDegrees float64
	// hazard-free routes within both tolerances of a kept route are dropped
	DuplicateTimeSeconds  float64
	DuplicateLengthMeters float64
	OffRouteMeters        float64
	LookAheadSegments     int
	RerouteCheckInterval  time.Duration
	SearchDebounce        time.Duration
	RequestTimeout        time.Duration
}

func DefaultConfig() Config {
	return Config{
		AvoidRadiusMeters:         50,
		HazardMatchMeters:         70,
		HazardPrefilterPadDegrees: 0.001,
		DuplicateTimeSeconds:      10,
		DuplicateLengthMeters:     100,
		OffRouteMeters:            100,
		LookAheadSegments:         50,
		RerouteCheckInterval:      time.Second,
		SearchDebounce:            175 * time.Millisecond,
		RequestTimeout:            20 * time.Second,
	}
}
