package store

import (
	"fmt"
	"math"

	"github.com/mpapenbr/zenride/pkg/geo"
)

// GridDegrees is the resolution (about 500m) used to group drives by route
const GridDegrees = 0.005

func snap(v float64) float64 {
	s := math.Round(v/GridDegrees) * GridDegrees
	if s == 0 {
		return 0 // avoid "-0.0000"
	}
	return s
}

// Fingerprint identifies a route by its snapped origin and destination.
func Fingerprint(origin, dest geo.Coordinate) string {
	return fmt.Sprintf("%.4f,%.4f|%.4f,%.4f",
		snap(origin.Lat), snap(origin.Lng), snap(dest.Lat), snap(dest.Lng))
}
