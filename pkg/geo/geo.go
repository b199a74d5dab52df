// Package geo contains the spherical-earth helpers used for routing,
// proximity detection and simulation.
package geo

import (
	"fmt"
	"math"
)

const (
	EarthRadiusMeters = 6_371_000.0
	MetersPerDegree   = 111_111.0
	FeetPerMeter      = 3.28084
	MetersPerMile     = 1609.344
	MphPerMps         = 2.23694
)

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// Valid reports whether latitude and longitude are within their ranges
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180 &&
		!math.IsNaN(c.Lat) && !math.IsNaN(c.Lng)
}

func rad(deg float64) float64 { return deg * math.Pi / 180 }
func deg(rad float64) float64 { return rad * 180 / math.Pi }

// DistanceMeters returns the great-circle distance using the haversine formula.
func DistanceMeters(a, b Coordinate) float64 {
	lat1, lat2 := rad(a.Lat), rad(b.Lat)
	dLat := lat2 - lat1
	dLng := rad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// BearingDegrees returns the initial bearing from -> to, normalized to [0,360).
func BearingDegrees(from, to Coordinate) float64 {
	lat1, lat2 := rad(from.Lat), rad(to.Lat)
	dLng := rad(to.Lng - from.Lng)
	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	b := math.Mod(deg(math.Atan2(y, x))+360, 360)
	if b >= 360 {
		b = 0
	}
	return b
}

// Destination returns the point reached when travelling distanceMeters
// from `from` along bearingDegrees.
func Destination(from Coordinate, distanceMeters, bearingDegrees float64) Coordinate {
	delta := distanceMeters / EarthRadiusMeters
	theta := rad(bearingDegrees)
	lat1, lng1 := rad(from.Lat), rad(from.Lng)
	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) +
		math.Cos(lat1)*math.Sin(delta)*math.Cos(theta))
	lng2 := lng1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(lat1),
		math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2))
	return Coordinate{Lat: deg(lat2), Lng: normalizeLng(deg(lng2))}
}

func normalizeLng(lng float64) float64 {
	return math.Mod(lng+540, 360) - 180
}

// DistanceToSegmentMeters returns the distance from p to the closest point of
// the segment a-b. Longitudes are scaled by cos(lat) so the projection works on
// a locally flat plane, which is accurate enough for segments of a few km.
func DistanceToSegmentMeters(p, a, b Coordinate) float64 {
	scale := math.Cos(rad(p.Lat))
	ax, ay := a.Lng*scale, a.Lat
	bx, by := b.Lng*scale, b.Lat
	px, py := p.Lng*scale, p.Lat
	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return DistanceMeters(p, a)
	}
	t := ((px-ax)*dx + (py-ay)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	closest := Coordinate{Lat: a.Lat + t*(b.Lat-a.Lat), Lng: a.Lng + t*(b.Lng-a.Lng)}
	return DistanceMeters(p, closest)
}

// PolylineLength returns the summed segment length of the polyline in meters.
func PolylineLength(points []Coordinate) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += DistanceMeters(points[i-1], points[i])
	}
	return total
}

// CumulativeDistances returns for every vertex the distance travelled along
// the polyline from the first vertex.
func CumulativeDistances(points []Coordinate) []float64 {
	ret := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		ret[i] = ret[i-1] + DistanceMeters(points[i-1], points[i])
	}
	return ret
}

func MetersToFeet(m float64) float64 { return m * FeetPerMeter }
func MetersToMiles(m float64) float64 { return m / MetersPerMile }
func MpsToMph(mps float64) float64   { return mps * MphPerMps }
func MphToMps(mph float64) float64   { return mph / MphPerMps }
