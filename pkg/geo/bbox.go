package geo

import (
	"fmt"
	"math"
)

type BoundingBox struct {
	MinLat, MinLng float64
	MaxLat, MaxLng float64
}

// BoxAround returns a box extending radiusMeters in each direction of center.
func BoxAround(center Coordinate, radiusMeters float64) BoundingBox {
	latDelta := radiusMeters / MetersPerDegree
	lngDelta := radiusMeters / (MetersPerDegree * math.Cos(rad(center.Lat)))
	return BoundingBox{
		MinLat: center.Lat - latDelta,
		MinLng: center.Lng - lngDelta,
		MaxLat: center.Lat + latDelta,
		MaxLng: center.Lng + lngDelta,
	}
}

// BoxOf returns the smallest box containing all points.
// The zero box is returned for an empty slice.
func BoxOf(points []Coordinate) BoundingBox {
	if len(points) == 0 {
		return BoundingBox{}
	}
	b := BoundingBox{
		MinLat: points[0].Lat, MaxLat: points[0].Lat,
		MinLng: points[0].Lng, MaxLng: points[0].Lng,
	}
	for _, p := range points[1:] {
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MinLng = math.Min(b.MinLng, p.Lng)
		b.MaxLng = math.Max(b.MaxLng, p.Lng)
	}
	return b
}

// Pad grows the box by degrees on every side.
func (b BoundingBox) Pad(degrees float64) BoundingBox {
	return BoundingBox{
		MinLat: b.MinLat - degrees,
		MinLng: b.MinLng - degrees,
		MaxLat: b.MaxLat + degrees,
		MaxLng: b.MaxLng + degrees,
	}
}

func (b BoundingBox) Contains(c Coordinate) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat &&
		c.Lng >= b.MinLng && c.Lng <= b.MaxLng
}

// String renders the box as "minLng,minLat,maxLng,maxLat"
func (b BoundingBox) String() string {
	return fmt.Sprintf("%f,%f,%f,%f", b.MinLng, b.MinLat, b.MaxLng, b.MaxLat)
}
