// Package hazard provides the read-only camera catalog used for routing and
// proximity detection.
package hazard

import (
	"math"

	"github.com/mmcloughlin/geohash"

	"github.com/mpapenbr/zenride/pkg/geo"
	"github.com/mpapenbr/zenride/pkg/model"
)

// default geohash precision for the index (cells of roughly 4.9km x 4.9km)
const defaultPrecision uint = 5

// Catalog is an immutable set of hazards with a geohash index.
// A new Catalog is built whenever the underlying feed changes.
type Catalog struct {
	hazards   []model.Hazard
	index     map[string][]int
	precision uint
}

type CatalogOption func(c *Catalog)

func WithPrecision(precision uint) CatalogOption {
	return func(c *Catalog) {
		c.precision = precision
	}
}

func NewCatalog(hazards []model.Hazard, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		hazards:   append([]model.Hazard(nil), hazards...),
		index:     make(map[string][]int),
		precision: defaultPrecision,
	}
	for _, opt := range opts {
		opt(c)
	}
	for i := range c.hazards {
		key := geohash.EncodeWithPrecision(
			c.hazards[i].Location.Lat, c.hazards[i].Location.Lng, c.precision)
		c.index[key] = append(c.index[key], i)
	}
	return c
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.hazards)
}

// All returns a copy of the hazards
func (c *Catalog) All() []model.Hazard {
	if c == nil {
		return nil
	}
	return append([]model.Hazard(nil), c.hazards...)
}

// Nearest returns the hazard closest to p and its distance in meters.
// ok is false if the catalog is empty.
func (c *Catalog) Nearest(p geo.Coordinate) (h *model.Hazard, dist float64, ok bool) {
	if c.Len() == 0 {
		return nil, 0, false
	}
	cell := geohash.EncodeWithPrecision(p.Lat, p.Lng, c.precision)
	best, bestDist := -1, math.MaxFloat64
	for _, key := range append(geohash.Neighbors(cell), cell) {
		for _, idx := range c.index[key] {
			if d := geo.DistanceMeters(p, c.hazards[idx].Location); d < bestDist {
				best, bestDist = idx, d
			}
		}
	}
	// a candidate closer than the smallest cell extent is guaranteed to be the
	// nearest one. Otherwise there may be a closer hazard outside the 3x3 block.
	if best == -1 || bestDist > c.safeRadius(cell) {
		best, bestDist = c.scan(p)
	}
	return &c.hazards[best], bestDist, true
}

func (c *Catalog) scan(p geo.Coordinate) (best int, bestDist float64) {
	best, bestDist = -1, math.MaxFloat64
	for i := range c.hazards {
		if d := geo.DistanceMeters(p, c.hazards[i].Location); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

func (c *Catalog) safeRadius(cell string) float64 {
	box := geohash.BoundingBox(cell)
	height := geo.DistanceMeters(
		geo.Coordinate{Lat: box.MinLat, Lng: box.MinLng},
		geo.Coordinate{Lat: box.MaxLat, Lng: box.MinLng})
	// width is narrowest at the pole-facing edge
	edgeLat := box.MaxLat
	if math.Abs(box.MinLat) > math.Abs(box.MaxLat) {
		edgeLat = box.MinLat
	}
	width := geo.DistanceMeters(
		geo.Coordinate{Lat: edgeLat, Lng: box.MinLng},
		geo.Coordinate{Lat: edgeLat, Lng: box.MaxLng})
	return math.Min(height, width)
}

// InBox returns all hazards located inside box
func (c *Catalog) InBox(box geo.BoundingBox) []model.Hazard {
	if c == nil {
		return nil
	}
	ret := make([]model.Hazard, 0)
	for i := range c.hazards {
		if box.Contains(c.hazards[i].Location) {
			ret = append(ret, c.hazards[i])
		}
	}
	return ret
}
