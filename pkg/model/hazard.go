package model

import (
	"github.com/mpapenbr/zenride/pkg/geo"
)

// Hazard is a fixed speed camera location.
type Hazard struct {
	ID              string         `json:"id"`
	Street          string         `json:"street"`
	FromCrossStreet string         `json:"fromCrossStreet,omitempty"`
	ToCrossStreet   string         `json:"toCrossStreet,omitempty"`
	SpeedLimitMph   int            `json:"speedLimitMph"`
	Location        geo.Coordinate `json:"location"`
}

// DisplayName returns "street @ cross street" if a cross street is known
func (h *Hazard) DisplayName() string {
	if h.FromCrossStreet == "" {
		return h.Street
	}
	return h.Street + " @ " + h.FromCrossStreet
}

// AvoidanceFootprint is the area a hazard-free route request must not touch.
// It is derived on demand and never stored.
func (h *Hazard) AvoidanceFootprint(radiusMeters float64) geo.BoundingBox {
	return geo.BoxAround(h.Location, radiusMeters)
}
