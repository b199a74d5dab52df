package model

import (
	"time"

	"github.com/mpapenbr/zenride/pkg/geo"
)

// ZoneStatus is ordered: Safe < Approach < Danger
type ZoneStatus int

const (
	ZoneSafe ZoneStatus = iota
	ZoneApproach
	ZoneDanger
)

func (z ZoneStatus) String() string {
	switch z {
	case ZoneSafe:
		return "safe"
	case ZoneApproach:
		return "approach"
	case ZoneDanger:
		return "danger"
	default:
		return "unknown"
	}
}

// PositionSample is a single GPS fix (live or simulated)
type PositionSample struct {
	Location       geo.Coordinate `json:"location"`
	SpeedMps       float64        `json:"speedMps"`
	BearingDegrees float64        `json:"bearingDegrees"`
	Timestamp      time.Time      `json:"timestamp"`
}

func (p *PositionSample) SpeedMph() float64 {
	return geo.MpsToMph(p.SpeedMps)
}
