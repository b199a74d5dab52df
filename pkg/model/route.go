package model

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mpapenbr/zenride/pkg/geo"
)

type (
	InstructionKind string
	RoadFeature     string
	VehicleMode     string
)

const (
	KindStraight     InstructionKind = "straight"
	KindLeft         InstructionKind = "left"
	KindRight        InstructionKind = "right"
	KindUTurn        InstructionKind = "uturn"
	KindArrive       InstructionKind = "arrive"
	KindEnterHighway InstructionKind = "enter-highway"
	KindExitHighway  InstructionKind = "exit-highway"
	KindRoundabout   InstructionKind = "roundabout"
)

const (
	FeatureNone          RoadFeature = ""
	FeatureStopSign      RoadFeature = "stop-sign"
	FeatureTrafficLight  RoadFeature = "traffic-light"
	FeatureFreewayEntry  RoadFeature = "freeway-entry"
	FeatureFreewayExit   RoadFeature = "freeway-exit"
	FeatureRoundabout    RoadFeature = "roundabout"
	highwayEnterRawType              = "MOTORWAY_ENTER"
	highwayExitRawType               = "MOTORWAY_EXIT"
)

const (
	VehicleCar          VehicleMode = "car"
	VehicleSportsCar    VehicleMode = "sportsCar"
	VehicleElectricCar  VehicleMode = "electricCar"
	VehicleSUV          VehicleMode = "suv"
	VehicleTruck        VehicleMode = "truck"
	VehicleMotorcycle   VehicleMode = "motorcycle"
	VehicleScooter      VehicleMode = "scooter"
	VehicleBicycle      VehicleMode = "bicycle"
	VehicleMountainBike VehicleMode = "mountainBike"
	VehicleWalking      VehicleMode = "walking"
	VehicleRunning      VehicleMode = "running"
	VehicleSkateboard   VehicleMode = "skateboard"
)

// Instruction is a turn-by-turn maneuver along a route.
type Instruction struct {
	RouteOffsetMeters float64         `json:"routeOffsetMeters"`
	TravelTimeSeconds float64         `json:"travelTimeSeconds"`
	PolylineIndex     int             `json:"polylineIndex"`
	Kind              InstructionKind `json:"kind"`
	RawType           string          `json:"rawType"`
	Street            string          `json:"street,omitempty"`
	Text              string          `json:"text"`
}

// KindFromRaw maps a routing service maneuver type to an InstructionKind
func KindFromRaw(raw string) InstructionKind {
	switch {
	case raw == "TURN_LEFT", raw == "KEEP_LEFT", raw == "SHARP_LEFT", raw == "BEAR_LEFT":
		return KindLeft
	case raw == "TURN_RIGHT", raw == "KEEP_RIGHT", raw == "SHARP_RIGHT", raw == "BEAR_RIGHT":
		return KindRight
	case raw == "ARRIVE", strings.HasPrefix(raw, "ARRIVE_"):
		return KindArrive
	case strings.Contains(raw, "UTURN"):
		return KindUTurn
	case raw == highwayEnterRawType:
		return KindEnterHighway
	case raw == highwayExitRawType:
		return KindExitHighway
	case strings.HasPrefix(raw, "ROUNDABOUT"):
		return KindRoundabout
	default:
		return KindStraight
	}
}

// RoadFeature derives a notable road feature from the maneuver type and text.
func (i *Instruction) RoadFeature() RoadFeature {
	switch {
	case i.RawType == highwayEnterRawType:
		return FeatureFreewayEntry
	case i.RawType == highwayExitRawType:
		return FeatureFreewayExit
	case strings.HasPrefix(i.RawType, "ROUNDABOUT"):
		return FeatureRoundabout
	}
	text := strings.ToLower(i.Text)
	switch {
	case strings.Contains(text, "traffic signal"), strings.Contains(text, "traffic light"):
		return FeatureTrafficLight
	case strings.Contains(text, "stop sign"):
		return FeatureStopSign
	}
	return FeatureNone
}

// well known route tags
const (
	TagZeroCameras = "zero_cameras"
	TagLessTraffic = "less_traffic"
	TagHasTolls    = "has_tolls"
)

// DefaultInstructionText is used for maneuvers without a message
const DefaultInstructionText = "Continue"

// Route is one candidate route returned by the route provider.
// Invariant: HazardFree implies HazardCount == 0.
type Route struct {
	ID                  string           `json:"id"`
	LengthMeters        float64          `json:"lengthMeters"`
	TravelTimeSeconds   float64          `json:"travelTimeSeconds"`
	TrafficDelaySeconds float64          `json:"trafficDelaySeconds"`
	Polyline            []geo.Coordinate `json:"polyline"`
	Instructions        []Instruction    `json:"instructions"`
	HazardCount         int              `json:"hazardCount"`
	HazardFree          bool             `json:"hazardFree"`
	Tags                []string         `json:"tags,omitempty"`
}

func (r *Route) HasTag(tag string) bool {
	return slices.Contains(r.Tags, tag)
}

// SavedFines is the amount a driver avoids by taking a hazard-free route
// compared to passing HazardCount cameras.
func (r *Route) SavedFines(fine decimal.Decimal) decimal.Decimal {
	return fine.Mul(decimal.NewFromInt(int64(r.HazardCount)))
}

type Preferences struct {
	AvoidTolls    bool `json:"avoidTolls"`
	AvoidHighways bool `json:"avoidHighways"`
	AvoidHazards  bool `json:"avoidHazards"`
}

// DefaultPreferences returns the routing preferences a vehicle mode starts with.
// Toll avoidance is never a mode default.
func (v VehicleMode) DefaultPreferences() Preferences {
	p := Preferences{}
	switch v {
	case VehicleMotorcycle, VehicleScooter, VehicleSportsCar:
		p.AvoidHazards = true
	}
	switch v {
	case VehicleBicycle, VehicleMountainBike, VehicleScooter,
		VehicleWalking, VehicleRunning, VehicleSkateboard:
		p.AvoidHighways = true
	}
	return p
}
