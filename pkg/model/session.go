package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/zenride/pkg/geo"
)

type (
	Outcome   string
	TimeOfDay string
)

const (
	OutcomeSaved           Outcome = "saved"
	OutcomePotentialTicket Outcome = "potentialTicket"
)

const (
	MorningCommute TimeOfDay = "morningCommute"
	Midday         TimeOfDay = "midday"
	EveningCommute TimeOfDay = "eveningCommute"
	Night          TimeOfDay = "night"
)

// TimeOfDayFor classifies a departure hour (0-23)
func TimeOfDayFor(hour int) TimeOfDay {
	switch {
	case hour >= 6 && hour < 9:
		return MorningCommute
	case hour >= 9 && hour < 16:
		return Midday
	case hour >= 16 && hour < 19:
		return EveningCommute
	default:
		return Night
	}
}

// CameraZoneEvent is recorded when the vehicle leaves a camera zone.
type CameraZoneEvent struct {
	HazardID      string  `json:"hazardId"`
	HazardStreet  string  `json:"hazardStreet"`
	SpeedLimitMph int     `json:"speedLimitMph"`
	SpeedAtEntry  float64 `json:"speedAtEntry"`
	DidSlowDown   bool    `json:"didSlowDown"`
	Outcome       Outcome `json:"outcome"`
}

// DriveSession is immutable once recorded, except for Mood which may be
// attached once afterwards.
type DriveSession struct {
	ID                  uuid.UUID         `json:"id"`
	StartTime           time.Time         `json:"startTime"`
	DepartureHour       int               `json:"departureHour"`
	SpeedReadings       []float64         `json:"speedReadings"`
	ZoneEvents          []CameraZoneEvent `json:"zoneEvents"`
	AvgSpeedMph         float64           `json:"avgSpeedMph"`
	TopSpeedMph         float64           `json:"topSpeedMph"`
	DurationSeconds     float64           `json:"durationSeconds"`
	DistanceMiles       float64           `json:"distanceMiles"`
	TrafficDelaySeconds float64           `json:"trafficDelaySeconds"`
	TimeOfDay           TimeOfDay         `json:"timeOfDay"`
	MoneySaved          decimal.Decimal   `json:"moneySaved"`
	ZenScore            int               `json:"zenScore"`
	Mood                *string           `json:"mood,omitempty"`
}

func (s *DriveSession) SavedCameraCount() int {
	return lo.CountBy(s.ZoneEvents, func(e CameraZoneEvent) bool {
		return e.Outcome == OutcomeSaved
	})
}

func (s *DriveSession) PotentialTicketCount() int {
	return lo.CountBy(s.ZoneEvents, func(e CameraZoneEvent) bool {
		return e.Outcome == OutcomePotentialTicket
	})
}

// PendingSession carries the values collected during a drive until the
// drive is stopped and the session gets recorded.
type PendingSession struct {
	SpeedReadings          []float64
	ZoneEvents             []CameraZoneEvent
	TopSpeedMph            float64
	AvgSpeedMph            float64
	ZenScore               int
	DepartureTime          time.Time
	DurationSeconds        float64
	DistanceMiles          float64
	Origin                 geo.Coordinate
	Destination            geo.Coordinate
	DestinationName        string
	PlannedDurationSeconds float64
}

// ToSession builds the immutable session. fine is the amount a single
// potential ticket would have cost.
func (p *PendingSession) ToSession(fine decimal.Decimal, mood *string) DriveSession {
	s := DriveSession{
		ID:                  uuid.New(),
		StartTime:           p.DepartureTime,
		DepartureHour:       p.DepartureTime.Hour(),
		SpeedReadings:       append([]float64(nil), p.SpeedReadings...),
		ZoneEvents:          append([]CameraZoneEvent(nil), p.ZoneEvents...),
		AvgSpeedMph:         p.AvgSpeedMph,
		TopSpeedMph:         p.TopSpeedMph,
		DurationSeconds:     p.DurationSeconds,
		DistanceMiles:       p.DistanceMiles,
		TrafficDelaySeconds: max(0, p.DurationSeconds-p.PlannedDurationSeconds),
		TimeOfDay:           TimeOfDayFor(p.DepartureTime.Hour()),
		ZenScore:            p.ZenScore,
		Mood:                mood,
	}
	s.MoneySaved = fine.Mul(decimal.NewFromInt(int64(s.SavedCameraCount())))
	return s
}

// DriveSummary is handed to the presentation layer after a drive.
type DriveSummary struct {
	DistanceMiles     float64         `json:"distanceMiles"`
	ZenScore          int             `json:"zenScore"`
	MoneySavedDollars decimal.Decimal `json:"moneySavedDollars"`
}
