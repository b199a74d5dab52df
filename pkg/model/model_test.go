//nolint:funlen // ok for tests
package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	gotest "gotest.tools/v3/assert"

	"github.com/mpapenbr/zenride/pkg/geo"
)

func TestTimeOfDayFor(t *testing.T) {
	tests := []struct {
		hour int
		want TimeOfDay
	}{
		{5, Night},
		{6, MorningCommute},
		{8, MorningCommute},
		{9, Midday},
		{15, Midday},
		{16, EveningCommute},
		{18, EveningCommute},
		{19, Night},
		{0, Night},
	}
	for _, tt := range tests {
		gotest.Equal(t, tt.want, TimeOfDayFor(tt.hour), "hour %d", tt.hour)
	}
}

func TestKindFromRaw(t *testing.T) {
	tests := map[string]InstructionKind{
		"TURN_LEFT":        KindLeft,
		"KEEP_LEFT":        KindLeft,
		"TURN_RIGHT":       KindRight,
		"KEEP_RIGHT":       KindRight,
		"ARRIVE":           KindArrive,
		"MAKE_UTURN":       KindUTurn,
		"MOTORWAY_ENTER":   KindEnterHighway,
		"MOTORWAY_EXIT":    KindExitHighway,
		"ROUNDABOUT_CROSS": KindRoundabout,
		"STRAIGHT":         KindStraight,
		"":                 KindStraight,
	}
	for raw, want := range tests {
		assert.Equal(t, want, KindFromRaw(raw), raw)
	}
}

func TestInstructionRoadFeature(t *testing.T) {
	tests := []struct {
		name string
		in   Instruction
		want RoadFeature
	}{
		{"enter", Instruction{RawType: "MOTORWAY_ENTER"}, FeatureFreewayEntry},
		{"exit", Instruction{RawType: "MOTORWAY_EXIT"}, FeatureFreewayExit},
		{"roundabout", Instruction{RawType: "ROUNDABOUT_LEFT"}, FeatureRoundabout},
		{"signal", Instruction{Text: "At the Traffic Signal turn left"}, FeatureTrafficLight},
		{"light", Instruction{Text: "after the traffic light"}, FeatureTrafficLight},
		{"stop", Instruction{Text: "At the stop sign turn right"}, FeatureStopSign},
		{"none", Instruction{Text: "Continue on Main St"}, FeatureNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.RoadFeature())
		})
	}
}

func TestHazardDisplayName(t *testing.T) {
	h := Hazard{Street: "Main St", FromCrossStreet: "1st Ave"}
	assert.Equal(t, "Main St @ 1st Ave", h.DisplayName())
	h.FromCrossStreet = ""
	assert.Equal(t, "Main St", h.DisplayName())
}

func TestPendingSessionToSession(t *testing.T) {
	departure := time.Date(2024, 5, 6, 7, 30, 0, 0, time.Local)
	p := PendingSession{
		ZoneEvents: []CameraZoneEvent{
			{HazardID: "1", Outcome: OutcomeSaved},
			{HazardID: "2", Outcome: OutcomeSaved},
			{HazardID: "3", Outcome: OutcomePotentialTicket},
		},
		DepartureTime:          departure,
		DurationSeconds:        900,
		PlannedDurationSeconds: 1000,
		ZenScore:               95,
	}
	s := p.ToSession(decimal.NewFromInt(100), nil)

	assert.True(t, decimal.NewFromInt(200).Equal(s.MoneySaved), s.MoneySaved.String())
	assert.Equal(t, 2, s.SavedCameraCount())
	assert.Equal(t, 1, s.PotentialTicketCount())
	assert.Equal(t, MorningCommute, s.TimeOfDay)
	assert.Equal(t, 7, s.DepartureHour)
	assert.Equal(t, 0.0, s.TrafficDelaySeconds)
	assert.Nil(t, s.Mood)

	p.DurationSeconds = 1300
	s = p.ToSession(decimal.NewFromInt(100), nil)
	assert.Equal(t, 300.0, s.TrafficDelaySeconds)
}

func TestDriveRecordAggregates(t *testing.T) {
	t1 := time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)
	r := DriveRecord{
		Origin:      geo.Coordinate{Lat: 1, Lng: 2},
		Destination: geo.Coordinate{Lat: 3, Lng: 4},
		Sessions: []DriveSession{
			{
				StartTime: t2, AvgSpeedMph: 30, TopSpeedMph: 50, DistanceMiles: 5,
				DurationSeconds: 600, MoneySaved: decimal.NewFromInt(100),
			},
			{
				StartTime: t1, AvgSpeedMph: 20, TopSpeedMph: 60, DistanceMiles: 4,
				DurationSeconds: 500, MoneySaved: decimal.NewFromInt(200),
			},
		},
	}
	assert.Equal(t, 2, r.SessionCount())
	assert.InDelta(t, 25.0, r.AllTimeAvgSpeedMph(), 1e-9)
	assert.Equal(t, 60.0, r.AllTimeTopSpeedMph())
	assert.True(t, decimal.NewFromInt(300).Equal(r.AllTimeMoneySaved()))
	assert.InDelta(t, 9.0, r.TotalDistanceMiles(), 1e-9)
	assert.InDelta(t, 1100.0, r.TotalTimeDrivenSeconds(), 1e-9)
	assert.Equal(t, t2, r.LastDrivenDate())

	empty := DriveRecord{}
	assert.Equal(t, 0.0, empty.AllTimeAvgSpeedMph())
	assert.True(t, empty.LastDrivenDate().IsZero())
}

func TestVehicleModeDefaultPreferences(t *testing.T) {
	assert.Equal(t, Preferences{AvoidHazards: true}, VehicleMotorcycle.DefaultPreferences())
	assert.Equal(t, Preferences{AvoidHighways: true}, VehicleWalking.DefaultPreferences())
	assert.Equal(t, Preferences{AvoidHazards: true, AvoidHighways: true},
		VehicleScooter.DefaultPreferences())
	assert.Equal(t, Preferences{}, VehicleCar.DefaultPreferences())
}
