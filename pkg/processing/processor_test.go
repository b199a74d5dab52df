package processing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/zenride/pkg/geo"
	"github.com/mpapenbr/zenride/pkg/hazard"
	"github.com/mpapenbr/zenride/pkg/model"
	"github.com/mpapenbr/zenride/pkg/processing/proximity"
	"github.com/mpapenbr/zenride/pkg/processing/ride"
	"github.com/mpapenbr/zenride/pkg/routing"
)

func testRoute() model.Route {
	line := make([]geo.Coordinate, 0, 11)
	for i := 0; i <= 10; i++ {
		line = append(line, geo.Coordinate{Lat: 40.0, Lng: -74.0 + float64(i)*0.001})
	}
	return model.Route{
		ID:       "r1",
		Polyline: line,
		Instructions: []model.Instruction{
			{RouteOffsetMeters: 0, Text: "Start"},
			{RouteOffsetMeters: 500, Text: "Turn left", Kind: model.KindLeft},
			{RouteOffsetMeters: 850, Text: "Arrive", Kind: model.KindArrive},
		},
	}
}

type fixture struct {
	proc     *Processor
	now      time.Time
	reroutes []*routing.RerouteSignal
	route    model.Route
}

func newFixture(t *testing.T, hazards []model.Hazard) *fixture {
	t.Helper()
	f := &fixture{now: time.Date(2024, 5, 6, 7, 30, 0, 0, time.UTC), route: testRoute()}
	clock := func() time.Time { return f.now }
	f.proc = NewProcessor(
		WithClock(clock),
		WithEngine(proximity.NewEngine(
			proximity.WithClock(clock),
			proximity.WithCatalog(hazard.NewCatalog(hazards)),
		)),
		WithTracker(ride.NewTracker(ride.WithClock(clock))),
		WithRerouteHandler(func(sig *routing.RerouteSignal) {
			f.reroutes = append(f.reroutes, sig)
		}),
	)
	active, err := routing.Select([]model.Route{f.route}, 0)
	require.NoError(t, err)
	f.proc.StartDrive(active)
	return f
}

func (f *fixture) sample(c geo.Coordinate, mph float64, advance time.Duration) Result {
	f.now = f.now.Add(advance)
	return f.proc.ProcessSample(&model.PositionSample{Location: c, SpeedMps: geo.MphToMps(mph)})
}

func TestProcessorProgress(t *testing.T) {
	f := newFixture(t, nil)
	line := f.route.Polyline

	res := f.sample(line[0], 30, 0)
	assert.Nil(t, res.Reroute)
	assert.Equal(t, 0, res.ProgressIndex)
	require.NotNil(t, res.NextInstruction)
	assert.Equal(t, "Turn left", res.NextInstruction.Text)

	mid := geo.Coordinate{Lat: 40.0, Lng: (line[6].Lng + line[7].Lng) / 2}
	res = f.sample(mid, 30, time.Second)
	assert.Equal(t, 6, res.ProgressIndex)
	assert.InDelta(t, geo.PolylineLength(line[:7]), res.DistanceTraveledMeters, 1e-6)
	require.NotNil(t, res.NextInstruction)
	assert.Equal(t, "Arrive", res.NextInstruction.Text)
}

func TestProcessorRerouteThrottled(t *testing.T) {
	f := newFixture(t, nil)
	off := geo.Destination(f.route.Polyline[2], 150, 0)

	res := f.sample(off, 30, 0)
	require.NotNil(t, res.Reroute)
	// within the check interval: no new check
	res = f.sample(geo.Destination(off, 10, 90), 30, 500*time.Millisecond)
	assert.Nil(t, res.Reroute)
	res = f.sample(geo.Destination(off, 20, 90), 30, 600*time.Millisecond)
	assert.NotNil(t, res.Reroute)
	assert.Len(t, f.reroutes, 2)

	// a new route resets the progress
	active, err := routing.Select([]model.Route{f.route}, 0)
	require.NoError(t, err)
	f.proc.SetActiveRoute(active)
	res = f.sample(f.route.Polyline[0], 30, time.Second)
	assert.Nil(t, res.Reroute)
	assert.Equal(t, 0, res.ProgressIndex)
}

func TestProcessorFinish(t *testing.T) {
	hz := model.Hazard{
		ID: "7", Street: "Main St", SpeedLimitMph: 25,
		Location: geo.Coordinate{Lat: 40.0, Lng: -73.995},
	}
	f := newFixture(t, []model.Hazard{hz})
	f.proc.SetMuted(true)
	alerts := make([]proximity.Alert, 0)
	for i, c := range f.route.Polyline {
		adv := 5 * time.Second
		if i == 0 {
			adv = 0
		}
		res := f.sample(c, 20, adv)
		alerts = append(alerts, res.Alerts...)
	}
	require.Len(t, alerts, 2)
	assert.Equal(t, proximity.AlertApproach, alerts[0].Kind)
	assert.Equal(t, proximity.AlertExit, alerts[1].Kind)
	assert.True(t, alerts[0].Muted)
	assert.Equal(t, 1, f.proc.State().HazardsCleared)

	p := f.proc.Finish(&ride.Trip{
		Origin:                 f.route.Polyline[0],
		Destination:            f.route.Polyline[10],
		DestinationName:        "Work",
		PlannedDurationSeconds: 40,
	})
	assert.Equal(t, 50.0, p.DurationSeconds)
	assert.Len(t, p.SpeedReadings, 10)
	assert.Len(t, p.ZoneEvents, 1)
	assert.Equal(t, model.OutcomeSaved, p.ZoneEvents[0].Outcome)
	assert.Equal(t, 100, p.ZenScore)
	assert.InDelta(t, geo.MetersToMiles(geo.PolylineLength(f.route.Polyline)), p.DistanceMiles, 1e-6)

	s := p.ToSession(decimal.NewFromInt(100), nil)
	assert.Equal(t, 10.0, s.TrafficDelaySeconds)
	assert.Equal(t, model.MorningCommute, s.TimeOfDay)
}
