package ride

import (
	"time"

	"github.com/mpapenbr/zenride/log"
	"github.com/mpapenbr/zenride/pkg/geo"
	"github.com/mpapenbr/zenride/pkg/model"
)

type Config struct {
	SampleInterval time.Duration
	// speed readings at or below this value are not recorded
	MinSpeedMph float64
}

func DefaultConfig() Config {
	return Config{
		SampleInterval: 5 * time.Second,
		MinSpeedMph:    2,
	}
}

// Trip describes the planned drive the tracker records for
type Trip struct {
	Origin                 geo.Coordinate
	Destination            geo.Coordinate
	DestinationName        string
	PlannedDurationSeconds float64
}

// Tracker records speed and distance of a single drive.
// A Tracker is not safe for concurrent use.
type Tracker struct {
	cfg Config
	now func() time.Time
	l   *log.Logger

	departure      time.Time
	lastReadingAt  time.Time
	lastSpeedMph   float64
	readings       []float64
	speedSum       float64
	topSpeedMph    float64
	distanceMeters float64
	last           *geo.Coordinate
}

type Option func(t *Tracker)

func WithConfig(cfg Config) Option {
	return func(t *Tracker) {
		t.cfg = cfg
	}
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		cfg: DefaultConfig(),
		now: time.Now,
		l:   log.Default().Named("ride"),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.Start()
	return t
}

// Start resets the tracker and marks the departure time
func (t *Tracker) Start() {
	t.departure = t.now()
	t.lastReadingAt = t.departure
	t.lastSpeedMph = 0
	t.readings = make([]float64, 0)
	t.speedSum = 0
	t.topSpeedMph = 0
	t.distanceMeters = 0
	t.last = nil
}

// Record processes a position sample. A speed reading is taken whenever the
// sample interval elapsed since the last reading.
func (t *Tracker) Record(s *model.PositionSample) {
	if t.last != nil {
		t.distanceMeters += geo.DistanceMeters(*t.last, s.Location)
	}
	loc := s.Location
	t.last = &loc
	t.lastSpeedMph = s.SpeedMph()

	now := t.now()
	for now.Sub(t.lastReadingAt) >= t.cfg.SampleInterval {
		t.lastReadingAt = t.lastReadingAt.Add(t.cfg.SampleInterval)
		t.takeReading()
	}
}

func (t *Tracker) takeReading() {
	speed := t.lastSpeedMph
	if speed <= t.cfg.MinSpeedMph {
		return
	}
	t.readings = append(t.readings, speed)
	t.speedSum += speed
	t.topSpeedMph = max(t.topSpeedMph, speed)
}

func (t *Tracker) Readings() []float64 {
	return append([]float64{}, t.readings...)
}

func (t *Tracker) AvgSpeedMph() float64 {
	if len(t.readings) == 0 {
		return 0
	}
	return t.speedSum / float64(len(t.readings))
}

func (t *Tracker) TopSpeedMph() float64 {
	return t.topSpeedMph
}

func (t *Tracker) DistanceMeters() float64 {
	return t.distanceMeters
}

// Finish builds the pending session of the drive.
//
//nolint:whitespace // editor/linter issue
func (t *Tracker) Finish(
	trip *Trip,
	events []model.CameraZoneEvent,
	zenScore int,
) model.PendingSession {
	ret := model.PendingSession{
		SpeedReadings:          t.Readings(),
		ZoneEvents:             append([]model.CameraZoneEvent{}, events...),
		TopSpeedMph:            t.topSpeedMph,
		AvgSpeedMph:            t.AvgSpeedMph(),
		ZenScore:               zenScore,
		DepartureTime:          t.departure,
		DurationSeconds:        t.now().Sub(t.departure).Seconds(),
		DistanceMiles:          geo.MetersToMiles(t.distanceMeters),
		Origin:                 trip.Origin,
		Destination:            trip.Destination,
		DestinationName:        trip.DestinationName,
		PlannedDurationSeconds: trip.PlannedDurationSeconds,
	}
	t.l.Info("drive finished",
		log.Int("readings", len(ret.SpeedReadings)),
		log.Int("zoneEvents", len(ret.ZoneEvents)),
		log.Float64("miles", ret.DistanceMiles),
		log.Float64("seconds", ret.DurationSeconds))
	return ret
}
