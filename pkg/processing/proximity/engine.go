package proximity

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/mpapenbr/zenride/log"
	"github.com/mpapenbr/zenride/pkg/geo"
	"github.com/mpapenbr/zenride/pkg/hazard"
	"github.com/mpapenbr/zenride/pkg/model"
)

type AlertKind string

const (
	AlertApproach AlertKind = "approach"
	AlertSpeeding AlertKind = "speeding"
	AlertExit     AlertKind = "exit"
)

// Alert is emitted for every delivered (not suppressed) zone alert.
type Alert struct {
	Kind         AlertKind
	Hazard       model.Hazard
	DistanceFeet float64
	SpeedMph     float64
	Zone         model.ZoneStatus
	Muted        bool
	Time         time.Time
	// only set for AlertExit
	ZoneEvent *model.CameraZoneEvent
}

type EventSink func(a *Alert)

// State is the observable proximity state of the current drive
type State struct {
	NearestHazard  *model.Hazard
	DistanceFeet   float64
	Zone           model.ZoneStatus
	HazardsCleared int
	ZenScore       int
}

// tracks the hazard zone we are currently in
type zoneEntry struct {
	hazard        model.Hazard
	speedAtEntry  float64
	enteredDanger bool
	slowedToLimit bool
}

// Engine classifies position samples into zones and emits alerts on zone
// transitions. An Engine is not safe for concurrent use; the caller has to
// serialize Process calls.
type Engine struct {
	cfg     Config
	now     func() time.Time
	l       *log.Logger
	catalog atomic.Pointer[hazard.Catalog]
	sinks   []EventSink

	alertCounter      metric.Int64Counter
	suppressedCounter metric.Int64Counter

	state       State
	muted       bool
	zoneEvents  []model.CameraZoneEvent
	approachCD  map[string]time.Time
	speedingCD  map[string]time.Time
	exitCD      map[string]time.Time
	active      *zoneEntry
	lastChecked *geo.Coordinate
}

type Option func(e *Engine)

func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithCatalog(c *hazard.Catalog) Option {
	return func(e *Engine) {
		e.catalog.Store(c)
	}
}

func WithSink(sink EventSink) Option {
	return func(e *Engine) {
		e.sinks = append(e.sinks, sink)
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		cfg: DefaultConfig(),
		now: time.Now,
		l:   log.Default().Named("proximity"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.setupMetrics()
	e.StartDrive()
	return e
}

func (e *Engine) setupMetrics() {
	meter := otel.GetMeterProvider().Meter("zenride.proximity")
	var err error
	if e.alertCounter, err = meter.Int64Counter("zenride.proximity.alerts",
		metric.WithDescription("Number of delivered zone alerts"),
		metric.WithUnit("{count}")); err != nil {
		e.l.Error("failed to register metric", log.ErrorField(err))
		e.alertCounter = noop.Int64Counter{}
	}
	if e.suppressedCounter, err = meter.Int64Counter("zenride.proximity.suppressed",
		metric.WithDescription("Number of alerts suppressed by a cooldown"),
		metric.WithUnit("{count}")); err != nil {
		e.l.Error("failed to register metric", log.ErrorField(err))
		e.suppressedCounter = noop.Int64Counter{}
	}
}

// SetCatalog replaces the hazard catalog. May be called concurrently to
// Process (hot reload).
func (e *Engine) SetCatalog(c *hazard.Catalog) {
	e.catalog.Store(c)
}

func (e *Engine) SetMuted(muted bool) {
	e.muted = muted
}

// StartDrive resets cooldowns and per drive counters
func (e *Engine) StartDrive() {
	e.state = State{Zone: model.ZoneSafe, ZenScore: e.cfg.InitialZen}
	e.zoneEvents = make([]model.CameraZoneEvent, 0)
	e.approachCD = make(map[string]time.Time)
	e.speedingCD = make(map[string]time.Time)
	e.exitCD = make(map[string]time.Time)
	e.active = nil
	e.lastChecked = nil
}

func (e *Engine) State() State {
	return e.state
}

// ZoneEvents returns the camera zone events of the current drive
func (e *Engine) ZoneEvents() []model.CameraZoneEvent {
	return append([]model.CameraZoneEvent{}, e.zoneEvents...)
}

// Process classifies the sample and returns the alerts delivered for it.
//
//nolint:funlen // by design
func (e *Engine) Process(s *model.PositionSample) []Alert {
	c := e.catalog.Load()
	if c.Len() == 0 {
		return nil
	}
	if e.lastChecked != nil &&
		geo.DistanceMeters(*e.lastChecked, s.Location) < e.cfg.MinMoveMeters {
		return nil
	}
	loc := s.Location
	e.lastChecked = &loc

	h, distMeters, ok := c.Nearest(s.Location)
	if !ok {
		return nil
	}
	distFeet := geo.MetersToFeet(distMeters)
	speed := s.SpeedMph()
	limit := float64(h.SpeedLimitMph)
	now := e.now()

	e.state.NearestHazard = h
	e.state.DistanceFeet = distFeet
	prev := e.state.Zone
	alerts := make([]Alert, 0)
	newAlert := func(kind AlertKind, hz *model.Hazard) Alert {
		return Alert{
			Kind: kind, Hazard: *hz, DistanceFeet: distFeet, SpeedMph: speed,
			Muted: e.muted, Time: now,
		}
	}

	switch {
	case distFeet <= e.cfg.DangerFeet:
		e.state.Zone = model.ZoneDanger
		switch {
		case e.active == nil:
			e.active = &zoneEntry{hazard: *h, speedAtEntry: speed, enteredDanger: true}
		case !e.active.enteredDanger:
			e.active.speedAtEntry = speed
			e.active.enteredDanger = true
		}
		if speed <= limit {
			e.active.slowedToLimit = true
		}
		if speed > limit+e.cfg.SpeedingToleranceMph &&
			e.gate(e.speedingCD, h.ID, e.cfg.SpeedingCooldown, now, AlertSpeeding) {
			e.state.ZenScore = max(0, e.state.ZenScore-e.cfg.ZenPenalty)
			alerts = append(alerts, newAlert(AlertSpeeding, h))
		}

	case distFeet <= e.cfg.ApproachFeet:
		e.state.Zone = model.ZoneApproach
		if e.active == nil {
			e.active = &zoneEntry{hazard: *h, speedAtEntry: speed}
		}
		if prev == model.ZoneSafe &&
			e.gate(e.approachCD, h.ID, e.cfg.EntryCooldown, now, AlertApproach) {
			alerts = append(alerts, newAlert(AlertApproach, h))
		}

	default:
		e.state.Zone = model.ZoneSafe
		if prev != model.ZoneSafe {
			entry := e.active
			e.active = nil
			if entry == nil {
				entry = &zoneEntry{hazard: *h, speedAtEntry: speed}
			}
			if e.gate(e.exitCD, entry.hazard.ID, e.cfg.EntryCooldown, now, AlertExit) {
				e.state.HazardsCleared++
				ev := e.zoneEvent(entry, speed)
				e.zoneEvents = append(e.zoneEvents, ev)
				a := newAlert(AlertExit, &entry.hazard)
				a.ZoneEvent = &ev
				alerts = append(alerts, a)
			}
		}
	}

	if prev != e.state.Zone {
		e.l.Debug("zone changed",
			log.String("from", prev.String()),
			log.String("to", e.state.Zone.String()),
			log.String("hazard", h.ID),
			log.Float64("distanceFeet", distFeet))
	}
	for i := range alerts {
		alerts[i].Zone = e.state.Zone
		for _, sink := range e.sinks {
			sink(&alerts[i])
		}
	}
	return alerts
}

func (e *Engine) zoneEvent(entry *zoneEntry, exitSpeed float64) model.CameraZoneEvent {
	outcome := model.OutcomeSaved
	if exitSpeed > float64(entry.hazard.SpeedLimitMph) {
		outcome = model.OutcomePotentialTicket
	}
	return model.CameraZoneEvent{
		HazardID:      entry.hazard.ID,
		HazardStreet:  entry.hazard.DisplayName(),
		SpeedLimitMph: entry.hazard.SpeedLimitMph,
		SpeedAtEntry:  entry.speedAtEntry,
		DidSlowDown:   entry.slowedToLimit,
		Outcome:       outcome,
	}
}

// gate reports whether an alert of kind for hazard id may be delivered and
// records the delivery time if so.
//
//nolint:whitespace // editor/linter issue
func (e *Engine) gate(
	cd map[string]time.Time,
	id string,
	window time.Duration,
	now time.Time,
	kind AlertKind,
) bool {
	attrs := metric.WithAttributes(attribute.String("kind", string(kind)))
	if last, ok := cd[id]; ok && now.Sub(last) < window {
		e.suppressedCounter.Add(context.Background(), 1, attrs)
		e.l.Debug("alert suppressed", log.String("kind", string(kind)), log.String("hazard", id))
		return false
	}
	cd[id] = now
	e.alertCounter.Add(context.Background(), 1, attrs)
	return true
}
