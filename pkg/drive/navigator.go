// Package drive runs a drive from start to the recorded session.
package drive

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mpapenbr/zenride/log"
	"github.com/mpapenbr/zenride/pkg/geo"
	"github.com/mpapenbr/zenride/pkg/model"
	"github.com/mpapenbr/zenride/pkg/places"
	"github.com/mpapenbr/zenride/pkg/processing"
	"github.com/mpapenbr/zenride/pkg/processing/ride"
	"github.com/mpapenbr/zenride/pkg/routing"
	"github.com/mpapenbr/zenride/pkg/simulator"
	"github.com/mpapenbr/zenride/pkg/store"
	"github.com/mpapenbr/zenride/pkg/utils/broadcast"
)

var (
	ErrDriveActive = errors.New("a drive is already active")
	ErrNoDrive     = errors.New("no active drive")
	ErrClosed      = errors.New("navigator closed")
)

// DefaultFine is the cost of a single potential ticket
var DefaultFine = decimal.NewFromInt(100)

// Update is published for every processed position sample
type Update struct {
	Sample model.PositionSample
	Result processing.Result
}

// Rerouter calculates new routes once the vehicle left the active route.
// routing.Provider implements it.
type Rerouter interface {
	RerouteFrom(ctx context.Context, pos geo.Coordinate) ([]model.Route, error)
	Preferences() model.Preferences
}

var _ Rerouter = (*routing.Provider)(nil)

// Navigator owns the single active drive. Samples come either from a live
// source via Feed or from the built-in simulator.
type Navigator struct {
	proc     *processing.Processor
	records  *store.RecordStore
	places   *places.Store
	sim      *simulator.Simulator
	rerouter Rerouter
	fine     decimal.Decimal
	speedMps float64
	tick     time.Duration
	l        *log.Logger

	mu        sync.Mutex
	driving   bool
	trip      *ride.Trip
	simCancel context.CancelFunc
	rerouting bool
	bg        sync.WaitGroup
	bgCtx     context.Context
	bgCancel  context.CancelFunc

	pubMu   sync.RWMutex
	closed  bool
	updates chan Update
	server  broadcast.Server[Update]
}

type Option func(n *Navigator)

func WithSimulator(sim *simulator.Simulator) Option {
	return func(n *Navigator) {
		n.sim = sim
	}
}

// WithPlaces records a visit to the destination for every finished drive
func WithPlaces(p *places.Store) Option {
	return func(n *Navigator) {
		n.places = p
	}
}

func WithRerouter(r Rerouter) Option {
	return func(n *Navigator) {
		n.rerouter = r
	}
}

func WithFine(fine decimal.Decimal) Option {
	return func(n *Navigator) {
		n.fine = fine
	}
}

// WithSimulation sets speed and tick of simulated drives
func WithSimulation(speedMph float64, tick time.Duration) Option {
	return func(n *Navigator) {
		if speedMph > 0 {
			n.speedMps = geo.MphToMps(speedMph)
		}
		if tick > 0 {
			n.tick = tick
		}
	}
}

//nolint:whitespace // editor/linter issue
func NewNavigator(
	proc *processing.Processor,
	records *store.RecordStore,
	opts ...Option,
) *Navigator {
	n := &Navigator{
		proc:     proc,
		records:  records,
		fine:     DefaultFine,
		speedMps: geo.MphToMps(simulator.DefaultSpeedMph),
		tick:     simulator.DefaultTick,
		updates:  make(chan Update, 64),
		l:        log.Default().Named("drive"),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.sim == nil {
		n.sim = simulator.New()
	}
	n.bgCtx, n.bgCancel = context.WithCancel(context.Background())
	n.server = broadcast.NewServer("drive", n.updates)
	return n
}

// Subscribe returns a channel receiving an Update per processed sample.
// Slow subscribers miss updates.
func (n *Navigator) Subscribe() <-chan Update {
	return n.server.Subscribe()
}

func (n *Navigator) Unsubscribe(ch <-chan Update) {
	n.server.CancelSubscription(ch)
}

func (n *Navigator) SetMuted(muted bool) {
	n.proc.SetMuted(muted)
}

// Active reports whether a drive is running
func (n *Navigator) Active() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.driving
}

// StartDrive starts a drive fed by Feed. active may be nil for a drive
// without navigation.
func (n *Navigator) StartDrive(trip *ride.Trip, active *routing.ActiveRoute) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.startLocked(trip, active)
}

func (n *Navigator) startLocked(trip *ride.Trip, active *routing.ActiveRoute) error {
	if n.isClosed() {
		return ErrClosed
	}
	if n.driving {
		return ErrDriveActive
	}
	n.driving = true
	n.trip = trip
	n.proc.StartDrive(active)
	n.l.Info("drive started", log.String("destination", trip.DestinationName))
	return nil
}

// StartSimulation plays back the active route. Once the destination is
// reached the drive is stopped and recorded automatically. The returned
// channel receives that summary. It is closed without a value if the drive
// was stopped before.
//
//nolint:whitespace // editor/linter issue
func (n *Navigator) StartSimulation(
	ctx context.Context,
	trip *ride.Trip,
	active *routing.ActiveRoute,
) (<-chan model.DriveSummary, error) {
	if active == nil {
		return nil, routing.ErrNoRoutes
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.startLocked(trip, active); err != nil {
		return nil, err
	}
	simCtx, cancel := context.WithCancel(ctx)
	done, err := n.sim.Start(simCtx, active.Route.Polyline, n.speedMps, n.tick,
		func(s *model.PositionSample) {
			//nolint:errcheck // a sample after the drive was stopped is dropped
			n.Feed(s)
		})
	if err != nil {
		cancel()
		n.driving = false
		return nil, err
	}
	n.simCancel = cancel

	ret := make(chan model.DriveSummary, 1)
	n.bg.Add(1)
	go func() {
		defer n.bg.Done()
		defer close(ret)
		if _, ok := <-done; !ok {
			return
		}
		n.l.Info("destination reached, stopping drive")
		sum, err := n.StopDrive(context.WithoutCancel(ctx), nil)
		if err != nil {
			if !errors.Is(err, ErrNoDrive) {
				n.l.Error("could not stop drive", log.ErrorField(err))
			}
			return
		}
		ret <- sum
	}()
	return ret, nil
}

// Feed processes a sample of the active drive
func (n *Navigator) Feed(s *model.PositionSample) (processing.Result, error) {
	n.mu.Lock()
	driving := n.driving
	n.mu.Unlock()
	if !driving {
		return processing.Result{}, ErrNoDrive
	}
	res := n.proc.ProcessSample(s)
	if res.Reroute != nil {
		n.reroute(s.Location)
	}
	n.publish(Update{Sample: *s, Result: res})
	return res, nil
}

func (n *Navigator) reroute(pos geo.Coordinate) {
	if n.rerouter == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.rerouting || !n.driving {
		return
	}
	n.rerouting = true
	n.bg.Add(1)
	go func() {
		defer n.bg.Done()
		defer func() {
			n.mu.Lock()
			n.rerouting = false
			n.mu.Unlock()
		}()
		routes, err := n.rerouter.RerouteFrom(n.bgCtx, pos)
		if err != nil {
			n.l.Warn("reroute failed", log.ErrorField(err))
			return
		}
		if len(routes) == 0 {
			return
		}
		active, err := routing.Select(routes,
			routing.DefaultIndex(routes, n.rerouter.Preferences()))
		if err != nil {
			n.l.Warn("could not select new route", log.ErrorField(err))
			return
		}
		if n.Active() {
			n.proc.SetActiveRoute(active)
			n.l.Info("switched to new route", log.String("route", active.Route.ID))
		}
	}()
}

func (n *Navigator) publish(u Update) {
	n.pubMu.RLock()
	defer n.pubMu.RUnlock()
	if n.closed {
		return
	}
	select {
	case n.updates <- u:
	default:
		n.l.Debug("update dropped")
	}
}

func (n *Navigator) isClosed() bool {
	n.pubMu.RLock()
	defer n.pubMu.RUnlock()
	return n.closed
}

// StopDrive ends the active drive, records the session and returns the
// summary. mood is optional.
//
//nolint:whitespace // editor/linter issue
func (n *Navigator) StopDrive(
	ctx context.Context,
	mood *string,
) (model.DriveSummary, error) {
	n.mu.Lock()
	if !n.driving {
		n.mu.Unlock()
		return model.DriveSummary{}, ErrNoDrive
	}
	n.driving = false
	trip := n.trip
	cancel := n.simCancel
	n.simCancel = nil
	n.mu.Unlock()

	if cancel != nil {
		cancel()
		n.sim.Stop()
	}

	pending := n.proc.Finish(trip)
	session := pending.ToSession(n.fine, mood)
	n.records.AppendSession(ctx, trip.Origin, trip.Destination, trip.DestinationName, &session)
	if n.places != nil && trip.DestinationName != "" {
		n.places.RecordVisit(ctx, trip.DestinationName, trip.Destination,
			int(session.DurationSeconds), session.StartTime)
	}
	sum := model.DriveSummary{
		DistanceMiles:     session.DistanceMiles,
		ZenScore:          session.ZenScore,
		MoneySavedDollars: session.MoneySaved,
	}
	n.l.Info("drive recorded",
		log.String("session", session.ID.String()),
		log.Float64("miles", sum.DistanceMiles),
		log.Int("zen", sum.ZenScore),
		log.String("saved", sum.MoneySavedDollars.StringFixed(2)))
	return sum, nil
}

// Close stops a running simulation without recording it and shuts down the
// update broadcast.
func (n *Navigator) Close() {
	n.mu.Lock()
	n.driving = false
	cancel := n.simCancel
	n.simCancel = nil
	n.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	n.sim.Stop()
	n.bgCancel()
	n.bg.Wait()

	n.pubMu.Lock()
	if !n.closed {
		n.closed = true
		close(n.updates)
	}
	n.pubMu.Unlock()
	n.server.Close()
}
