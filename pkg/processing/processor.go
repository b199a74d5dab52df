package processing

import (
	"sync"
	"time"

	"github.com/mpapenbr/zenride/log"
	"github.com/mpapenbr/zenride/pkg/model"
	"github.com/mpapenbr/zenride/pkg/processing/proximity"
	"github.com/mpapenbr/zenride/pkg/processing/ride"
	"github.com/mpapenbr/zenride/pkg/routing"
)

// Result holds everything derived from a single position sample
type Result struct {
	Alerts                 []proximity.Alert
	State                  proximity.State
	Reroute                *routing.RerouteSignal
	ProgressIndex          int
	DistanceTraveledMeters float64
	NextInstruction        *model.Instruction
}

// Processor is the single consumer of position samples of a drive.
// Samples are processed one at a time in arrival order.
type Processor struct {
	mu        sync.Mutex
	engine    *proximity.Engine
	tracker   *ride.Tracker
	routeCfg  routing.Config
	now       func() time.Time
	onReroute func(*routing.RerouteSignal)
	l         *log.Logger

	active           *routing.ActiveRoute
	progress         int
	lastRerouteCheck time.Time
	numSamples       int
}

type ProcessorOption func(proc *Processor)

func WithEngine(engine *proximity.Engine) ProcessorOption {
	return func(proc *Processor) {
		proc.engine = engine
	}
}

func WithTracker(tracker *ride.Tracker) ProcessorOption {
	return func(proc *Processor) {
		proc.tracker = tracker
	}
}

func WithRouteConfig(cfg routing.Config) ProcessorOption {
	return func(proc *Processor) {
		proc.routeCfg = cfg
	}
}

func WithClock(now func() time.Time) ProcessorOption {
	return func(proc *Processor) {
		proc.now = now
	}
}

// WithRerouteHandler registers a callback which is invoked (outside the
// processing lock) whenever the vehicle left the active route.
func WithRerouteHandler(f func(*routing.RerouteSignal)) ProcessorOption {
	return func(proc *Processor) {
		proc.onReroute = f
	}
}

func NewProcessor(opts ...ProcessorOption) *Processor {
	ret := &Processor{
		routeCfg: routing.DefaultConfig(),
		now:      time.Now,
		l:        log.Default().Named("processor"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.engine == nil {
		ret.engine = proximity.NewEngine(proximity.WithClock(ret.now))
	}
	if ret.tracker == nil {
		ret.tracker = ride.NewTracker(ride.WithClock(ret.now))
	}
	return ret
}

// StartDrive resets all per drive state. active may be nil for a free drive
// without navigation.
func (p *Processor) StartDrive(active *routing.ActiveRoute) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.engine.StartDrive()
	p.tracker.Start()
	p.active = active
	p.progress = 0
	p.lastRerouteCheck = time.Time{}
	p.numSamples = 0
}

// SetActiveRoute replaces the route after a reroute or a route switch.
// Cooldowns and recorded values of the drive are kept.
func (p *Processor) SetActiveRoute(active *routing.ActiveRoute) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = active
	p.progress = 0
}

func (p *Processor) SetMuted(muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.engine.SetMuted(muted)
}

// ProcessSample feeds the sample to proximity and ride tracking and checks
// the position against the active route (at most once per configured
// interval).
func (p *Processor) ProcessSample(s *model.PositionSample) Result {
	ret := p.process(s)
	if ret.Reroute != nil && p.onReroute != nil {
		p.onReroute(ret.Reroute)
	}
	return ret
}

func (p *Processor) process(s *model.PositionSample) Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.numSamples++
	ret := Result{
		Alerts: p.engine.Process(s),
	}
	p.tracker.Record(s)
	ret.State = p.engine.State()

	if p.active != nil {
		now := p.now()
		if now.Sub(p.lastRerouteCheck) >= p.routeCfg.RerouteCheckInterval {
			p.lastRerouteCheck = now
			sig, progress, err := routing.CheckReroute(
				s.Location, p.active.Route.Polyline, p.progress, &p.routeCfg)
			if err != nil {
				p.l.Warn("reroute check failed", log.ErrorField(err))
			} else {
				p.progress = progress
				ret.Reroute = sig
			}
		}
		ret.ProgressIndex = p.progress
		ret.DistanceTraveledMeters = p.active.DistanceTraveled(p.progress)
		if idx := p.active.NextInstruction(ret.DistanceTraveledMeters); idx >= 0 {
			inst := p.active.Route.Instructions[idx]
			ret.NextInstruction = &inst
		}
	}
	if ret.Reroute != nil {
		p.l.Info("vehicle left the route",
			log.Float64("distance", ret.Reroute.DistanceMeters),
			log.Int("progress", ret.Reroute.ProgressIndex))
	}
	return ret
}

// State returns the current proximity state
func (p *Processor) State() proximity.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.State()
}

// Finish ends the drive and returns the collected session values
func (p *Processor) Finish(trip *ride.Trip) model.PendingSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.engine.State()
	p.l.Debug("finishing drive", log.Int("samples", p.numSamples))
	return p.tracker.Finish(trip, p.engine.ZoneEvents(), st.ZenScore)
}
