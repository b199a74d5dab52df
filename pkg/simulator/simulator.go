// Package simulator plays back a route as a sequence of position samples.
package simulator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mpapenbr/zenride/log"
	"github.com/mpapenbr/zenride/pkg/geo"
	"github.com/mpapenbr/zenride/pkg/model"
)

const (
	DefaultSpeedMph = 65.0
	DefaultTick     = 500 * time.Millisecond
)

var ErrInvalidParameter = errors.New("speed and tick must be positive")

// Completion is delivered exactly once when the end of the route is reached
type Completion struct {
	DistanceMeters float64
	Samples        int
}

type stepper struct {
	polyline   []geo.Coordinate
	pos        geo.Coordinate
	target     int
	traveled   float64
	stepMeters float64
	speedMps   float64
	samples    int
}

func newStepper(polyline []geo.Coordinate, speedMps float64, tick time.Duration) *stepper {
	return &stepper{
		polyline:   polyline,
		pos:        polyline[0],
		target:     1,
		stepMeters: speedMps * tick.Seconds(),
		speedMps:   speedMps,
	}
}

func (s *stepper) done() bool {
	return s.target >= len(s.polyline)
}

func (s *stepper) next(ts time.Time) model.PositionSample {
	next := s.polyline[s.target]
	bearing := geo.BearingDegrees(s.pos, next)
	remaining := geo.DistanceMeters(s.pos, next)
	if remaining <= s.stepMeters {
		s.pos = next
		s.traveled += remaining
		s.target++
		if !s.done() {
			bearing = geo.BearingDegrees(s.pos, s.polyline[s.target])
		}
	} else {
		s.pos = geo.Destination(s.pos, s.stepMeters, bearing)
		s.traveled += s.stepMeters
	}
	s.samples++
	return model.PositionSample{
		Location:       s.pos,
		SpeedMps:       s.speedMps,
		BearingDegrees: bearing,
		Timestamp:      ts,
	}
}

func (s *stepper) completion() Completion {
	return Completion{DistanceMeters: s.traveled, Samples: s.samples}
}

func validate(polyline []geo.Coordinate, speedMps float64, tick time.Duration) (bool, error) {
	if speedMps <= 0 || tick <= 0 {
		return false, ErrInvalidParameter
	}
	return len(polyline) >= 2, nil
}

// Run plays back polyline without timers. emit is called for every tick and
// may return false to stop the run early. The returned bool reports whether
// the end of the route was reached.
//
//nolint:whitespace // editor/linter issue
func Run(
	polyline []geo.Coordinate,
	speedMps float64,
	tick time.Duration,
	emit func(*model.PositionSample) bool,
) (Completion, bool, error) {
	ok, err := validate(polyline, speedMps, tick)
	if err != nil || !ok {
		return Completion{}, false, err
	}
	st := newStepper(polyline, speedMps, tick)
	ts := time.Time{}
	for !st.done() {
		ts = ts.Add(tick)
		sample := st.next(ts)
		if !emit(&sample) {
			return st.completion(), false, nil
		}
	}
	return st.completion(), true, nil
}

// Simulator runs timed playbacks. Only one run is active at a time.
type Simulator struct {
	speedFactor float64
	now         func() time.Time
	l           *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(s *Simulator)

// WithSpeedFactor makes ticks pass faster than real time (2 = twice as fast)
func WithSpeedFactor(f float64) Option {
	return func(s *Simulator) {
		if f > 0 {
			s.speedFactor = f
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Simulator) {
		s.now = now
	}
}

func New(opts ...Option) *Simulator {
	s := &Simulator{
		speedFactor: 1,
		now:         time.Now,
		l:           log.Default().Named("simulator"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start stops a running playback and starts a new one. emit is called from
// the simulation goroutine and must not call Stop or Start.
// The returned channel receives a Completion if the end of the route was
// reached and is closed when the run ends. An empty or single point route
// yields a closed channel.
//
//nolint:whitespace // editor/linter issue
func (s *Simulator) Start(
	ctx context.Context,
	polyline []geo.Coordinate,
	speedMps float64,
	tick time.Duration,
	emit func(*model.PositionSample),
) (<-chan Completion, error) {
	s.Stop()
	ret := make(chan Completion, 1)
	ok, err := validate(polyline, speedMps, tick)
	if err != nil {
		return nil, err
	}
	if !ok {
		close(ret)
		return ret, nil
	}

	s.mu.Lock()
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer close(ret)
		s.run(runCtx, newStepper(polyline, speedMps, tick), tick, emit, ret)
	}()
	return ret, nil
}

//nolint:whitespace // editor/linter issue
func (s *Simulator) run(
	ctx context.Context,
	st *stepper,
	tick time.Duration,
	emit func(*model.PositionSample),
	done chan<- Completion,
) {
	interval := time.Duration(float64(tick) / s.speedFactor)
	s.l.Debug("simulation started",
		log.Int("points", len(st.polyline)),
		log.Float64("speedMps", st.speedMps),
		log.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.l.Debug("simulation stopped", log.Int("samples", st.samples))
			return
		case <-ticker.C:
			sample := st.next(s.now())
			// Stop may have been called while we were waiting
			if ctx.Err() != nil {
				return
			}
			emit(&sample)
			if st.done() {
				c := st.completion()
				s.l.Info("simulation completed",
					log.Int("samples", c.Samples),
					log.Float64("meters", c.DistanceMeters))
				done <- c
				return
			}
		}
	}
}

// Stop cancels the active playback and waits until it ended. No samples are
// emitted after Stop returned.
func (s *Simulator) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
}
