package routing

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mpapenbr/zenride/log"
	"github.com/mpapenbr/zenride/pkg/geo"
	"github.com/mpapenbr/zenride/pkg/model"
)

// ErrSuperseded is returned by a CalculateRoutes call which was replaced by a
// newer call before it could finish.
var ErrSuperseded = errors.New("route calculation superseded by a newer request")

type (
	routeCall struct {
		origin      geo.Coordinate
		destination geo.Coordinate
		hazards     []model.Hazard
	}
	// Result is the outcome of the latest successful calculation
	Result struct {
		Routes       []model.Route
		DefaultIndex int
	}
)

// Provider acquires, scores and merges candidate routes.
type Provider struct {
	client Client
	cfg    Config
	l      *log.Logger

	mu         sync.Mutex
	prefs      model.Preferences
	last       *routeCall
	cancel     context.CancelFunc
	generation uint64
	result     Result
}

type ProviderOption func(p *Provider)

func WithConfig(cfg Config) ProviderOption {
	return func(p *Provider) {
		p.cfg = cfg
	}
}

func WithPreferences(prefs model.Preferences) ProviderOption {
	return func(p *Provider) {
		p.prefs = prefs
	}
}

func NewProvider(client Client, opts ...ProviderOption) *Provider {
	p := &Provider{
		client: client,
		cfg:    DefaultConfig(),
		l:      log.Default().Named("routing"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Config() Config {
	return p.cfg
}

func (p *Provider) Preferences() model.Preferences {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prefs
}

// SetPreferences stores prefs for the next Recalculate
func (p *Provider) SetPreferences(prefs model.Preferences) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prefs = prefs
}

// SetVehicleMode applies the mode defaults while keeping toll avoidance
func (p *Provider) SetVehicleMode(mode model.VehicleMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prefs := mode.DefaultPreferences()
	prefs.AvoidTolls = p.prefs.AvoidTolls
	p.prefs = prefs
}

// Result returns the routes of the latest successful calculation
func (p *Provider) Result() Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// Recalculate re-issues the last CalculateRoutes call with the current
// preferences. Without a prior call this is a no-op returning (nil, nil).
func (p *Provider) Recalculate(ctx context.Context) ([]model.Route, error) {
	p.mu.Lock()
	last, prefs := p.last, p.prefs
	p.mu.Unlock()
	if last == nil {
		return nil, nil
	}
	return p.CalculateRoutes(ctx, last.origin, last.destination, last.hazards, prefs)
}

// RerouteFrom calculates routes from the current position to the destination
// of the last call. It is a no-op without a prior call.
func (p *Provider) RerouteFrom(ctx context.Context, pos geo.Coordinate) ([]model.Route, error) {
	p.mu.Lock()
	last, prefs := p.last, p.prefs
	p.mu.Unlock()
	if last == nil {
		return nil, nil
	}
	return p.CalculateRoutes(ctx, pos, last.destination, last.hazards, prefs)
}

// CalculateRoutes issues the standard request and, if hazards are to be
// avoided, the hazard-free request concurrently. A failing sub-request
// degrades to the results of the other one. A call in flight is cancelled
// when a newer call starts.
//
//nolint:whitespace,funlen // editor/linter issue
func (p *Provider) CalculateRoutes(
	ctx context.Context,
	origin, destination geo.Coordinate,
	hazards []model.Hazard,
	prefs model.Preferences,
) ([]model.Route, error) {
	callCtx, gen := p.begin(ctx, &routeCall{
		origin: origin, destination: destination, hazards: hazards,
	}, prefs)

	var standard, hazardFree []model.Route
	var stdErr, freeErr error
	g := errgroup.Group{}
	g.Go(func() error {
		standard, stdErr = p.fetch(callCtx, &Request{
			Origin: origin, Destination: destination,
			AvoidTolls: prefs.AvoidTolls, AvoidHighways: prefs.AvoidHighways,
		})
		for i := range standard {
			standard[i].HazardCount = CountHazards(standard[i].Polyline, hazards,
				p.cfg.HazardMatchMeters, p.cfg.HazardPrefilterPadDegrees)
			standard[i].HazardFree = standard[i].HazardCount == 0
		}
		return nil
	})
	if prefs.AvoidHazards {
		g.Go(func() error {
			hazardFree, freeErr = p.fetch(callCtx, &Request{
				Origin: origin, Destination: destination,
				AvoidTolls: prefs.AvoidTolls, AvoidHighways: prefs.AvoidHighways,
				AvoidAreas: AvoidAreas(hazards, p.cfg.AvoidRadiusMeters),
			})
			for i := range hazardFree {
				hazardFree[i].HazardCount = 0
				hazardFree[i].HazardFree = true
			}
			return nil
		})
	}
	//nolint:errcheck // sub-request errors are collected separately
	g.Wait()

	if stdErr != nil {
		p.l.Warn("standard route request failed", log.ErrorField(stdErr))
	}
	if freeErr != nil {
		p.l.Warn("hazard-free route request failed", log.ErrorField(freeErr))
	}
	if !p.isCurrent(gen) {
		return nil, ErrSuperseded
	}
	if stdErr != nil && (!prefs.AvoidHazards || freeErr != nil) {
		return nil, stdErr
	}

	routes := MergeRoutes(standard, hazardFree, &p.cfg)
	if len(routes) == 0 {
		return nil, newError(KindNoResult, nil)
	}
	if !p.commit(gen, routes, DefaultIndex(routes, prefs)) {
		return nil, ErrSuperseded
	}
	p.l.Info("routes calculated",
		log.Int("routes", len(routes)),
		log.Bool("avoidTolls", prefs.AvoidTolls),
		log.Bool("avoidHighways", prefs.AvoidHighways),
		log.Bool("avoidHazards", prefs.AvoidHazards))
	return routes, nil
}

func (p *Provider) fetch(ctx context.Context, req *Request) ([]model.Route, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()
	return p.client.CalculateRoute(reqCtx, req)
}

//nolint:whitespace // editor/linter issue
func (p *Provider) begin(
	ctx context.Context, call *routeCall, prefs model.Preferences,
) (context.Context, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	callCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.generation++
	p.last = call
	p.prefs = prefs
	return callCtx, p.generation
}

func (p *Provider) isCurrent(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return gen == p.generation
}

func (p *Provider) commit(gen uint64, routes []model.Route, defaultIdx int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		return false
	}
	p.result = Result{Routes: routes, DefaultIndex: defaultIdx}
	return true
}

// Cancel aborts a calculation in flight (for example when the destination
// is cleared)
func (p *Provider) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.generation++
}
