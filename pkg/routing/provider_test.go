package routing

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/zenride/pkg/geo"
	"github.com/mpapenbr/zenride/pkg/model"
)

type fakeClient struct {
	standard   []model.Route
	hazardFree []model.Route
	stdErr     error
	freeErr    error

	mu       sync.Mutex
	requests []*Request
}

var _ Client = (*fakeClient)(nil)

func (f *fakeClient) CalculateRoute(ctx context.Context, req *Request) ([]model.Route, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if len(req.AvoidAreas) > 0 {
		return slices.Clone(f.hazardFree), f.freeErr
	}
	return slices.Clone(f.standard), f.stdErr
}

func (f *fakeClient) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func providerFixture() (origin, dest geo.Coordinate, hazards []model.Hazard) {
	line := testPolyline()
	return line[0], line[len(line)-1], []model.Hazard{
		{ID: "1", Street: "Main St", SpeedLimitMph: 25, Location: line[4]},
	}
}

func TestProviderCalculateRoutes(t *testing.T) {
	origin, dest, hazards := providerFixture()
	detour := []geo.Coordinate{origin, {Lat: 40.01, Lng: -74.0}, {Lat: 40.01, Lng: -73.99}, dest}
	client := &fakeClient{
		standard: []model.Route{
			{ID: "A", TravelTimeSeconds: 450, LengthMeters: 2100, Polyline: testPolyline()},
		},
		hazardFree: []model.Route{
			{ID: "B", TravelTimeSeconds: 455, LengthMeters: 2150, Polyline: detour},
			{ID: "C", TravelTimeSeconds: 600, LengthMeters: 2800, Polyline: detour},
		},
	}
	p := NewProvider(client)
	prefs := model.Preferences{AvoidTolls: true, AvoidHazards: true}
	routes, err := p.CalculateRoutes(context.Background(), origin, dest, hazards, prefs)
	require.NoError(t, err)
	require.Len(t, routes, 2)

	assert.Equal(t, "A", routes[0].ID)
	assert.Equal(t, 1, routes[0].HazardCount)
	assert.False(t, routes[0].HazardFree)
	assert.Equal(t, "C", routes[1].ID)
	assert.Equal(t, 0, routes[1].HazardCount)
	assert.True(t, routes[1].HazardFree)

	res := p.Result()
	assert.Equal(t, 1, res.DefaultIndex)
	assert.Len(t, res.Routes, 2)

	require.Equal(t, 2, client.requestCount())
	for _, req := range client.requests {
		assert.True(t, req.AvoidTolls)
		assert.False(t, req.AvoidHighways)
	}
}

func TestProviderWithoutHazardAvoidance(t *testing.T) {
	origin, dest, hazards := providerFixture()
	client := &fakeClient{
		standard: []model.Route{{ID: "A", Polyline: []geo.Coordinate{
			{Lat: 41, Lng: -74}, {Lat: 41, Lng: -73.9},
		}}},
	}
	p := NewProvider(client)
	routes, err := p.CalculateRoutes(context.Background(), origin, dest, hazards, model.Preferences{})
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, 1, client.requestCount())
	// no hazard on the route
	assert.True(t, routes[0].HazardFree)
	assert.Equal(t, 0, p.Result().DefaultIndex)
}

func TestProviderDegradation(t *testing.T) {
	origin, dest, hazards := providerFixture()
	networkErr := newError(KindNetwork, errors.New("boom"))
	standard := []model.Route{{ID: "A", TravelTimeSeconds: 450, LengthMeters: 2100}}
	hazardFree := []model.Route{{ID: "C", TravelTimeSeconds: 600, LengthMeters: 2800}}
	prefs := model.Preferences{AvoidHazards: true}

	tests := []struct {
		name    string
		client  *fakeClient
		wantIDs []string
		wantErr ErrorKind
	}{
		{
			name:    "standard fails",
			client:  &fakeClient{stdErr: networkErr, hazardFree: hazardFree},
			wantIDs: []string{"C"},
		},
		{
			name:    "hazard-free fails",
			client:  &fakeClient{standard: standard, freeErr: networkErr},
			wantIDs: []string{"A"},
		},
		{
			name:    "both fail",
			client:  &fakeClient{stdErr: networkErr, freeErr: networkErr},
			wantErr: KindNetwork,
		},
		{
			name:    "nothing found",
			client:  &fakeClient{},
			wantErr: KindNoResult,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProvider(tt.client)
			routes, err := p.CalculateRoutes(context.Background(), origin, dest, hazards, prefs)
			if tt.wantErr != "" {
				assert.True(t, IsKind(err, tt.wantErr), "got %v", err)
				assert.Empty(t, routes)
				return
			}
			require.NoError(t, err)
			ids := make([]string, 0, len(routes))
			for i := range routes {
				ids = append(ids, routes[i].ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

// blocks the first request until its context is cancelled
type blockingClient struct {
	started chan struct{}
	calls   atomic.Int32
	routes  []model.Route
}

func (b *blockingClient) CalculateRoute(ctx context.Context, req *Request) ([]model.Route, error) {
	if b.calls.Add(1) == 1 {
		close(b.started)
		<-ctx.Done()
		return nil, newError(KindNetwork, ctx.Err())
	}
	return slices.Clone(b.routes), nil
}

func TestProviderNewCallCancelsPrevious(t *testing.T) {
	origin, dest, hazards := providerFixture()
	client := &blockingClient{
		started: make(chan struct{}),
		routes:  []model.Route{{ID: "latest"}},
	}
	p := NewProvider(client)

	firstErr := make(chan error, 1)
	go func() {
		_, err := p.CalculateRoutes(context.Background(), origin, dest, hazards, model.Preferences{})
		firstErr <- err
	}()
	<-client.started

	routes, err := p.CalculateRoutes(context.Background(), origin, dest, hazards, model.Preferences{})
	require.NoError(t, err)
	assert.Equal(t, "latest", routes[0].ID)

	assert.ErrorIs(t, <-firstErr, ErrSuperseded)
	assert.Equal(t, "latest", p.Result().Routes[0].ID)
}

func TestProviderRecalculate(t *testing.T) {
	client := &fakeClient{standard: []model.Route{{ID: "A"}}}
	p := NewProvider(client)

	routes, err := p.Recalculate(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, routes)
	assert.Equal(t, 0, client.requestCount())

	origin, dest, hazards := providerFixture()
	_, err = p.CalculateRoutes(context.Background(), origin, dest, hazards, model.Preferences{})
	require.NoError(t, err)

	p.SetPreferences(model.Preferences{AvoidHighways: true})
	_, err = p.Recalculate(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, client.requestCount())
	assert.True(t, client.requests[1].AvoidHighways)
	assert.Equal(t, origin, client.requests[1].Origin)
}

func TestProviderRerouteFrom(t *testing.T) {
	client := &fakeClient{standard: []model.Route{{ID: "A"}}}
	p := NewProvider(client)
	origin, dest, hazards := providerFixture()
	_, err := p.CalculateRoutes(context.Background(), origin, dest, hazards, model.Preferences{})
	require.NoError(t, err)

	pos := geo.Coordinate{Lat: 40.002, Lng: -73.996}
	_, err = p.RerouteFrom(context.Background(), pos)
	require.NoError(t, err)
	assert.Equal(t, pos, client.requests[1].Origin)
	assert.Equal(t, dest, client.requests[1].Destination)
}

func TestProviderSetVehicleMode(t *testing.T) {
	p := NewProvider(&fakeClient{}, WithPreferences(model.Preferences{AvoidTolls: true}))
	p.SetVehicleMode(model.VehicleScooter)
	assert.Equal(t, model.Preferences{AvoidTolls: true, AvoidHazards: true, AvoidHighways: true},
		p.Preferences())
}
