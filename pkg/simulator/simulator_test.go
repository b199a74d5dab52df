package simulator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"pgregory.net/rapid"

	"github.com/mpapenbr/zenride/pkg/geo"
	"github.com/mpapenbr/zenride/pkg/model"
)

func testRoute() []geo.Coordinate {
	return []geo.Coordinate{
		{Lat: 40.0, Lng: -74.0},
		{Lat: 40.0, Lng: -73.995},
		{Lat: 40.0, Lng: -73.995}, // duplicate vertex
		{Lat: 40.004, Lng: -73.995},
		{Lat: 40.0041, Lng: -73.9949},
	}
}

type collector struct {
	mu      sync.Mutex
	samples []model.PositionSample
}

func (c *collector) emit(s *model.PositionSample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = append(c.samples, *s)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples)
}

func TestRun(t *testing.T) {
	route := testRoute()
	speed := geo.MphToMps(DefaultSpeedMph)
	samples := make([]model.PositionSample, 0)
	c, completed, err := Run(route, speed, DefaultTick, func(s *model.PositionSample) bool {
		samples = append(samples, *s)
		return true
	})
	require.NoError(t, err)
	assert.True(t, completed)
	assert.InDelta(t, geo.PolylineLength(route), c.DistanceMeters, 1e-3)
	assert.Equal(t, len(samples), c.Samples)
	assert.Equal(t, route[len(route)-1], samples[len(samples)-1].Location)

	step := speed * DefaultTick.Seconds()
	for i := range samples {
		assert.InDelta(t, speed, samples[i].SpeedMps, 1e-9)
		if i > 0 {
			moved := geo.DistanceMeters(samples[i-1].Location, samples[i].Location)
			assert.LessOrEqual(t, moved, step+1e-6)
			assert.True(t, samples[i].Timestamp.After(samples[i-1].Timestamp))
		}
	}
	// first leg heads east
	assert.InDelta(t, 90, samples[0].BearingDegrees, 0.1)
}

func TestRunDistanceProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(2, 8).Draw(t, "points")
		route := make([]geo.Coordinate, 0, n)
		for i := 0; i < n; i++ {
			route = append(route, geo.Coordinate{
				Lat: rapid.Float64Range(40.0, 40.02).Draw(t, "lat"),
				Lng: rapid.Float64Range(-74.02, -74.0).Draw(t, "lng"),
			})
		}
		speed := rapid.Float64Range(1, 40).Draw(t, "speed")
		c, completed, err := Run(route, speed, DefaultTick, func(s *model.PositionSample) bool {
			return true
		})
		if err != nil || !completed {
			t.Fatalf("run did not complete: %v", err)
		}
		want := geo.PolylineLength(route)
		if diff := c.DistanceMeters - want; diff > 1e-3 || diff < -1e-3 {
			t.Fatalf("distance %f, want %f", c.DistanceMeters, want)
		}
	})
}

func TestRunStopEarly(t *testing.T) {
	count := 0
	c, completed, err := Run(testRoute(), 10, time.Second, func(s *model.PositionSample) bool {
		count++
		return count < 3
	})
	require.NoError(t, err)
	assert.False(t, completed)
	assert.Equal(t, 3, c.Samples)
}

func TestRunDegenerate(t *testing.T) {
	noop := func(s *model.PositionSample) bool { t.Fatal("unexpected sample"); return false }
	for _, route := range [][]geo.Coordinate{nil, testRoute()[:1]} {
		c, completed, err := Run(route, 10, time.Second, noop)
		assert.NoError(t, err)
		assert.False(t, completed)
		assert.Equal(t, Completion{}, c)
	}
	_, _, err := Run(testRoute(), 0, time.Second, noop)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestSimulatorCompletes(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(WithSpeedFactor(100))
	col := &collector{}
	done, err := s.Start(context.Background(), testRoute(), 30, 100*time.Millisecond, col.emit)
	require.NoError(t, err)

	select {
	case c, ok := <-done:
		require.True(t, ok)
		assert.Equal(t, col.len(), c.Samples)
		assert.InDelta(t, geo.PolylineLength(testRoute()), c.DistanceMeters, 1e-3)
	case <-time.After(5 * time.Second):
		t.Fatal("simulation did not complete")
	}
	// exactly one completion
	_, ok := <-done
	assert.False(t, ok)
	s.Stop()
}

func TestSimulatorStop(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(WithSpeedFactor(50))
	col := &collector{}
	done, err := s.Start(context.Background(), testRoute(), 1, time.Second, col.emit)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return col.len() >= 2 }, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	n := col.len()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, n, col.len())
	_, ok := <-done
	assert.False(t, ok, "a stopped run must not signal completion")
}

func TestSimulatorRestartStopsPrevious(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(WithSpeedFactor(50))
	first := &collector{}
	done1, err := s.Start(context.Background(), testRoute(), 1, time.Second, first.emit)
	require.NoError(t, err)

	second := &collector{}
	done2, err := s.Start(context.Background(), testRoute(), 1, time.Second, second.emit)
	require.NoError(t, err)

	_, ok := <-done1
	assert.False(t, ok)
	n := first.len()
	assert.Eventually(t, func() bool { return second.len() >= 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, n, first.len())

	s.Stop()
	_, ok = <-done2
	assert.False(t, ok)
}

func TestSimulatorContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx, cancel := context.WithCancel(context.Background())
	s := New(WithSpeedFactor(50))
	done, err := s.Start(ctx, testRoute(), 1, time.Second, func(*model.PositionSample) {})
	require.NoError(t, err)
	cancel()
	_, ok := <-done
	assert.False(t, ok)
	s.Stop()
}

func TestSimulatorDegenerateRoute(t *testing.T) {
	s := New()
	done, err := s.Start(context.Background(), nil, 10, time.Second, func(*model.PositionSample) {
		t.Fatal("unexpected sample")
	})
	require.NoError(t, err)
	_, ok := <-done
	assert.False(t, ok)
}
