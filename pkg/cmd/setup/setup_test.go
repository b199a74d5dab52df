package setup

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/zenride/pkg/config"
	"github.com/mpapenbr/zenride/pkg/geo"
	"github.com/mpapenbr/zenride/pkg/model"
)

func TestParseCoordinate(t *testing.T) {
	c, err := ParseCoordinate("40.715, -74.005")
	require.NoError(t, err)
	assert.Equal(t, geo.Coordinate{Lat: 40.715, Lng: -74.005}, c)

	for _, in := range []string{"", "40.7", "abc,1", "1,abc", "91,0", "0,181"} {
		_, err := ParseCoordinate(in)
		assert.Error(t, err, in)
	}
}

func TestStorageBackends(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(func() {
		config.Storage, config.StorageURL, config.RedisAddr = "", "", ""
	})

	config.Storage = "memory"
	s, closeFn, err := Storage(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "k", []byte("v")))
	closeFn()

	config.Storage = "file"
	config.StorageURL = t.TempDir()
	s, closeFn, err = Storage(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "k", []byte("v")))
	closeFn()

	mr := miniredis.RunT(t)
	config.Storage = "redis"
	config.RedisAddr = mr.Addr()
	config.WaitForServices = "1s"
	s, closeFn, err = Storage(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "k", []byte("v")))
	assert.True(t, mr.Exists("zenride:k"))
	closeFn()

	config.Storage = "tape"
	_, closeFn, err = Storage(ctx)
	assert.Error(t, err)
	assert.NotNil(t, closeFn)
}

func TestPreferencesAndFine(t *testing.T) {
	config.AvoidTolls, config.AvoidHighways, config.AvoidHazards = true, false, true
	config.FineAmount = 150
	t.Cleanup(func() {
		config.AvoidTolls, config.AvoidHazards, config.FineAmount = false, false, 0
	})
	assert.Equal(t, model.Preferences{AvoidTolls: true, AvoidHazards: true}, Preferences())
	assert.True(t, decimal.NewFromInt(150).Equal(Fine()))
}

func TestHazardSourceWithoutFile(t *testing.T) {
	config.HazardFile = ""
	p, fs := HazardSource()
	assert.Nil(t, fs)
	c, err := p.Catalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestRoutingClientRequiresKey(t *testing.T) {
	config.RouteFile, config.RoutingAPIKey = "", ""
	_, err := RoutingClient()
	assert.Error(t, err)
}
