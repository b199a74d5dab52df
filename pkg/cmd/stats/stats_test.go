package stats

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/mpapenbr/zenride/pkg/geo"
	"github.com/mpapenbr/zenride/pkg/model"
	"github.com/mpapenbr/zenride/pkg/places"
	"github.com/mpapenbr/zenride/pkg/store"
	"github.com/mpapenbr/zenride/pkg/store/blob"
)

var (
	home = geo.Coordinate{Lat: 40.715, Lng: -74.005}
	gym  = geo.Coordinate{Lat: 40.76, Lng: -73.985}
)

func fixture(t *testing.T) (*store.RecordStore, *places.Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2024, 5, 6, 10, 0, 0, 0, time.Local)
	storage := blob.NewMemoryStorage()
	records := store.NewRecordStore(ctx, storage, store.WithClock(func() time.Time { return now }))
	placeStore := places.NewStore(ctx, storage)
	for i := range 2 {
		start := now.Add(-time.Duration(i+1) * time.Hour)
		s := model.DriveSession{
			ID:              uuid.New(),
			StartTime:       start,
			DurationSeconds: 600,
			DistanceMiles:   4,
			ZenScore:        90,
			MoneySaved:      decimal.NewFromInt(100),
			ZoneEvents: []model.CameraZoneEvent{
				{Outcome: model.OutcomeSaved, SpeedLimitMph: 25},
			},
		}
		records.AppendSession(ctx, home, gym, "Gym", &s)
		placeStore.RecordVisit(ctx, "Gym", gym, 600, start)
	}
	return records, placeStore
}

func TestBuild(t *testing.T) {
	records, placeStore := fixture(t)
	r := Build(records, placeStore, 9)
	assert.Equal(t, 2, r.Stats.TotalRideCount)
	assert.Equal(t, 10, len(r.Achievements))
	assert.Equal(t, 0, r.Earned)
	assert.Assert(t, r.MostDriven != nil)
	assert.Equal(t, "Gym", r.MostDriven.Name)
	assert.Equal(t, 2, r.MostDriven.Sessions)
	assert.Equal(t, "200.00", r.MostDriven.Saved)
	assert.Equal(t, 0, len(r.Bookmarked))
	assert.DeepEqual(t, []string{"Heading to Gym?"}, r.Suggestions)

	assert.Equal(t, 0, len(Build(records, placeStore, 3).Suggestions))
}

func TestPrintText(t *testing.T) {
	records, placeStore := fixture(t)
	r := Build(records, placeStore, 9)
	var buf bytes.Buffer
	assert.NilError(t, Print(&buf, "text", &r))
	out := buf.String()
	assert.Assert(t, is.Contains(out, "rides:         2\n"))
	assert.Assert(t, is.Contains(out, "saved:         $200.00 (2 cameras)"))
	assert.Assert(t, is.Contains(out, "most driven:   Gym (2 rides)"))
	assert.Assert(t, is.Contains(out, "achievements (0/10)"))
	assert.Assert(t, is.Contains(out, "Heading to Gym?"))
	assert.Equal(t, 10, strings.Count(out, "%  "))
}

func TestPrintYAML(t *testing.T) {
	records, placeStore := fixture(t)
	r := Build(records, placeStore, 9)
	var buf bytes.Buffer
	assert.NilError(t, Print(&buf, "yaml", &r))
	var got map[string]any
	assert.NilError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, r.Earned, got["earned"])
	md, ok := got["mostDriven"].(map[string]any)
	assert.Assert(t, ok)
	assert.Equal(t, "Gym", md["name"])
}
