package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mpapenbr/zenride/pkg/geo"
	"github.com/mpapenbr/zenride/pkg/model"
	"github.com/mpapenbr/zenride/pkg/store/blob"
)

var (
	home = geo.Coordinate{Lat: 40.7128, Lng: -74.0060}
	work = geo.Coordinate{Lat: 40.7580, Lng: -73.9855}
	gym  = geo.Coordinate{Lat: 40.7306, Lng: -73.9352}
)

func testNow() time.Time {
	return time.Date(2024, 5, 6, 18, 0, 0, 0, time.UTC)
}

func newSession(start time.Time, saved, tickets int) model.DriveSession {
	events := make([]model.CameraZoneEvent, 0, saved+tickets)
	for range saved {
		events = append(events, model.CameraZoneEvent{Outcome: model.OutcomeSaved})
	}
	for range tickets {
		events = append(events, model.CameraZoneEvent{Outcome: model.OutcomePotentialTicket})
	}
	p := model.PendingSession{
		ZoneEvents:      events,
		DepartureTime:   start,
		DistanceMiles:   3.5,
		DurationSeconds: 600,
		TopSpeedMph:     40,
		AvgSpeedMph:     25,
		ZenScore:        90,
	}
	return p.ToSession(decimal.NewFromInt(100), nil)
}

func newTestStore(t *testing.T, storage blob.Storage) *RecordStore {
	t.Helper()
	return NewRecordStore(context.Background(), storage, WithClock(testNow))
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "40.7150,-74.0050|40.7600,-73.9850", Fingerprint(home, work))
	// about 100m apart snaps to the same cell
	near := geo.Coordinate{Lat: home.Lat + 0.0005, Lng: home.Lng + 0.0005}
	assert.Equal(t, Fingerprint(home, work), Fingerprint(near, work))
	assert.NotEqual(t, Fingerprint(home, work), Fingerprint(work, home))
	assert.Equal(t, "0.0000,0.0000|0.0000,0.0000",
		Fingerprint(geo.Coordinate{Lat: -0.001}, geo.Coordinate{Lng: -0.0001}))
}

func TestFingerprintGridProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		o := geo.Coordinate{
			Lat: rapid.Float64Range(-80, 80).Draw(t, "lat"),
			Lng: rapid.Float64Range(-179, 179).Draw(t, "lng"),
		}
		// a point well inside the same cell yields the same fingerprint
		center := geo.Coordinate{Lat: snap(o.Lat), Lng: snap(o.Lng)}
		dLat := rapid.Float64Range(-0.002, 0.002).Draw(t, "dlat")
		dLng := rapid.Float64Range(-0.002, 0.002).Draw(t, "dlng")
		moved := geo.Coordinate{Lat: center.Lat + dLat, Lng: center.Lng + dLng}
		if Fingerprint(center, center) != Fingerprint(moved, center) {
			t.Fatalf("%v and %v differ", center, moved)
		}
	})
}

func TestAppendSessionDedup(t *testing.T) {
	s := newTestStore(t, blob.NewMemoryStorage())
	ctx := context.Background()
	first := newSession(testNow().Add(-48*time.Hour), 1, 0)
	second := newSession(testNow(), 1, 0)

	r1 := s.AppendSession(ctx, home, work, "Work", &first)
	near := geo.Coordinate{Lat: home.Lat + 0.0004, Lng: home.Lng}
	r2 := s.AppendSession(ctx, near, work, "Office", &second)
	assert.Equal(t, r1.ID, r2.ID)
	assert.Equal(t, "Work", r2.DestinationName)
	require.Len(t, r2.Sessions, 2)
	assert.Equal(t, second.ID, r2.Sessions[0].ID, "latest session first")

	gymSession := newSession(testNow(), 0, 0)
	r3 := s.AppendSession(ctx, home, gym, "Gym", &gymSession)
	assert.NotEqual(t, r1.ID, r3.ID)

	records := s.Records()
	require.Len(t, records, 2)
	assert.Equal(t, r3.ID, records[0].ID, "new records are inserted first")
}

func TestRecordsAreCopies(t *testing.T) {
	s := newTestStore(t, blob.NewMemoryStorage())
	sess := newSession(testNow(), 0, 0)
	s.AppendSession(context.Background(), home, work, "Work", &sess)
	records := s.Records()
	records[0].Sessions[0].ZenScore = 1
	records[0].DestinationName = "changed"
	again := s.Records()
	assert.Equal(t, 90, again[0].Sessions[0].ZenScore)
	assert.Equal(t, "Work", again[0].DestinationName)
}

func TestPersistence(t *testing.T) {
	storage := blob.NewMemoryStorage()
	s := newTestStore(t, storage)
	ctx := context.Background()
	sess := newSession(testNow(), 2, 1)
	r := s.AppendSession(ctx, home, work, "Work", &sess)
	_, err := s.ToggleBookmark(ctx, r.ID)
	require.NoError(t, err)

	data, err := storage.Get(ctx, RecordsKey)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, EnvelopeVersion, env.Version)

	reloaded := newTestStore(t, storage)
	records := reloaded.Records()
	require.Len(t, records, 1)
	assert.True(t, records[0].Bookmarked)
	assert.Equal(t, sess.ID, records[0].Sessions[0].ID)
	assert.True(t, decimal.NewFromInt(200).Equal(records[0].AllTimeMoneySaved()))
}

func TestLoadIgnoresIncompatibleVersion(t *testing.T) {
	storage := blob.NewMemoryStorage()
	ctx := context.Background()
	data, err := json.Marshal(envelope{
		Version: "v2.0.0",
		Records: []model.DriveRecord{{ID: uuid.New(), DestinationName: "Future"}},
	})
	require.NoError(t, err)
	require.NoError(t, storage.Put(ctx, RecordsKey, data))
	assert.Empty(t, newTestStore(t, storage).Records())

	require.NoError(t, storage.Put(ctx, RecordsKey, []byte("not json")))
	assert.Empty(t, newTestStore(t, storage).Records())
}

type failingStorage struct{}

func (failingStorage) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("unavailable")
}

func (failingStorage) Put(context.Context, string, []byte) error {
	return errors.New("unavailable")
}

func (failingStorage) Delete(context.Context, string) error {
	return errors.New("unavailable")
}

func TestStorageFailuresKeepMemoryState(t *testing.T) {
	s := newTestStore(t, failingStorage{})
	sess := newSession(testNow(), 1, 0)
	s.AppendSession(context.Background(), home, work, "Work", &sess)
	assert.Len(t, s.Records(), 1)
}

func TestDeleteAndBookmarks(t *testing.T) {
	s := newTestStore(t, blob.NewMemoryStorage())
	ctx := context.Background()
	older := newSession(testNow().Add(-72*time.Hour), 0, 0)
	newer := newSession(testNow(), 0, 0)
	rWork := s.AppendSession(ctx, home, work, "Work", &older)
	rGym := s.AppendSession(ctx, home, gym, "Gym", &newer)

	assert.Empty(t, s.Bookmarked())
	for _, id := range []uuid.UUID{rWork.ID, rGym.ID} {
		on, err := s.ToggleBookmark(ctx, id)
		require.NoError(t, err)
		assert.True(t, on)
	}
	bm := s.Bookmarked()
	require.Len(t, bm, 2)
	assert.Equal(t, "Gym", bm[0].DestinationName)
	assert.Equal(t, "Work", bm[1].DestinationName)

	on, err := s.ToggleBookmark(ctx, rGym.ID)
	require.NoError(t, err)
	assert.False(t, on)
	assert.Len(t, s.Bookmarked(), 1)

	require.NoError(t, s.DeleteRecord(ctx, rWork.ID))
	assert.ErrorIs(t, s.DeleteRecord(ctx, rWork.ID), ErrRecordNotFound)
	_, err = s.ToggleBookmark(ctx, rWork.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	_, err = s.Record(rWork.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.Len(t, s.Records(), 1)
}

func TestAttachMood(t *testing.T) {
	s := newTestStore(t, blob.NewMemoryStorage())
	ctx := context.Background()
	sess := newSession(testNow(), 0, 0)
	r := s.AppendSession(ctx, home, work, "Work", &sess)

	require.NoError(t, s.AttachMood(ctx, sess.ID, "calm"))
	got, err := s.Record(r.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Sessions[0].Mood)
	assert.Equal(t, "calm", *got.Sessions[0].Mood)

	assert.ErrorIs(t, s.AttachMood(ctx, sess.ID, "angry"), ErrMoodAlreadySet)
	assert.ErrorIs(t, s.AttachMood(ctx, uuid.New(), "calm"), ErrSessionNotFound)
}

func TestMostDriven(t *testing.T) {
	s := newTestStore(t, blob.NewMemoryStorage())
	_, ok := s.MostDriven()
	assert.False(t, ok)

	ctx := context.Background()
	for range 3 {
		sess := newSession(testNow(), 0, 0)
		s.AppendSession(ctx, home, work, "Work", &sess)
	}
	sess := newSession(testNow(), 0, 0)
	s.AppendSession(ctx, home, gym, "Gym", &sess)

	r, ok := s.MostDriven()
	require.True(t, ok)
	assert.Equal(t, "Work", r.DestinationName)
	assert.Equal(t, 3, r.SessionCount())
}
