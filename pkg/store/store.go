// Package store keeps the drive journal: drive records grouped by route and
// their sessions.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/mod/semver"

	"github.com/mpapenbr/zenride/log"
	"github.com/mpapenbr/zenride/pkg/geo"
	"github.com/mpapenbr/zenride/pkg/model"
	"github.com/mpapenbr/zenride/pkg/store/blob"
)

const (
	RecordsKey      = "drive_records_v1"
	EnvelopeVersion = "v1.0.0"
)

var (
	ErrRecordNotFound  = errors.New("drive record not found")
	ErrSessionNotFound = errors.New("drive session not found")
	ErrMoodAlreadySet  = errors.New("mood already attached")
)

type envelope struct {
	Version string              `json:"version"`
	Records []model.DriveRecord `json:"records"`
}

// RecordStore holds all drive records, most recently created first.
// Every mutation persists the complete set.
type RecordStore struct {
	mu      sync.Mutex
	storage blob.Storage
	key     string
	records []model.DriveRecord
	now     func() time.Time
	l       *log.Logger
}

type Option func(*RecordStore)

func WithClock(now func() time.Time) Option {
	return func(s *RecordStore) {
		s.now = now
	}
}

func WithKey(key string) Option {
	return func(s *RecordStore) {
		s.key = key
	}
}

// NewRecordStore creates the store and loads the persisted records.
// A failing load is logged and leaves the store empty.
//
//nolint:whitespace // editor/linter issue
func NewRecordStore(
	ctx context.Context,
	storage blob.Storage,
	opts ...Option,
) *RecordStore {
	s := &RecordStore{
		storage: storage,
		key:     RecordsKey,
		now:     time.Now,
		l:       log.Default().Named("store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.load(ctx)
	return s
}

func (s *RecordStore) load(ctx context.Context) {
	data, err := s.storage.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, blob.ErrNotFound) {
			s.l.Error("failed to load records", log.ErrorField(err))
		}
		return
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.l.Error("failed to decode records", log.ErrorField(err))
		return
	}
	if !semver.IsValid(env.Version) ||
		semver.Major(env.Version) != semver.Major(EnvelopeVersion) {
		s.l.Warn("ignoring records with incompatible version",
			log.String("version", env.Version),
			log.String("supported", EnvelopeVersion))
		return
	}
	s.records = env.Records
	s.l.Info("loaded drive records", log.Int("records", len(s.records)))
}

// save must be called with the lock held
func (s *RecordStore) save(ctx context.Context) {
	data, err := json.Marshal(envelope{Version: EnvelopeVersion, Records: s.records})
	if err != nil {
		s.l.Error("failed to encode records", log.ErrorField(err))
		return
	}
	if err := s.storage.Put(ctx, s.key, data); err != nil {
		s.l.Error("failed to persist records", log.ErrorField(err))
	}
}

// AppendSession adds session to the record matching the route fingerprint of
// origin and dest. A new record is created (and put first) if there is none.
//
//nolint:whitespace // editor/linter issue
func (s *RecordStore) AppendSession(
	ctx context.Context,
	origin, dest geo.Coordinate,
	destinationName string,
	session *model.DriveSession,
) model.DriveRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.save(ctx)

	fp := Fingerprint(origin, dest)
	if idx := slices.IndexFunc(s.records, func(r model.DriveRecord) bool {
		return r.RouteFingerprint == fp
	}); idx >= 0 {
		r := &s.records[idx]
		r.Sessions = slices.Insert(r.Sessions, 0, *session)
		s.l.Info("appended session to existing record",
			log.String("destination", r.DestinationName),
			log.Int("sessions", r.SessionCount()))
		return copyRecord(r)
	}
	r := model.DriveRecord{
		ID:               uuid.New(),
		RouteFingerprint: fp,
		DestinationName:  destinationName,
		Origin:           origin,
		Destination:      dest,
		Sessions:         []model.DriveSession{*session},
	}
	s.records = slices.Insert(s.records, 0, r)
	s.l.Info("created new drive record",
		log.String("destination", destinationName),
		log.String("fingerprint", fp))
	return copyRecord(&r)
}

func (s *RecordStore) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return ErrRecordNotFound
	}
	s.records = slices.Delete(s.records, idx, idx+1)
	s.save(ctx)
	return nil
}

// ToggleBookmark flips the bookmark flag and returns the new value
func (s *RecordStore) ToggleBookmark(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return false, ErrRecordNotFound
	}
	s.records[idx].Bookmarked = !s.records[idx].Bookmarked
	s.save(ctx)
	return s.records[idx].Bookmarked, nil
}

// AttachMood sets the mood of a recorded session. A mood can only be
// attached once.
//
//nolint:whitespace // editor/linter issue
func (s *RecordStore) AttachMood(
	ctx context.Context,
	sessionID uuid.UUID,
	mood string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		for j := range s.records[i].Sessions {
			sess := &s.records[i].Sessions[j]
			if sess.ID != sessionID {
				continue
			}
			if sess.Mood != nil {
				return ErrMoodAlreadySet
			}
			sess.Mood = &mood
			s.save(ctx)
			return nil
		}
	}
	return ErrSessionNotFound
}

func (s *RecordStore) Records() []model.DriveRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]model.DriveRecord, 0, len(s.records))
	for i := range s.records {
		ret = append(ret, copyRecord(&s.records[i]))
	}
	return ret
}

func (s *RecordStore) Record(id uuid.UUID) (model.DriveRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return model.DriveRecord{}, ErrRecordNotFound
	}
	return copyRecord(&s.records[idx]), nil
}

// Bookmarked returns the bookmarked records, most recently driven first
func (s *RecordStore) Bookmarked() []model.DriveRecord {
	ret := slices.DeleteFunc(s.Records(), func(r model.DriveRecord) bool {
		return !r.Bookmarked
	})
	slices.SortStableFunc(ret, func(a, b model.DriveRecord) int {
		return b.LastDrivenDate().Compare(a.LastDrivenDate())
	})
	return ret
}

// MostDriven returns the record with the most sessions. On a tie the first
// record in store order wins.
func (s *RecordStore) MostDriven() (model.DriveRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	best := -1
	for i := range s.records {
		if best < 0 || s.records[i].SessionCount() > s.records[best].SessionCount() {
			best = i
		}
	}
	if best < 0 {
		return model.DriveRecord{}, false
	}
	return copyRecord(&s.records[best]), true
}

func (s *RecordStore) indexOf(id uuid.UUID) int {
	return slices.IndexFunc(s.records, func(r model.DriveRecord) bool {
		return r.ID == id
	})
}

func copyRecord(r *model.DriveRecord) model.DriveRecord {
	ret := *r
	ret.Sessions = slices.Clone(r.Sessions)
	return ret
}
