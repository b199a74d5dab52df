// Package places remembers destinations: visited and saved places, routine
// slots and recent searches.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/mod/semver"

	"github.com/mpapenbr/zenride/log"
	"github.com/mpapenbr/zenride/pkg/geo"
	"github.com/mpapenbr/zenride/pkg/store/blob"
)

const (
	PlacesKey       = "places_v1"
	EnvelopeVersion = "v1.0.0"
)

var ErrPlaceNotFound = errors.New("place not found")

type Category string

const (
	CategoryHome        Category = "home"
	CategoryWork        Category = "work"
	CategoryGym         Category = "gym"
	CategoryParty       Category = "party"
	CategoryHoly        Category = "holy"
	CategoryDayCare     Category = "daycare"
	CategorySchool      Category = "school"
	CategoryAfterSchool Category = "afterschool"
	CategoryDateSpot    Category = "datespot"
)

type Place struct {
	ID                     uuid.UUID      `json:"id"`
	Name                   string         `json:"name"`
	Location               geo.Coordinate `json:"location"`
	UseCount               int            `json:"useCount"`
	LastUsed               time.Time      `json:"lastUsed"`
	TypicalDepartureHours  []int          `json:"typicalDepartureHours"`
	AverageDurationSeconds int            `json:"averageDurationSeconds"`
	Pinned                 bool           `json:"pinned"`
	Category               Category       `json:"category,omitempty"`
	SlotIndex              *int           `json:"slotIndex,omitempty"`
}

type RecentSearch struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Subtitle  string         `json:"subtitle"`
	Location  geo.Coordinate `json:"location"`
	Timestamp time.Time      `json:"timestamp"`
}

type envelope struct {
	Version        string         `json:"version"`
	Places         []Place        `json:"places"`
	RecentSearches []RecentSearch `json:"recentSearches"`
}

type Store struct {
	mu       sync.Mutex
	cfg      Config
	storage  blob.Storage
	places   []Place
	searches []RecentSearch
	now      func() time.Time
	l        *log.Logger
}

type Option func(*Store)

func WithConfig(cfg Config) Option {
	return func(s *Store) {
		s.cfg = cfg
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(ctx context.Context, storage blob.Storage, opts ...Option) *Store {
	s := &Store{
		cfg:     DefaultConfig(),
		storage: storage,
		now:     time.Now,
		l:       log.Default().Named("places"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) {
	data, err := s.storage.Get(ctx, PlacesKey)
	if err != nil {
		if !errors.Is(err, blob.ErrNotFound) {
			s.l.Error("failed to load places", log.ErrorField(err))
		}
		return
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.l.Error("failed to decode places", log.ErrorField(err))
		return
	}
	if !semver.IsValid(env.Version) ||
		semver.Major(env.Version) != semver.Major(EnvelopeVersion) {
		s.l.Warn("ignoring places with incompatible version",
			log.String("version", env.Version))
		return
	}
	s.places = env.Places
	s.searches = env.RecentSearches
}

func (s *Store) save(ctx context.Context) {
	data, err := json.Marshal(envelope{
		Version:        EnvelopeVersion,
		Places:         s.places,
		RecentSearches: s.searches,
	})
	if err != nil {
		s.l.Error("failed to encode places", log.ErrorField(err))
		return
	}
	if err := s.storage.Put(ctx, PlacesKey, data); err != nil {
		s.l.Error("failed to persist places", log.ErrorField(err))
	}
}

// nameMatches compares case insensitive. Names also match if the existing
// name starts with the first NamePrefixLen chars of name.
func (s *Store) nameMatches(existing, name string) bool {
	existing = strings.ToLower(existing)
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}
	if existing == name {
		return true
	}
	runes := []rune(name)
	prefix := string(runes[:min(len(runes), s.cfg.NamePrefixLen)])
	return strings.HasPrefix(existing, prefix)
}

func (s *Store) findIndex(loc geo.Coordinate, name string) int {
	return slices.IndexFunc(s.places, func(p Place) bool {
		d := geo.DistanceMeters(p.Location, loc)
		return d < s.cfg.MatchMeters ||
			(d < s.cfg.NameMatchMeters && s.nameMatches(p.Name, name))
	})
}

func (s *Store) indexOf(id uuid.UUID) int {
	return slices.IndexFunc(s.places, func(p Place) bool { return p.ID == id })
}

// Find returns the known place for loc and name
func (s *Store) Find(loc geo.Coordinate, name string) (Place, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.findIndex(loc, name); idx >= 0 {
		return copyPlace(&s.places[idx]), true
	}
	return Place{}, false
}

// SavePlace pins a place. An existing matching place is pinned instead of
// creating a new one.
func (s *Store) SavePlace(ctx context.Context, name string, loc geo.Coordinate) Place {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.save(ctx)
	if idx := s.findIndex(loc, name); idx >= 0 {
		p := &s.places[idx]
		p.Pinned = true
		p.LastUsed = s.now()
		return copyPlace(p)
	}
	p := Place{
		ID:       uuid.New(),
		Name:     name,
		Location: loc,
		LastUsed: s.now(),
		Pinned:   true,
	}
	s.places = slices.Insert(s.places, 0, p)
	return copyPlace(&p)
}

// RecordVisit is called after a drive to the place ended.
//
//nolint:whitespace // editor/linter issue
func (s *Store) RecordVisit(
	ctx context.Context,
	name string,
	loc geo.Coordinate,
	durationSeconds int,
	departure time.Time,
) Place {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.save(ctx)
	hour := departure.Hour()
	if idx := s.findIndex(loc, name); idx >= 0 {
		p := &s.places[idx]
		p.UseCount++
		p.LastUsed = departure
		p.TypicalDepartureHours = append(p.TypicalDepartureHours, hour)
		if n := len(p.TypicalDepartureHours); n > s.cfg.MaxDepartureHours {
			p.TypicalDepartureHours = slices.Clone(
				p.TypicalDepartureHours[n-s.cfg.MaxDepartureHours:])
		}
		p.AverageDurationSeconds = (p.AverageDurationSeconds*(p.UseCount-1) +
			durationSeconds) / p.UseCount
		s.l.Debug("recorded visit", log.String("place", p.Name), log.Int("uses", p.UseCount))
		return copyPlace(p)
	}
	p := Place{
		ID:                     uuid.New(),
		Name:                   name,
		Location:               loc,
		UseCount:               1,
		LastUsed:               departure,
		TypicalDepartureHours:  []int{hour},
		AverageDurationSeconds: durationSeconds,
	}
	s.places = slices.Insert(s.places, 0, p)
	return copyPlace(&p)
}

func (s *Store) TogglePin(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return false, ErrPlaceNotFound
	}
	s.places[idx].Pinned = !s.places[idx].Pinned
	s.save(ctx)
	return s.places[idx].Pinned, nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return ErrPlaceNotFound
	}
	s.places = slices.Delete(s.places, idx, idx+1)
	s.save(ctx)
	return nil
}

// AssignRoutine puts the place into a routine slot. A place previously
// occupying the slot loses it. Assigned places are pinned.
//
//nolint:whitespace // editor/linter issue
func (s *Store) AssignRoutine(
	ctx context.Context,
	id uuid.UUID,
	category Category,
	slot int,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return ErrPlaceNotFound
	}
	for i := range s.places {
		p := &s.places[i]
		if p.Category == category && p.SlotIndex != nil && *p.SlotIndex == slot {
			p.Category = ""
			p.SlotIndex = nil
		}
	}
	p := &s.places[idx]
	p.Category = category
	p.SlotIndex = &slot
	p.Pinned = true
	s.save(ctx)
	return nil
}

func (s *Store) ForSlot(category Category, slot int) (Place, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.places {
		p := &s.places[i]
		if p.Category == category && p.SlotIndex != nil && *p.SlotIndex == slot {
			return copyPlace(p), true
		}
	}
	return Place{}, false
}

func (s *Store) Places() []Place {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Map(s.places, func(p Place, _ int) Place { return copyPlace(&p) })
}

// Pinned returns the pinned places ordered by name
func (s *Store) Pinned() []Place {
	ret := lo.Filter(s.Places(), func(p Place, _ int) bool { return p.Pinned })
	slices.SortStableFunc(ret, func(a, b Place) int { return strings.Compare(a.Name, b.Name) })
	return ret
}

// TopRecent returns visited places, most recently used first
func (s *Store) TopRecent(limit int) []Place {
	ret := lo.Filter(s.Places(), func(p Place, _ int) bool { return p.UseCount > 0 })
	slices.SortStableFunc(ret, func(a, b Place) int { return b.LastUsed.Compare(a.LastUsed) })
	return ret[:min(limit, len(ret))]
}

// Suggestions returns frequently used places usually departed to around hour.
func (s *Store) Suggestions(hour int) []Place {
	if hour < s.cfg.SuggestionFirst || hour > s.cfg.SuggestionLast {
		return nil
	}
	ret := lo.Filter(s.Places(), func(p Place, _ int) bool {
		return p.UseCount >= s.cfg.MinSuggestionUses &&
			lo.ContainsBy(p.TypicalDepartureHours, func(h int) bool {
				return h >= hour-1 && h <= hour+1
			})
	})
	slices.SortStableFunc(ret, func(a, b Place) int { return b.UseCount - a.UseCount })
	return ret[:min(s.cfg.SuggestionLimit, len(ret))]
}

// PromptText is the question offered with a suggestion.
func PromptText(p *Place, hour int) string {
	name := strings.ToLower(p.Name)
	switch {
	case name == "home" || strings.HasSuffix(name, "home"):
		return "Time to head home?"
	case strings.Contains(name, "work") && hour >= 7 && hour <= 9:
		return "Head to Work?"
	default:
		return "Heading to " + p.Name + "?"
	}
}

func copyPlace(p *Place) Place {
	ret := *p
	ret.TypicalDepartureHours = slices.Clone(p.TypicalDepartureHours)
	if p.SlotIndex != nil {
		slot := *p.SlotIndex
		ret.SlotIndex = &slot
	}
	return ret
}
