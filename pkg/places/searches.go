package places

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/mpapenbr/zenride/pkg/geo"
)

// AddRecentSearch puts name first. An older entry with the same name
// (case insensitive) is replaced. Blank names are ignored.
//
//nolint:whitespace // editor/linter issue
func (s *Store) AddRecentSearch(
	ctx context.Context,
	name, subtitle string,
	loc geo.Coordinate,
) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches = slices.DeleteFunc(s.searches, func(r RecentSearch) bool {
		return strings.EqualFold(r.Name, name)
	})
	s.searches = slices.Insert(s.searches, 0, RecentSearch{
		ID:        uuid.New(),
		Name:      name,
		Subtitle:  subtitle,
		Location:  loc,
		Timestamp: s.now(),
	})
	if len(s.searches) > s.cfg.MaxRecentSearches {
		s.searches = s.searches[:s.cfg.MaxRecentSearches]
	}
	s.save(ctx)
}

func (s *Store) DeleteRecentSearch(ctx context.Context, id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches = slices.DeleteFunc(s.searches, func(r RecentSearch) bool {
		return r.ID == id
	})
	s.save(ctx)
}

// RecentSearches returns the searches, latest first
func (s *Store) RecentSearches() []RecentSearch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.searches)
}
