package places

type Config struct {
	MatchMeters       float64 // a visit closer than this belongs to the place
	NameMatchMeters   float64 // same as MatchMeters if the name matches as well
	NamePrefixLen     int     // names sharing this many leading chars match
	MaxDepartureHours int
	MaxRecentSearches int
	SuggestionLimit   int
	MinSuggestionUses int
	SuggestionFirst   int // suggestions are offered between these hours
	SuggestionLast    int
}

func DefaultConfig() Config {
	return Config{
		MatchMeters:       150,
		NameMatchMeters:   400,
		NamePrefixLen:     5,
		MaxDepartureHours: 50,
		MaxRecentSearches: 10,
		SuggestionLimit:   3,
		MinSuggestionUses: 2,
		SuggestionFirst:   5,
		SuggestionLast:    23,
	}
}
