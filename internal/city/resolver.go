package city

import (
	"context"
	"errors"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

// DefaultLimit is the number of results returned when none is requested.
const DefaultLimit = 10

// shortQueryRunes is the length at or below which only the first-letter
// bucket is searched, by prefix.
const shortQueryRunes = 2

// Match scores. The first rule a record satisfies wins.
const (
	scoreExact          = 100
	scorePrefix         = 90
	scoreContains       = 80
	scoreAliasExact     = 85
	scoreAliasPrefix    = 75
	scoreAliasContains  = 65
	scoreShortPrefix    = 100
	scoreShortAliasPref = 90
)

// ResolverConfig holds configuration for the city resolver.
type ResolverConfig struct {
	Gazetteer *Gazetteer

	// Searcher is optional. Without it only gazetteer matches are returned.
	Searcher Searcher

	// Limit caps results when the caller passes no limit (default: 10).
	Limit int

	Logger zerolog.Logger
}

// Resolver searches the gazetteer and merges external results.
type Resolver struct {
	gazetteer *Gazetteer
	searcher  Searcher
	limit     int
	logger    zerolog.Logger
}

// NewResolver creates a new resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	gazetteer := cfg.Gazetteer
	if gazetteer == nil {
		gazetteer = NewGazetteer(nil)
	}

	return &Resolver{
		gazetteer: gazetteer,
		searcher:  cfg.Searcher,
		limit:     limit,
		logger:    cfg.Logger,
	}
}

// Search returns up to limit matches for query. Queries of two characters
// or fewer only prefix-match the gazetteer bucket of their first letter.
// Longer queries scan the whole gazetteer and append external results that
// do not duplicate a gazetteer match; gazetteer matches always come first.
// Ties are broken by name, then state, both case-insensitive.
func (r *Resolver) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = r.limit
	}

	lower := strings.ToLower(q)
	if utf8.RuneCountInString(q) <= shortQueryRunes {
		first, _ := utf8.DecodeRuneInString(q)
		return truncate(r.scoreShort(first, lower), limit), nil
	}

	local := truncate(r.scoreFull(lower), limit)
	if r.searcher == nil || len(local) >= limit {
		return local, nil
	}

	external, err := r.searcher.SearchCities(ctx, q, limit)
	if err != nil {
		event := r.logger.Warn()
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			event = r.logger.Debug()
		}
		event.Err(err).Str("query", q).Msg("external city search failed, using gazetteer only")
		return local, nil
	}

	return truncate(mergeExternal(local, external), limit), nil
}

// Resolve returns the best match for query.
func (r *Resolver) Resolve(ctx context.Context, query string) (*Match, error) {
	matches, err := r.Search(ctx, query, 1)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrCityNotFound
	}
	return &matches[0], nil
}

func (r *Resolver) scoreShort(first rune, lower string) []Match {
	var out []Match
	for _, rec := range r.gazetteer.Bucket(first) {
		switch {
		case strings.HasPrefix(strings.ToLower(rec.Name), lower):
			out = append(out, Match{Record: rec, Score: scoreShortPrefix, Source: SourceGazetteer})
		case anyAlias(rec, func(a string) bool { return strings.HasPrefix(a, lower) }):
			out = append(out, Match{Record: rec, Score: scoreShortAliasPref, Source: SourceGazetteer})
		}
	}
	sortMatches(out)
	return out
}

func (r *Resolver) scoreFull(lower string) []Match {
	var out []Match
	for _, rec := range r.gazetteer.records {
		if score := scoreRecord(rec, lower); score > 0 {
			out = append(out, Match{Record: rec, Score: score, Source: SourceGazetteer})
		}
	}
	sortMatches(out)
	return out
}

func scoreRecord(rec Record, lower string) int {
	name := strings.ToLower(rec.Name)
	switch {
	case name == lower:
		return scoreExact
	case strings.HasPrefix(name, lower):
		return scorePrefix
	case strings.Contains(name, lower):
		return scoreContains
	case anyAlias(rec, func(a string) bool { return a == lower }):
		return scoreAliasExact
	case anyAlias(rec, func(a string) bool { return strings.HasPrefix(a, lower) }):
		return scoreAliasPrefix
	case anyAlias(rec, func(a string) bool { return strings.Contains(a, lower) }):
		return scoreAliasContains
	default:
		return 0
	}
}

func anyAlias(rec Record, pred func(string) bool) bool {
	for _, a := range rec.Aliases {
		if pred(strings.ToLower(a)) {
			return true
		}
	}
	return false
}

func sortMatches(m []Match) {
	sort.SliceStable(m, func(i, j int) bool {
		if m[i].Score != m[j].Score {
			return m[i].Score > m[j].Score
		}
		ni, nj := strings.ToLower(m[i].Name), strings.ToLower(m[j].Name)
		if ni != nj {
			return ni < nj
		}
		return strings.ToLower(m[i].State) < strings.ToLower(m[j].State)
	})
}

// mergeExternal appends external results after local ones, dropping any
// whose name equals a local name and repeated external entries.
func mergeExternal(local []Match, external []ExternalCity) []Match {
	seen := make(map[string]bool, len(local)+len(external))
	for _, m := range local {
		seen[strings.ToLower(m.Name)] = true
	}

	out := append([]Match(nil), local...)
	for _, e := range external {
		name := strings.TrimSpace(e.Name)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		c := geo.Coordinate{Lat: e.Lat, Lng: e.Lon}
		if c.Validate() != nil {
			continue
		}
		seen[key] = true
		out = append(out, Match{
			Record: Record{
				Name:       name,
				State:      e.State,
				Country:    e.Country,
				Coordinate: c,
			},
			Source: SourceExternal,
		})
	}
	return out
}

func truncate(m []Match, limit int) []Match {
	if m == nil {
		return []Match{}
	}
	if len(m) > limit {
		return m[:limit]
	}
	return m
}
