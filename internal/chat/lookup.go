package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/cfcgs/cfcgs-tracker-backend/pkg/database"
	"github.com/cfcgs/cfcgs-tracker-backend/pkg/logging"
)

const (
	similarityThreshold = 0.6
	maxCandidates       = 5
)

// EntityCategory selects which dimension table a lookup runs against.
type EntityCategory string

const (
	CategoryCountry EntityCategory = "country"
	CategoryProject EntityCategory = "project"
	CategoryFund    EntityCategory = "fund"
)

var categoryQueries = map[EntityCategory]struct {
	exact    string
	wildcard string
	all      string
}{
	CategoryCountry: {
		exact:    `SELECT name FROM countries WHERE LOWER(name) = LOWER($1)`,
		wildcard: `SELECT name FROM countries WHERE name ILIKE $1 ORDER BY name LIMIT $2`,
		all:      `SELECT DISTINCT name FROM countries`,
	},
	CategoryProject: {
		exact:    `SELECT name FROM projects WHERE LOWER(name) = LOWER($1)`,
		wildcard: `SELECT name FROM projects WHERE name ILIKE $1 ORDER BY name LIMIT $2`,
		all:      `SELECT DISTINCT name FROM projects`,
	},
	CategoryFund: {
		exact:    `SELECT fund_name FROM funds WHERE LOWER(fund_name) = LOWER($1)`,
		wildcard: `SELECT fund_name FROM funds WHERE fund_name ILIKE $1 ORDER BY fund_name LIMIT $2`,
		all:      `SELECT DISTINCT fund_name FROM funds`,
	},
}

// Lookup resolves user mentions to canonical entity names: exact match first,
// then substring, then a similarity-ratio scan over all distinct names.
type Lookup struct {
	db     database.PostgresConn
	logger logging.Logger
}

func NewLookup(db database.PostgresConn, logger logging.Logger) *Lookup {
	return &Lookup{db: db, logger: logger}
}

// Candidates returns up to maxCandidates canonical names matching the
// mention, best first. An empty slice means the mention is unknown and should
// pass through to the generator untouched.
func (l *Lookup) Candidates(ctx context.Context, category EntityCategory, mention string) ([]string, error) {
	mention = strings.TrimSpace(mention)
	if mention == "" {
		return nil, nil
	}
	queries, ok := categoryQueries[category]
	if !ok {
		return nil, fmt.Errorf("unknown entity category %q", category)
	}

	exact, err := l.queryNames(ctx, queries.exact, mention)
	if err != nil {
		return nil, fmt.Errorf("exact lookup: %w", err)
	}

	wildcard, err := l.queryNames(ctx, queries.wildcard, "%"+mention+"%", maxCandidates)
	if err != nil {
		return nil, fmt.Errorf("wildcard lookup: %w", err)
	}
	// An exact hit is still ambiguous when other names contain the mention
	// (e.g. "Guiné" next to "Guiné-Bissau"), so the wildcard scan runs
	// either way and exact matches sort first.
	if names := mergeNames(exact, wildcard); len(names) > 0 {
		return names, nil
	}

	all, err := l.queryNames(ctx, queries.all)
	if err != nil {
		return nil, fmt.Errorf("name scan: %w", err)
	}
	return rankBySimilarity(mention, all), nil
}

func (l *Lookup) queryNames(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// mergeNames unions the two lists preserving order, dedupes
// case-insensitively, and caps the result at maxCandidates.
func mergeNames(lists ...[]string) []string {
	seen := map[string]bool{}
	var merged []string
	for _, list := range lists {
		for _, name := range list {
			key := strings.ToLower(name)
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, name)
			if len(merged) == maxCandidates {
				return merged
			}
		}
	}
	return merged
}

// rankBySimilarity keeps names whose similarity ratio to the mention is at
// least the threshold, best first, capped at maxCandidates.
func rankBySimilarity(mention string, names []string) []string {
	type scored struct {
		name  string
		score float64
	}
	var matches []scored
	for _, name := range names {
		score := similarityRatio(mention, name)
		if score >= similarityThreshold {
			matches = append(matches, scored{name: name, score: score})
		}
	}
	// Insertion sort keeps ties in catalog order.
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].score > matches[j-1].score; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
	if len(matches) > maxCandidates {
		matches = matches[:maxCandidates]
	}
	names = make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m.name)
	}
	return names
}

// similarityRatio maps levenshtein distance onto a 0..1 ratio over the longer
// of the two lowercased strings.
func similarityRatio(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1 - float64(distance)/float64(longest)
}
