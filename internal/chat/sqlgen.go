package chat

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cfcgs/cfcgs-tracker-backend/pkg/database"
	"github.com/cfcgs/cfcgs-tracker-backend/pkg/llm"
	"github.com/cfcgs/cfcgs-tracker-backend/pkg/logging"
)

const sqlGenTimeout = 30 * time.Second

// GenerationKind tags the completion output parsed at the LLM boundary.
type GenerationKind int

const (
	GenMalformed GenerationKind = iota
	GenSQL
	GenNeedsLimit
	GenDirect
	GenRefusal
)

// Generation is the typed result of a SQL-drafting call. Exactly one of
// Query/Message is meaningful depending on Kind.
type Generation struct {
	Kind    GenerationKind
	Query   string
	Message string
}

// ParseGeneration classifies raw completion text into its tagged variant.
// Output with no recognizable tag is malformed, never an error.
func ParseGeneration(output string) Generation {
	output = strings.TrimSpace(output)
	for _, tag := range []struct {
		prefix string
		kind   GenerationKind
	}{
		{"[SQL]", GenSQL},
		{"[NEEDS_LIMIT]", GenNeedsLimit},
		{"[DIRECT]", GenDirect},
		{"[REFUSAL]", GenRefusal},
	} {
		if !strings.HasPrefix(output, tag.prefix) {
			continue
		}
		body := strings.TrimSpace(strings.TrimPrefix(output, tag.prefix))
		if body == "" {
			return Generation{Kind: GenMalformed}
		}
		if tag.kind == GenSQL {
			return Generation{Kind: GenSQL, Query: stripSQLFences(body)}
		}
		return Generation{Kind: tag.kind, Message: body}
	}
	return Generation{Kind: GenMalformed}
}

func stripSQLFences(query string) string {
	query = strings.TrimSpace(query)
	query = strings.TrimPrefix(query, "```sql")
	query = strings.TrimPrefix(query, "```")
	query = strings.TrimSuffix(query, "```")
	return strings.TrimSuffix(strings.TrimSpace(query), ";")
}

// ConfirmedEntities carries the canonical names active for this turn.
type ConfirmedEntities struct {
	Country string
	Project string
	Fund    string
}

// Generator drafts SQL via the completion service and applies the
// deterministic business rewrites before execution.
type Generator struct {
	llm    llm.Provider
	db     database.PostgresConn
	logger logging.Logger
}

func NewGenerator(provider llm.Provider, db database.PostgresConn, logger logging.Logger) *Generator {
	return &Generator{llm: provider, db: db, logger: logger}
}

// Draft invokes the completion service for the standalone question and
// parses the tagged output.
func (g *Generator) Draft(ctx context.Context, question, history, recentContext string) (Generation, error) {
	ctx, cancel := context.WithTimeout(ctx, sqlGenTimeout)
	defer cancel()

	var prompt strings.Builder
	prompt.WriteString("**Schema:**\n")
	prompt.WriteString(schemaDescription)
	prompt.WriteString("\n\n")
	prompt.WriteString(fewShotExamples)
	prompt.WriteString("\n\nHistórico da conversa:\n")
	prompt.WriteString(history)
	prompt.WriteString("\n\n")
	prompt.WriteString(recentContext)
	prompt.WriteString("\n\nPergunta: ")
	prompt.WriteString(question)

	output, err := llm.CompleteText(ctx, g.llm, []llm.Message{
		{Role: "system", Content: sqlSystemPrompt},
		{Role: "user", Content: prompt.String()},
	})
	if err != nil {
		return Generation{}, fmt.Errorf("sql draft: %w", err)
	}
	return ParseGeneration(output), nil
}

// forbiddenTableRe matches the schema-version bookkeeping table, which must
// never reach the executor.
var forbiddenTableRe = regexp.MustCompile(`(?i)\balembic_version\b`)

// Rewrite applies the business rewrites in order: geography substitution,
// confirmed-entity override, objective-count filter. It rejects queries
// touching the bookkeeping table.
func Rewrite(query, question string, confirmed ConfirmedEntities) (string, error) {
	if forbiddenTableRe.MatchString(query) {
		return "", fmt.Errorf("query references forbidden table")
	}
	query = rewriteGeography(query, question)
	query = overrideEntityFilter(query, "country_name", confirmed.Country)
	query = overrideEntityFilter(query, "project_name", confirmed.Project)
	query = overrideEntityFilter(query, "fund_name", confirmed.Fund)
	query = injectObjectiveCountFilter(query)
	if forbiddenTableRe.MatchString(query) {
		return "", fmt.Errorf("query references forbidden table")
	}
	return query, nil
}

var (
	regionFilterRe  = regexp.MustCompile(`(?i)((?:vcd\.)?)region_name(\s*(?:=|ILIKE|LIKE)\s*'(?:[^']|'')*')`)
	countryFilterRe = regexp.MustCompile(`(?i)((?:vcd\.)?)country_name(\s*(?:=|ILIKE|LIKE)\s*'(?:[^']|'')*')`)

	countryWordRe = regexp.MustCompile(`(?i)\bpa[íi]s(?:es)?\b|\bcountry\b|\bcountries\b`)
	regionWordRe  = regexp.MustCompile(`(?i)\bregi[ãa]o\b|\bregi[õo]es\b|\bregion\b|\bregions\b`)
)

// rewriteGeography swaps region_name and country_name column references when
// the question clearly targets the other granularity.
func rewriteGeography(query, question string) string {
	wantsCountry := countryWordRe.MatchString(question)
	wantsRegion := regionWordRe.MatchString(question)
	switch {
	case wantsCountry && !wantsRegion:
		return regionFilterRe.ReplaceAllString(query, "${1}country_name${2}")
	case wantsRegion && !wantsCountry:
		return countryFilterRe.ReplaceAllString(query, "${1}region_name${2}")
	default:
		return query
	}
}

// overrideEntityFilter replaces a literal-equality filter, or a disjunctive
// "name = 'A' OR name = 'B'" pair, on the column with a single equality on
// the confirmed canonical name. Values are escaped by doubling quotes.
func overrideEntityFilter(query, column, confirmed string) string {
	if confirmed == "" {
		return query
	}
	escaped := strings.ReplaceAll(confirmed, "'", "''")
	replacement := fmt.Sprintf("${1}%s = '%s'", column, escaped)

	disjunctRe := regexp.MustCompile(fmt.Sprintf(
		`(?i)\(?\s*((?:vcd\.)?)%s\s*(?:=|ILIKE|LIKE)\s*'(?:[^']|'')*'\s+OR\s+(?:vcd\.)?%s\s*(?:=|ILIKE|LIKE)\s*'(?:[^']|'')*'\s*\)?`,
		column, column))
	if disjunctRe.MatchString(query) {
		return disjunctRe.ReplaceAllString(query, replacement)
	}

	singleRe := regexp.MustCompile(fmt.Sprintf(
		`(?i)((?:vcd\.)?)%s\s*(?:=|ILIKE|LIKE)\s*'(?:[^']|'')*'`, column))
	return singleRe.ReplaceAllString(query, replacement)
}

var (
	countsProjectsRe  = regexp.MustCompile(`(?i)COUNT\s*\(\s*DISTINCT\s+(?:vcd\.)?project_(?:name|id)\s*\)`)
	objectiveColumnRe = regexp.MustCompile(`(?i)(?:adaptation|mitigation|overlap)_amount_usd_thousand`)
	clauseBoundaryRe  = regexp.MustCompile(`(?i)\b(GROUP\s+BY|ORDER\s+BY|LIMIT)\b`)
	whereRe           = regexp.MustCompile(`(?i)\bWHERE\b`)
)

const objectiveCountCondition = `(COALESCE(vcd.adaptation_amount_usd_thousand, 0) + COALESCE(vcd.mitigation_amount_usd_thousand, 0) + COALESCE(vcd.overlap_amount_usd_thousand, 0)) > 0`

// injectObjectiveCountFilter adds the positive-objective-amount condition to
// queries that count distinct projects without mentioning any objective
// column, so purely financial commitments do not inflate project counts.
func injectObjectiveCountFilter(query string) string {
	if !countsProjectsRe.MatchString(query) || objectiveColumnRe.MatchString(query) {
		return query
	}
	condition := objectiveCountCondition

	if loc := clauseBoundaryRe.FindStringIndex(query); loc != nil {
		head, tail := query[:loc[0]], query[loc[0]:]
		if whereRe.MatchString(head) {
			return strings.TrimRight(head, " ") + " AND " + condition + " " + tail
		}
		return strings.TrimRight(head, " ") + " WHERE " + condition + " " + tail
	}
	if whereRe.MatchString(query) {
		return query + " AND " + condition
	}
	return query + " WHERE " + condition
}

var limitRe = regexp.MustCompile(`(?i)\bLIMIT\s+\d+`)

// HasLimit reports whether the query carries an explicit LIMIT.
func HasLimit(query string) bool {
	return limitRe.MatchString(query)
}

// EstimateRows wraps the query in a COUNT(*) subquery. A failed estimate
// returns nil (unknown), never an error: estimation is advisory.
func (g *Generator) EstimateRows(ctx context.Context, query string) *int {
	wrapped := fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS count_estimate", query)
	var count int
	if err := g.db.QueryRowContext(ctx, wrapped).Scan(&count); err != nil {
		g.logger.WithError(err).Warn("Row-count estimation failed")
		return nil
	}
	return &count
}
