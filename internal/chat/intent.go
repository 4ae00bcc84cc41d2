package chat

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/cfcgs/cfcgs-tracker-backend/pkg/llm"
	"github.com/cfcgs/cfcgs-tracker-backend/pkg/logging"
)

const intentTimeout = 20 * time.Second

// Intent is the closed set of turn classifications.
type Intent string

const (
	IntentConfirmPagination Intent = "confirm_pagination"
	IntentDeclinePagination Intent = "decline_pagination"
	IntentGreeting          Intent = "greeting"
	IntentGeneralFinance    Intent = "general_finance"
	IntentGeneralProjects   Intent = "general_projects"
	IntentConfirmContext    Intent = "confirm_context"
	IntentAskClarify        Intent = "ask_clarify"
	IntentQuery             Intent = "query"
)

var knownIntents = map[Intent]bool{
	IntentConfirmPagination: true,
	IntentDeclinePagination: true,
	IntentGreeting:          true,
	IntentGeneralFinance:    true,
	IntentGeneralProjects:   true,
	IntentConfirmContext:    true,
	IntentAskClarify:        true,
	IntentQuery:             true,
}

// Classification is the router's parsed output. Mentions are the literal
// spans from the question; nil years mean absent or unparseable.
type Classification struct {
	Intent         Intent
	IsFollowUp     bool
	Response       string
	CountryMention string
	ProjectMention string
	FundMention    string
	ObjectiveOnly  string
	YearStart      *int
	YearEnd        *int
}

type rawClassification struct {
	Intent         string          `json:"intent"`
	IsFollowUp     bool            `json:"is_follow_up"`
	Response       string          `json:"response"`
	CountryMention string          `json:"country_mention"`
	ProjectMention string          `json:"project_mention"`
	FundMention    string          `json:"fund_mention"`
	ObjectiveOnly  string          `json:"objective_only"`
	YearStart      json.RawMessage `json:"year_start"`
	YearEnd        json.RawMessage `json:"year_end"`
}

// Router classifies each question into an intent plus extracted mentions.
type Router struct {
	llm    llm.Provider
	logger logging.Logger
}

func NewRouter(provider llm.Provider, logger logging.Logger) *Router {
	return &Router{llm: provider, logger: logger}
}

// safeFallback is returned whenever the completion cannot be parsed: the
// turn proceeds as a plain data query rather than failing.
func safeFallback() Classification {
	return Classification{Intent: IntentQuery}
}

// Classify routes the question. It never returns an error to the caller;
// every failure degrades to the query fallback.
func (r *Router) Classify(ctx context.Context, question, formattedHistory, recentContext, pendingPagination string) Classification {
	ctx, cancel := context.WithTimeout(ctx, intentTimeout)
	defer cancel()

	var prompt strings.Builder
	prompt.WriteString("Histórico da conversa:\n")
	prompt.WriteString(formattedHistory)
	prompt.WriteString("\n\n")
	prompt.WriteString(recentContext)
	if pendingPagination != "" {
		prompt.WriteString("\n\nPaginação pendente: ")
		prompt.WriteString(pendingPagination)
	}
	prompt.WriteString("\n\nPergunta do usuário: ")
	prompt.WriteString(question)

	output, err := llm.CompleteText(ctx, r.llm, []llm.Message{
		{Role: "system", Content: intentSystemPrompt},
		{Role: "user", Content: prompt.String()},
	})
	if err != nil {
		r.logger.WithError(err).Warn("Intent classification failed, falling back to query")
		return safeFallback()
	}
	return parseClassification(output, r.logger)
}

func parseClassification(output string, logger logging.Logger) Classification {
	payload := extractJSONObject(output)
	if payload == "" {
		return safeFallback()
	}

	var raw rawClassification
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(payload)
		if repairErr != nil {
			if logger != nil {
				logger.WithError(err).Warn("Intent JSON unparseable, falling back to query")
			}
			return safeFallback()
		}
		if err := json.Unmarshal([]byte(repaired), &raw); err != nil {
			return safeFallback()
		}
	}

	intent := Intent(strings.TrimSpace(raw.Intent))
	if !knownIntents[intent] {
		return safeFallback()
	}
	return Classification{
		Intent:         intent,
		IsFollowUp:     raw.IsFollowUp,
		Response:       strings.TrimSpace(raw.Response),
		CountryMention: strings.TrimSpace(raw.CountryMention),
		ProjectMention: strings.TrimSpace(raw.ProjectMention),
		FundMention:    strings.TrimSpace(raw.FundMention),
		ObjectiveOnly:  normalizeObjective(raw.ObjectiveOnly),
		YearStart:      parseYear(raw.YearStart),
		YearEnd:        parseYear(raw.YearEnd),
	}
}

func normalizeObjective(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mitigation", "adaptation", "both":
		return strings.ToLower(strings.TrimSpace(s))
	default:
		return ""
	}
}

// parseYear accepts a JSON number or numeric string; anything else is nil.
func parseYear(raw json.RawMessage) *int {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	year, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &year
}

// extractJSONObject pulls the first balanced {...} span out of the output,
// tolerating prose or code fences around it.
func extractJSONObject(output string) string {
	start := strings.Index(output, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(output); i++ {
		c := output[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return output[start : i+1]
			}
		}
	}
	// Unbalanced: hand the tail to the repairer.
	return output[start:]
}
