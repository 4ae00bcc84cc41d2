package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cfcgs/cfcgs-tracker-backend/pkg/llm"
	"github.com/cfcgs/cfcgs-tracker-backend/pkg/logging"
)

const (
	rewriteTimeout    = 20 * time.Second
	maxRecentEntities = 5
)

// Resolver builds the recent-context block and rewrites follow-up questions
// into standalone form.
type Resolver struct {
	llm    llm.Provider
	logger logging.Logger
}

func NewResolver(provider llm.Provider, logger logging.Logger) *Resolver {
	return &Resolver{llm: provider, logger: logger}
}

// entityColumns are scanned, in order, when collecting recent entity names.
var entityColumns = []string{"project_name", "country_name", "region_name", "fund_name", "provider_name"}

// RecentContext renders the compact summary of the session's recent state.
// Sessions with no prior turn get a fixed "nothing recorded" block.
func RecentContext(state *SessionState) string {
	if state.LastQuestion == "" && len(state.History) == 0 {
		return noContextBlock
	}

	var b strings.Builder
	b.WriteString("CONTEXTO RECENTE:\n")
	fmt.Fprintf(&b, "Última pergunta: %s\n", state.LastQuestion)
	fmt.Fprintf(&b, "Filtros ativos: %s\n", renderFilters(state.LastFilters))

	if entities := recentEntities(state); len(entities) > 0 {
		fmt.Fprintf(&b, "Entidades recentes: %s\n", strings.Join(entities, ", "))
	}
	for i, row := range state.LastRows {
		if i == maxLastRows {
			break
		}
		fmt.Fprintf(&b, "Linha %d: %s\n", i+1, renderRow(row))
	}
	return strings.TrimRight(b.String(), "\n")
}

// recentEntities collects up to maxRecentEntities distinct names, drawing
// from lastRows first and lastFilters second.
func recentEntities(state *SessionState) []string {
	seen := map[string]bool{}
	var entities []string
	add := func(value string) {
		value = strings.TrimSpace(value)
		if value == "" || seen[strings.ToLower(value)] {
			return
		}
		seen[strings.ToLower(value)] = true
		entities = append(entities, value)
	}
	for _, row := range state.LastRows {
		for _, column := range entityColumns {
			if len(entities) == maxRecentEntities {
				return entities
			}
			if value, ok := row[column]; ok {
				add(fmt.Sprintf("%v", value))
			}
		}
	}
	for _, column := range entityColumns {
		if len(entities) == maxRecentEntities {
			return entities
		}
		if value, ok := state.LastFilters[column]; ok {
			add(value)
		}
	}
	return entities
}

func renderRow(row map[string]any) string {
	var parts []string
	// Named columns first so the rendering is stable.
	rendered := map[string]bool{}
	for _, column := range entityColumns {
		if value, ok := row[column]; ok {
			parts = append(parts, fmt.Sprintf("%s: %v", column, value))
			rendered[column] = true
		}
	}
	for column, value := range row {
		if !rendered[column] {
			parts = append(parts, fmt.Sprintf("%s: %v", column, value))
		}
	}
	return strings.Join(parts, ", ")
}

// Standalone rewrites a follow-up question into self-contained form. The
// original question is returned unchanged when the session has nothing to
// resolve against or the rewrite fails.
func (r *Resolver) Standalone(ctx context.Context, question string, state *SessionState) string {
	if len(state.History) == 0 && len(state.LastRows) == 0 {
		return question
	}

	ctx, cancel := context.WithTimeout(ctx, rewriteTimeout)
	defer cancel()

	var prompt strings.Builder
	prompt.WriteString("Histórico da conversa:\n")
	prompt.WriteString(FormatHistory(state.History))
	prompt.WriteString("\n\n")
	prompt.WriteString(RecentContext(state))
	prompt.WriteString("\n\nPergunta do usuário: ")
	prompt.WriteString(question)

	rewritten, err := llm.CompleteText(ctx, r.llm, []llm.Message{
		{Role: "system", Content: contextRewritePrompt},
		{Role: "user", Content: prompt.String()},
	})
	if err != nil {
		r.logger.WithError(err).Warn("Follow-up rewrite failed, keeping original question")
		return question
	}
	rewritten = strings.Trim(strings.TrimSpace(rewritten), `"`)
	if rewritten == "" {
		return question
	}
	return rewritten
}

// FormatHistory renders the turn history for prompt consumption.
func FormatHistory(history []HistoryEntry) string {
	if len(history) == 0 {
		return "nenhum"
	}
	var b strings.Builder
	for _, entry := range history {
		fmt.Fprintf(&b, "Usuário: %s\nAssistente: %s\n", entry.Question, entry.Answer)
	}
	return strings.TrimRight(b.String(), "\n")
}
