package chat

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cfcgs/cfcgs-tracker-backend/pkg/llm"
	"github.com/cfcgs/cfcgs-tracker-backend/pkg/logging"
)

const answerTimeout = 30 * time.Second

// Source is a reference attached to an answer.
type Source struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// TurnRequest is one user turn.
type TurnRequest struct {
	Question             string
	SessionID            string
	Page                 int
	PageSize             int
	ConfirmPagination    bool
	DisambiguationChoice *Option
}

// TurnResult is the outcome of one turn.
type TurnResult struct {
	Answer                      string
	NeedsPaginationConfirmation bool
	Pagination                  *Page
	Sources                     []Source
	Disambiguation              *Disambiguation
}

// Orchestrator sequences the per-turn pipeline: session resolution, pending
// disambiguation and pagination, intent routing, context resolution, entity
// disambiguation, SQL generation, execution, and answer synthesis.
type Orchestrator struct {
	store         *Store
	router        *Router
	resolver      *Resolver
	disambiguator *Disambiguator
	generator     *Generator
	executor      *Executor
	llm           llm.Provider
	logger        logging.Logger
	pageDefault   int
	pageMax       int
}

type OrchestratorConfig struct {
	Store         *Store
	Router        *Router
	Resolver      *Resolver
	Disambiguator *Disambiguator
	Generator     *Generator
	Executor      *Executor
	LLMProvider   llm.Provider
	Logger        logging.Logger
	// Page-size bounds. Zero values take the package defaults.
	DefaultPageSize int
	MaxPageSize     int
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	pageDefault := cfg.DefaultPageSize
	if pageDefault <= 0 {
		pageDefault = DefaultPageSize
	}
	pageMax := cfg.MaxPageSize
	if pageMax <= 0 {
		pageMax = MaxPageSize
	}
	return &Orchestrator{
		store:         cfg.Store,
		router:        cfg.Router,
		resolver:      cfg.Resolver,
		disambiguator: cfg.Disambiguator,
		generator:     cfg.Generator,
		executor:      cfg.Executor,
		llm:           cfg.LLMProvider,
		logger:        cfg.Logger,
		pageDefault:   pageDefault,
		pageMax:       pageMax,
	}
}

// Run processes one turn. The session lock is held for the whole turn, so
// concurrent turns against the same session serialize while other sessions
// proceed in parallel. History is appended on every path, including errors.
func (o *Orchestrator) Run(ctx context.Context, req TurnRequest) TurnResult {
	startedAt := time.Now()
	defer func() { turnDuration.Observe(time.Since(startedAt).Seconds()) }()

	if req.SessionID == "" {
		req.SessionID = DefaultSessionID
	}
	req.PageSize = ClampPageSize(req.PageSize, o.pageDefault, o.pageMax)
	if req.Page < 1 {
		req.Page = 1
	}

	sessionID := o.store.Resolve(req.SessionID)
	state := o.store.Get(sessionID)
	sessionsActive.Set(float64(o.store.Len()))

	// Store methods stay outside the session lock.
	unlock := o.store.Lock(state)
	defer unlock()
	state.Touch()

	result := o.runTurn(ctx, req, state)
	state.AppendHistory(req.Question, result.Answer)
	return result
}

func (o *Orchestrator) runTurn(ctx context.Context, req TurnRequest, state *SessionState) TurnResult {
	question := strings.TrimSpace(req.Question)

	// Pending disambiguation takes precedence over pending pagination: it
	// blocks query generation entirely until resolved or dropped.
	if pending := state.PendingDisambiguation; pending != nil {
		if choice := matchPendingChoice(pending, req); choice != "" {
			state.PendingDisambiguation = nil
			o.applyConfirmed(state, pending.Kind, choice)
			question = pending.Question
			if question == "" {
				question = req.Question
			}
			return o.answerQuery(ctx, req, state, question, true)
		}
		// Unrelated message: drop the stale prompt and handle it normally.
		state.PendingDisambiguation = nil
	}

	cls := o.router.Classify(ctx, question, FormatHistory(state.History), RecentContext(state), describePendingPagination(state.PendingPagination))
	turnsTotal.WithLabelValues(string(cls.Intent)).Inc()

	if pending := state.PendingPagination; pending != nil {
		switch {
		case cls.Intent == IntentConfirmPagination || req.ConfirmPagination || req.Page > 1:
			return o.servePage(ctx, req, state, pending)
		case cls.Intent == IntentDeclinePagination:
			state.PendingPagination = nil
			return TurnResult{Answer: msgPaginationDrop}
		}
		// Any other message abandons the pending list.
		state.PendingPagination = nil
	}

	switch cls.Intent {
	case IntentGreeting, IntentAskClarify:
		answer := cls.Response
		if answer == "" {
			answer = msgRephrase
		}
		return TurnResult{Answer: answer}
	case IntentGeneralFinance, IntentGeneralProjects, IntentConfirmContext:
		return TurnResult{Answer: o.conceptualAnswer(ctx, question, state)}
	case IntentConfirmPagination, IntentDeclinePagination:
		// Nothing pending to act on.
		return TurnResult{Answer: msgRephrase}
	}

	if cls.IsFollowUp {
		question = o.resolver.Standalone(ctx, question, state)
	}

	if turn, done := o.disambiguate(ctx, state, cls, &question); done {
		return turn
	}
	return o.answerQuery(ctx, req, state, question, cls.IsFollowUp)
}

// matchPendingChoice resolves the user's answer to a pending prompt, via the
// explicit choice on the request or the message text.
func matchPendingChoice(pending *PendingDisambiguation, req TurnRequest) string {
	if req.DisambiguationChoice != nil {
		name := strings.TrimSpace(req.DisambiguationChoice.Name)
		for _, option := range pending.Options {
			if strings.EqualFold(option, name) {
				return option
			}
		}
		return ""
	}
	if choice, ok := ApplyChoice(pending, req.Question); ok {
		return choice
	}
	return ""
}

func (o *Orchestrator) applyConfirmed(state *SessionState, kind DisambiguationKind, name string) {
	switch kind {
	case KindGeo:
		state.ConfirmedCountry = name
	case KindProject:
		state.ConfirmedProject = name
	case KindFund:
		state.ConfirmedFund = name
	}
}

// disambiguate runs the three mention categories in priority order: fund,
// then project, then country. Fund and project terms are more specific and
// must not be captured by a looser country match. Any surfaced prompt
// short-circuits the turn.
func (o *Orchestrator) disambiguate(ctx context.Context, state *SessionState, cls Classification, question *string) (TurnResult, bool) {
	checks := []struct {
		kind      DisambiguationKind
		mention   string
		confirmed string
	}{
		{KindFund, cls.FundMention, state.ConfirmedFund},
		{KindProject, cls.ProjectMention, state.ConfirmedProject},
		{KindGeo, cls.CountryMention, state.ConfirmedCountry},
	}
	for _, check := range checks {
		if check.mention == "" {
			continue
		}
		res, err := o.disambiguator.Resolve(ctx, check.kind, check.mention, *question, check.confirmed)
		if err != nil {
			o.logger.WithError(err).Warn("Entity lookup failed, passing mention through")
			continue
		}
		if res.canonical != "" {
			o.applyConfirmed(state, check.kind, res.canonical)
			continue
		}
		if res.prompt != nil {
			disambiguationsTotal.WithLabelValues(string(check.kind), string(res.prompt.Mode)).Inc()
			state.PendingDisambiguation = res.pending
			return TurnResult{
				Answer:         res.prompt.Message,
				Disambiguation: res.prompt,
			}, true
		}
	}
	return TurnResult{}, false
}

// answerQuery runs the generation, pagination-decision, execution, and
// synthesis stages for a standalone question.
func (o *Orchestrator) answerQuery(ctx context.Context, req TurnRequest, state *SessionState, question string, isFollowUp bool) TurnResult {
	history := "nenhum"
	if isFollowUp {
		history = FormatHistory(state.History)
	}

	generation, err := o.generator.Draft(ctx, question, history, RecentContext(state))
	if err != nil {
		llmCallsTotal.WithLabelValues("sqlgen", "error").Inc()
		return TurnResult{Answer: completionFailureMessage(err)}
	}
	llmCallsTotal.WithLabelValues("sqlgen", "ok").Inc()
	sqlGenerationsTotal.WithLabelValues(generationKindLabel(generation.Kind)).Inc()

	switch generation.Kind {
	case GenDirect, GenRefusal:
		return TurnResult{Answer: generation.Message}
	case GenNeedsLimit:
		state.PendingPagination = &PendingPagination{
			StandaloneQuestion: question,
			PageSize:           req.PageSize,
		}
		return TurnResult{Answer: generation.Message, NeedsPaginationConfirmation: true}
	case GenMalformed:
		return TurnResult{Answer: msgRephrase}
	}

	query, err := Rewrite(generation.Query, question, ConfirmedEntities{
		Country: state.ConfirmedCountry,
		Project: state.ConfirmedProject,
		Fund:    state.ConfirmedFund,
	})
	if err != nil {
		o.logger.WithError(err).Warn("Rejected generated query")
		return TurnResult{Answer: msgRephrase}
	}

	totalRows := o.generator.EstimateRows(ctx, query)
	if NeedsConfirmation(query, totalRows, req.PageSize) {
		state.PendingPagination = &PendingPagination{
			Query:              &query,
			StandaloneQuestion: question,
			TotalRows:          totalRows,
			PageSize:           req.PageSize,
		}
		return TurnResult{
			Answer:                      ConfirmationPrompt(totalRows, req.PageSize),
			NeedsPaginationConfirmation: true,
		}
	}

	_, rows, err := o.executor.Run(ctx, query)
	if err != nil {
		return TurnResult{Answer: err.Error()}
	}
	queryRowsReturned.Observe(float64(len(rows)))
	o.recordExecution(state, question, query, rows)

	return TurnResult{Answer: o.synthesize(ctx, question, state, query, rows, nil)}
}

// servePage executes one page of a pending pagination request.
func (o *Orchestrator) servePage(ctx context.Context, req TurnRequest, state *SessionState, pending *PendingPagination) TurnResult {
	question := pending.StandaloneQuestion
	pageSize := pending.PageSize
	if pageSize <= 0 {
		pageSize = req.PageSize
	}

	if pending.Query == nil {
		// A [NEEDS_LIMIT] suggestion with no query yet: generate a limited
		// query for the stored question now.
		limited := fmt.Sprintf("%s (mostre apenas os primeiros %d resultados)", question, pageSize)
		generation, err := o.generator.Draft(ctx, limited, FormatHistory(state.History), RecentContext(state))
		if err != nil {
			llmCallsTotal.WithLabelValues("sqlgen", "error").Inc()
			state.PendingPagination = nil
			return TurnResult{Answer: completionFailureMessage(err)}
		}
		llmCallsTotal.WithLabelValues("sqlgen", "ok").Inc()
		if generation.Kind != GenSQL {
			state.PendingPagination = nil
			return TurnResult{Answer: msgRephrase}
		}
		query, err := Rewrite(generation.Query, question, ConfirmedEntities{
			Country: state.ConfirmedCountry,
			Project: state.ConfirmedProject,
			Fund:    state.ConfirmedFund,
		})
		if err != nil {
			state.PendingPagination = nil
			return TurnResult{Answer: msgRephrase}
		}
		pending.Query = &query
		pending.TotalRows = o.generator.EstimateRows(ctx, query)
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	wrapped := WrapPage(*pending.Query, page, pageSize)
	_, rows, err := o.executor.Run(ctx, wrapped)
	if err != nil {
		state.PendingPagination = nil
		return TurnResult{Answer: err.Error()}
	}
	queryRowsReturned.Observe(float64(len(rows)))

	payload := BuildPage(page, pageSize, pending.TotalRows, rows)
	if payload.HasMore {
		pending.TotalRows = &payload.TotalRows
		state.PendingPagination = pending
	} else {
		state.PendingPagination = nil
	}
	o.recordExecution(state, question, *pending.Query, rows)

	return TurnResult{
		Answer:     o.synthesize(ctx, question, state, wrapped, rows, &payload),
		Pagination: &payload,
	}
}

// recordExecution updates the session's grounding state after a successful
// query: last question, last query (re-deriving filters), sampled rows, and
// confirmed entities carried from the filters.
func (o *Orchestrator) recordExecution(state *SessionState, question, query string, rows []map[string]any) {
	state.LastQuestion = question
	state.SetLastQuery(query)
	if len(rows) > maxLastRows {
		rows = rows[:maxLastRows]
	}
	state.LastRows = rows
	if name := state.LastFilters["country_name"]; name != "" {
		state.ConfirmedCountry = name
	}
	if name := state.LastFilters["project_name"]; name != "" {
		state.ConfirmedProject = name
	}
	if name := state.LastFilters["fund_name"]; name != "" {
		state.ConfirmedFund = name
	}
}

var existentialRe = regexp.MustCompile(`(?i)\bLIMIT\s+1\b`)

// synthesize produces the final natural-language answer from the executed
// query and its rows.
func (o *Orchestrator) synthesize(ctx context.Context, question string, state *SessionState, query string, rows []map[string]any, page *Page) string {
	if len(rows) == 0 {
		if existentialRe.MatchString(query) {
			return msgNotFound
		}
		return msgNoResults
	}

	ctx, cancel := context.WithTimeout(ctx, answerTimeout)
	defer cancel()

	var prompt strings.Builder
	prompt.WriteString("Pergunta: ")
	prompt.WriteString(question)
	prompt.WriteString("\n\nHistórico da conversa:\n")
	prompt.WriteString(FormatHistory(state.History))
	prompt.WriteString("\n\nConsulta executada:\n")
	prompt.WriteString(query)
	prompt.WriteString("\n\nLinhas retornadas:\n")
	for _, row := range rows {
		prompt.WriteString(renderRow(row))
		prompt.WriteString("\n")
	}
	if page != nil {
		fmt.Fprintf(&prompt, "\nPaginação: página %d de %d resultados no total; há mais resultados: %t\n",
			page.Page, page.TotalRows, page.HasMore)
	}

	answer, err := llm.CompleteText(ctx, o.llm, []llm.Message{
		{Role: "system", Content: answerSystemPrompt},
		{Role: "user", Content: prompt.String()},
	})
	if err != nil {
		llmCallsTotal.WithLabelValues("answer", "error").Inc()
		o.logger.WithError(err).Warn("Answer synthesis failed")
		return completionFailureMessage(err)
	}
	llmCallsTotal.WithLabelValues("answer", "ok").Inc()
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return msgNoResults
	}
	if containsSQL(answer) {
		return msgFormatFailure
	}
	return answer
}

// conceptualAnswer serves general finance/project questions with no data
// access. The router's response text is only meaningful for greetings and
// clarification prompts, so these intents always get a fresh completion.
func (o *Orchestrator) conceptualAnswer(ctx context.Context, question string, state *SessionState) string {
	ctx, cancel := context.WithTimeout(ctx, answerTimeout)
	defer cancel()

	answer, err := llm.CompleteText(ctx, o.llm, []llm.Message{
		{Role: "system", Content: "Responda em português, de forma curta e conceitual, sobre financiamento climático. Não invente números nem consulte dados."},
		{Role: "user", Content: "Histórico:\n" + FormatHistory(state.History) + "\n\nPergunta: " + question},
	})
	if err != nil {
		llmCallsTotal.WithLabelValues("answer", "error").Inc()
		return completionFailureMessage(err)
	}
	llmCallsTotal.WithLabelValues("answer", "ok").Inc()
	if strings.TrimSpace(answer) == "" {
		return msgRephrase
	}
	return strings.TrimSpace(answer)
}

// containsSQL flags synthesized answers that leaked the query.
func containsSQL(answer string) bool {
	upper := strings.ToUpper(answer)
	return strings.Contains(upper, "SELECT") && strings.Contains(upper, "FROM")
}

// completionFailureMessage maps completion-service failures onto canned
// user messages by failure class.
func completionFailureMessage(err error) string {
	switch {
	case llm.IsPayloadTooLarge(err):
		return msgPayloadTooLarge
	case llm.IsRateLimited(err):
		return msgRateLimited
	default:
		return msgUnexpected
	}
}

func describePendingPagination(pending *PendingPagination) string {
	if pending == nil {
		return ""
	}
	if pending.TotalRows != nil {
		return fmt.Sprintf("aguardando confirmação para listar ~%d resultados de %q", *pending.TotalRows, pending.StandaloneQuestion)
	}
	return fmt.Sprintf("aguardando confirmação para listar os resultados de %q", pending.StandaloneQuestion)
}
