package chat

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// maxHistoryExchanges caps history at 5 question/answer pairs, so a
	// session never carries more than 10 messages.
	maxHistoryExchanges = 5
	maxLastRows         = 3

	defaultSessionCap = 1024
	defaultSessionTTL = time.Hour

	// defaultFreshness bounds how old the most recent session may be for the
	// "default" placeholder to resolve to it instead of starting fresh.
	defaultFreshness = 600 * time.Second
)

// DefaultSessionID is the placeholder clients send when they have no session.
const DefaultSessionID = "default"

// HistoryEntry is one recorded turn: a user question and the answer given.
type HistoryEntry struct {
	Question string
	Answer   string
}

// PendingPagination holds a draft query awaiting user confirmation. A nil
// Query means the limited query has not been generated yet and will be on
// confirmation.
type PendingPagination struct {
	Query              *string
	StandaloneQuestion string
	TotalRows          *int
	PageSize           int
}

// DisambiguationKind categorizes an ambiguous entity mention.
type DisambiguationKind string

const (
	KindGeo     DisambiguationKind = "geo"
	KindProject DisambiguationKind = "project"
	KindFund    DisambiguationKind = "fund"
)

// PendingDisambiguation tracks a disambiguation prompt awaiting the user's
// choice on the next turn.
type PendingDisambiguation struct {
	Kind     DisambiguationKind
	Mention  string
	Question string
	Options  []string
}

// SessionState is the per-session conversation state. It is owned by the
// Store and must only be touched while holding the session's lock, except
// lastUsed, which Resolve reads without it.
type SessionState struct {
	mu sync.Mutex

	History               []HistoryEntry
	PendingPagination     *PendingPagination
	PendingDisambiguation *PendingDisambiguation
	LastRows              []map[string]any
	LastQuestion          string
	lastQuery             string
	LastFilters           map[string]string
	ConfirmedCountry      string
	ConfirmedProject      string
	ConfirmedFund         string

	historyLimit int

	// lastUsed holds unix nanoseconds. Atomic so freshness resolution never
	// waits on a session lock held across an in-flight turn.
	lastUsed atomic.Int64
}

// Touch marks the session as active now.
func (s *SessionState) Touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

// LastUsedAt reports when the session was last active.
func (s *SessionState) LastUsedAt() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// LastQuery returns the SQL that answered the most recent question.
func (s *SessionState) LastQuery() string {
	return s.lastQuery
}

// SetLastQuery records the executed SQL and re-derives LastFilters from it.
// Filters are always a function of the query text, never set independently.
func (s *SessionState) SetLastQuery(query string) {
	s.lastQuery = query
	s.LastFilters = deriveFilters(query)
}

// AppendHistory records a completed turn and drops exchanges beyond the cap.
func (s *SessionState) AppendHistory(question, answer string) {
	limit := s.historyLimit
	if limit <= 0 {
		limit = maxHistoryExchanges
	}
	s.History = append(s.History, HistoryEntry{Question: question, Answer: answer})
	if len(s.History) > limit {
		s.History = s.History[len(s.History)-limit:]
	}
}

// Store maps session identifiers to conversation state. Entries are evicted
// by LRU capacity and TTL; a session that falls out simply starts fresh.
type Store struct {
	mu           sync.Mutex
	sessions     *expirable.LRU[string, *SessionState]
	freshness    time.Duration
	historyLimit int
}

// StoreConfig tunes the session store bounds. Zero values take defaults.
type StoreConfig struct {
	Cap       int
	TTL       time.Duration
	Freshness time.Duration
	// MaxHistoryMessages caps per-session history, counted in individual
	// messages (two per exchange).
	MaxHistoryMessages int
}

func NewStore(cfg StoreConfig) *Store {
	capacity := cfg.Cap
	if capacity <= 0 {
		capacity = defaultSessionCap
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	freshness := cfg.Freshness
	if freshness <= 0 {
		freshness = defaultFreshness
	}
	historyLimit := cfg.MaxHistoryMessages / 2
	if historyLimit <= 0 {
		historyLimit = maxHistoryExchanges
	}
	return &Store{
		sessions:     expirable.NewLRU[string, *SessionState](capacity, nil, ttl),
		freshness:    freshness,
		historyLimit: historyLimit,
	}
}

// Resolve maps the "default" placeholder to the most recently used live
// session when that session was active within the freshness window.
// Identifiers that already have state, and non-default identifiers, pass
// through unchanged.
func (st *Store) Resolve(sessionID string) string {
	st.mu.Lock()
	defer st.mu.Unlock()

	if sessionID != DefaultSessionID {
		return sessionID
	}
	if _, ok := st.sessions.Peek(sessionID); ok {
		return sessionID
	}

	var newestID string
	var newestAt time.Time
	for _, id := range st.sessions.Keys() {
		state, ok := st.sessions.Peek(id)
		if !ok {
			continue
		}
		// Atomic read: a session locked across an in-flight turn must not
		// stall resolution for everyone else.
		lastUsed := state.LastUsedAt()
		if lastUsed.After(newestAt) {
			newestAt = lastUsed
			newestID = id
		}
	}
	if newestID != "" && time.Since(newestAt) <= st.freshness {
		return newestID
	}
	return sessionID
}

// Get returns the state for the session, creating it if absent.
func (st *Store) Get(sessionID string) *SessionState {
	st.mu.Lock()
	defer st.mu.Unlock()

	if state, ok := st.sessions.Get(sessionID); ok {
		return state
	}
	state := &SessionState{historyLimit: st.historyLimit}
	state.Touch()
	st.sessions.Add(sessionID, state)
	return state
}

// Lock acquires the session's lock for the duration of a turn. Different
// sessions proceed fully in parallel; concurrent turns against the same
// session serialize.
func (st *Store) Lock(state *SessionState) func() {
	state.mu.Lock()
	return state.mu.Unlock
}

// Len reports the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sessions.Len()
}
