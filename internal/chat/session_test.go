package chat

import (
	"fmt"
	"testing"
	"time"
)

func TestAppendHistoryCap(t *testing.T) {
	t.Parallel()

	state := &SessionState{}
	for i := 0; i < 25; i++ {
		state.AppendHistory(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}
	if len(state.History) != maxHistoryExchanges {
		t.Fatalf("history length = %d, want %d", len(state.History), maxHistoryExchanges)
	}
	if state.History[0].Question != "q20" {
		t.Errorf("oldest retained exchange = %q, want q20", state.History[0].Question)
	}
	if state.History[len(state.History)-1].Question != "q24" {
		t.Errorf("newest exchange = %q, want q24", state.History[len(state.History)-1].Question)
	}
}

func TestStoreHistoryMessageLimit(t *testing.T) {
	t.Parallel()

	store := NewStore(StoreConfig{MaxHistoryMessages: 4})
	state := store.Get("s1")
	for i := 0; i < 5; i++ {
		state.AppendHistory(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}
	// 4 messages = 2 exchanges.
	if len(state.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(state.History))
	}
	if state.History[0].Question != "q3" {
		t.Errorf("oldest retained exchange = %q, want q3", state.History[0].Question)
	}
}

func TestSetLastQueryDerivesFilters(t *testing.T) {
	t.Parallel()

	state := &SessionState{}
	state.SetLastQuery(`SELECT * FROM view_commitments_detailed vcd WHERE vcd.country_name = 'Nepal'`)
	if state.LastFilters["country_name"] != "Nepal" {
		t.Fatalf("filters = %v", state.LastFilters)
	}
	state.SetLastQuery(`SELECT * FROM view_commitments_detailed vcd WHERE vcd.year = 2021`)
	if _, ok := state.LastFilters["country_name"]; ok {
		t.Error("stale country filter survived a query change")
	}
	if state.LastFilters["year"] != "2021" {
		t.Errorf("year = %q", state.LastFilters["year"])
	}
}

func TestStoreResolveDefault(t *testing.T) {
	t.Parallel()

	store := NewStore(StoreConfig{})

	// No sessions at all: the placeholder passes through.
	if got := store.Resolve(DefaultSessionID); got != DefaultSessionID {
		t.Fatalf("resolve on empty store = %q", got)
	}

	fresh := store.Get("fresh")
	stale := store.Get("stale")
	stale.lastUsed.Store(time.Now().Add(-time.Hour).UnixNano())
	fresh.Touch()

	if got := store.Resolve(DefaultSessionID); got != "fresh" {
		t.Errorf("resolve = %q, want the most recently used session", got)
	}

	// Non-default identifiers pass through untouched.
	if got := store.Resolve("explicit"); got != "explicit" {
		t.Errorf("resolve(explicit) = %q", got)
	}

	// Once a real "default" session exists it wins.
	store.Get(DefaultSessionID)
	if got := store.Resolve(DefaultSessionID); got != DefaultSessionID {
		t.Errorf("resolve with live default session = %q", got)
	}
}

func TestStoreResolveStaleDefault(t *testing.T) {
	t.Parallel()

	store := NewStore(StoreConfig{Freshness: time.Second})
	old := store.Get("old")
	old.lastUsed.Store(time.Now().Add(-time.Minute).UnixNano())

	if got := store.Resolve(DefaultSessionID); got != DefaultSessionID {
		t.Errorf("stale session should not capture the default placeholder, got %q", got)
	}
}

func TestResolveNotBlockedByHeldSessionLock(t *testing.T) {
	t.Parallel()

	store := NewStore(StoreConfig{})
	busy := store.Get("busy")
	unlock := store.Lock(busy)
	defer unlock()

	// Freshness resolution and the session count must not wait for a lock
	// held across an in-flight turn.
	done := make(chan string, 1)
	go func() {
		store.Len()
		done <- store.Resolve(DefaultSessionID)
	}()
	select {
	case got := <-done:
		if got != "busy" {
			t.Errorf("resolve = %q, want the fresh busy session", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Resolve blocked behind a held session lock")
	}
}

func TestStoreCapEvictsOldest(t *testing.T) {
	t.Parallel()

	store := NewStore(StoreConfig{Cap: 2})
	store.Get("a")
	store.Get("b")
	store.Get("c")
	if store.Len() != 2 {
		t.Fatalf("store length = %d, want 2", store.Len())
	}
}

func TestStoreGetCreatesOnce(t *testing.T) {
	t.Parallel()

	store := NewStore(StoreConfig{})
	first := store.Get("s1")
	first.AppendHistory("q", "a")
	second := store.Get("s1")
	if len(second.History) != 1 {
		t.Fatal("Get returned a fresh state for an existing session")
	}
}
