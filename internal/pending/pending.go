// Package pending keeps actions that must be replayed once a recovery flow
// (login, new transaction, reconnect) has completed. Entries live in process
// memory and expire after a TTL so a stale statement is never replayed.
package pending

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// ActionExecute replays a query execution.
const ActionExecute = "execute"

// DefaultTTL is how long a saved action stays eligible for replay.
const DefaultTTL = 5 * time.Minute

// Action is an operation saved for replay.
type Action struct {
	Name        string    `json:"action"`
	TransID     string    `json:"trans_id"`
	SQL         string    `json:"sql"`
	ExplainPlan bool      `json:"explain_plan"`
	SavedAt     time.Time `json:"saved_at"`
}

// Store holds at most one pending action per transaction id.
type Store struct {
	cache *cache.Cache
}

// New creates a store whose entries expire after ttl. A non-positive ttl uses DefaultTTL.
func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{cache: cache.New(ttl, 2*ttl)}
}

// Save records the action under its transaction id, replacing any previous one.
func (s *Store) Save(a Action) {
	if a.SavedAt.IsZero() {
		a.SavedAt = time.Now()
	}
	s.cache.SetDefault(a.TransID, a)
}

// Peek returns the pending action for transID without removing it.
func (s *Store) Peek(transID string) (Action, bool) {
	v, ok := s.cache.Get(transID)
	if !ok {
		return Action{}, false
	}
	a, ok := v.(Action)
	return a, ok
}

// Take returns and removes the pending action for transID.
func (s *Store) Take(transID string) (Action, bool) {
	a, ok := s.Peek(transID)
	if ok {
		s.cache.Delete(transID)
	}
	return a, ok
}

// Move re-keys a pending action after the editor switched to a new transaction.
func (s *Store) Move(fromTransID, toTransID string) bool {
	a, ok := s.Take(fromTransID)
	if !ok {
		return false
	}
	a.TransID = toTransID
	s.Save(a)
	return true
}
