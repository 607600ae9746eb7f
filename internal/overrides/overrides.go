// Package overrides holds per-conversation one-shot flags that relax a
// pipeline gate for exactly the next item from that conversation.
package overrides

import "sync"

// Store is a concurrency-safe set of armed conversation ids.
type Store struct {
	mu    sync.Mutex
	armed map[string]bool
}

func NewStore() *Store {
	return &Store{armed: make(map[string]bool)}
}

// Set arms the override for a conversation.
func (s *Store) Set(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed[conversationID] = true
}

// Consume reports whether the override was armed and disarms it. A second
// call for the same conversation returns false until Set again.
func (s *Store) Consume(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed[conversationID] {
		return false
	}
	delete(s.armed, conversationID)
	return true
}

// Peek reports the armed state without consuming it.
func (s *Store) Peek(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed[conversationID]
}
