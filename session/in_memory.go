package session

import (
	"fmt"
	"sync"

	"github.com/hupe1980/meshbot/core"
)

// InMemoryStore is a volatile Store implementation keeping sessions in a
// process-local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*Session)}
}

// Load returns an existing session or creates a new one lazily.
func (s *InMemoryStore) Load(key string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		sess = NewSession(key)
		s.sessions[key] = sess
	}
	return sess, nil
}

// Append adds messages to an existing or newly created session.
func (s *InMemoryStore) Append(key string, msgs ...core.Message) error {
	sess, err := s.Load(key)
	if err != nil {
		return err
	}
	sess.Append(msgs...)
	return nil
}

// Consolidate replaces the first prefixLen messages with the marker.
func (s *InMemoryStore) Consolidate(key string, prefixLen int, marker core.Message) error {
	sess, err := s.Load(key)
	if err != nil {
		return err
	}
	if prefixLen <= 0 || prefixLen > sess.Len() {
		return fmt.Errorf("consolidate %s: prefix length %d out of range", key, prefixLen)
	}
	sess.replacePrefix(prefixLen, marker)
	return nil
}
