package session

import (
	"sync"
	"time"

	"github.com/hupe1980/meshbot/core"
)

// Session is the durable state of one conversation. It is safe for concurrent
// access, though the engine additionally serializes processing per session so
// two iterations never advance the same conversation at once.
//
// Contract:
//   - The message sequence grows monotonically except at consolidation, when
//     a prefix is replaced by a single marker message.
//   - No message is ever mutated in place.
type Session struct {
	Key      string         `json:"key"`
	Messages []core.Message `json:"messages"`
	Created  time.Time      `json:"created"`
	Updated  time.Time      `json:"updated"`
	mu       sync.RWMutex
}

// NewSession creates an empty session for the given composite key.
func NewSession(key string) *Session {
	now := time.Now().UTC()
	return &Session{Key: key, Messages: []core.Message{}, Created: now, Updated: now}
}

// Append adds messages to the history updating the Updated timestamp.
func (s *Session) Append(msgs ...core.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, msgs...)
	s.Updated = time.Now().UTC()
}

// GetMessages returns a defensive copy of the full message slice.
func (s *Session) GetMessages() []core.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]core.Message, len(s.Messages))
	copy(msgs, s.Messages)
	return msgs
}

// Tail returns a copy of the trailing n messages (all of them when n <= 0 or
// n exceeds the history length).
func (s *Session) Tail(n int) []core.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if n > 0 && len(s.Messages) > n {
		start = len(s.Messages) - n
	}
	msgs := make([]core.Message, len(s.Messages)-start)
	copy(msgs, s.Messages[start:])
	return msgs
}

// Len returns the current history length.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Messages)
}

// SinceConsolidation returns the number of messages after the most recent
// consolidation marker (the whole history when no marker exists).
func (s *Session) SinceConsolidation() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].IsConsolidationMarker() {
			return len(s.Messages) - 1 - i
		}
	}
	return len(s.Messages)
}

// replacePrefix swaps the first prefixLen messages for the marker. Caller is
// the store's consolidation path; prefixLen must not exceed the history.
func (s *Session) replacePrefix(prefixLen int, marker core.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prefixLen <= 0 || prefixLen > len(s.Messages) {
		return
	}
	rest := make([]core.Message, 0, len(s.Messages)-prefixLen+1)
	rest = append(rest, marker)
	rest = append(rest, s.Messages[prefixLen:]...)
	s.Messages = rest
	s.Updated = time.Now().UTC()
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		Key:      s.Key,
		Messages: make([]core.Message, len(s.Messages)),
		Created:  s.Created,
		Updated:  s.Updated,
	}
	copy(clone.Messages, s.Messages)
	return clone
}

// Store persists sessions and their growing message history. Sessions are
// never deleted automatically.
type Store interface {
	// Load returns the session for key, creating an empty one if missing.
	Load(key string) (*Session, error)

	// Append adds messages to the session's durable log.
	Append(key string, msgs ...core.Message) error

	// Consolidate atomically replaces the first prefixLen messages with the
	// marker, both in memory and in the durable log.
	Consolidate(key string, prefixLen int, marker core.Message) error
}
