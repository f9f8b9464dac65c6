package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/logging"
)

// FileStore persists each session as an append-only JSONL file (one message
// per line) under a base directory. A bounded LRU of recently active sessions
// avoids re-reading hot files; evicted sessions are always reloadable because
// every append is flushed to disk before the call returns.
//
// Consolidation rewrites the log with a write-new-then-rename so a crash can
// never leave a partially truncated file behind.
type FileStore struct {
	dir    string
	cache  *lru.Cache[string, *Session]
	logger logging.Logger

	mu sync.Mutex // guards load-or-create and file rewrites
}

// FileStoreOptions configures a FileStore.
type FileStoreOptions struct {
	// CacheSize bounds the number of sessions kept in memory.
	CacheSize int
	// Logger receives persistence warnings.
	Logger logging.Logger
}

// NewFileStore creates the base directory if needed and returns a store.
func NewFileStore(dir string, optFns ...func(o *FileStoreOptions)) (*FileStore, error) {
	opts := FileStoreOptions{CacheSize: 256, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, core.NewPersistenceError("mkdir", dir, err)
	}

	cache, err := lru.New[string, *Session](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("session cache: %w", err)
	}

	return &FileStore{dir: dir, cache: cache, logger: opts.Logger}, nil
}

// path maps a session key onto a filename. Separators and colons in keys are
// flattened so "telegram:42" becomes "telegram_42.jsonl".
func (s *FileStore) path(key string) string {
	sanitized := strings.NewReplacer(":", "_", "/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(s.dir, sanitized+".jsonl")
}

// Load implements Store. Missing files yield a fresh empty session; corrupt
// trailing lines (e.g. from a crash mid-append) are skipped with a warning so
// the rest of the history still loads.
func (s *FileStore) Load(key string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.cache.Get(key); ok {
		return sess, nil
	}

	sess := NewSession(key)
	path := s.path(key)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.cache.Add(key, sess)
			return sess, nil
		}
		return nil, core.NewPersistenceError("load", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var msg core.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			s.logger.Warn("session.load.skip_record", "path", path, "line", line, "error", err.Error())
			continue
		}
		sess.Messages = append(sess.Messages, msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, core.NewPersistenceError("load", path, err)
	}

	s.cache.Add(key, sess)
	return sess, nil
}

// Append implements Store: the in-memory session grows first, then each
// message is written as one JSONL record and synced.
func (s *FileStore) Append(key string, msgs ...core.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	sess, err := s.Load(key)
	if err != nil {
		return err
	}
	sess.Append(msgs...)

	path := s.path(key)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return core.NewPersistenceError("append", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, msg := range msgs {
		raw, err := json.Marshal(msg)
		if err != nil {
			return core.NewPersistenceError("append", path, err)
		}
		if _, err := w.Write(append(raw, '\n')); err != nil {
			return core.NewPersistenceError("append", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return core.NewPersistenceError("append", path, err)
	}
	if err := f.Sync(); err != nil {
		return core.NewPersistenceError("append", path, err)
	}
	return nil
}

// Consolidate implements Store. The full remaining history (marker + tail) is
// written to a temporary file which then atomically replaces the log.
func (s *FileStore) Consolidate(key string, prefixLen int, marker core.Message) error {
	sess, err := s.Load(key)
	if err != nil {
		return err
	}
	if prefixLen <= 0 || prefixLen > sess.Len() {
		return fmt.Errorf("consolidate %s: prefix length %d out of range", key, prefixLen)
	}

	sess.replacePrefix(prefixLen, marker)

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(key)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return core.NewPersistenceError("rewrite", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := bufio.NewWriter(tmp)
	for _, msg := range sess.GetMessages() {
		raw, err := json.Marshal(msg)
		if err != nil {
			tmp.Close()
			return core.NewPersistenceError("rewrite", path, err)
		}
		if _, err := w.Write(append(raw, '\n')); err != nil {
			tmp.Close()
			return core.NewPersistenceError("rewrite", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return core.NewPersistenceError("rewrite", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return core.NewPersistenceError("rewrite", path, err)
	}
	if err := tmp.Close(); err != nil {
		return core.NewPersistenceError("rewrite", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return core.NewPersistenceError("rewrite", path, err)
	}
	return nil
}
