package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/logging"
)

const (
	factsFile  = "MEMORY.md"
	eventsFile = "HISTORY.md"

	factsHeader  = "# Memory\n\nDurable facts extracted from conversations.\n"
	eventsHeader = "# History\n\nChronological log of consolidated conversations.\n"
)

// Store owns the two durable memory documents of a workspace. Both are plain
// markdown: facts as deduplicated bullet entries, events as a dated log.
// Writes never delete either document; facts merge, events append. The facts
// rewrite uses write-new-then-rename so a crash cannot corrupt it.
type Store struct {
	dir    string
	mu     sync.Mutex
	logger logging.Logger
}

// NewStore creates the memory directory if needed and returns a store.
func NewStore(dir string, logger logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, core.NewPersistenceError("mkdir", dir, err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// FactsPath returns the location of the facts document.
func (s *Store) FactsPath() string { return filepath.Join(s.dir, factsFile) }

// EventsPath returns the location of the events document.
func (s *Store) EventsPath() string { return filepath.Join(s.dir, eventsFile) }

// ReadFacts returns the raw facts document ("" when absent).
func (s *Store) ReadFacts() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.FactsPath())
	if err != nil {
		return ""
	}
	return string(data)
}

// ReadEvents returns the raw events document ("" when absent).
func (s *Store) ReadEvents() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.EventsPath())
	if err != nil {
		return ""
	}
	return string(data)
}

// Facts returns the current fact entries, one per bullet.
func (s *Store) Facts() []string {
	return parseFacts(s.ReadFacts())
}

// MergeFacts merges new facts into the facts document. The merge is
// idempotent: a fact whose normalized form is already present is not
// re-appended, so consolidating the same block twice cannot duplicate it.
func (s *Store) MergeFacts(facts []string) error {
	if len(facts) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.FactsPath()
	existingDoc := ""
	if data, err := os.ReadFile(path); err == nil {
		existingDoc = string(data)
	}

	seen := make(map[string]bool)
	for _, fact := range parseFacts(existingDoc) {
		seen[normalizeFact(fact)] = true
	}

	var added []string
	for _, fact := range facts {
		fact = strings.TrimSpace(fact)
		if fact == "" {
			continue
		}
		key := normalizeFact(fact)
		if seen[key] {
			continue
		}
		seen[key] = true
		added = append(added, fact)
	}
	if len(added) == 0 {
		return nil
	}

	var b strings.Builder
	if existingDoc == "" {
		b.WriteString(factsHeader)
		b.WriteString("\n")
	} else {
		b.WriteString(strings.TrimRight(existingDoc, "\n"))
		b.WriteString("\n")
	}
	for _, fact := range added {
		b.WriteString("- " + fact + "\n")
	}

	if err := atomicWrite(path, []byte(b.String())); err != nil {
		return core.NewPersistenceError("merge", path, err)
	}

	s.logger.Debug("memory.facts.merged", "added", len(added))
	return nil
}

// AppendEvent appends a dated entry to the events document.
func (s *Store) AppendEvent(ts time.Time, sessionKey, summary string) error {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.EventsPath()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return core.NewPersistenceError("append", path, err)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.Size() == 0 {
		if _, err := f.WriteString(eventsHeader); err != nil {
			return core.NewPersistenceError("append", path, err)
		}
	}

	entry := fmt.Sprintf("\n## %s (%s)\n\n%s\n", ts.UTC().Format(time.RFC3339), sessionKey, summary)
	if _, err := f.WriteString(entry); err != nil {
		return core.NewPersistenceError("append", path, err)
	}
	return nil
}

// Snippet renders the memory context injected into prompts: the full facts
// document truncated to maxLen runes. Events are history, not prompt input.
func (s *Store) Snippet(maxLen int) string {
	facts := strings.TrimSpace(s.ReadFacts())
	if facts == "" {
		return ""
	}
	runes := []rune(facts)
	if maxLen > 0 && len(runes) > maxLen {
		return string(runes[:maxLen]) + "\n... (memory truncated)"
	}
	return facts
}

// parseFacts extracts bullet entries from a facts document.
func parseFacts(doc string) []string {
	var facts []string
	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "- "); ok {
			if rest = strings.TrimSpace(rest); rest != "" {
				facts = append(facts, rest)
			}
		}
	}
	return facts
}

// normalizeFact lowers and collapses whitespace plus trailing punctuation so
// near-identical phrasings dedupe.
func normalizeFact(fact string) string {
	fact = strings.ToLower(strings.Join(strings.Fields(fact), " "))
	return strings.TrimRight(fact, ".!?")
}

// atomicWrite writes data to a temp file in the target directory and renames
// it over path.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
