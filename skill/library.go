package skill

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/hupe1980/meshbot/logging"
)

// Library holds the loaded skills of a workspace and keeps them fresh while a
// watcher is running. All reads return snapshots, so callers never observe a
// half-reloaded set.
type Library struct {
	dir    string
	logger logging.Logger

	mu     sync.RWMutex
	skills map[string]*Skill

	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// NewLibrary loads every *.md file under dir. A missing directory is not an
// error; the library is simply empty.
func NewLibrary(dir string, logger logging.Logger) (*Library, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	l := &Library{
		dir:    dir,
		logger: logger,
		skills: make(map[string]*Skill),
		done:   make(chan struct{}),
	}
	if err := l.reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// reload re-reads the whole directory into a fresh map.
func (l *Library) reload() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	skills := make(map[string]*Skill, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(l.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			l.logger.Warn("skill.load.read_failed", "path", path, "error", err.Error())
			continue
		}
		skill, err := Parse(path, data)
		if err != nil {
			l.logger.Warn("skill.load.parse_failed", "path", path, "error", err.Error())
			continue
		}
		skills[skill.Name] = skill
	}

	l.mu.Lock()
	l.skills = skills
	l.mu.Unlock()

	l.logger.Debug("skill.library.loaded", "dir", l.dir, "count", len(skills))
	return nil
}

// Watch starts hot-reloading the directory until Close is called. Events are
// coarse: any change triggers a full reload, which is cheap at this scale.
func (l *Library) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(l.dir); err != nil {
		watcher.Close()
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	l.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.HasSuffix(event.Name, ".md") {
					continue
				}
				if err := l.reload(); err != nil {
					l.logger.Warn("skill.library.reload_failed", "error", err.Error())
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Warn("skill.library.watch_error", "error", err.Error())
			case <-l.done:
				return
			}
		}
	}()
	return nil
}

// Close stops the watcher. Safe to call multiple times.
func (l *Library) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		if l.watcher != nil {
			err = l.watcher.Close()
		}
	})
	return err
}

// All returns every loaded skill sorted by name.
func (l *Library) All() []*Skill {
	l.mu.RLock()
	defer l.mu.RUnlock()
	skills := make([]*Skill, 0, len(l.skills))
	for _, s := range l.skills {
		skills = append(skills, s)
	}
	sort.Slice(skills, func(i, j int) bool { return skills[i].Name < skills[j].Name })
	return skills
}

// Get returns the named skill, if loaded.
func (l *Library) Get(name string) (*Skill, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.skills[name]
	return s, ok
}

// Active returns the eligible always-on skills, sorted by name.
func (l *Library) Active() []*Skill {
	var active []*Skill
	for _, s := range l.All() {
		if s.Always && s.Eligible() {
			active = append(active, s)
		}
	}
	return active
}

// Summaries returns one "name: description" line per eligible skill so the
// model can request non-always skills by name.
func (l *Library) Summaries() []string {
	var lines []string
	for _, s := range l.All() {
		if !s.Eligible() {
			continue
		}
		desc := s.Description
		if desc == "" {
			desc = "(no description)"
		}
		lines = append(lines, s.Name+": "+desc)
	}
	return lines
}
