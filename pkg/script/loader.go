package script

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Decode parses a script document in the serialization selected by ext
// (".yaml", ".yml" or ".json") and validates it.
func Decode(data []byte, ext string) (*Script, error) {
	var s Script
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parse YAML: %w", err)
		}
	case ".json":
		if err := sonic.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported script format %q", ext)
	}

	applyDefaults(&s)

	if err := Validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads and validates a single script file. The serialization is
// selected by file extension.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	s, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", path, err)
	}

	if s.Name == "" {
		base := filepath.Base(path)
		s.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return s, nil
}

// applyDefaults fills omitted limits. A -1 limit passes through: it
// disables the cap, so it must not be rewritten to the default.
func applyDefaults(s *Script) {
	if s.Limits.MaxTurns == 0 {
		s.Limits.MaxTurns = DefaultMaxTurns
	}
	if s.Limits.MaxRetries == 0 {
		s.Limits.MaxRetries = DefaultMaxRetries
	}
}

func isScriptExt(ext string) bool {
	return ext == ".yaml" || ext == ".yml" || ext == ".json"
}

// Loader loads and optionally hot-reloads script definitions from a
// directory of YAML/JSON files.
type Loader struct {
	dir string

	mu      sync.RWMutex
	scripts map[string]*Script
}

// NewLoader creates a new script loader for the given directory.
func NewLoader(dir string) *Loader {
	return &Loader{
		dir:     dir,
		scripts: make(map[string]*Script),
	}
}

// LoadAll loads every script file from the configured directory.
func (l *Loader) LoadAll() (map[string]*Script, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read script dir %q: %w", l.dir, err)
	}

	result := make(map[string]*Script)
	for _, entry := range entries {
		if entry.IsDir() || !isScriptExt(filepath.Ext(entry.Name())) {
			continue
		}

		s, err := Load(filepath.Join(l.dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		result[s.Name] = s
	}

	l.mu.Lock()
	l.scripts = result
	l.mu.Unlock()

	return result, nil
}

// Get returns a loaded script by name.
func (l *Loader) Get(name string) (*Script, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.scripts[name]
	return s, ok
}

// All returns all loaded scripts.
func (l *Loader) All() map[string]*Script {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make(map[string]*Script, len(l.scripts))
	for k, v := range l.scripts {
		result[k] = v
	}
	return result
}

// WatchAndReload watches the script directory and reloads on changes.
// This blocks until the done channel is closed.
func (l *Loader) WatchAndReload(done <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.dir); err != nil {
		return fmt.Errorf("watch dir %q: %w", l.dir, err)
	}

	for {
		select {
		case <-done:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if isScriptExt(filepath.Ext(event.Name)) {
					l.LoadAll()
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
