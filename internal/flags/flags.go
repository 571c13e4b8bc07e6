// Package flags provides the durable mode-flag store and its change
// synchronization.
//
// Each flag has a single durable value in a flat JSON settings file. All
// writes go through Commit, which persists the value and then broadcasts the
// flag's topic on the process-wide bus; subscribers re-read the durable
// value on every notification instead of trusting a payload. A secondary
// fsnotify watcher picks up writes made by other processes and republishes
// them on the same topics, deduplicating changes this process already
// broadcast itself.
package flags

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/askdata/askdata/internal/bus"
)

// Flag names a durable boolean mode flag.
type Flag string

const (
	DemoMode    Flag = "demo_mode"
	PrivacyMode Flag = "privacy_mode"
	SafeMode    Flag = "safe_mode"
	AIAssist    Flag = "ai_assist"
)

// All lists every known flag, in display order.
var All = []Flag{DemoMode, PrivacyMode, SafeMode, AIAssist}

// KeyBackendURL is the durable string key holding the backend base address.
// It is persisted alongside the flags but is independent of the demo flag.
const KeyBackendURL = "backend_url"

const settingsFile = "settings.json"

// Topic returns the bus topic that a settings key is broadcast on.
func Topic(key string) string {
	return "settings/" + key
}

// Store reads and writes durable settings. All methods are safe for
// concurrent use. Reads always go to the file: the store keeps no
// authoritative cache, only a record of values it has already broadcast.
type Store struct {
	path string
	bus  *bus.Bus
	log  *slog.Logger

	mu      sync.Mutex
	applied map[string]string // last value broadcast in this process, per key
}

// Open creates (if needed) dir and returns a Store backed by its settings
// file.
func Open(dir string, b *bus.Bus, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating settings dir: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Store{
		path:    filepath.Join(dir, settingsFile),
		bus:     b,
		log:     log,
		applied: make(map[string]string),
	}
	// Seed the dedupe record so a pre-existing file does not look like an
	// external change on the first watcher event.
	s.mu.Lock()
	s.applied = s.readAll()
	s.mu.Unlock()
	return s, nil
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

// Bool returns the durable value of a flag, false when unset or unreadable.
func (s *Store) Bool(f Flag) bool {
	v, ok := s.readAll()[string(f)]
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		s.log.Warn("unparsable flag value", "flag", f, "value", v)
		return false
	}
	return b
}

// String returns the durable value of a string key, "" when unset.
func (s *Store) String(key string) string {
	return s.readAll()[key]
}

// Commit durably writes a flag value and broadcasts its topic. If the write
// fails, no broadcast happens and the commit is considered not to have
// occurred.
func (s *Store) Commit(f Flag, value bool) error {
	return s.commitKey(string(f), strconv.FormatBool(value))
}

// SetString durably writes a string key (such as the backend base address)
// and broadcasts its topic, with the same all-or-nothing contract as Commit.
func (s *Store) SetString(key, value string) error {
	return s.commitKey(key, value)
}

func (s *Store) commitKey(key, value string) error {
	s.mu.Lock()
	data := s.readAll()
	data[key] = value
	if err := s.writeAll(data); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persist %s: %w", key, err)
	}
	s.applied[key] = value
	s.mu.Unlock()

	s.bus.Publish(Topic(key))
	return nil
}

// OnChange subscribes fn to a flag's change topic. On every notification fn
// receives the freshly re-read durable value. Returns an unsubscribe
// function.
func (s *Store) OnChange(f Flag, fn func(bool)) func() {
	return s.bus.Subscribe(Topic(string(f)), func() {
		fn(s.Bool(f))
	})
}

// OnKeyChange subscribes fn to a string key's change topic, re-reading the
// durable value per notification.
func (s *Store) OnKeyChange(key string, fn func(string)) func() {
	return s.bus.Subscribe(Topic(key), func() {
		fn(s.String(key))
	})
}

// Watch observes the settings file for writes made outside this process and
// republishes changed keys on their topics. Changes committed through this
// store are already broadcast and are not duplicated. Blocks until ctx is
// done.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors and atomic writers replace
	// the file and would silently detach a direct watch.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch settings dir: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != s.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			s.republishExternal()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("settings watcher error", "error", err)
		}
	}
}

// republishExternal diffs the durable state against what this process last
// broadcast and publishes the keys that changed elsewhere.
func (s *Store) republishExternal() {
	s.mu.Lock()
	current := s.readAll()
	var changed []string
	for key, val := range current {
		if s.applied[key] != val {
			s.applied[key] = val
			changed = append(changed, key)
		}
	}
	s.mu.Unlock()

	for _, key := range changed {
		s.log.Info("settings changed externally", "key", key)
		s.bus.Publish(Topic(key))
	}
}

// readAll loads the settings file as a flat string map. A missing file is an
// empty map; a corrupt file is logged and treated as empty.
func (s *Store) readAll() map[string]string {
	out := make(map[string]string)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("could not read settings file", "path", s.path, "error", err)
		}
		return out
	}
	if err := json.Unmarshal(data, &out); err != nil {
		s.log.Warn("could not parse settings file", "path", s.path, "error", err)
		return make(map[string]string)
	}
	return out
}

func (s *Store) writeAll(data map[string]string) error {
	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, buf, 0o600)
}
