// Package namestore persists the user's chosen display name on the local machine.
package namestore

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Key is the local storage key holding the display name.
const Key = "chatUserName"

// ErrClosed is returned by backends used after Close.
var ErrClosed = errors.New("name store closed")

// Backend is a local key-value store.
type Backend interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)
	Put(key, value string) error
	Close() error
}

// Store holds the current display name in memory, backed by local storage.
type Store struct {
	backend   Backend
	newSuffix func() string

	// writeMu is held across Set's memory update and Put, and by Reload, so a
	// reload never sees the file lagging behind our own write.
	writeMu sync.Mutex

	mu   sync.RWMutex
	name string
}

// New creates a Store over backend. Call Load before reading Name.
func New(backend Backend) *Store {
	return &Store{backend: backend, newSuffix: randomSuffix}
}

// Load reads the stored name, or generates "User-xxxxx" when none is stored.
// A generated default is not persisted. The result becomes the current name.
func (s *Store) Load() string {
	name, ok, err := s.backend.Get(Key)
	if err != nil {
		slog.Warn("Failed to read display name, using a generated default", "event", "name_load_failure", "version", "1.0", "error", err)
	}
	if err != nil || !ok || name == "" {
		name = DefaultName(s.newSuffix())
	}

	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
	return name
}

// Set persists name and makes it current. The in-memory value is updated even
// when persisting fails.
func (s *Store) Set(name string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.name = name
	s.mu.Unlock()

	if err := s.backend.Put(Key, name); err != nil {
		return fmt.Errorf("persist display name: %w", err)
	}
	return nil
}

// Name returns the current display name.
func (s *Store) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// Reload re-reads the stored name. It reports the name and whether it differs
// from the current one; an absent stored name leaves the current one in place.
func (s *Store) Reload() (string, bool) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	name, ok, err := s.backend.Get(Key)
	if err != nil || !ok || name == "" {
		return s.Name(), false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if name == s.name {
		return name, false
	}
	s.name = name
	return name, true
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// DefaultName formats a generated display name.
func DefaultName(suffix string) string {
	return "User-" + suffix
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:5]
}
