// Package settings persists per-project reconciler preferences. The store is
// a YAML file guarded by a read-write mutex; reads are frequent during a
// reconciliation pass while writes happen only when the user changes a
// preference, so readers never block each other.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Values holds the persisted preferences.
type Values struct {
	// Enabled gates the whole reconciler. When false every entry point
	// returns without touching the project.
	Enabled bool `yaml:"enabled"`

	// RenameToCanonical controls whether the newest version of each asset is
	// renamed onto its unversioned filename during activation.
	RenameToCanonical bool `yaml:"rename_to_canonical"`

	// PromptBeforeDelete requires interactive confirmation before any
	// obsolete file is removed.
	PromptBeforeDelete bool `yaml:"prompt_before_delete"`

	// ArchiveBeforeDelete uploads obsolete files to the configured archive
	// bucket before deleting them.
	ArchiveBeforeDelete bool `yaml:"archive_before_delete"`

	// VerboseLogging raises the log level to debug.
	VerboseLogging bool `yaml:"verbose_logging"`
}

// Defaults returns the out-of-the-box preferences.
func Defaults() Values {
	return Values{
		Enabled:            true,
		RenameToCanonical:  true,
		PromptBeforeDelete: true,
	}
}

// Store is a concurrency-safe settings file.
type Store struct {
	mu     sync.RWMutex
	path   string
	values Values
}

// Open loads the settings file at path, falling back to defaults when the
// file does not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path, values: Defaults()}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("parsing settings %s: %w", path, err)
	}
	return s, nil
}

// Get returns a copy of the current values.
func (s *Store) Get() Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values
}

// Update applies fn to the values under the write lock and persists the
// result. The file is written atomically via a temp file rename.
func (s *Store) Update(fn func(*Values)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := s.values
	fn(&updated)

	data, err := yaml.Marshal(&updated)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating settings dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing settings: %w", err)
	}
	s.values = updated
	return nil
}
