// Package sentinel persists boolean flags as empty files under the project's
// scratch directory. Existence is the value, so the flags survive process
// restarts without any serialization and can be inspected or cleared by hand.
package sentinel

import (
	"fmt"
	"os"
	"path/filepath"
)

// Well-known flag names.
const (
	// Refreshing marks a metadata refresh in progress; a flag still present
	// at startup means the previous run was interrupted.
	Refreshing = "refreshing"

	// CleanupPending marks that obsolete files were found but not yet
	// confirmed for deletion.
	CleanupPending = "cleanup-pending"

	// CompatWarned records that the compatibility-API degradation warning
	// was already logged, so it is emitted once per project rather than once
	// per run.
	CompatWarned = "compat-warning-logged"
)

// Store manages flag files in one directory.
type Store struct {
	dir string
}

// NewStore creates the scratch directory if needed and returns a store
// rooted there.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating sentinel dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".sentinel")
}

// Set raises the flag. Setting an already-set flag is a no-op.
func (s *Store) Set(name string) error {
	f, err := os.OpenFile(s.path(name), os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("setting sentinel %s: %w", name, err)
	}
	return f.Close()
}

// Clear lowers the flag. Clearing an unset flag is a no-op.
func (s *Store) Clear(name string) error {
	err := os.Remove(s.path(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing sentinel %s: %w", name, err)
	}
	return nil
}

// IsSet reports whether the flag is raised.
func (s *Store) IsSet(name string) bool {
	_, err := os.Stat(s.path(name))
	return err == nil
}
