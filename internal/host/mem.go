package host

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// MemDB is an in-memory Database used by tests and dry runs. It tracks the
// mutation calls made against it so tests can assert on write behavior.
type MemDB struct {
	files         map[string]memEntry
	readOnlyRoots []string

	// Ops records every mutating call in order, e.g. "move a b",
	// "set-any path false".
	Ops []string

	// FailMove, when set, makes Move return an error for the given source
	// path. Simulates transient host failures.
	FailMove map[string]bool
}

type memEntry struct {
	guid  string
	tags  []string
	flags Flags
}

// NewMemDB creates an empty in-memory database.
func NewMemDB(readOnlyRoots ...string) *MemDB {
	return &MemDB{
		files:         make(map[string]memEntry),
		readOnlyRoots: readOnlyRoots,
	}
}

// AddFile registers a file with the given tags, as though the host had
// imported it.
func (m *MemDB) AddFile(path string, tags ...string) {
	m.files[path] = memEntry{
		guid: guidFor(path),
		tags: append([]string(nil), tags...),
		flags: Flags{
			Platforms: make(map[Platform]bool),
		},
	}
}

// Paths returns every known path in sorted order.
func (m *MemDB) Paths() []string {
	var paths []string
	for path := range m.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Has reports whether path is present.
func (m *MemDB) Has(path string) bool {
	_, ok := m.files[path]
	return ok
}

// Tags implements TagStore.
func (m *MemDB) Tags(path string) ([]string, error) {
	entry, ok := m.files[path]
	if !ok {
		return nil, &ErrUnknownPath{Path: path}
	}
	tags := append([]string(nil), entry.tags...)
	sort.Strings(tags)
	return tags, nil
}

// SetTags implements TagStore.
func (m *MemDB) SetTags(path string, tags []string) error {
	entry, ok := m.files[path]
	if !ok {
		return &ErrUnknownPath{Path: path}
	}
	entry.tags = append([]string(nil), tags...)
	m.files[path] = entry
	m.Ops = append(m.Ops, fmt.Sprintf("set-tags %s", path))
	return nil
}

// Exists implements TagStore.
func (m *MemDB) Exists(path string) (string, bool) {
	entry, ok := m.files[path]
	if !ok {
		return "", false
	}
	return entry.guid, true
}

// Flags implements CompatStore.
func (m *MemDB) Flags(path string) (Flags, error) {
	entry, ok := m.files[path]
	if !ok {
		return Flags{}, &ErrUnknownPath{Path: path}
	}
	flags := Flags{
		Any:       entry.flags.Any,
		Editor:    entry.flags.Editor,
		Platforms: make(map[Platform]bool),
	}
	for p, enabled := range entry.flags.Platforms {
		flags.Platforms[p] = enabled
	}
	return flags, nil
}

// SetAny implements CompatStore.
func (m *MemDB) SetAny(path string, enabled bool) error {
	entry, ok := m.files[path]
	if !ok {
		return &ErrUnknownPath{Path: path}
	}
	entry.flags.Any = enabled
	m.files[path] = entry
	m.Ops = append(m.Ops, fmt.Sprintf("set-any %s %t", path, enabled))
	return nil
}

// SetEditor implements CompatStore.
func (m *MemDB) SetEditor(path string, enabled bool) error {
	entry, ok := m.files[path]
	if !ok {
		return &ErrUnknownPath{Path: path}
	}
	entry.flags.Editor = enabled
	m.files[path] = entry
	m.Ops = append(m.Ops, fmt.Sprintf("set-editor %s %t", path, enabled))
	return nil
}

// SetPlatform implements CompatStore.
func (m *MemDB) SetPlatform(path string, p Platform, enabled bool) error {
	entry, ok := m.files[path]
	if !ok {
		return &ErrUnknownPath{Path: path}
	}
	if entry.flags.Platforms == nil {
		entry.flags.Platforms = make(map[Platform]bool)
	}
	entry.flags.Platforms[p] = enabled
	m.files[path] = entry
	m.Ops = append(m.Ops, fmt.Sprintf("set-platform %s %s %t", path, p, enabled))
	return nil
}

// Move implements FileOps.
func (m *MemDB) Move(oldPath, newPath string) error {
	if m.FailMove[oldPath] {
		return fmt.Errorf("simulated move failure for %s", oldPath)
	}
	entry, ok := m.files[oldPath]
	if !ok {
		return &ErrUnknownPath{Path: oldPath}
	}
	delete(m.files, oldPath)
	delete(m.files, newPath)
	m.files[newPath] = entry
	m.Ops = append(m.Ops, fmt.Sprintf("move %s %s", oldPath, newPath))
	return nil
}

// Delete implements FileOps.
func (m *MemDB) Delete(path string) error {
	delete(m.files, path)
	m.Ops = append(m.Ops, fmt.Sprintf("delete %s", path))
	return nil
}

// ReadOnly implements Database.
func (m *MemDB) ReadOnly(path string) bool {
	path = filepath.ToSlash(path)
	for _, root := range m.readOnlyRoots {
		root = strings.TrimSuffix(filepath.ToSlash(root), "/")
		if root == "" {
			continue
		}
		if path == root || strings.HasPrefix(path, root+"/") {
			return true
		}
	}
	return false
}
