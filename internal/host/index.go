package host

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// indexEntry is the persisted record for one asset.
type indexEntry struct {
	GUID      string          `yaml:"guid"`
	Tags      []string        `yaml:"tags,omitempty"`
	Any       bool            `yaml:"any,omitempty"`
	Editor    bool            `yaml:"editor,omitempty"`
	Platforms map[string]bool `yaml:"platforms,omitempty"`
}

// indexFile is the on-disk shape of the sidecar index.
type indexFile struct {
	Version int                   `yaml:"version"`
	Assets  map[string]indexEntry `yaml:"assets"`
}

// Index is a filesystem-backed Database. Asset tags and compatibility flags
// live in a YAML sidecar file next to the project; file operations act on the
// real project tree. Paths are stored slash-separated and relative to the
// project root.
type Index struct {
	root          string
	path          string
	readOnlyRoots []string
	assets        map[string]indexEntry
}

// OpenIndex loads (or initializes) the sidecar index at indexPath for the
// project rooted at root. readOnlyRoots are root-relative directories treated
// as externally managed.
func OpenIndex(root, indexPath string, readOnlyRoots []string) (*Index, error) {
	idx := &Index{
		root:          root,
		path:          indexPath,
		readOnlyRoots: readOnlyRoots,
		assets:        make(map[string]indexEntry),
	}

	data, err := os.ReadFile(indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, fmt.Errorf("reading asset index %s: %w", indexPath, err)
	}

	var file indexFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing asset index %s: %w", indexPath, err)
	}
	if file.Version != 0 && file.Version != 1 {
		return nil, fmt.Errorf("unsupported asset index version: %d", file.Version)
	}
	if file.Assets != nil {
		idx.assets = file.Assets
	}
	return idx, nil
}

// Save writes the index back to disk.
func (x *Index) Save() error {
	file := indexFile{Version: 1, Assets: x.assets}
	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("marshaling asset index: %w", err)
	}
	if dir := filepath.Dir(x.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating index directory: %w", err)
		}
	}
	if err := os.WriteFile(x.path, data, 0o644); err != nil {
		return fmt.Errorf("writing asset index %s: %w", x.path, err)
	}
	return nil
}

func (x *Index) abs(path string) string {
	return filepath.Join(x.root, filepath.FromSlash(path))
}

// ensure returns the entry for path, creating one when the file exists on
// disk but has never been indexed.
func (x *Index) ensure(path string) (indexEntry, bool) {
	if entry, ok := x.assets[path]; ok {
		return entry, true
	}
	if _, err := os.Stat(x.abs(path)); err != nil {
		return indexEntry{}, false
	}
	entry := indexEntry{GUID: guidFor(path)}
	x.assets[path] = entry
	return entry, true
}

// guidFor derives a stable asset identifier from the path.
func guidFor(path string) string {
	sum := sha256.Sum256([]byte(path))
	return fmt.Sprintf("%x", sum[:16])
}

// Tags implements TagStore.
func (x *Index) Tags(path string) ([]string, error) {
	entry, ok := x.ensure(path)
	if !ok {
		return nil, &ErrUnknownPath{Path: path}
	}
	tags := append([]string(nil), entry.Tags...)
	sort.Strings(tags)
	return tags, nil
}

// SetTags implements TagStore.
func (x *Index) SetTags(path string, tags []string) error {
	entry, ok := x.ensure(path)
	if !ok {
		return &ErrUnknownPath{Path: path}
	}
	entry.Tags = append([]string(nil), tags...)
	sort.Strings(entry.Tags)
	x.assets[path] = entry
	return nil
}

// Exists implements TagStore.
func (x *Index) Exists(path string) (string, bool) {
	entry, ok := x.ensure(path)
	if !ok {
		return "", false
	}
	return entry.GUID, true
}

// Flags implements CompatStore.
func (x *Index) Flags(path string) (Flags, error) {
	entry, ok := x.ensure(path)
	if !ok {
		return Flags{}, &ErrUnknownPath{Path: path}
	}
	flags := Flags{
		Any:       entry.Any,
		Editor:    entry.Editor,
		Platforms: make(map[Platform]bool),
	}
	for name, enabled := range entry.Platforms {
		flags.Platforms[Platform(name)] = enabled
	}
	return flags, nil
}

// SetAny implements CompatStore.
func (x *Index) SetAny(path string, enabled bool) error {
	entry, ok := x.ensure(path)
	if !ok {
		return &ErrUnknownPath{Path: path}
	}
	entry.Any = enabled
	x.assets[path] = entry
	return nil
}

// SetEditor implements CompatStore.
func (x *Index) SetEditor(path string, enabled bool) error {
	entry, ok := x.ensure(path)
	if !ok {
		return &ErrUnknownPath{Path: path}
	}
	entry.Editor = enabled
	x.assets[path] = entry
	return nil
}

// SetPlatform implements CompatStore.
func (x *Index) SetPlatform(path string, p Platform, enabled bool) error {
	entry, ok := x.ensure(path)
	if !ok {
		return &ErrUnknownPath{Path: path}
	}
	if entry.Platforms == nil {
		entry.Platforms = make(map[string]bool)
	}
	entry.Platforms[string(p)] = enabled
	x.assets[path] = entry
	return nil
}

// Move implements FileOps. Any file already at newPath is removed first; the
// index entry moves with the file and keeps its identifier.
func (x *Index) Move(oldPath, newPath string) error {
	entry, ok := x.ensure(oldPath)
	if !ok {
		return &ErrUnknownPath{Path: oldPath}
	}
	absNew := x.abs(newPath)
	if _, err := os.Stat(absNew); err == nil {
		if err := os.Remove(absNew); err != nil {
			return fmt.Errorf("removing existing file %s: %w", newPath, err)
		}
	}
	if err := os.Rename(x.abs(oldPath), absNew); err != nil {
		return fmt.Errorf("moving %s to %s: %w", oldPath, newPath, err)
	}
	delete(x.assets, oldPath)
	delete(x.assets, newPath)
	x.assets[newPath] = entry
	return nil
}

// Delete implements FileOps.
func (x *Index) Delete(path string) error {
	if err := os.Remove(x.abs(path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	delete(x.assets, path)
	return nil
}

// ReadOnly implements Database.
func (x *Index) ReadOnly(path string) bool {
	path = filepath.ToSlash(path)
	for _, root := range x.readOnlyRoots {
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
