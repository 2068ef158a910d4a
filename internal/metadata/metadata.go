// Package metadata implements the typed per-file metadata model and the
// version activation engine. A FileMetadata is parsed from a file's name and
// asset tags; FileMetadataByVersion groups every revision of one canonical
// file; FileMetadataSet indexes the whole project. All reconciliation
// algorithms operate on these typed records, and tag strings exist only at
// the parse/serialize boundary.
package metadata

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/plugrec/plugrec/internal/host"
	"github.com/plugrec/plugrec/internal/output"
	"github.com/plugrec/plugrec/internal/tokens"
)

// FileMetadata is the parsed record for one physical file at a point in time.
type FileMetadata struct {
	// Path is the file's current location. Renaming updates it.
	Path string

	// CanonicalPath is the path with all metadata tokens stripped; it is the
	// stable identity used for version grouping. When an export-path tag is
	// present the canonical path derives from it instead of Path, so a
	// package's logical identity survives being moved into project-specific
	// subfolders.
	CanonicalPath string

	// Version is the dotted version string, empty if unversioned.
	Version string

	// Targets is the set of declared platform target tokens, lowercase.
	// "any" expands to all known platforms at query time, not at parse time.
	Targets []string

	// DotNetTargets is the set of runtime versions this revision supports.
	// Empty means runtime targeting is left untouched for this file.
	DotNetTargets []string

	// IsManifest reports whether this file lists a package's member files.
	IsManifest bool

	// ManifestNames holds the raw alias tokens for the package, in
	// declaration order. An optional leading numeric index encodes priority.
	ManifestNames []string

	// LinuxLibraryBasename is the canonical name of a native Linux library.
	LinuxLibraryBasename string

	// ExportPath is the original export-relative path, when recorded.
	ExportPath string

	// ReadOnly marks files in externally managed locations whose tags and
	// flags are never rewritten.
	ReadOnly bool

	// ForcedDisabled is set by the cross-package obsolescence pass to drive
	// the file fully disabled regardless of its own targets.
	ForcedDisabled bool

	// tagPrefixes records which tag namespace each token kind was stored
	// under, so rewrites keep the existing prefix.
	tagPrefixes map[tokens.Kind]string

	// foreignTags holds tags outside the reconciler's namespaces; they are
	// carried through every tag rewrite untouched.
	foreignTags []string
}

// Ordinal returns the file's version ordinal.
func (m *FileMetadata) Ordinal() int64 {
	return CalculateVersion(m.Version)
}

// Parse builds a FileMetadata for path. Filename tokens are first-class; the
// asset tag store is the durable fallback for fields the filename does not
// carry. An export-path tag recomputes the canonical path.
func Parse(db host.Database, path string) *FileMetadata {
	components := tokens.ParseFilename(path)
	m := &FileMetadata{
		Path:          filepath.ToSlash(path),
		CanonicalPath: components.Canonical(),
		ReadOnly:      db.ReadOnly(path),
		tagPrefixes:   map[tokens.Kind]string{},
	}
	m.apply(components.Tokens)

	tags, err := db.Tags(path)
	if err != nil {
		// Not yet indexed by the host; filename tokens are all we have.
		output.Debug("no tags for file", "path", path, "error", err)
		return m
	}
	tagValues, tagPrefixes, foreign := tokens.ParseTags(tags)
	m.foreignTags = foreign
	m.tagPrefixes = tagPrefixes
	m.apply(tagValues)

	if m.ExportPath != "" {
		m.CanonicalPath = tokens.ParseFilename(m.ExportPath).Canonical()
	}
	return m
}

// apply merges token values into the metadata. Fields already set keep their
// value, so filename tokens win over tags.
func (m *FileMetadata) apply(values tokens.Values) {
	for kind, vals := range values {
		switch kind {
		case tokens.KindVersion:
			if m.Version == "" && len(vals) > 0 {
				m.Version = vals[0]
			}
		case tokens.KindTargets:
			if len(m.Targets) == 0 {
				m.Targets = append(m.Targets, vals...)
			}
		case tokens.KindDotNet:
			if len(m.DotNetTargets) == 0 {
				m.DotNetTargets = append(m.DotNetTargets, vals...)
			}
		case tokens.KindManifest:
			m.IsManifest = true
		case tokens.KindManifestName:
			if len(m.ManifestNames) == 0 {
				m.ManifestNames = append(m.ManifestNames, vals...)
			}
		case tokens.KindLinuxLibrary:
			if m.LinuxLibraryBasename == "" && len(vals) > 0 {
				m.LinuxLibraryBasename = vals[0]
			}
		case tokens.KindExportPath:
			if m.ExportPath == "" && len(vals) > 0 {
				m.ExportPath = vals[0]
			}
		}
	}
}

// tokenValues renders the metadata back into token values.
func (m *FileMetadata) tokenValues() tokens.Values {
	values := tokens.Values{}
	if m.Version != "" {
		values[tokens.KindVersion] = []string{m.Version}
	}
	if len(m.Targets) > 0 {
		values[tokens.KindTargets] = append([]string(nil), m.Targets...)
	}
	if len(m.DotNetTargets) > 0 {
		values[tokens.KindDotNet] = append([]string(nil), m.DotNetTargets...)
	}
	if m.IsManifest {
		values[tokens.KindManifest] = nil
	}
	if len(m.ManifestNames) > 0 {
		values[tokens.KindManifestName] = append([]string(nil), m.ManifestNames...)
	}
	if m.LinuxLibraryBasename != "" {
		values[tokens.KindLinuxLibrary] = []string{m.LinuxLibraryBasename}
	}
	if m.ExportPath != "" {
		values[tokens.KindExportPath] = []string{m.ExportPath}
	}
	return values
}

// Tags renders the full tag set for the file: reconciler tags plus any
// foreign tags carried through from the last parse. Sorted.
func (m *FileMetadata) Tags() []string {
	tags := tokens.FormatTags(m.tokenValues(), m.tagPrefixes)
	tags = append(tags, m.foreignTags...)
	sort.Strings(tags)
	return tags
}

// UpdateTags writes the in-memory metadata back to the tag store. The write
// is skipped for read-only files and when the computed tag set already
// matches the stored one.
func (m *FileMetadata) UpdateTags(db host.Database) error {
	if m.ReadOnly {
		return nil
	}
	current, err := db.Tags(m.Path)
	if err != nil {
		current = nil
	}
	sort.Strings(current)
	want := m.Tags()
	if equalStrings(current, want) {
		return nil
	}
	logTagDiff(m.Path, current, want)
	if err := db.SetTags(m.Path, want); err != nil {
		return fmt.Errorf("updating tags for %s: %w", m.Path, err)
	}
	return nil
}

// logTagDiff logs the old-to-new tag change at debug level.
func logTagDiff(path string, before, after []string) {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        before,
		B:        after,
		FromFile: "old tags",
		ToFile:   "new tags",
		Context:  1,
	})
	if err != nil {
		return
	}
	output.Debug("rewriting tags", "path", path, "diff", strings.TrimSpace(diff))
}

// Rename moves the file to newPath within the same directory, then rewrites
// its tags so version metadata stripped from the filename survives. The
// destination directory must equal the source directory.
func (m *FileMetadata) Rename(db host.Database, newPath string) error {
	newPath = filepath.ToSlash(newPath)
	if newPath == m.Path {
		return nil
	}
	if slashDir(newPath) != slashDir(m.Path) {
		return fmt.Errorf("rename must stay in directory %s: %s", slashDir(m.Path), newPath)
	}
	if err := db.Move(m.Path, newPath); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", m.Path, newPath, err)
	}
	m.Path = newPath
	if err := m.UpdateTags(db); err != nil {
		// A failed tag write after a successful move is transient; the next
		// database refresh re-parses and repairs it.
		output.Warn("tag update after rename failed", "path", newPath, "error", err)
	}
	return nil
}

// TargetsEditor reports whether the declared targets include the editor.
func (m *FileMetadata) TargetsEditor() bool {
	for _, t := range m.Targets {
		if t == "editor" {
			return true
		}
	}
	return false
}

// SupportsDotNet reports whether the file declares support for the given
// runtime version.
func (m *FileMetadata) SupportsDotNet(version string) bool {
	for _, v := range m.DotNetTargets {
		if v == version {
			return true
		}
	}
	return false
}

// BuildTargetSet resolves the declared targets against the live platform
// table, excluding blacklisted platforms. "any" expands to every
// non-blacklisted platform; "editor" is handled separately by the caller.
// Unresolvable names are logged as errors and skipped; stale metadata is
// not fatal.
func (m *FileMetadata) BuildTargetSet(caps host.Capabilities) map[host.Platform]bool {
	set := make(map[host.Platform]bool)
	for _, target := range m.Targets {
		switch target {
		case "editor":
			continue
		case "any":
			for _, p := range caps.EnabledPlatforms() {
				set[p] = true
			}
		default:
			p, ok := host.PlatformFromName(target)
			if !ok {
				output.Error("unresolvable build target", "path", m.Path, "target", target)
				continue
			}
			if !caps.Blacklisted(p) {
				set[p] = true
			}
		}
	}
	return set
}

// AliasNames returns the package alias names sorted by priority (lowest index
// first), with the numeric prefixes stripped. The first entry is the
// preferred display name.
func (m *FileMetadata) AliasNames() []string {
	type entry struct {
		priority int
		order    int
		name     string
	}
	entries := make([]entry, 0, len(m.ManifestNames))
	for i, raw := range m.ManifestNames {
		priority, name := tokens.AliasPriority(raw)
		entries = append(entries, entry{priority: priority, order: i, name: name})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority < entries[j].priority
		}
		return entries[i].order < entries[j].order
	})
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.name)
	}
	return names
}

// PackageName returns the preferred package name for a manifest file: the
// top-priority alias when declared, otherwise the canonical basename.
func (m *FileMetadata) PackageName() string {
	if names := m.AliasNames(); len(names) > 0 {
		return names[0]
	}
	base := filepath.Base(m.CanonicalPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func slashDir(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[:i]
	}
	return ""
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
