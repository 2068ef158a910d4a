package metadata

import (
	"sort"

	"github.com/plugrec/plugrec/internal/host"
	"github.com/plugrec/plugrec/internal/output"
)

// FileMetadataSet is the whole-project metadata index: canonical path →
// version group, plus a flat path → metadata map (including export-path
// aliases) for O(1) lookup during manifest member resolution.
type FileMetadataSet struct {
	byCanonical map[string]*FileMetadataByVersion
	byPath      map[string]*FileMetadata
}

// NewFileMetadataSet creates an empty index.
func NewFileMetadataSet() *FileMetadataSet {
	return &FileMetadataSet{
		byCanonical: make(map[string]*FileMetadataByVersion),
		byPath:      make(map[string]*FileMetadata),
	}
}

// Add indexes a metadata record under its canonical path and its lookup
// paths.
func (s *FileMetadataSet) Add(m *FileMetadata) {
	group, ok := s.byCanonical[m.CanonicalPath]
	if !ok {
		group = NewFileMetadataByVersion(m.CanonicalPath)
		s.byCanonical[m.CanonicalPath] = group
	}
	group.Add(m)
	s.byPath[m.Path] = m
	if m.ExportPath != "" && m.ExportPath != m.Path {
		s.byPath[m.ExportPath] = m
	}
}

// ParseFromPaths builds the index for every given path.
func ParseFromPaths(db host.Database, paths []string) *FileMetadataSet {
	s := NewFileMetadataSet()
	for _, path := range paths {
		s.Add(Parse(db, path))
	}
	return s
}

// FindByPath looks up metadata by literal path, including export-path
// aliases.
func (s *FileMetadataSet) FindByPath(path string) *FileMetadata {
	return s.byPath[path]
}

// FindByCanonical looks up a version group by canonical path.
func (s *FileMetadataSet) FindByCanonical(canonicalPath string) *FileMetadataByVersion {
	return s.byCanonical[canonicalPath]
}

// Len returns the number of canonical groups.
func (s *FileMetadataSet) Len() int {
	return len(s.byCanonical)
}

// CanonicalPaths returns every canonical path in sorted order.
func (s *FileMetadataSet) CanonicalPaths() []string {
	paths := make([]string, 0, len(s.byCanonical))
	for path := range s.byCanonical {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Groups returns every version group, ordered by canonical path.
func (s *FileMetadataSet) Groups() []*FileMetadataByVersion {
	groups := make([]*FileMetadataByVersion, 0, len(s.byCanonical))
	for _, path := range s.CanonicalPaths() {
		groups = append(groups, s.byCanonical[path])
	}
	return groups
}

// All returns every metadata record, ordered by canonical path then ordinal.
func (s *FileMetadataSet) All() []*FileMetadata {
	var all []*FileMetadata
	for _, group := range s.Groups() {
		all = append(all, group.Sorted()...)
	}
	return all
}

// FilterOutReadOnly returns a new set containing only mutable-location
// files. Run before any write-performing pass; externally managed locations
// must never have their tags or flags touched.
func FilterOutReadOnly(s *FileMetadataSet) *FileMetadataSet {
	filtered := NewFileMetadataSet()
	for _, m := range s.All() {
		if !m.ReadOnly {
			filtered.Add(m)
		}
	}
	return filtered
}

// FindWithPendingUpdates returns only the groups an activation pass could
// possibly affect: more than one revision, any declared targets, or a
// manifest. Lets a non-forced pass skip full-project rescans.
func FindWithPendingUpdates(s *FileMetadataSet) *FileMetadataSet {
	pending := NewFileMetadataSet()
	for _, group := range s.Groups() {
		interesting := group.Len() > 1
		if !interesting {
			for _, m := range group.Sorted() {
				if len(m.Targets) > 0 || len(m.DotNetTargets) > 0 || m.IsManifest {
					interesting = true
					break
				}
			}
		}
		if interesting {
			for _, m := range group.Sorted() {
				pending.Add(m)
			}
		}
	}
	return pending
}

// EnableMostRecentPlugins runs the activation pass over every group. Groups
// whose pass fails are logged and skipped; the pass continues with the rest.
// Returns whether any host state was modified.
func (s *FileMetadataSet) EnableMostRecentPlugins(db host.Database, caps host.Capabilities, opts ActivationOptions) bool {
	modified := false
	for _, group := range s.Groups() {
		changed, err := group.EnableMostRecent(db, caps, opts)
		if err != nil {
			output.Warn("activation pass failed for file group",
				"file", group.CanonicalPath, "error", err)
			continue
		}
		modified = modified || changed
	}
	return modified
}

// ConsolidateManifests builds the package alias graph from every manifest's
// declared alias names (accumulated across versions and renames) and resolves
// each name to its highest-priority connected name. The returned map sends
// every known alias to its canonical flattened name, so a package renamed
// across releases is treated as one logical package.
//
// Resolution follows each name's preferred link; a traversal exceeding the
// graph size is reported as a cycle and leaves the name unresolved.
func (s *FileMetadataSet) ConsolidateManifests() map[string]string {
	link := make(map[string]string)
	names := make(map[string]bool)

	for _, group := range s.Groups() {
		primary := ""
		var groupNames []string
		for _, m := range group.Sorted() {
			if !m.IsManifest {
				continue
			}
			aliases := m.AliasNames()
			if len(aliases) > 0 {
				// Later (newer) revisions override the preferred name.
				primary = aliases[0]
			}
			groupNames = append(groupNames, aliases...)
		}
		if primary == "" {
			continue
		}
		for _, name := range groupNames {
			names[name] = true
			if name == primary {
				continue
			}
			if _, linked := link[name]; !linked {
				link[name] = primary
			}
		}
		names[primary] = true
	}

	aliases := make(map[string]string, len(names))
	for name := range names {
		aliases[name] = s.resolveAlias(name, link)
	}
	return aliases
}

// resolveAlias follows preferred-name links to a fixpoint. Traversals longer
// than the graph node count indicate an alias cycle; the original name is
// returned unresolved with a warning.
func (s *FileMetadataSet) resolveAlias(name string, link map[string]string) string {
	current := name
	for steps := 0; ; steps++ {
		next, ok := link[current]
		if !ok || next == current {
			return current
		}
		if steps >= len(link) {
			output.Warn("alias graph cycle detected", "name", name)
			return name
		}
		current = next
	}
}

// ManifestGroups buckets all manifest metadata under canonical package names
// using the alias map from ConsolidateManifests. Version histories of
// renamed manifests merge into one group per logical package.
func (s *FileMetadataSet) ManifestGroups(aliases map[string]string) map[string]*FileMetadataByVersion {
	packages := make(map[string]*FileMetadataByVersion)
	for _, group := range s.Groups() {
		for _, m := range group.Sorted() {
			if !m.IsManifest {
				continue
			}
			name := m.PackageName()
			if canonical, ok := aliases[name]; ok {
				name = canonical
			}
			pkg, ok := packages[name]
			if !ok {
				pkg = NewFileMetadataByVersion(group.CanonicalPath)
				packages[name] = pkg
			}
			pkg.Add(m)
		}
	}
	return packages
}
