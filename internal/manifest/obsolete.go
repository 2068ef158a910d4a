package manifest

import (
	"sort"

	"github.com/plugrec/plugrec/internal/metadata"
)

// ExistsFunc reports whether a path still exists in the host's asset index.
type ExistsFunc func(path string) bool

// ObsoleteFiles is a read-only snapshot partitioning the global obsolete-file
// universe: unreferenced files are safe to delete automatically, referenced
// files are still named by at least one current manifest and need user
// confirmation first.
type ObsoleteFiles struct {
	// Unreferenced maps each safe-to-delete path to nil.
	Unreferenced map[string][]string

	// Referenced maps each path to the sorted package names whose current
	// sets still reference it.
	Referenced map[string][]string

	set *metadata.FileMetadataSet
}

// FindObsolete aggregates every package's obsolete set and every metadata
// group's non-newest versions into one candidate set, then splits it by
// whether any current manifest still names the candidate. Candidates that no
// longer exist are dropped silently; stale index entries are not actionable.
func FindObsolete(refs []*References, set *metadata.FileMetadataSet, exists ExistsFunc) *ObsoleteFiles {
	candidates := make(map[string]bool)
	for _, r := range refs {
		for path := range r.Obsolete {
			candidates[path] = true
		}
	}
	for _, group := range set.Groups() {
		sorted := group.Sorted()
		if len(sorted) < 2 {
			continue
		}
		for _, m := range sorted[:len(sorted)-1] {
			candidates[m.Path] = true
		}
	}

	o := &ObsoleteFiles{
		Unreferenced: make(map[string][]string),
		Referenced:   make(map[string][]string),
		set:          set,
	}
	for path := range candidates {
		if exists != nil && !exists(path) {
			continue
		}
		var referencers []string
		for _, r := range refs {
			if _, ok := r.Current[path]; ok {
				referencers = append(referencers, r.Name)
			}
		}
		if len(referencers) == 0 {
			o.Unreferenced[path] = nil
			continue
		}
		sort.Strings(referencers)
		o.Referenced[path] = referencers
	}
	return o
}

// UnreferencedPaths returns the safe-to-delete paths in sorted order.
func (o *ObsoleteFiles) UnreferencedPaths() []string {
	return sortedKeys(o.Unreferenced)
}

// ReferencedPaths returns the confirmation-required paths in sorted order.
func (o *ObsoleteFiles) ReferencedPaths() []string {
	return sortedKeys(o.Referenced)
}

// UnreferencedExcludingManifests filters manifest files out of the
// unreferenced set. Deleting a manifest has different blast-radius
// implications, so the UI presents them separately.
func (o *ObsoleteFiles) UnreferencedExcludingManifests() []string {
	return o.excludeManifests(o.UnreferencedPaths())
}

// ReferencedExcludingManifests filters manifest files out of the referenced
// set.
func (o *ObsoleteFiles) ReferencedExcludingManifests() []string {
	return o.excludeManifests(o.ReferencedPaths())
}

// Empty reports whether there is nothing to clean up.
func (o *ObsoleteFiles) Empty() bool {
	return len(o.Unreferenced) == 0 && len(o.Referenced) == 0
}

func (o *ObsoleteFiles) excludeManifests(paths []string) []string {
	var filtered []string
	for _, path := range paths {
		if m := o.set.FindByPath(path); m != nil && m.IsManifest {
			continue
		}
		filtered = append(filtered, path)
	}
	return filtered
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
