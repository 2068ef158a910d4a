// Package manifest resolves package membership from manifest files and
// computes the obsolete-file sets. A manifest is a plain-text file listing
// one member path per line; each line carries the same token metadata as an
// asset filename, so members are resolved by canonical name and version even
// after they have been renamed on disk.
package manifest

import (
	"sort"
	"strings"

	"github.com/plugrec/plugrec/internal/metadata"
	"github.com/plugrec/plugrec/internal/output"
	"github.com/plugrec/plugrec/internal/tokens"
)

// ContentReader reads the raw contents of a project file. The engine never
// touches the filesystem directly; the session injects a reader rooted at the
// project.
type ContentReader func(path string) ([]byte, error)

// References describes one logical package: its manifest version history and
// the current vs obsolete partition of its member files. Built fresh each
// reconciliation pass, never persisted.
type References struct {
	// Name is the canonical (alias-consolidated) package name.
	Name string

	// Metadata is the newest manifest revision.
	Metadata *metadata.FileMetadata

	// History is the manifest's full version group.
	History *metadata.FileMetadataByVersion

	// Current maps member path → most-recent member metadata for the files
	// the newest manifest revision lists.
	Current map[string]*metadata.FileMetadata

	// Obsolete is the set of member paths retired by newer manifest
	// revisions, plus non-final versions of still-current members. Disjoint
	// from Current after construction; the cross-package phase is the only
	// thing that moves a file from Current into Obsolete.
	Obsolete map[string]bool

	// Aliases lists every name the package has been known by.
	Aliases []string

	// resolvedLines is the newest revision's member list after rename
	// resolution, in original line order.
	resolvedLines []string
}

// memberRef is one resolved manifest line.
type memberRef struct {
	path string
	meta *metadata.FileMetadata
}

// parseManifest reads one manifest revision and resolves each listed member
// against the project metadata set: canonical-name+version lookup first,
// literal path lookup second, the literal line verbatim as a last resort.
func parseManifest(manifestFile *metadata.FileMetadata, set *metadata.FileMetadataSet, read ContentReader) ([]memberRef, error) {
	data, err := read(manifestFile.Path)
	if err != nil {
		return nil, err
	}

	var members []memberRef
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		members = append(members, resolveMember(line, set))
	}
	return members, nil
}

// resolveMember maps a manifest line to the file currently embodying it.
func resolveMember(line string, set *metadata.FileMetadataSet) memberRef {
	components := tokens.ParseFilename(line)
	ordinal := int64(0)
	if versions := components.Tokens[tokens.KindVersion]; len(versions) > 0 {
		ordinal = metadata.CalculateVersion(versions[0])
	}

	if group := set.FindByCanonical(components.Canonical()); group != nil {
		for _, m := range group.Sorted() {
			if m.Ordinal() == ordinal {
				return memberRef{path: m.Path, meta: m}
			}
		}
	}
	if m := set.FindByPath(line); m != nil {
		return memberRef{path: m.Path, meta: m}
	}
	return memberRef{path: line}
}

// parseReferences walks a package's manifest revisions oldest to newest.
// Every revision except the newest contributes its members to the obsolete
// set; the newest revision's members become the current set, each represented
// by the most recent version available on disk. Non-final versions of
// still-current members are independently obsolete.
func parseReferences(name string, history *metadata.FileMetadataByVersion, set *metadata.FileMetadataSet, read ContentReader) (*References, bool) {
	sorted := history.Sorted()
	if len(sorted) == 0 || !sorted[len(sorted)-1].IsManifest {
		return nil, false
	}

	refs := &References{
		Name:     name,
		Metadata: sorted[len(sorted)-1],
		History:  history,
		Current:  make(map[string]*metadata.FileMetadata),
		Obsolete: make(map[string]bool),
	}

	aliasSeen := make(map[string]bool)
	for _, revision := range sorted {
		for _, alias := range revision.AliasNames() {
			if !aliasSeen[alias] {
				aliasSeen[alias] = true
				refs.Aliases = append(refs.Aliases, alias)
			}
		}
	}

	for i, revision := range sorted {
		members, err := parseManifest(revision, set, read)
		if err != nil {
			output.Warn("reading manifest failed", "package", name,
				"path", revision.Path, "error", err)
			continue
		}
		newest := i == len(sorted)-1
		for _, member := range members {
			if !newest {
				refs.Obsolete[member.path] = true
				continue
			}
			current := member.meta
			if current != nil {
				if group := set.FindByCanonical(current.CanonicalPath); group != nil {
					current = group.MostRecent()
					// Older versions of a current member are obsolete in
					// their own right.
					for _, m := range group.Sorted() {
						if m != current {
							refs.Obsolete[m.Path] = true
						}
					}
				}
			}
			if current != nil {
				refs.Current[current.Path] = current
				refs.resolvedLines = append(refs.resolvedLines, current.Path)
			} else {
				refs.Current[member.path] = nil
				refs.resolvedLines = append(refs.resolvedLines, member.path)
			}
		}
	}

	// Current and obsolete end up disjoint; a member listed by both an old
	// and the newest revision is simply still current.
	for path := range refs.Current {
		delete(refs.Obsolete, path)
	}
	return refs, true
}

// FindAndRead builds References for every package in the set, consolidating
// renamed manifests by alias, then runs the cross-package reconciliation:
// any file counted current by one package but obsolete by the union of all
// packages moves to that package's obsolete set too, so a stale
// self-reference cannot protect a file from deletion.
//
// The global-union subtraction applies even in pathological alias-cycle
// cases where it can empty every package's current set at once; dependents
// rely on that behavior.
func FindAndRead(set *metadata.FileMetadataSet, read ContentReader) []*References {
	aliases := set.ConsolidateManifests()
	packages := set.ManifestGroups(aliases)

	names := make([]string, 0, len(packages))
	for name := range packages {
		names = append(names, name)
	}
	sort.Strings(names)

	var all []*References
	for _, name := range names {
		refs, ok := parseReferences(name, packages[name], set, read)
		if !ok {
			continue
		}
		all = append(all, refs)
	}

	globalObsolete := make(map[string]bool)
	for _, refs := range all {
		for path := range refs.Obsolete {
			globalObsolete[path] = true
		}
	}
	for _, refs := range all {
		for path := range refs.Current {
			if globalObsolete[path] {
				delete(refs.Current, path)
				refs.Obsolete[path] = true
			}
		}
	}
	return all
}

// CurrentPaths returns the package's current member paths in sorted order.
func (r *References) CurrentPaths() []string {
	paths := make([]string, 0, len(r.Current))
	for path := range r.Current {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// ObsoletePaths returns the package's obsolete member paths in sorted order.
func (r *References) ObsoletePaths() []string {
	paths := make([]string, 0, len(r.Obsolete))
	for path := range r.Obsolete {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// ManifestLines renders the member list the newest manifest revision should
// contain after rename resolution, preserving the original line order.
// Manifests are rewritten wholesale, never patched.
func (r *References) ManifestLines() []string {
	return append([]string(nil), r.resolvedLines...)
}
