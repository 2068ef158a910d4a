package metadata

import (
	"sort"

	"github.com/plugrec/plugrec/internal/host"
	"github.com/plugrec/plugrec/internal/output"
)

// FileMetadataByVersion holds every known revision of one canonical file,
// keyed by version ordinal. Two revisions with the same ordinal collapse to
// one: last write wins.
type FileMetadataByVersion struct {
	// CanonicalPath is the group identity; every member's CanonicalPath
	// equals it.
	CanonicalPath string

	byOrdinal map[int64]*FileMetadata
}

// NewFileMetadataByVersion creates an empty version group.
func NewFileMetadataByVersion(canonicalPath string) *FileMetadataByVersion {
	return &FileMetadataByVersion{
		CanonicalPath: canonicalPath,
		byOrdinal:     make(map[int64]*FileMetadata),
	}
}

// Add inserts a revision, overwriting any existing revision with the same
// ordinal.
func (v *FileMetadataByVersion) Add(m *FileMetadata) {
	v.byOrdinal[m.Ordinal()] = m
}

// Len returns the number of distinct revisions.
func (v *FileMetadataByVersion) Len() int {
	return len(v.byOrdinal)
}

// Sorted returns the revisions in ascending ordinal order.
func (v *FileMetadataByVersion) Sorted() []*FileMetadata {
	ordinals := make([]int64, 0, len(v.byOrdinal))
	for ordinal := range v.byOrdinal {
		ordinals = append(ordinals, ordinal)
	}
	sort.Slice(ordinals, func(i, j int) bool { return ordinals[i] < ordinals[j] })
	sorted := make([]*FileMetadata, 0, len(ordinals))
	for _, ordinal := range ordinals {
		sorted = append(sorted, v.byOrdinal[ordinal])
	}
	return sorted
}

// MostRecent returns the revision with the highest ordinal, or nil for an
// empty group.
func (v *FileMetadataByVersion) MostRecent() *FileMetadata {
	sorted := v.Sorted()
	if len(sorted) == 0 {
		return nil
	}
	return sorted[len(sorted)-1]
}

// findByPath returns the revision currently at path, if any.
func (v *FileMetadataByVersion) findByPath(path string) *FileMetadata {
	for _, m := range v.byOrdinal {
		if m.Path == path {
			return m
		}
	}
	return nil
}

// remove drops a revision from the group.
func (v *FileMetadataByVersion) remove(m *FileMetadata) {
	delete(v.byOrdinal, m.Ordinal())
}

// ActivationOptions configures the activation pass.
type ActivationOptions struct {
	// RenameToCanonical moves the newest revision onto the canonical
	// (unversioned) path before applying enablement.
	RenameToCanonical bool
}

// EnableMostRecent walks the group's revisions oldest to newest and drives
// the host compatibility flags so that only the newest compatible revision is
// enabled:
//
//   - every non-newest revision is forced fully disabled, regardless of its
//     own declared targets;
//   - the newest revision with .NET targets is enabled only when the active
//     runtime is among them, defaulting to all known platforms except the
//     editor when it declares no explicit platform targets;
//   - the newest revision without .NET targets uses its declared targets
//     verbatim;
//   - revisions forced disabled by the cross-package pass are driven fully
//     disabled no matter what;
//   - revisions contributing no build-setting information at all are left
//     untouched.
//
// Only actual flag deltas are written; a set "any platform" wildcard counts
// as a delta and is cleared before any explicit flag write. A canonical
// rename failure aborts the pass for the whole group, reporting it
// unmodified.
func (v *FileMetadataByVersion) EnableMostRecent(db host.Database, caps host.Capabilities, opts ActivationOptions) (bool, error) {
	sorted := v.Sorted()
	if len(sorted) == 0 {
		return false, nil
	}

	if opts.RenameToCanonical {
		newest := sorted[len(sorted)-1]
		if newest.Path != v.CanonicalPath {
			// Free the canonical slot: the move deletes the file occupying
			// it, so its metadata must leave the group first or the version
			// walk would count it twice.
			if previous := v.findByPath(v.CanonicalPath); previous != nil && previous != newest {
				v.remove(previous)
			}
			if err := newest.Rename(db, v.CanonicalPath); err != nil {
				output.Warn("canonical rename failed, leaving group unmodified",
					"file", v.CanonicalPath, "error", err)
				return false, err
			}
			sorted = v.Sorted()
		}
	}

	modified := false
	for i, m := range sorted {
		isNewest := i == len(sorted)-1

		// No targets, no manifest flag, not forced: nothing to reconcile.
		if len(m.Targets) == 0 && len(m.DotNetTargets) == 0 && !m.IsManifest && !m.ForcedDisabled {
			continue
		}

		wantEditor := false
		wantPlatforms := map[host.Platform]bool{}
		switch {
		case m.ForcedDisabled || !isNewest:
			// Fully disabled.
		case len(m.DotNetTargets) > 0:
			if m.SupportsDotNet(caps.ActiveDotNet) {
				if len(m.Targets) == 0 {
					for _, p := range caps.EnabledPlatforms() {
						wantPlatforms[p] = true
					}
				} else {
					wantEditor = m.TargetsEditor()
					wantPlatforms = m.BuildTargetSet(caps)
				}
			}
			// Incompatible with the active runtime: fully disabled.
		default:
			wantEditor = m.TargetsEditor()
			wantPlatforms = m.BuildTargetSet(caps)
		}

		changed, err := applyFlags(db, m.Path, wantEditor, wantPlatforms)
		if err != nil {
			output.Warn("updating compatibility flags failed", "path", m.Path, "error", err)
			continue
		}
		modified = modified || changed
	}
	return modified, nil
}

// applyFlags diffs the wanted enablement against the host's current flags and
// writes only the deltas. The wanted state is always expressed with explicit
// flags, and a set "any platform" wildcard overrides them on the host, so the
// wildcard is itself a delta: it is cleared before any explicit flag write,
// even when every explicit flag already matches.
func applyFlags(db host.Database, path string, wantEditor bool, wantPlatforms map[host.Platform]bool) (bool, error) {
	current, err := db.Flags(path)
	if err != nil {
		return false, err
	}

	type delta func() error
	var deltas []delta
	if current.Editor != wantEditor {
		deltas = append(deltas, func() error { return db.SetEditor(path, wantEditor) })
	}
	for _, p := range host.AllPlatforms {
		p := p
		want := wantPlatforms[p]
		if current.Platform(p) != want {
			deltas = append(deltas, func() error { return db.SetPlatform(path, p, want) })
		}
	}
	if len(deltas) == 0 && !current.Any {
		return false, nil
	}

	if current.Any {
		if err := db.SetAny(path, false); err != nil {
			return false, err
		}
	}
	for _, apply := range deltas {
		if err := apply(); err != nil {
			return true, err
		}
	}
	return true, nil
}
