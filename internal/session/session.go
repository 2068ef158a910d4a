// Package session wires the reconciliation engine together for one project:
// discovery, metadata parsing, activation, manifest resolution, and obsolete
// file cleanup. A session owns the caches, sentinel flags, settings store,
// and task scheduler; all engine work runs on the session's designated
// goroutine via the scheduler.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/plugrec/plugrec/internal/archive"
	"github.com/plugrec/plugrec/internal/confirm"
	"github.com/plugrec/plugrec/internal/discover"
	"github.com/plugrec/plugrec/internal/host"
	"github.com/plugrec/plugrec/internal/manifest"
	"github.com/plugrec/plugrec/internal/metadata"
	"github.com/plugrec/plugrec/internal/output"
	"github.com/plugrec/plugrec/internal/scheduler"
	"github.com/plugrec/plugrec/internal/sentinel"
	"github.com/plugrec/plugrec/internal/settings"
	"github.com/plugrec/plugrec/internal/types"
)

// Session is one project's reconciliation context.
type Session struct {
	cfg       *types.Config
	db        host.Database
	caps      host.Capabilities
	settings  *settings.Store
	sentinels *sentinel.Store
	sched     *scheduler.Scheduler
	cache     *manifest.Cache
	confirmer confirm.Confirmer
	archiver  *archive.Archiver

	list  func() ([]string, error)
	read  manifest.ContentReader
	write func(path string, data []byte) error
}

// Option customizes a session, mainly for tests and batch runs.
type Option func(*Session)

// WithConfirmer replaces the deletion confirmer.
func WithConfirmer(c confirm.Confirmer) Option {
	return func(s *Session) { s.confirmer = c }
}

// WithArchiver replaces the archiver.
func WithArchiver(a *archive.Archiver) Option {
	return func(s *Session) { s.archiver = a }
}

// WithLister replaces filesystem discovery with a fixed path source.
func WithLister(list func() ([]string, error)) Option {
	return func(s *Session) { s.list = list }
}

// WithContentReader replaces the manifest content reader.
func WithContentReader(read manifest.ContentReader) Option {
	return func(s *Session) { s.read = read }
}

// WithContentWriter replaces the manifest content writer.
func WithContentWriter(write func(path string, data []byte) error) Option {
	return func(s *Session) { s.write = write }
}

// New builds a session for the configured project. The scratch directory is
// created if needed; settings and sentinel flags persist there.
func New(cfg *types.Config, db host.Database, opts ...Option) (*Session, error) {
	scratch := filepath.Join(cfg.Project.Root, cfg.Project.ScratchDir)

	sentinels, err := sentinel.NewStore(scratch)
	if err != nil {
		return nil, fmt.Errorf("opening sentinel store: %w", err)
	}
	store, err := settings.Open(filepath.Join(scratch, "settings.yaml"))
	if err != nil {
		return nil, fmt.Errorf("opening settings: %w", err)
	}

	mode := scheduler.Immediate
	if cfg.Scheduler.Mode == "tick" {
		mode = scheduler.Ticking
	}

	caps := host.Capabilities{
		CompatibilityAPI: cfg.Host.CompatibilityAPI == nil || *cfg.Host.CompatibilityAPI,
		ActiveDotNet:     cfg.Host.DotNetVersion,
	}
	for _, name := range cfg.Host.PlatformBlacklist {
		if p, ok := host.PlatformFromName(name); ok {
			caps.Blacklist = append(caps.Blacklist, p)
		} else {
			output.Warn("unknown platform in blacklist", "platform", name)
		}
	}

	s := &Session{
		cfg:       cfg,
		db:        db,
		caps:      caps,
		settings:  store,
		sentinels: sentinels,
		sched:     scheduler.New(mode),
		cache:     manifest.NewCache(),
		confirmer: confirm.Auto{},
	}
	s.list = func() ([]string, error) {
		return discover.DiscoverLocal(cfg.Project.Root, cfg.Project.AssetsDir)
	}
	s.read = func(path string) ([]byte, error) {
		return os.ReadFile(filepath.Join(cfg.Project.Root, filepath.FromSlash(path)))
	}
	s.write = func(path string, data []byte) error {
		return os.WriteFile(filepath.Join(cfg.Project.Root, filepath.FromSlash(path)), data, 0o644)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Settings exposes the persistent preference store.
func (s *Session) Settings() *settings.Store {
	return s.settings
}

// Scheduler exposes the session's task queue, e.g. for a tick-mode run loop.
func (s *Session) Scheduler() *scheduler.Scheduler {
	return s.sched
}

// InvalidateCaches drops every memoized scan. Must be called after any
// import, move, or delete the session did not perform itself.
func (s *Session) InvalidateCaches() {
	s.cache.Invalidate()
}

// Scan discovers tracked assets and parses their metadata.
func (s *Session) Scan() (*metadata.FileMetadataSet, error) {
	paths, err := s.list()
	if err != nil {
		return nil, fmt.Errorf("discovering assets: %w", err)
	}
	candidates := discover.Candidates(s.db, paths)
	return metadata.ParseFromPaths(s.db, candidates), nil
}

// references returns the package reference sets, memoized until the next
// invalidation.
func (s *Session) references(set *metadata.FileMetadataSet) []*manifest.References {
	if refs, ok := s.cache.Get(manifest.ScopeAll); ok {
		return refs
	}
	refs := manifest.FindAndRead(set, s.read)
	s.cache.Put(manifest.ScopeAll, refs)
	return refs
}

func (s *Session) exists(path string) bool {
	_, ok := s.db.Exists(path)
	return ok
}

// Report is a read-only snapshot of the project's reconciliation state.
type Report struct {
	Packages []types.PackageStatus
	Groups   []types.GroupStatus
	Obsolete *manifest.ObsoleteFiles
}

// Status computes the report without mutating anything.
func (s *Session) Status() (*Report, error) {
	set, err := s.Scan()
	if err != nil {
		return nil, err
	}
	refs := s.references(set)
	obsolete := manifest.FindObsolete(refs, set, s.exists)
	return &Report{
		Packages: packageStatuses(refs),
		Groups:   groupStatuses(set),
		Obsolete: obsolete,
	}, nil
}

// ReconcileOptions configures one reconciliation pass.
type ReconcileOptions struct {
	// DryRun computes the full report but writes nothing.
	DryRun bool

	// DeleteObsolete removes obsolete files (after confirmation where
	// required). When false the pass only activates versions.
	DeleteObsolete bool
}

// ReconcileResult summarizes what a pass did.
type ReconcileResult struct {
	Report *Report

	// ActivationChanged reports whether any compatibility flag or rename was
	// written.
	ActivationChanged bool

	// Deleted lists the files removed.
	Deleted []string

	// Archived counts the files uploaded before deletion.
	Archived int

	// Kept lists obsolete files left in place (unapproved or referenced).
	Kept []string
}

// Reconcile runs a full pass: activate the newest version of every plugin,
// resolve package membership, and optionally clean up obsolete files.
// The pass is enqueued on the session scheduler so tick-mode hosts execute it
// on their drain cadence.
func (s *Session) Reconcile(ctx context.Context, opts ReconcileOptions) (*ReconcileResult, error) {
	var result *ReconcileResult
	var runErr error

	s.sched.Schedule(func() {
		result, runErr = s.reconcile(ctx, opts)
	}, 0)
	s.sched.Drain(true)

	if runErr != nil {
		return nil, runErr
	}
	if result == nil {
		return nil, fmt.Errorf("reconciliation did not run")
	}
	return result, nil
}

func (s *Session) reconcile(ctx context.Context, opts ReconcileOptions) (*ReconcileResult, error) {
	prefs := s.settings.Get()
	if !prefs.Enabled {
		output.Info("reconciler disabled in settings, skipping")
		return &ReconcileResult{Report: &Report{}}, nil
	}

	if err := s.sentinels.Set(sentinel.Refreshing); err != nil {
		output.Warn("setting refresh sentinel failed", "error", err)
	}
	defer func() {
		if err := s.sentinels.Clear(sentinel.Refreshing); err != nil {
			output.Warn("clearing refresh sentinel failed", "error", err)
		}
	}()

	set, err := s.Scan()
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{}

	canActivate := s.caps.CompatibilityAPI
	if !canActivate && !s.sentinels.IsSet(sentinel.CompatWarned) {
		output.Warn("host compatibility API unavailable, running in report-only mode")
		if err := s.sentinels.Set(sentinel.CompatWarned); err != nil {
			output.Warn("setting compat sentinel failed", "error", err)
		}
	}

	if canActivate && !opts.DryRun {
		writable := metadata.FilterOutReadOnly(set)
		pending := metadata.FindWithPendingUpdates(writable)
		result.ActivationChanged = pending.EnableMostRecentPlugins(s.db, s.caps, metadata.ActivationOptions{
			RenameToCanonical: prefs.RenameToCanonical,
		})
		if result.ActivationChanged {
			// Renames moved files out from under the scan.
			s.cache.Invalidate()
			set, err = s.Scan()
			if err != nil {
				return nil, err
			}
		}
	}

	refs := s.references(set)
	if canActivate && !opts.DryRun && s.rewriteManifests(refs) {
		// The rewritten files invalidate any cached scan; refs themselves
		// already reflect the resolved membership.
		s.cache.Invalidate()
	}
	obsolete := manifest.FindObsolete(refs, set, s.exists)
	if canActivate && !opts.DryRun && s.disableUnreferenced(set, obsolete) {
		result.ActivationChanged = true
	}
	result.Report = &Report{
		Packages: packageStatuses(refs),
		Groups:   groupStatuses(set),
		Obsolete: obsolete,
	}

	if !opts.DeleteObsolete || opts.DryRun {
		s.updateCleanupSentinel(obsolete)
		return result, nil
	}

	deleted, archived, kept, err := s.cleanup(ctx, obsolete, prefs)
	if err != nil {
		return nil, err
	}
	result.Deleted = deleted
	result.Archived = archived
	result.Kept = kept
	if len(deleted) > 0 {
		s.cache.Invalidate()
	}

	remaining := manifest.FindObsolete(refs, set, s.exists)
	s.updateCleanupSentinel(remaining)
	return result, nil
}

// cleanup deletes approved obsolete files, archiving them first when
// configured. Referenced files always require confirmation; unreferenced
// files are confirmed only when the prompt preference is on.
func (s *Session) cleanup(ctx context.Context, obsolete *manifest.ObsoleteFiles, prefs settings.Values) (deleted []string, archived int, kept []string, err error) {
	unreferenced := obsolete.UnreferencedPaths()
	referenced := obsolete.ReferencedPaths()

	approved := unreferenced
	if prefs.PromptBeforeDelete {
		approved, err = s.confirmer.Confirm("Delete obsolete files?", unreferenced)
		if err != nil {
			return nil, 0, nil, fmt.Errorf("confirming deletion: %w", err)
		}
	}
	approvedReferenced, err := s.confirmer.Confirm(
		"These files are still referenced by package manifests. Delete anyway?", referenced)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("confirming referenced deletion: %w", err)
	}
	toDelete := append(append([]string(nil), approved...), approvedReferenced...)

	if prefs.ArchiveBeforeDelete && s.archiver != nil && s.archiver.Enabled() {
		plan, err := s.archiver.Plan(ctx, toDelete)
		if err != nil {
			return nil, 0, nil, fmt.Errorf("planning archive: %w", err)
		}
		res, err := s.archiver.Archive(ctx, plan)
		if err != nil {
			// Deleting unarchived files would lose the only copy.
			return nil, 0, nil, fmt.Errorf("archiving before delete: %w", err)
		}
		archived = res.Archived
	}

	approvedSet := make(map[string]bool, len(toDelete))
	for _, path := range toDelete {
		approvedSet[path] = true
	}
	for _, path := range append(append([]string(nil), unreferenced...), referenced...) {
		if !approvedSet[path] {
			kept = append(kept, path)
		}
	}

	for _, path := range toDelete {
		if err := s.db.Delete(path); err != nil {
			output.Warn("deleting obsolete file failed", "path", path, "error", err)
			kept = append(kept, path)
			continue
		}
		output.Info("deleted obsolete file", "path", path)
		deleted = append(deleted, path)
	}
	return deleted, archived, kept, nil
}

// disableUnreferenced marks files no current manifest references for forced
// disablement and re-runs the flag pass on their groups. An obsolete file
// that survives cleanup, whether unapproved or from a pass that does not
// delete, must not stay active just because it is the newest revision of its
// own group.
func (s *Session) disableUnreferenced(set *metadata.FileMetadataSet, obsolete *manifest.ObsoleteFiles) bool {
	writable := metadata.FilterOutReadOnly(set)
	groups := make(map[string]*metadata.FileMetadataByVersion)
	for _, path := range obsolete.UnreferencedPaths() {
		m := writable.FindByPath(path)
		if m == nil {
			continue
		}
		m.ForcedDisabled = true
		if group := writable.FindByCanonical(m.CanonicalPath); group != nil {
			groups[m.CanonicalPath] = group
		}
	}
	changed := false
	for _, group := range groups {
		modified, err := group.EnableMostRecent(s.db, s.caps, metadata.ActivationOptions{})
		if err != nil {
			output.Warn("forced-disable pass failed for file group",
				"file", group.CanonicalPath, "error", err)
			continue
		}
		changed = changed || modified
	}
	return changed
}

// rewriteManifests rewrites each package's newest manifest revision when
// member resolution mapped a line to a renamed file. The whole file is
// replaced, never patched.
func (s *Session) rewriteManifests(refs []*manifest.References) bool {
	changed := false
	for _, r := range refs {
		if r.Metadata == nil || r.Metadata.ReadOnly {
			continue
		}
		data, err := s.read(r.Metadata.Path)
		if err != nil {
			output.Warn("reading manifest for rewrite failed", "path", r.Metadata.Path, "error", err)
			continue
		}
		oldLines := splitManifestLines(string(data))
		newLines := r.ManifestLines()
		if slices.Equal(oldLines, newLines) {
			continue
		}
		// An empty resolution against a non-empty file means the members
		// could not be read; do not erase them.
		if len(newLines) == 0 && len(oldLines) > 0 {
			continue
		}
		if diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        oldLines,
			B:        newLines,
			FromFile: "old members",
			ToFile:   "new members",
			Context:  1,
		}); err == nil {
			output.Debug("rewriting manifest", "path", r.Metadata.Path, "diff", strings.TrimSpace(diff))
		}
		content := strings.Join(newLines, "\n") + "\n"
		if err := s.write(r.Metadata.Path, []byte(content)); err != nil {
			output.Warn("rewriting manifest failed", "path", r.Metadata.Path, "error", err)
			continue
		}
		output.Info("rewrote manifest", "package", r.Name, "path", r.Metadata.Path)
		changed = true
	}
	return changed
}

func splitManifestLines(content string) []string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func (s *Session) updateCleanupSentinel(obsolete *manifest.ObsoleteFiles) {
	var err error
	if obsolete.Empty() {
		err = s.sentinels.Clear(sentinel.CleanupPending)
	} else {
		err = s.sentinels.Set(sentinel.CleanupPending)
	}
	if err != nil {
		output.Warn("updating cleanup sentinel failed", "error", err)
	}
}

// Run drains the scheduler on its configured tick interval until ctx is
// canceled. Only useful for tick-mode sessions embedded in a host loop.
func (s *Session) Run(ctx context.Context) {
	interval := time.Duration(s.cfg.Scheduler.TickIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	s.sched.Run(ctx, interval)
}

func packageStatuses(refs []*manifest.References) []types.PackageStatus {
	statuses := make([]types.PackageStatus, 0, len(refs))
	for _, r := range refs {
		status := types.PackageStatus{
			Name:          r.Name,
			CurrentCount:  len(r.Current),
			ObsoleteCount: len(r.Obsolete),
		}
		if r.Metadata != nil {
			status.Version = r.Metadata.Version
		}
		for _, alias := range r.Aliases {
			if alias != r.Name {
				status.Aliases = append(status.Aliases, alias)
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

func groupStatuses(set *metadata.FileMetadataSet) []types.GroupStatus {
	groups := set.Groups()
	statuses := make([]types.GroupStatus, 0, len(groups))
	for _, group := range groups {
		status := types.GroupStatus{CanonicalPath: group.CanonicalPath}
		for _, m := range group.Sorted() {
			status.Versions = append(status.Versions, m.Version)
		}
		if newest := group.MostRecent(); newest != nil {
			status.ActivePath = newest.Path
			status.ActiveVersion = newest.Version
		}
		statuses = append(statuses, status)
	}
	return statuses
}
