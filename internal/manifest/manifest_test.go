package manifest

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/plugrec/plugrec/internal/host"
	"github.com/plugrec/plugrec/internal/metadata"
)

// testProject bundles a fake host database with manifest file contents.
type testProject struct {
	db       *host.MemDB
	contents map[string]string
}

func newTestProject() *testProject {
	return &testProject{
		db:       host.NewMemDB(),
		contents: make(map[string]string),
	}
}

func (p *testProject) addFile(path string, tags ...string) {
	p.db.AddFile(path, tags...)
}

func (p *testProject) addManifest(path, content string, tags ...string) {
	p.db.AddFile(path, tags...)
	p.contents[path] = content
}

func (p *testProject) read(path string) ([]byte, error) {
	content, ok := p.contents[path]
	if !ok {
		return nil, fmt.Errorf("no content for %s", path)
	}
	return []byte(content), nil
}

func (p *testProject) set() *metadata.FileMetadataSet {
	return metadata.ParseFromPaths(p.db, p.db.Paths())
}

func TestManifestCurrentVersusObsolete(t *testing.T) {
	p := newTestProject()
	p.addFile("Assets/a_v1.0.0.dll")
	p.addFile("Assets/b_v1.0.0.dll")
	p.addFile("Assets/c_v1.0.0.dll")
	// M1 lists {a, b}; the newer M2 lists {b, c}.
	p.addManifest("Assets/pkg_v1.0.0_manifest.txt",
		"Assets/a_v1.0.0.dll\nAssets/b_v1.0.0.dll\n")
	p.addManifest("Assets/pkg_v2.0.0_manifest.txt",
		"Assets/b_v1.0.0.dll\nAssets/c_v1.0.0.dll\n")

	refs := FindAndRead(p.set(), p.read)
	if len(refs) != 1 {
		t.Fatalf("packages = %d, want 1", len(refs))
	}
	pkg := refs[0]

	wantCurrent := []string{"Assets/b_v1.0.0.dll", "Assets/c_v1.0.0.dll"}
	if got := pkg.CurrentPaths(); !reflect.DeepEqual(got, wantCurrent) {
		t.Errorf("current = %v, want %v", got, wantCurrent)
	}
	// b is not obsolete despite appearing in M1: it is still current in M2.
	wantObsolete := []string{"Assets/a_v1.0.0.dll"}
	if got := pkg.ObsoletePaths(); !reflect.DeepEqual(got, wantObsolete) {
		t.Errorf("obsolete = %v, want %v", got, wantObsolete)
	}
}

func TestManifestMemberResolvedAfterRename(t *testing.T) {
	p := newTestProject()
	// The member was renamed onto its canonical path; its version now lives
	// only in tags.
	p.addFile("Assets/foo.dll", "vh", "vh_version-1.1.0")
	p.addManifest("Assets/pkg_v1.0.0_manifest.txt", "Assets/foo_v1.1.0.dll\n")

	refs := FindAndRead(p.set(), p.read)
	if len(refs) != 1 {
		t.Fatalf("packages = %d, want 1", len(refs))
	}

	want := []string{"Assets/foo.dll"}
	if got := refs[0].CurrentPaths(); !reflect.DeepEqual(got, want) {
		t.Errorf("current = %v, want %v (resolved by canonical name + version)", got, want)
	}
}

func TestManifestNonFinalVersionsOfCurrentMembersObsolete(t *testing.T) {
	p := newTestProject()
	p.addFile("Assets/foo_v1.0.0.dll")
	p.addFile("Assets/foo_v1.1.0.dll")
	p.addManifest("Assets/pkg_v1.0.0_manifest.txt", "Assets/foo_v1.0.0.dll\n")

	refs := FindAndRead(p.set(), p.read)
	pkg := refs[0]

	// The listed v1.0.0 resolves to the most recent v1.1.0 for the current
	// set; the older revision is obsolete on its own.
	if _, ok := pkg.Current["Assets/foo_v1.1.0.dll"]; !ok {
		t.Errorf("current = %v, want most-recent member", pkg.CurrentPaths())
	}
	if !pkg.Obsolete["Assets/foo_v1.0.0.dll"] {
		t.Errorf("obsolete = %v, want non-final version included", pkg.ObsoletePaths())
	}
}

func TestCrossPackageReconciliation(t *testing.T) {
	p := newTestProject()
	p.addFile("Assets/x_v1.0.0.dll")
	// P1's only manifest still lists x, so P1 counts it current.
	p.addManifest("Assets/p1_v1.0.0_manifest.txt", "Assets/x_v1.0.0.dll\n")
	// P2 once listed x but its newest revision dropped it: x is globally
	// obsolete.
	p.addManifest("Assets/p2_v1.0.0_manifest.txt", "Assets/x_v1.0.0.dll\n")
	p.addManifest("Assets/p2_v2.0.0_manifest.txt", "\n")

	refs := FindAndRead(p.set(), p.read)

	var p1 *References
	for _, r := range refs {
		if r.Name == "p1" {
			p1 = r
		}
	}
	if p1 == nil {
		t.Fatalf("p1 not found in %v", refs)
	}
	if _, ok := p1.Current["Assets/x_v1.0.0.dll"]; ok {
		t.Error("x must move out of p1's current set after global-union subtraction")
	}
	if !p1.Obsolete["Assets/x_v1.0.0.dll"] {
		t.Errorf("x must end up in p1's obsolete set, got %v", p1.ObsoletePaths())
	}
}

func TestCrossPackageCanEmptyEveryCurrentSet(t *testing.T) {
	// Regression pin for the pathological case: when every reference to a
	// file is stale somewhere, the global-union subtraction removes it from
	// every package's current set simultaneously, even though it is still
	// the most recent version on disk.
	p := newTestProject()
	p.addFile("Assets/shared_v1.0.0.dll")
	p.addManifest("Assets/p1_v1.0.0_manifest.txt", "Assets/shared_v1.0.0.dll\n")
	p.addManifest("Assets/p1_v2.0.0_manifest.txt", "\n")
	p.addManifest("Assets/p2_v1.0.0_manifest.txt", "Assets/shared_v1.0.0.dll\n")

	refs := FindAndRead(p.set(), p.read)
	for _, r := range refs {
		if _, ok := r.Current["Assets/shared_v1.0.0.dll"]; ok {
			t.Errorf("package %s still counts the globally obsolete file current", r.Name)
		}
	}
}

func TestFindObsoletePartition(t *testing.T) {
	p := newTestProject()
	p.addFile("Assets/foo_v1.0.0_tandroid.dll")
	p.addFile("Assets/foo_v1.1.0_tandroid.dll")
	p.addFile("Assets/kept_v1.0.0.dll")
	// A package whose current set still names the old foo revision.
	p.addManifest("Assets/pkg_v1.0.0_manifest.txt", "Assets/kept_v1.0.0.dll\n")

	set := p.set()
	refs := FindAndRead(set, p.read)
	obsolete := FindObsolete(refs, set, func(path string) bool {
		_, ok := p.db.Exists(path)
		return ok
	})

	want := []string{"Assets/foo_v1.0.0_tandroid.dll"}
	if got := obsolete.UnreferencedPaths(); !reflect.DeepEqual(got, want) {
		t.Errorf("unreferenced = %v, want %v", got, want)
	}
	if len(obsolete.ReferencedPaths()) != 0 {
		t.Errorf("referenced = %v, want none", obsolete.ReferencedPaths())
	}
}

func TestFindObsoleteReferencedNeedsConfirmation(t *testing.T) {
	p := newTestProject()
	p.addFile("Assets/lib_v1.0.0.dll")
	p.addFile("Assets/lib_v1.1.0.dll")
	// pkg's newest manifest still lists the old revision literally, so the
	// old revision is both obsolete (non-newest) and referenced.
	p.addManifest("Assets/pkg_v1.0.0_manifest.txt", "Assets/lib_v1.0.0.dll\nAssets/lib_v1.1.0.dll\n")

	set := p.set()
	refs := FindAndRead(set, p.read)

	// Force the old revision into a current set to model a stale manifest
	// that was never rewritten.
	refs[0].Current["Assets/lib_v1.0.0.dll"] = set.FindByPath("Assets/lib_v1.0.0.dll")

	obsolete := FindObsolete(refs, set, func(path string) bool {
		_, ok := p.db.Exists(path)
		return ok
	})

	referencers, ok := obsolete.Referenced["Assets/lib_v1.0.0.dll"]
	if !ok {
		t.Fatalf("expected lib_v1.0.0 referenced, got %v", obsolete.ReferencedPaths())
	}
	if !reflect.DeepEqual(referencers, []string{"pkg"}) {
		t.Errorf("referencers = %v, want [pkg]", referencers)
	}
}

func TestFindObsoleteDropsMissingFiles(t *testing.T) {
	p := newTestProject()
	p.addFile("Assets/foo_v1.0.0.dll")
	p.addFile("Assets/foo_v1.1.0.dll")

	set := p.set()
	if err := p.db.Delete("Assets/foo_v1.0.0.dll"); err != nil {
		t.Fatal(err)
	}

	obsolete := FindObsolete(nil, set, func(path string) bool {
		_, ok := p.db.Exists(path)
		return ok
	})
	if !obsolete.Empty() {
		t.Errorf("expected empty sets for vanished files, got %v / %v",
			obsolete.UnreferencedPaths(), obsolete.ReferencedPaths())
	}
}

func TestObsoleteExcludingManifests(t *testing.T) {
	p := newTestProject()
	p.addManifest("Assets/pkg_v1.0.0_manifest.txt", "\n")
	p.addManifest("Assets/pkg_v2.0.0_manifest.txt", "\n")
	p.addFile("Assets/lib_v1.0.0.dll")
	p.addFile("Assets/lib_v1.1.0.dll")

	set := p.set()
	refs := FindAndRead(set, p.read)
	obsolete := FindObsolete(refs, set, func(path string) bool {
		_, ok := p.db.Exists(path)
		return ok
	})

	all := obsolete.UnreferencedPaths()
	want := []string{"Assets/lib_v1.0.0.dll", "Assets/pkg_v1.0.0_manifest.txt"}
	if !reflect.DeepEqual(all, want) {
		t.Fatalf("unreferenced = %v, want %v", all, want)
	}

	nonManifests := obsolete.UnreferencedExcludingManifests()
	if !reflect.DeepEqual(nonManifests, []string{"Assets/lib_v1.0.0.dll"}) {
		t.Errorf("excluding manifests = %v, want lib only", nonManifests)
	}
}

func TestCacheInvalidation(t *testing.T) {
	cache := NewCache()
	refs := []*References{{Name: "pkg"}}

	cache.Put(ScopeAll, refs)
	got, ok := cache.Get(ScopeAll)
	if !ok || len(got) != 1 {
		t.Fatal("cache miss after put")
	}
	if _, ok := cache.Get(ScopeAssets); ok {
		t.Error("unexpected hit for different scope")
	}

	cache.Invalidate()
	if _, ok := cache.Get(ScopeAll); ok {
		t.Error("cache hit after invalidation")
	}
}
