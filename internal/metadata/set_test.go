package metadata

import (
	"reflect"
	"testing"

	"github.com/plugrec/plugrec/internal/host"
)

func TestParseFromPathsIndexing(t *testing.T) {
	db := host.NewMemDB()
	db.AddFile("Assets/Plugins/foo_v1.0.0.dll")
	db.AddFile("Assets/Plugins/foo_v1.1.0.dll")
	db.AddFile("Assets/Plugins/bar_v1.0.0.dll")

	set := ParseFromPaths(db, db.Paths())

	if set.Len() != 2 {
		t.Fatalf("Len = %d, want 2 canonical groups", set.Len())
	}
	group := set.FindByCanonical("Assets/Plugins/foo.dll")
	if group == nil || group.Len() != 2 {
		t.Fatalf("foo group = %v, want 2 versions", group)
	}
	if m := set.FindByPath("Assets/Plugins/foo_v1.1.0.dll"); m == nil || m.Version != "1.1.0" {
		t.Errorf("FindByPath = %v, want version 1.1.0", m)
	}
}

func TestFindByPathExportAlias(t *testing.T) {
	db := host.NewMemDB()
	db.AddFile("Assets/Custom/foo_v1.0.0.dll",
		"vhp_exportpath-Assets/Plugins/foo_v1.0.0.dll")

	set := ParseFromPaths(db, db.Paths())

	m := set.FindByPath("Assets/Plugins/foo_v1.0.0.dll")
	if m == nil {
		t.Fatal("export-path alias not indexed")
	}
	if m.Path != "Assets/Custom/foo_v1.0.0.dll" {
		t.Errorf("Path = %q, want physical location", m.Path)
	}
}

func TestFilterOutReadOnly(t *testing.T) {
	db := host.NewMemDB("Packages")
	db.AddFile("Assets/Plugins/foo_v1.0.0.dll")
	db.AddFile("Packages/vendor/bar_v1.0.0.dll")

	set := ParseFromPaths(db, db.Paths())
	filtered := FilterOutReadOnly(set)

	if filtered.FindByCanonical("Packages/vendor/bar.dll") != nil {
		t.Error("read-only file survived the filter")
	}
	m := filtered.FindByPath("Assets/Plugins/foo_v1.0.0.dll")
	if m == nil {
		t.Fatal("mutable file dropped by the filter")
	}
	if m != set.FindByPath("Assets/Plugins/foo_v1.0.0.dll") {
		t.Error("mutable entry changed by the filter")
	}
}

func TestFindWithPendingUpdates(t *testing.T) {
	db := host.NewMemDB()
	// Multiple versions: pending.
	db.AddFile("Assets/foo_v1.0.0.dll")
	db.AddFile("Assets/foo_v1.1.0.dll")
	// Single version with targets: pending.
	db.AddFile("Assets/bar_v1.0.0_tandroid.dll")
	// Manifest: pending.
	db.AddFile("Assets/pkg_v1.0.0_manifest.txt")
	// Single untargeted version: not pending.
	db.AddFile("Assets/quiet.dll")

	set := ParseFromPaths(db, db.Paths())
	pending := FindWithPendingUpdates(set)

	want := []string{"Assets/bar.dll", "Assets/foo.dll", "Assets/pkg.txt"}
	if got := pending.CanonicalPaths(); !reflect.DeepEqual(got, want) {
		t.Errorf("pending = %v, want %v", got, want)
	}
}

func TestConsolidateManifestsMergesRenamedPackage(t *testing.T) {
	db := host.NewMemDB()
	// The package was renamed: the new manifest lists the old name as a
	// lower-priority alias.
	db.AddFile("Assets/oldpkg_v1.0.0_manifest.txt", "vhp_manifestname-0OldName")
	db.AddFile("Assets/newpkg_v2.0.0_manifest.txt",
		"vhp_manifestname-0NewName,1OldName")

	set := ParseFromPaths(db, db.Paths())
	aliases := set.ConsolidateManifests()

	if aliases["OldName"] != "NewName" {
		t.Errorf("aliases[OldName] = %q, want NewName", aliases["OldName"])
	}
	if aliases["NewName"] != "NewName" {
		t.Errorf("aliases[NewName] = %q, want NewName", aliases["NewName"])
	}

	packages := set.ManifestGroups(aliases)
	pkg, ok := packages["NewName"]
	if !ok {
		t.Fatalf("packages = %v, want NewName entry", packages)
	}
	if pkg.Len() != 2 {
		t.Errorf("merged package has %d versions, want 2", pkg.Len())
	}
}

func TestConsolidateManifestsIdempotent(t *testing.T) {
	db := host.NewMemDB()
	db.AddFile("Assets/a_v1.0.0_manifest.txt", "vhp_manifestname-0AName,1BName")
	db.AddFile("Assets/b_v1.0.0_manifest.txt", "vhp_manifestname-0BName")

	set := ParseFromPaths(db, db.Paths())
	first := set.ConsolidateManifests()
	second := set.ConsolidateManifests()

	if !reflect.DeepEqual(first, second) {
		t.Errorf("consolidation not idempotent: %v vs %v", first, second)
	}
}

func TestConsolidateManifestsCycleUnresolved(t *testing.T) {
	db := host.NewMemDB()
	// Two packages each claim the other's name as an alias: A prefers B's
	// primary, B prefers A's primary.
	db.AddFile("Assets/a_v1.0.0_manifest.txt", "vhp_manifestname-0AName,1BName")
	db.AddFile("Assets/b_v1.0.0_manifest.txt", "vhp_manifestname-0BName,1AName")

	set := ParseFromPaths(db, db.Paths())
	aliases := set.ConsolidateManifests()

	// The traversal detects the cycle and leaves the names unresolved
	// rather than looping.
	if aliases["AName"] != "AName" && aliases["AName"] != "BName" {
		t.Errorf("aliases[AName] = %q, want a best-effort name", aliases["AName"])
	}
	if len(aliases) != 2 {
		t.Errorf("aliases = %v, want 2 entries", aliases)
	}
}

func TestEnableMostRecentPluginsAcrossSet(t *testing.T) {
	db := host.NewMemDB()
	db.AddFile("Assets/foo_v1.0.0_tandroid.dll")
	db.AddFile("Assets/foo_v1.1.0_tandroid.dll")
	db.AddFile("Assets/bar_v1.0.0_tios.dll")

	set := ParseFromPaths(db, db.Paths())
	modified := set.EnableMostRecentPlugins(db, testCaps(), ActivationOptions{})
	if !modified {
		t.Fatal("expected modifications")
	}

	flags, err := db.Flags("Assets/foo_v1.1.0_tandroid.dll")
	if err != nil {
		t.Fatal(err)
	}
	if !flags.Platform(host.PlatformAndroid) {
		t.Error("newest foo not enabled")
	}
	flags, err = db.Flags("Assets/bar_v1.0.0_tios.dll")
	if err != nil {
		t.Fatal(err)
	}
	if !flags.Platform(host.PlatformIOS) {
		t.Error("bar not enabled")
	}
}
