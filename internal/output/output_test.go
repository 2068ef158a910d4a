package output

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/plugrec/plugrec/internal/types"
)

func TestPrintPackages(t *testing.T) {
	tests := []struct {
		name        string
		packages    []types.PackageStatus
		contains    []string
		notContains []string
	}{
		{
			name: "multiple packages",
			packages: []types.PackageStatus{
				{Name: "Analytics", Version: "1.2.3", CurrentCount: 4, ObsoleteCount: 1},
				{Name: "Auth", Version: "2.0.0", Aliases: []string{"PlayAuth"}, CurrentCount: 2},
			},
			contains: []string{
				"Packages",
				"PACKAGE",
				"VERSION",
				"Analytics",
				"1.2.3",
				"Auth",
				"PlayAuth",
			},
		},
		{
			name:     "empty list",
			packages: nil,
			contains: []string{
				"No packages found.",
			},
			notContains: []string{
				"PACKAGE",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := captureStdout(func() {
				PrintPackages(tt.packages)
			})

			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("output missing expected string %q\nGot:\n%s", want, got)
				}
			}
			for _, unwanted := range tt.notContains {
				if strings.Contains(got, unwanted) {
					t.Errorf("output contains unwanted string %q\nGot:\n%s", unwanted, got)
				}
			}
		})
	}
}

func TestPrintGroups(t *testing.T) {
	groups := []types.GroupStatus{
		{
			CanonicalPath: "Assets/foo.dll",
			Versions:      []string{"1.0.0", "1.1.0"},
			ActivePath:    "Assets/foo.dll",
			ActiveVersion: "1.1.0",
		},
		{
			CanonicalPath: "Assets/bar.dll",
			Versions:      []string{"2.0.0"},
		},
	}

	got := captureStdout(func() {
		PrintGroups(groups)
	})

	for _, want := range []string{"Versioned Assets", "Assets/foo.dll", "1.0.0, 1.1.0", "1.1.0", "Assets/bar.dll", "-"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q\nGot:\n%s", want, got)
		}
	}
}

func TestPrintObsolete(t *testing.T) {
	got := captureStdout(func() {
		PrintObsolete(
			[]string{"Assets/old_v1.0.0.dll"},
			map[string][]string{"Assets/held_v1.0.0.dll": {"pkg-a", "pkg-b"}},
		)
	})

	for _, want := range []string{
		"Obsolete Files",
		"Assets/old_v1.0.0.dll",
		"unreferenced",
		"Assets/held_v1.0.0.dll",
		"needs confirmation",
		"pkg-a, pkg-b",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q\nGot:\n%s", want, got)
		}
	}
}

func TestPrintObsoleteEmpty(t *testing.T) {
	got := captureStdout(func() {
		PrintObsolete(nil, nil)
	})
	if !strings.Contains(got, "No obsolete files.") {
		t.Errorf("output = %q, want empty message", got)
	}
}

func TestSortPathsIgnoresCase(t *testing.T) {
	paths := []string{"Assets/zeta.dll", "Assets/Alpha.dll", "Assets/beta.dll"}
	SortPaths(paths)

	want := []string{"Assets/Alpha.dll", "Assets/beta.dll", "Assets/zeta.dll"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("sorted = %v, want %v", paths, want)
	}
}

func TestPrintJSON(t *testing.T) {
	cfg := &types.Config{
		Project: types.ProjectConfig{Root: "/projects/game"},
		Archive: types.ArchiveConfig{Bucket: "backups", Prefix: "plugrec/"},
	}
	packages := []types.PackageStatus{
		{Name: "Analytics", Version: "1.2.3", CurrentCount: 4, ObsoleteCount: 1},
	}
	obsolete := ObsoleteInfo{
		Unreferenced: []string{"Assets/old_v1.0.0.dll"},
		Referenced:   map[string][]string{"Assets/held.dll": {"pkg"}},
	}

	got := captureStdout(func() {
		if err := PrintJSON(packages, nil, obsolete, cfg); err != nil {
			t.Fatalf("PrintJSON failed: %v", err)
		}
	})

	var result JSONOutput
	if err := json.Unmarshal([]byte(got), &result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if result.Config.ProjectRoot != "/projects/game" {
		t.Errorf("config.projectRoot = %q", result.Config.ProjectRoot)
	}
	if result.Config.ArchiveBucket != "backups" {
		t.Errorf("config.archiveBucket = %q", result.Config.ArchiveBucket)
	}
	if len(result.Packages) != 1 || result.Packages[0].Name != "Analytics" {
		t.Errorf("packages = %+v", result.Packages)
	}
	if result.Groups == nil {
		t.Error("groups should be empty array, not null")
	}
	if !reflect.DeepEqual(result.Obsolete.Referenced["Assets/held.dll"], []string{"pkg"}) {
		t.Errorf("obsolete = %+v", result.Obsolete)
	}

	if _, err := time.Parse(time.RFC3339, result.GeneratedAt); err != nil {
		t.Errorf("generatedAt is not valid RFC3339: %v (got %q)", err, result.GeneratedAt)
	}
	if !strings.HasSuffix(result.GeneratedAt, "Z") {
		t.Errorf("generatedAt should be UTC, got %q", result.GeneratedAt)
	}
}

func TestPrintJSONEmptyCollections(t *testing.T) {
	cfg := &types.Config{Project: types.ProjectConfig{Root: "/p"}}

	got := captureStdout(func() {
		if err := PrintJSON(nil, nil, ObsoleteInfo{}, cfg); err != nil {
			t.Fatalf("PrintJSON failed: %v", err)
		}
	})

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(got), &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if raw["packages"] == nil {
		t.Error("packages should be empty array, not null")
	}
	obsolete := raw["obsolete"].(map[string]interface{})
	if obsolete["unreferenced"] == nil {
		t.Error("obsolete.unreferenced should be empty array, not null")
	}
	config := raw["config"].(map[string]interface{})
	if _, exists := config["archiveBucket"]; exists {
		t.Error("archiveBucket should be omitted when empty")
	}
}

// captureStdout captures os.Stdout output from the given function.
func captureStdout(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	f()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}
