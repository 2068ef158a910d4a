package discover

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/plugrec/plugrec/internal/host"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverLocal(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Assets", "foo_v1.0.0.dll"))
	writeFile(t, filepath.Join(root, "Assets", "Plugins", "bar.so"))
	writeFile(t, filepath.Join(root, "Assets", ".hidden"))
	writeFile(t, filepath.Join(root, "Assets", ".git", "config"))
	writeFile(t, filepath.Join(root, "Temp", "scratch.txt"))

	got, err := DiscoverLocal(root, "Assets")
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		"Assets/Plugins/bar.so",
		"Assets/foo_v1.0.0.dll",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DiscoverLocal() = %v, want %v", got, want)
	}
}

func TestDiscoverLocalMissingAssetsDir(t *testing.T) {
	_, err := DiscoverLocal(t.TempDir(), "Assets")
	if err == nil {
		t.Error("expected error for missing assets directory")
	}
}

func TestDiscoverLocalAssetsPathIsFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Assets"))

	_, err := DiscoverLocal(root, "Assets")
	if err == nil {
		t.Error("expected error when assets path is a file")
	}
}

func TestCandidates(t *testing.T) {
	db := host.NewMemDB()
	db.AddFile("Assets/tokened_v1.0.0.dll")
	db.AddFile("Assets/tagged.dll", "vh", "vh_version-1.0.0")
	db.AddFile("Assets/plain.dll")

	paths := []string{
		"Assets/tokened_v1.0.0.dll",
		"Assets/tagged.dll",
		"Assets/plain.dll",
		"Assets/unknown.dll",
	}
	got := Candidates(db, paths)

	want := []string{"Assets/tokened_v1.0.0.dll", "Assets/tagged.dll"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Candidates() = %v, want %v", got, want)
	}
}
