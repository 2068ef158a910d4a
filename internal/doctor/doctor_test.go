package doctor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/plugrec/plugrec/internal/types"
)

func baseConfig(root string) *types.Config {
	return &types.Config{
		Project: types.ProjectConfig{
			Root:       root,
			AssetsDir:  "Assets",
			ScratchDir: "Temp/plugrec",
			IndexFile:  "plugrec-index.yaml",
		},
		Host: types.HostConfig{DotNetVersion: "4.5"},
	}
}

func TestRunChecks(t *testing.T) {
	tests := []struct {
		name       string
		setupFunc  func(t *testing.T) (cfg *types.Config, configPath string)
		wantPassed bool
	}{
		{
			name: "valid config with project layout",
			setupFunc: func(t *testing.T) (*types.Config, string) {
				root := t.TempDir()
				if err := os.MkdirAll(filepath.Join(root, "Assets"), 0o755); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(filepath.Join(root, "Assets", "foo_v1.0.0.dll"), []byte("x"), 0o644); err != nil {
					t.Fatal(err)
				}
				return baseConfig(root), filepath.Join(root, "config.yaml")
			},
			wantPassed: true,
		},
		{
			name: "missing project root",
			setupFunc: func(t *testing.T) (*types.Config, string) {
				root := filepath.Join(t.TempDir(), "nonexistent")
				return baseConfig(root), "config.yaml"
			},
			wantPassed: false,
		},
		{
			name: "project root is a file not a directory",
			setupFunc: func(t *testing.T) (*types.Config, string) {
				tmp := t.TempDir()
				root := filepath.Join(tmp, "project")
				if err := os.WriteFile(root, []byte("not a directory"), 0o644); err != nil {
					t.Fatal(err)
				}
				return baseConfig(root), "config.yaml"
			},
			wantPassed: false,
		},
		{
			name: "missing assets directory",
			setupFunc: func(t *testing.T) (*types.Config, string) {
				return baseConfig(t.TempDir()), "config.yaml"
			},
			wantPassed: false,
		},
		{
			name: "invalid dotnet version",
			setupFunc: func(t *testing.T) (*types.Config, string) {
				root := t.TempDir()
				if err := os.MkdirAll(filepath.Join(root, "Assets"), 0o755); err != nil {
					t.Fatal(err)
				}
				cfg := baseConfig(root)
				cfg.Host.DotNetVersion = "5.0"
				return cfg, "config.yaml"
			},
			wantPassed: false,
		},
		{
			name: "archive bucket without region",
			setupFunc: func(t *testing.T) (*types.Config, string) {
				root := t.TempDir()
				if err := os.MkdirAll(filepath.Join(root, "Assets"), 0o755); err != nil {
					t.Fatal(err)
				}
				cfg := baseConfig(root)
				cfg.Archive.Bucket = "backups"
				return cfg, "config.yaml"
			},
			wantPassed: false,
		},
		{
			name: "archive fully configured",
			setupFunc: func(t *testing.T) (*types.Config, string) {
				root := t.TempDir()
				if err := os.MkdirAll(filepath.Join(root, "Assets"), 0o755); err != nil {
					t.Fatal(err)
				}
				cfg := baseConfig(root)
				cfg.Archive.Bucket = "backups"
				cfg.Archive.Region = "us-west-2"
				cfg.Archive.Prefix = "plugrec/"
				return cfg, "config.yaml"
			},
			wantPassed: true,
		},
		{
			name: "corrupt asset index",
			setupFunc: func(t *testing.T) (*types.Config, string) {
				root := t.TempDir()
				if err := os.MkdirAll(filepath.Join(root, "Assets"), 0o755); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(filepath.Join(root, "plugrec-index.yaml"), []byte("assets: [broken"), 0o644); err != nil {
					t.Fatal(err)
				}
				return baseConfig(root), "config.yaml"
			},
			wantPassed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, configPath := tt.setupFunc(t)

			got := RunChecks(cfg, configPath)

			if got != tt.wantPassed {
				t.Errorf("RunChecks() = %v, want %v", got, tt.wantPassed)
			}
		})
	}
}
