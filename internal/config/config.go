// Package config loads and validates the plugrec configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/plugrec/plugrec/internal/types"
	"gopkg.in/yaml.v3"
)

const (
	defaultAssetsDir     = "Assets"
	defaultScratchDir    = "Temp/plugrec"
	defaultIndexFile     = "plugrec-index.yaml"
	defaultArchivePrefix = "plugrec/"
	defaultTickMS        = 500
	defaultDotNet        = "4.5"
)

// Load reads and validates configuration from the specified path.
// Tilde (~) in paths is expanded to the user's home directory.
func Load(path string) (*types.Config, error) {
	expandedPath, err := expandTilde(path)
	if err != nil {
		return nil, fmt.Errorf("expanding config path: %w", err)
	}

	data, err := os.ReadFile(expandedPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", expandedPath, err)
	}

	var cfg types.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := applyDefaults(&cfg); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional config fields.
func applyDefaults(cfg *types.Config) error {
	expandedRoot, err := expandTilde(cfg.Project.Root)
	if err != nil {
		return fmt.Errorf("expanding project root: %w", err)
	}
	cfg.Project.Root = expandedRoot

	if cfg.Project.AssetsDir == "" {
		cfg.Project.AssetsDir = defaultAssetsDir
	}
	if cfg.Project.ScratchDir == "" {
		cfg.Project.ScratchDir = defaultScratchDir
	}
	if cfg.Project.IndexFile == "" {
		cfg.Project.IndexFile = defaultIndexFile
	}

	if cfg.Host.DotNetVersion == "" {
		cfg.Host.DotNetVersion = defaultDotNet
	}
	if cfg.Host.CompatibilityAPI == nil {
		enabled := true
		cfg.Host.CompatibilityAPI = &enabled
	}

	if cfg.Scheduler.Mode == "" {
		cfg.Scheduler.Mode = "immediate"
	}
	if cfg.Scheduler.TickIntervalMS == 0 {
		cfg.Scheduler.TickIntervalMS = defaultTickMS
	}

	if cfg.Archive.Prefix == "" {
		cfg.Archive.Prefix = defaultArchivePrefix
	}

	// Ensure prefix has trailing slash for consistent key building
	if !strings.HasSuffix(cfg.Archive.Prefix, "/") {
		cfg.Archive.Prefix = cfg.Archive.Prefix + "/"
	}

	return nil
}

// validate ensures required config fields are present and valid.
func validate(cfg *types.Config) error {
	if cfg.Project.Root == "" {
		return fmt.Errorf("project.root is required")
	}

	switch cfg.Host.DotNetVersion {
	case "3.5", "4.5":
	default:
		return fmt.Errorf("host.dotnet_version must be 3.5 or 4.5, got %q", cfg.Host.DotNetVersion)
	}

	switch cfg.Scheduler.Mode {
	case "tick", "immediate":
	default:
		return fmt.Errorf("scheduler.mode must be tick or immediate, got %q", cfg.Scheduler.Mode)
	}

	// Archiving is opt-in; a bucket implies a region.
	if cfg.Archive.Bucket != "" && cfg.Archive.Region == "" {
		return fmt.Errorf("archive.region is required when archive.bucket is set")
	}

	return nil
}

// expandTilde replaces ~ at the start of a path with the user's home directory.
func expandTilde(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	if path == "~" {
		return homeDir, nil
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:]), nil
	}

	return path, nil
}
