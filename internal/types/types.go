// Package types defines the core data structures used throughout plugrec.
// This includes configuration structs and shared report types.
package types

// Config represents the complete configuration for plugrec.
type Config struct {
	Project   ProjectConfig   `yaml:"project"`
	Host      HostConfig      `yaml:"host"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Auth      AuthConfig      `yaml:"auth"`
}

// ProjectConfig holds local project layout settings.
type ProjectConfig struct {
	// Root is the project directory containing the assets folder.
	Root string `yaml:"root"`

	// AssetsDir is the mutable assets folder, relative to Root.
	AssetsDir string `yaml:"assets_dir"`

	// ScratchDir holds sentinel flags and the settings file, relative to
	// Root.
	ScratchDir string `yaml:"scratch_dir"`

	// IndexFile is the asset index sidecar, relative to Root.
	IndexFile string `yaml:"index_file"`

	// ReadOnlyPrefixes lists path prefixes whose files must never be
	// modified, relative to Root.
	ReadOnlyPrefixes []string `yaml:"read_only_prefixes"`
}

// HostConfig describes the host environment's capabilities.
type HostConfig struct {
	// CompatibilityAPI reports whether per-platform enablement is available.
	// Defaults to true when unset.
	CompatibilityAPI *bool `yaml:"compatibility_api"`

	// DotNetVersion is the active scripting runtime, "3.5" or "4.5".
	DotNetVersion string `yaml:"dotnet_version"`

	// PlatformBlacklist lists platform names never to enable.
	PlatformBlacklist []string `yaml:"platform_blacklist"`
}

// SchedulerConfig selects the task-queue backend.
type SchedulerConfig struct {
	// Mode is "tick" or "immediate".
	Mode string `yaml:"mode"`

	// TickIntervalMS is the drain interval for tick mode, in milliseconds.
	TickIntervalMS int `yaml:"tick_interval_ms"`
}

// ArchiveConfig holds S3-compatible storage settings for archiving obsolete
// files before deletion. Archiving is disabled when Bucket is empty.
type ArchiveConfig struct {
	Bucket         string `yaml:"bucket"`
	Prefix         string `yaml:"prefix"`
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint"`
	ForcePathStyle bool   `yaml:"force_path_style"`
}

// AuthConfig holds authentication credentials for the archive bucket.
type AuthConfig struct {
	Profile         string `yaml:"profile"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
}

// PackageStatus summarizes one package for reports.
type PackageStatus struct {
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	Aliases       []string `json:"aliases,omitempty"`
	CurrentCount  int      `json:"current_count"`
	ObsoleteCount int      `json:"obsolete_count"`
}

// GroupStatus summarizes one versioned asset group for reports.
type GroupStatus struct {
	CanonicalPath string   `json:"canonical_path"`
	Versions      []string `json:"versions"`
	ActivePath    string   `json:"active_path,omitempty"`
	ActiveVersion string   `json:"active_version,omitempty"`
}
