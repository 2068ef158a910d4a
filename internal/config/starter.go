package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const starterConfig = `# plugrec configuration
#
# plugrec reconciles versioned plugin assets inside a game project:
# it activates the newest version of each plugin, resolves package
# manifests, and cleans up obsolete files.

project:
  # Root directory of the game project (required).
  root: ~/YOUR-PROJECT

  # Directory under root that holds the versioned assets.
  # assets_dir: Assets

  # Directory under root for plugrec's own state (settings, sentinels).
  # scratch_dir: Temp/plugrec

  # Asset index file under root.
  # index_file: plugrec-index.yaml

  # Path prefixes that plugrec must never modify.
  # read_only_prefixes:
  #   - Assets/Vendor

host:
  # Whether the host exposes the plugin compatibility API. When false,
  # plugrec runs in report-only mode.
  # compatibility_api: true

  # Active .NET runtime version: 3.5 or 4.5.
  # dotnet_version: "4.5"

  # Target platforms to never enable plugins for.
  # platform_blacklist: []

scheduler:
  # Task scheduling mode: immediate or tick.
  # mode: immediate
  # tick_interval_ms: 500

# Optional: archive obsolete files to S3-compatible storage before deletion.
archive:
  # bucket: YOUR-BUCKET-NAME
  # region: us-east-1
  # prefix: plugrec/
  #
  # For S3-compatible providers (Backblaze B2, MinIO, etc.):
  # endpoint: https://s3.us-west-000.backblazeb2.com
  # force_path_style: true

auth:
  # AWS profile name from ~/.aws/credentials, or static credentials:
  # profile: default
  # access_key_id: ""
  # secret_access_key: ""
`

// CreateStarterConfig writes a commented starter configuration file to path,
// creating parent directories as needed. Fails if the file already exists.
func CreateStarterConfig(path string) error {
	expandedPath, err := expandTilde(path)
	if err != nil {
		return fmt.Errorf("expanding config path: %w", err)
	}

	if _, err := os.Stat(expandedPath); err == nil {
		return fmt.Errorf("config file already exists: %s", expandedPath)
	}

	if err := os.MkdirAll(filepath.Dir(expandedPath), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(expandedPath, []byte(starterConfig), 0o600); err != nil {
		return fmt.Errorf("writing starter config: %w", err)
	}

	return nil
}
