package output

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/plugrec/plugrec/internal/types"
)

// JSONOutput represents the complete JSON report structure.
type JSONOutput struct {
	GeneratedAt string                `json:"generatedAt"`
	Config      ConfigInfo            `json:"config"`
	Packages    []types.PackageStatus `json:"packages"`
	Groups      []types.GroupStatus   `json:"groups"`
	Obsolete    ObsoleteInfo          `json:"obsolete"`
}

// ConfigInfo holds configuration details for JSON output.
type ConfigInfo struct {
	ProjectRoot   string `json:"projectRoot"`
	ArchiveBucket string `json:"archiveBucket,omitempty"`
	ArchivePrefix string `json:"archivePrefix,omitempty"`
}

// ObsoleteInfo holds the obsolete-file partition for JSON output.
type ObsoleteInfo struct {
	Unreferenced []string            `json:"unreferenced"`
	Referenced   map[string][]string `json:"referenced"`
}

// PrintJSON formats and prints the reconciliation report as JSON to stdout.
func PrintJSON(packages []types.PackageStatus, groups []types.GroupStatus, obsolete ObsoleteInfo, cfg *types.Config) error {
	if packages == nil {
		packages = []types.PackageStatus{}
	}
	if groups == nil {
		groups = []types.GroupStatus{}
	}
	if obsolete.Unreferenced == nil {
		obsolete.Unreferenced = []string{}
	}
	if obsolete.Referenced == nil {
		obsolete.Referenced = map[string][]string{}
	}

	out := JSONOutput{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Config: ConfigInfo{
			ProjectRoot:   cfg.Project.Root,
			ArchiveBucket: cfg.Archive.Bucket,
			ArchivePrefix: cfg.Archive.Prefix,
		},
		Packages: packages,
		Groups:   groups,
		Obsolete: obsolete,
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}

	fmt.Println(string(data))
	return nil
}
