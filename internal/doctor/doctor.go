// Package doctor validates the plugrec configuration and project layout.
package doctor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/plugrec/plugrec/internal/discover"
	"github.com/plugrec/plugrec/internal/host"
	"github.com/plugrec/plugrec/internal/types"
)

const (
	colorGreen = "\033[32m"
	colorRed   = "\033[31m"
	colorReset = "\033[0m"
)

func checkmark() string {
	return colorGreen + "✓" + colorReset
}

func crossmark() string {
	return colorRed + "✗" + colorReset
}

// RunChecks performs all doctor checks and returns whether all passed.
func RunChecks(cfg *types.Config, configPath string) bool {
	fmt.Println("plugrec doctor - Configuration and project check")
	fmt.Println()

	allPassed := true

	// Configuration checks
	fmt.Println("Configuration:")
	fmt.Printf("  %s Config file loaded: %s\n", checkmark(), configPath)

	switch cfg.Host.DotNetVersion {
	case "3.5", "4.5":
		fmt.Printf("  %s .NET runtime configured: %s\n", checkmark(), cfg.Host.DotNetVersion)
	default:
		fmt.Printf("  %s Invalid .NET runtime: %q\n", crossmark(), cfg.Host.DotNetVersion)
		fmt.Printf("    → Edit %s and set host.dotnet_version to 3.5 or 4.5\n", configPath)
		allPassed = false
	}

	if cfg.Archive.Bucket == "" {
		fmt.Printf("  %s Archiving disabled (no archive.bucket)\n", checkmark())
	} else if cfg.Archive.Region == "" {
		fmt.Printf("  %s Archive bucket set but archive.region missing\n", crossmark())
		fmt.Printf("    → Edit %s and set archive.region\n", configPath)
		allPassed = false
	} else {
		fmt.Printf("  %s Archive configured: s3://%s/%s\n", checkmark(), cfg.Archive.Bucket, cfg.Archive.Prefix)
	}

	fmt.Println()

	// Project layout checks
	fmt.Println("Project:")

	info, err := os.Stat(cfg.Project.Root)
	if err != nil || !info.IsDir() {
		if os.IsNotExist(err) {
			fmt.Printf("  %s Project root does not exist: %s\n", crossmark(), cfg.Project.Root)
			fmt.Printf("    → Create the directory or update project.root in config\n")
		} else if err != nil {
			fmt.Printf("  %s Cannot access project root: %s\n", crossmark(), cfg.Project.Root)
			fmt.Printf("    → Error: %v\n", err)
		} else {
			fmt.Printf("  %s Project root is not a directory: %s\n", crossmark(), cfg.Project.Root)
		}
		fmt.Printf("  %s Cannot check assets directory\n", crossmark())
		fmt.Printf("  %s Cannot check asset index\n", crossmark())
		fmt.Println()
		printSummary(false)
		return false
	}
	fmt.Printf("  %s Project root exists: %s\n", checkmark(), cfg.Project.Root)

	assetsRoot := filepath.Join(cfg.Project.Root, cfg.Project.AssetsDir)
	if info, err := os.Stat(assetsRoot); err != nil || !info.IsDir() {
		fmt.Printf("  %s Assets directory missing: %s\n", crossmark(), assetsRoot)
		fmt.Printf("    → Create it or update project.assets_dir in config\n")
		allPassed = false
	} else {
		fmt.Printf("  %s Assets directory exists: %s\n", checkmark(), assetsRoot)
	}

	scratch := filepath.Join(cfg.Project.Root, cfg.Project.ScratchDir)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		fmt.Printf("  %s Scratch directory not writable: %s\n", crossmark(), scratch)
		fmt.Printf("    → Error: %v\n", err)
		allPassed = false
	} else {
		fmt.Printf("  %s Scratch directory writable: %s\n", checkmark(), scratch)
	}

	indexPath := filepath.Join(cfg.Project.Root, cfg.Project.IndexFile)
	db, err := host.OpenIndex(cfg.Project.Root, indexPath, cfg.Project.ReadOnlyPrefixes)
	if err != nil {
		fmt.Printf("  %s Asset index unreadable: %s\n", crossmark(), indexPath)
		fmt.Printf("    → Error: %v\n", err)
		allPassed = false
	} else {
		fmt.Printf("  %s Asset index ok: %s\n", checkmark(), indexPath)
	}

	// Candidate count, best effort
	if allPassed && db != nil {
		paths, err := discover.DiscoverLocal(cfg.Project.Root, cfg.Project.AssetsDir)
		if err != nil {
			fmt.Printf("  %s Failed to scan assets: %v\n", crossmark(), err)
			allPassed = false
		} else {
			candidates := discover.Candidates(db, paths)
			fileWord := "files"
			if len(candidates) == 1 {
				fileWord = "file"
			}
			fmt.Printf("  %s Found %d tracked plugin %s (%d assets scanned)\n",
				checkmark(), len(candidates), fileWord, len(paths))
		}
	}

	fmt.Println()
	printSummary(allPassed)
	return allPassed
}

func printSummary(allPassed bool) {
	if allPassed {
		fmt.Println("All checks passed! Ready to use plugrec.")
	} else {
		fmt.Println("Some checks failed. Please fix the issues above.")
	}
}
