package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh/spinner"
	"github.com/plugrec/plugrec/internal/archive"
	"github.com/plugrec/plugrec/internal/config"
	"github.com/plugrec/plugrec/internal/confirm"
	"github.com/plugrec/plugrec/internal/doctor"
	"github.com/plugrec/plugrec/internal/host"
	"github.com/plugrec/plugrec/internal/output"
	"github.com/plugrec/plugrec/internal/session"
	"github.com/plugrec/plugrec/internal/types"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath        string
	defaultConfigPath string
	verbose           bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "plugrec",
	Short:   "Plugin asset reconciler - activate and clean versioned plugins",
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	Long: `plugrec scans a game project's assets for versioned plugin files,
activates the newest version of each plugin for the configured host,
resolves package manifests, and cleans up obsolete files.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		output.SetupLogging(verbose)
	},
}

var (
	statusJSON      bool
	reconcileDryRun bool
	reconcileJSON   bool
	cleanDryRun     bool
	cleanYes        bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show packages, versioned assets, and obsolete files",
	Long: `Scans the project and reports the current package membership, the
version groups of every tracked plugin, and the obsolete files a clean
run would remove. Writes nothing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		s, _, err := openSession(cmd, cfg, confirm.Auto{})
		if err != nil {
			return err
		}

		report, err := s.Status()
		if err != nil {
			return fmt.Errorf("computing status: %w", err)
		}

		return printReport(report, cfg, statusJSON)
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Activate the newest version of every plugin",
	Long: `Runs a reconciliation pass: parses version metadata, activates the
newest version of each plugin for the configured host platforms, and
reports obsolete files without deleting them. Use "clean" to delete.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		s, idx, err := openSession(cmd, cfg, confirm.Auto{})
		if err != nil {
			return err
		}

		var result *session.ReconcileResult
		runPass := func(ctx context.Context) error {
			var runErr error
			result, runErr = s.Reconcile(ctx, session.ReconcileOptions{
				DryRun: reconcileDryRun,
			})
			return runErr
		}
		if reconcileDryRun || reconcileJSON || verbose {
			err = runPass(cmd.Context())
		} else {
			err = spinner.New().
				Title("Reconciling plugins...").
				Context(cmd.Context()).
				ActionWithErr(runPass).
				Run()
		}
		if err != nil {
			return fmt.Errorf("reconciling: %w", err)
		}

		if !reconcileDryRun {
			if err := idx.Save(); err != nil {
				return fmt.Errorf("saving asset index: %w", err)
			}
		}

		if !reconcileJSON {
			switch {
			case reconcileDryRun:
				fmt.Println("Dry run: no changes written.")
			case result.ActivationChanged:
				fmt.Println("Activated newest plugin versions.")
			default:
				fmt.Println("All plugins already up to date.")
			}
			fmt.Println()
		}
		return printReport(result.Report, cfg, reconcileJSON)
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete obsolete plugin files",
	Long: `Runs a full reconciliation pass and deletes the obsolete files.
Unreferenced files are prompted for according to settings; files still
referenced by a package manifest always require confirmation. With
archiving configured, files are uploaded to S3 before deletion.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var confirmer confirm.Confirmer = confirm.Interactive{}
		if cleanYes {
			confirmer = confirm.Auto{Approve: true}
		}

		s, idx, err := openSession(cmd, cfg, confirmer)
		if err != nil {
			return err
		}

		result, err := s.Reconcile(cmd.Context(), session.ReconcileOptions{
			DryRun:         cleanDryRun,
			DeleteObsolete: true,
		})
		if err != nil {
			return fmt.Errorf("cleaning: %w", err)
		}

		if cleanDryRun {
			obsolete := result.Report.Obsolete
			count := len(obsolete.Unreferenced) + len(obsolete.Referenced)
			fmt.Printf("Dry run: %d obsolete file(s) would be considered.\n\n", count)
			output.PrintObsolete(obsolete.UnreferencedPaths(), obsolete.Referenced)
			return nil
		}

		if err := idx.Save(); err != nil {
			return fmt.Errorf("saving asset index: %w", err)
		}

		if result.Archived > 0 {
			fmt.Printf("Archived %d file(s) before deletion.\n", result.Archived)
		}
		fmt.Printf("Deleted %d obsolete file(s).\n", len(result.Deleted))
		for _, path := range result.Deleted {
			fmt.Printf("  %s\n", path)
		}
		if len(result.Kept) > 0 {
			fmt.Printf("Kept %d file(s) without approval.\n", len(result.Kept))
			for _, path := range result.Kept {
				fmt.Printf("  %s\n", path)
			}
		}
		return nil
	},
}

var archivedCmd = &cobra.Command{
	Use:   "archived",
	Short: "List files archived to remote storage",
	Long: `Lists every object under this project's archive prefix in the
configured S3 bucket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Archive.Bucket == "" {
			return fmt.Errorf("archiving is not configured; set archive.bucket")
		}

		client, err := config.NewS3Client(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("creating S3 client: %w", err)
		}
		keys, err := archive.New(cfg, client).ListArchived(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing archive: %w", err)
		}

		if len(keys) == 0 {
			fmt.Println("No archived files.")
			return nil
		}
		for _, key := range keys {
			fmt.Println(key)
		}
		return nil
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Validate configuration and project layout",
	Long: `Checks that the configuration is valid, the project root and assets
directory exist, the scratch directory is writable, and the asset index
parses.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		allPassed := doctor.RunChecks(cfg, configPath)
		if !allPassed {
			exitFunc(1)
		}
		return nil
	},
}

func init() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to get home directory: %v\n", err)
		homeDir = "~"
	}
	defaultConfigPath = filepath.Join(homeDir, ".plugrec", "config.yaml")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to config file")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output in JSON format")
	reconcileCmd.Flags().BoolVar(&reconcileDryRun, "dry-run", false, "report what would change without writing")
	reconcileCmd.Flags().BoolVar(&reconcileJSON, "json", false, "output in JSON format")
	cleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "list obsolete files without deleting")
	cleanCmd.Flags().BoolVar(&cleanYes, "yes", false, "approve all deletions without prompting")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(archivedCmd)
	rootCmd.AddCommand(doctorCmd)
}

var exitFunc = os.Exit

func loadConfig() (*types.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			isDefaultPath := configPath == defaultConfigPath
			if isDefaultPath {
				if err := config.CreateStarterConfig(configPath); err != nil {
					return nil, fmt.Errorf("creating starter config: %w", err)
				}
				printWelcomeMessage(configPath)
				exitFunc(0)
			}
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// openSession opens the asset index and builds a session around it. The
// returned index must be saved by the caller after mutating commands.
func openSession(cmd *cobra.Command, cfg *types.Config, confirmer confirm.Confirmer) (*session.Session, *host.Index, error) {
	indexPath := filepath.Join(cfg.Project.Root, cfg.Project.IndexFile)
	idx, err := host.OpenIndex(cfg.Project.Root, indexPath, cfg.Project.ReadOnlyPrefixes)
	if err != nil {
		return nil, nil, fmt.Errorf("opening asset index: %w", err)
	}

	opts := []session.Option{session.WithConfirmer(confirmer)}
	if cfg.Archive.Bucket != "" {
		client, err := config.NewS3Client(cmd.Context(), cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("creating S3 client: %w", err)
		}
		opts = append(opts, session.WithArchiver(archive.New(cfg, client)))
	}

	s, err := session.New(cfg, idx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("opening session: %w", err)
	}
	return s, idx, nil
}

func printReport(r *session.Report, cfg *types.Config, asJSON bool) error {
	obsolete := output.ObsoleteInfo{}
	if r.Obsolete != nil {
		obsolete.Unreferenced = r.Obsolete.UnreferencedPaths()
		obsolete.Referenced = r.Obsolete.Referenced
	}

	if asJSON {
		if err := output.PrintJSON(r.Packages, r.Groups, obsolete, cfg); err != nil {
			return fmt.Errorf("printing JSON output: %w", err)
		}
		return nil
	}

	output.PrintPackages(r.Packages)
	fmt.Println()
	output.PrintGroups(r.Groups)
	fmt.Println()
	output.PrintObsolete(obsolete.Unreferenced, obsolete.Referenced)
	return nil
}

func printWelcomeMessage(configPath string) {
	fmt.Println("Welcome to plugrec!")
	fmt.Println()
	fmt.Printf("A starter configuration file has been created at:\n")
	fmt.Printf("  %s\n", configPath)
	fmt.Println()
	fmt.Println("Please edit this file and configure:")
	fmt.Println("  1. project.root - Your game project directory")
	fmt.Println("  2. host.dotnet_version - The active .NET runtime (3.5 or 4.5)")
	fmt.Println()
	fmt.Println("To archive obsolete files to S3 before deletion:")
	fmt.Println("  - Set archive.bucket and archive.region")
	fmt.Println("  - Set auth.profile (or use static credentials)")
	fmt.Println()
	fmt.Println("After configuration, run:")
	fmt.Println("  plugrec doctor     # Validate configuration")
	fmt.Println("  plugrec status     # Show packages and obsolete files")
	fmt.Println("  plugrec reconcile  # Activate newest plugin versions")
	fmt.Println("  plugrec clean      # Delete obsolete files")
}
