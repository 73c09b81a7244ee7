package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"schemavault/internal/app"
	"schemavault/internal/config"
	"schemavault/internal/core"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer
// app.Close(). operation identifies the CLI command being run.
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// loadEntities reads a compiled entities JSON file produced by the schema
// loader.
func loadEntities(path string) (core.Entities, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading entities file: %w", err)
	}
	var entities core.Entities
	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, fmt.Errorf("parsing entities file: %w", err)
	}
	return entities, nil
}

var rootCmd = &cobra.Command{
	Use:   "svault",
	Short: "Schema snapshot, version, and data-safety tool",
}

// config commands

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["project_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Project Dir: %s\n", defaults["project_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Project Dir:  %s\n", cfg.ProjectDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Storage:      %s\n", cfg.Storage.Type)
		fmt.Printf("Audit:        enabled=%v storage=%s\n", cfg.Audit.Enabled, cfg.Audit.Storage)
		return nil
	},
}

// snapshot commands

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage schema snapshots",
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save ENTITIES_FILE",
	Short: "Save a content-addressed schema snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		author, _ := cmd.Flags().GetString("author")
		description, _ := cmd.Flags().GetString("description")

		a, err := newApp("SaveSnapshot")
		if err != nil {
			return err
		}
		defer a.Close()

		entities, err := loadEntities(args[0])
		if err != nil {
			return err
		}

		snap, err := a.SaveSnapshot(entities, author, description)
		if err != nil {
			return err
		}
		fmt.Printf("Snapshot %s\n", snap.Hash)
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListSnapshots")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.Snapshots()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No snapshots.")
			return nil
		}
		for _, e := range entries {
			parent := e.ParentHash
			if parent == "" {
				parent = "-"
			} else {
				parent = parent[:12]
			}
			fmt.Printf("%s  parent:%s  %s  %s\n",
				e.Hash[:12], parent,
				e.Metadata.CreatedAt.Format("2006-01-02 15:04:05"),
				e.Metadata.Description)
		}
		return nil
	},
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show HASH",
	Short: "Show a snapshot by hash or unique prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ShowSnapshot")
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := a.FindSnapshot(args[0])
		if err != nil {
			return err
		}
		if snap == nil {
			return fmt.Errorf("snapshot not found: %s", args[0])
		}

		out, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var snapshotRmCmd = &cobra.Command{
	Use:   "rm HASH",
	Short: "Soft-delete a snapshot into the trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")

		a, err := newApp("SoftDeleteSnapshot")
		if err != nil {
			return err
		}
		defer a.Close()

		entry, err := a.SoftDeleteSnapshot(args[0], reason)
		if err != nil {
			return err
		}
		fmt.Printf("Trashed %s (entry %s, expires %s)\n",
			entry.Name, entry.ID, entry.ExpiresAt.Format("2006-01-02"))
		return nil
	},
}

// version commands

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Manage the schema version ledger",
}

var versionRecordCmd = &cobra.Command{
	Use:   "record ENTITIES_FILE",
	Short: "Record a new schema version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setVersion, _ := cmd.Flags().GetString("set-version")
		description, _ := cmd.Flags().GetString("description")

		a, err := newApp("RecordVersion")
		if err != nil {
			return err
		}
		defer a.Close()

		entities, err := loadEntities(args[0])
		if err != nil {
			return err
		}

		sv, err := a.RecordVersion(entities, setVersion, description)
		if err != nil {
			return err
		}
		fmt.Printf("Version %s (%s)\n", sv.Version, sv.Hash[:12])
		if len(sv.ChangedEntities) > 0 {
			fmt.Printf("Changed: %s\n", strings.Join(sv.ChangedEntities, ", "))
		}
		return nil
	},
}

var versionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded schema versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListVersions")
		if err != nil {
			return err
		}
		defer a.Close()

		versions, err := a.Versions()
		if err != nil {
			return err
		}
		if len(versions) == 0 {
			fmt.Println("No versions recorded.")
			return nil
		}
		for _, v := range versions {
			fmt.Printf("%-10s  %s  %s  %s\n",
				v.Version, v.Hash[:12],
				v.AppliedAt.Format("2006-01-02 15:04:05"),
				v.Description)
		}
		return nil
	},
}

var versionCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("CurrentVersion")
		if err != nil {
			return err
		}
		defer a.Close()

		sv, err := a.CurrentVersion()
		if err != nil {
			return err
		}
		if sv == nil {
			fmt.Println("No versions recorded.")
			return nil
		}
		fmt.Printf("%s (%s)\n", sv.Version, sv.Hash)
		return nil
	},
}

var versionDiffCmd = &cobra.Command{
	Use:   "diff FROM TO",
	Short: "Show entity-level changes between two versions",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("VersionDiff")
		if err != nil {
			return err
		}
		defer a.Close()

		diff, err := a.Diff(args[0], args[1])
		if err != nil {
			return err
		}
		if diff == nil {
			return fmt.Errorf("no archived entities for %s or %s", args[0], args[1])
		}

		for _, name := range diff.Added {
			fmt.Printf("A  %s\n", name)
		}
		for _, name := range diff.Removed {
			fmt.Printf("D  %s\n", name)
		}
		for _, name := range diff.Modified {
			fmt.Printf("M  %s\n", name)
		}
		return nil
	},
}

// env commands

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Manage environment snapshot pointers",
}

var envSetCmd = &cobra.Command{
	Use:   "set ENVIRONMENT HASH",
	Short: "Point an environment at a snapshot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Promote")
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.Promote(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("%s -> %s\n", st.Environment, st.CurrentSnapshot)
		return nil
	},
}

var envGetCmd = &cobra.Command{
	Use:   "get ENVIRONMENT",
	Short: "Show the snapshot active in an environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("GetEnvironment")
		if err != nil {
			return err
		}
		defer a.Close()

		hash, err := a.CurrentSnapshot(args[0])
		if err != nil {
			return err
		}
		if hash == "" {
			fmt.Printf("%s: no snapshot\n", args[0])
			return nil
		}
		fmt.Printf("%s: %s\n", args[0], hash)
		return nil
	},
}

var envListCmd = &cobra.Command{
	Use:   "list",
	Short: "List environment states",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListEnvironments")
		if err != nil {
			return err
		}
		defer a.Close()

		states, err := a.Environments()
		if err != nil {
			return err
		}
		if len(states) == 0 {
			fmt.Println("No environments.")
			return nil
		}
		for _, st := range states {
			hash := st.CurrentSnapshot
			if hash == "" {
				hash = "-"
			}
			fmt.Printf("%-15s  %s  %s\n",
				st.Environment, hash, st.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

// audit commands

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the audit log",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent audit entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("ListAudit")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.AuditEntries(limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No audit entries.")
			return nil
		}
		for _, e := range entries {
			snap := e.Snapshot
			if len(snap) > 12 {
				snap = snap[:12]
			}
			fmt.Printf("%s  %-6s  %s/%s  snapshot:%s\n",
				e.Timestamp.Format("2006-01-02 15:04:05"),
				e.Operation, e.TableName, e.RecordID, snap)
		}
		return nil
	},
}

var auditSnapshotCmd = &cobra.Command{
	Use:   "snapshot HASH",
	Short: "List the audit history of one schema generation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("AuditBySnapshot")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.AuditEntriesForSnapshot(args[0])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No audit entries.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %-6s  %s/%s\n",
				e.Timestamp.Format("2006-01-02 15:04:05"),
				e.Operation, e.TableName, e.RecordID)
		}
		return nil
	},
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove audit entries past the configured retention",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("PruneAudit")
		if err != nil {
			return err
		}
		defer a.Close()

		removed, err := a.PruneAudit()
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d audit entries\n", removed)
		return nil
	},
}

// backup commands

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage backup bookkeeping",
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListBackups")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.Backups().List()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No backups registered.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%-11s  %s  %s  %d bytes  retention:%s\n",
				e.Metadata.Kind, e.Filename,
				e.Metadata.Timestamp.Format("2006-01-02 15:04:05"),
				e.Size, e.Metadata.RetentionPolicy)
		}
		return nil
	},
}

var backupChainCmd = &cobra.Command{
	Use:   "chain BASE_SNAPSHOT",
	Short: "Assemble the restorable chain for a base snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		save, _ := cmd.Flags().GetBool("save")

		a, err := newApp("BackupChain")
		if err != nil {
			return err
		}
		defer a.Close()

		chain, err := a.Backups().Chain(args[0])
		if err != nil {
			return err
		}
		if chain == nil {
			return fmt.Errorf("no full backup for snapshot: %s", args[0])
		}

		fmt.Printf("full  %s  %d bytes\n", chain.FullBackup.Filename, chain.Size)
		for i, inc := range chain.Incrementals {
			fmt.Printf("inc%d  %s  %d bytes\n", i+1, inc.File, inc.Size)
		}
		fmt.Printf("total %d bytes\n", chain.TotalSize)

		if save {
			if err := a.Backups().SaveChain(chain); err != nil {
				return err
			}
			fmt.Println("Chain descriptor saved.")
		}
		return nil
	},
}

var backupSizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Show total bytes across all registered backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("BackupSize")
		if err != nil {
			return err
		}
		defer a.Close()

		total, err := a.Backups().TotalSize()
		if err != nil {
			return err
		}
		fmt.Printf("%d bytes\n", total)
		return nil
	},
}

var backupPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove backups past their retention policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("PruneBackups")
		if err != nil {
			return err
		}
		defer a.Close()

		removed, err := a.Backups().PruneExpired()
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d expired backups\n", removed)
		return nil
	},
}

// trash commands

var trashCmd = &cobra.Command{
	Use:   "trash",
	Short: "Manage the soft-delete trash",
}

var trashListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trash entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListTrash")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.Trash().List()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Trash is empty.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %-15s  %-8s  %s  expires:%s\n",
				e.ID, e.Type, a.Trash().Status(e), e.Name,
				e.ExpiresAt.Format("2006-01-02"))
		}
		return nil
	},
}

var trashRestoreCmd = &cobra.Command{
	Use:   "restore ID",
	Short: "Restore a trash entry to its original location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("RestoreTrash")
		if err != nil {
			return err
		}
		defer a.Close()

		entry, err := a.RestoreTrash(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Restored %s to %s\n", entry.Name, entry.OriginalPath)
		return nil
	},
}

var trashPurgeCmd = &cobra.Command{
	Use:   "purge ID",
	Short: "Permanently delete a trash entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		if !force {
			if !confirm(fmt.Sprintf("Permanently delete trash entry %s? This cannot be undone.", args[0])) {
				fmt.Println("Aborted.")
				return nil
			}
		}

		a, err := newApp("PurgeTrash")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Trash().Purge(args[0]); err != nil {
			return err
		}
		fmt.Printf("Purged %s\n", args[0])
		return nil
	},
}

// confirm prompts for a yes/no answer when stdin is a terminal. With no
// terminal attached it refuses, so scripts must pass --force explicitly.
func confirm(prompt string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "refusing to confirm without a terminal (use --force)")
		return false
	}
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// sweep command

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Purge expired trash, backups, and audit entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Sweep")
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Sweep()
		fmt.Printf("Trash purged: %d\nBackups removed: %d\nAudit entries pruned: %d\n",
			report.TrashPurged, report.BackupsRemoved, report.AuditPruned)
		return err
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	snapshotSaveCmd.Flags().String("author", "", "Record who created the snapshot")
	snapshotSaveCmd.Flags().String("description", "", "Describe the snapshot")
	snapshotRmCmd.Flags().String("reason", "", "Why the snapshot is being deleted")
	snapshotCmd.AddCommand(snapshotSaveCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotShowCmd)
	snapshotCmd.AddCommand(snapshotRmCmd)

	versionRecordCmd.Flags().String("set-version", "", "Explicit version instead of the auto patch bump")
	versionRecordCmd.Flags().String("description", "", "Describe the change")
	versionCmd.AddCommand(versionRecordCmd)
	versionCmd.AddCommand(versionListCmd)
	versionCmd.AddCommand(versionCurrentCmd)
	versionCmd.AddCommand(versionDiffCmd)

	envCmd.AddCommand(envSetCmd)
	envCmd.AddCommand(envGetCmd)
	envCmd.AddCommand(envListCmd)

	auditListCmd.Flags().IntP("limit", "n", 50, "Maximum number of entries to show")
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditSnapshotCmd)
	auditCmd.AddCommand(auditPruneCmd)

	backupChainCmd.Flags().Bool("save", false, "Persist the chain descriptor")
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupChainCmd)
	backupCmd.AddCommand(backupSizeCmd)
	backupCmd.AddCommand(backupPruneCmd)

	trashPurgeCmd.Flags().Bool("force", false, "Skip the confirmation prompt")
	trashCmd.AddCommand(trashListCmd)
	trashCmd.AddCommand(trashRestoreCmd)
	trashCmd.AddCommand(trashPurgeCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(trashCmd)
	rootCmd.AddCommand(sweepCmd)
}
