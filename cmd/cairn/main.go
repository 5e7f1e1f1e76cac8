package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cairnstack/cairn/cmd/cairn/commands"
	"github.com/cairnstack/cairn/logger"
)

var rootCmd = &cobra.Command{
	Use:   "cairn",
	Short: "cairn - tiered knowledge-state store",
	Long: `cairn - tiered state for knowledge entities.

cairn keeps the evolving state of knowledge entities across three
retention tiers: a live current-state store, a short-term change log,
and a compressed long-term archive, plus point-in-time snapshots and a
query-result cache.

Available commands:
  db        - Manage the cairn database
  put       - Upsert an entity from JSON
  get       - Show an entity's current state
  search    - Run a tiered search
  snapshot  - Create, list, restore, and delete snapshots
  archive   - Run archival and retention cleanup
  stats     - Show per-tier statistics
  daemon    - Run the background scheduler until interrupted
  seed      - Insert synthetic demo data
  version   - Show version and build information

Examples:
  cairn put --file product.json    # Upsert one entity
  cairn search "epoxy" --history   # Search current state and change log
  cairn snapshot create            # Take a manual snapshot
  cairn archive run                # Archive aged change records now
  cairn stats                      # Show tier counts`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(false); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		verbose, _ := cmd.Flags().GetCount("verbose")
		return logger.SetVerbosity(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: ./cairn.toml)")

	rootCmd.AddCommand(commands.DBCmd)
	rootCmd.AddCommand(commands.PutCmd)
	rootCmd.AddCommand(commands.GetCmd)
	rootCmd.AddCommand(commands.SearchCmd)
	rootCmd.AddCommand(commands.SnapshotCmd)
	rootCmd.AddCommand(commands.ArchiveCmd)
	rootCmd.AddCommand(commands.StatsCmd)
	rootCmd.AddCommand(commands.DaemonCmd)
	rootCmd.AddCommand(commands.SeedCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
