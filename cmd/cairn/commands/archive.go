package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ArchiveCmd runs archival and retention cleanup.
var ArchiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Run archival and retention cleanup",
}

var archiveRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Archive aged change records now",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer m.Close()

		result, err := m.TriggerArchival(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("archived %d change records in %d groups (%d groups failed), deleted %d from short-term log\n",
			result.Archived, result.GroupsArchived, result.GroupsFailed, result.Deleted)
		return nil
	},
}

var archiveCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Purge archives and snapshots past their retention windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer m.Close()

		result, err := m.TriggerCleanup(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("purged %d archive records, %d snapshots\n",
			result.PurgedArchives, result.PurgedSnapshots)
		return nil
	},
}

func init() {
	ArchiveCmd.AddCommand(archiveRunCmd)
	ArchiveCmd.AddCommand(archiveCleanupCmd)
}
