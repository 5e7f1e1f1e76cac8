package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cairnstack/cairn/snapshot"
)

// SnapshotCmd manages point-in-time snapshots.
var SnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Create, list, restore, and delete snapshots",
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Take a manual snapshot of the current-state store",
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")

		m, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer m.Close()

		snap, err := m.CreateSnapshot(cmd.Context(), snapshot.TypeManual, description)
		if err != nil {
			return err
		}

		fmt.Printf("%s  %d entities, %d -> %d bytes (ratio %.3f)\n",
			snap.ID, snap.EntityCount, snap.OriginalSize, snap.CompressedSize, snap.CompressionRatio)
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer m.Close()

		snaps, err := m.Snapshots().List(cmd.Context())
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Println("no snapshots")
			return nil
		}

		for _, snap := range snaps {
			fmt.Printf("%s  %-9s %s  %d entities  %d bytes\n",
				snap.ID, snap.Type, snap.SnapshotDate.Format(time.RFC3339),
				snap.EntityCount, snap.CompressedSize)
		}
		return nil
	},
}

var snapshotDeleteCmd = &cobra.Command{
	Use:   "rm <snapshot-id>",
	Short: "Delete a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer m.Close()

		if err := m.Snapshots().Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore <snapshot-id>",
	Short: "Decompress a snapshot and report its contents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer m.Close()

		entities, err := m.Snapshots().Restore(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("snapshot %s holds %d entities\n", args[0], len(entities))
		return nil
	},
}

func init() {
	snapshotCreateCmd.Flags().String("description", "", "Snapshot description")
	SnapshotCmd.AddCommand(snapshotCreateCmd)
	SnapshotCmd.AddCommand(snapshotListCmd)
	SnapshotCmd.AddCommand(snapshotDeleteCmd)
	SnapshotCmd.AddCommand(snapshotRestoreCmd)
}
