package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// StatsCmd shows per-tier statistics.
var StatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-tier statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer m.Close()

		stats, err := m.GetStatistics(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("current state:    %d entities\n", stats.CurrentCount)
		fmt.Printf("short-term log:   %d change records\n", stats.ShortTermCount)
		fmt.Printf("long-term:        %d archive records (%d changes)\n", stats.LongTermRecords, stats.LongTermChanges)
		fmt.Printf("snapshots:        %d\n", stats.SnapshotCount)
		fmt.Printf("query cache:      %d entries, %d hits\n", stats.CacheEntries, stats.CacheHits)
		return nil
	},
}
