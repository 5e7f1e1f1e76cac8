package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cairnstack/cairn/errors"
	"github.com/cairnstack/cairn/search"
)

// SearchCmd runs a tiered search.
var SearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a tiered search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		includeHistory, _ := cmd.Flags().GetBool("history")
		includeLongTerm, _ := cmd.Flags().GetBool("long-term")
		limit, _ := cmd.Flags().GetInt("limit")
		sinceDays, _ := cmd.Flags().GetInt("since-days")

		opts := search.Options{
			IncludeHistory:  includeHistory,
			IncludeLongTerm: includeLongTerm,
			Limit:           limit,
		}
		if sinceDays > 0 {
			opts.From = time.Now().UTC().AddDate(0, 0, -sinceDays)
		}

		m, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer m.Close()

		res, err := m.Search(cmd.Context(), args[0], opts)
		if err != nil {
			if errors.IsValidation(err) {
				return errors.New("search query must not be empty")
			}
			return err
		}

		for _, match := range res.Current {
			fmt.Printf("[current]  %-24s %-40s v%d score=%d\n",
				match.Entity.ID, match.Entity.Name, match.Entity.Version, match.Score)
		}
		for _, match := range res.History {
			fmt.Printf("[history]  %-24s %s %s\n",
				match.Change.EntityID, match.Change.Action,
				match.Change.Timestamp.Format(time.RFC3339))
		}
		for _, match := range res.Archive {
			fmt.Printf("[archive]  %-24s %s %s\n",
				match.Change.EntityID, match.Change.Action,
				match.Change.Timestamp.Format(time.RFC3339))
		}
		fmt.Printf("%d results in %s\n", res.TotalCount, res.Took.Round(time.Millisecond))
		return nil
	},
}

func init() {
	SearchCmd.Flags().Bool("history", false, "Also search the short-term change log")
	SearchCmd.Flags().Bool("long-term", false, "Also search the decompressed long-term archive")
	SearchCmd.Flags().Int("limit", search.DefaultLimit, "Maximum results per tier")
	SearchCmd.Flags().Int("since-days", 0, "Restrict history/archive tiers to the last N days")
}
