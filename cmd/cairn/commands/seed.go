package commands

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/cairnstack/cairn/internal/seed"
)

// SeedCmd inserts synthetic demo data.
var SeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert synthetic demo data",
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")

		m, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer m.Close()

		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		if err := seed.Run(cmd.Context(), m.Store(), count, rng); err != nil {
			return err
		}

		fmt.Printf("seeded %d entities\n", count)
		return nil
	},
}

func init() {
	SeedCmd.Flags().Int("count", 50, "Number of synthetic entities to insert")
}
