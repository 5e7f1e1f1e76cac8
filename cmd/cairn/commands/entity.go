package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cairnstack/cairn/entity"
	"github.com/cairnstack/cairn/errors"
)

// PutCmd upserts one entity from a JSON document.
var PutCmd = &cobra.Command{
	Use:   "put",
	Short: "Upsert an entity from JSON (--file or stdin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")

		var (
			raw []byte
			err error
		)
		if path != "" {
			raw, err = os.ReadFile(path)
		} else {
			raw, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			return errors.Wrap(err, "read entity document")
		}

		var e entity.Entity
		if err := json.Unmarshal(raw, &e); err != nil {
			return errors.Wrap(err, "decode entity document")
		}

		m, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer m.Close()

		result, err := m.UpsertEntity(cmd.Context(), &e)
		if err != nil {
			return err
		}

		fmt.Printf("%s %s -> version %d (%d fields changed)\n",
			result.Action, result.EntityID, result.Version, len(result.ChangedFields))
		return nil
	},
}

// GetCmd prints an entity's current state as JSON.
var GetCmd = &cobra.Command{
	Use:   "get <entity-id>",
	Short: "Show an entity's current state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer m.Close()

		e, err := m.GetEntity(cmd.Context(), args[0])
		if err != nil {
			if errors.IsNotFound(err) {
				return errors.Newf("entity %s not found", args[0])
			}
			return err
		}

		out, err := json.MarshalIndent(e, "", "  ")
		if err != nil {
			return errors.Wrap(err, "encode entity")
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	PutCmd.Flags().String("file", "", "Path to entity JSON (default: stdin)")
}
