package commands

import (
	"github.com/spf13/cobra"

	"github.com/cairnstack/cairn/config"
	"github.com/cairnstack/cairn/errors"
	"github.com/cairnstack/cairn/logger"
	"github.com/cairnstack/cairn/manager"
)

// openManager loads config (honoring --config) and wires the manager.
// Callers must Close() it.
func openManager(cmd *cobra.Command) (*manager.Manager, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	m, err := manager.Open(cfg, logger.Logger)
	if err != nil {
		return nil, errors.Wrap(err, "open stores")
	}
	return m, nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path, _ = cmd.InheritedFlags().GetString("config")
	}
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}
