package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cairnstack/cairn/config"
	"github.com/cairnstack/cairn/logger"
)

// DaemonCmd runs the background scheduler until interrupted. The
// archiver, snapshotter, cache sweep, and retention cleanup all run on
// their configured intervals; the config file is watched for changes.
var DaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background scheduler until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer m.Close()

		if path := configPath(cmd); path != "" {
			watcher, err := config.NewWatcher(path)
			if err != nil {
				logger.Logger.Warnw("Config watching disabled", "path", path, "error", err)
			} else {
				watcher.OnReload(func(cfg *config.Config) error {
					// Interval changes take effect on restart; cached
					// results are dropped so new cache settings apply.
					m.InvalidateCache()
					return nil
				})
				watcher.Start()
				defer watcher.Stop()
			}
		}

		m.Start()
		logger.Logger.Infow("Daemon running, press Ctrl+C to stop")

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		fmt.Println("shutting down")
		return nil
	},
}

// configPath resolves the config file to watch: the --config flag, or
// cairn.toml in the working directory when present.
func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path, _ = cmd.InheritedFlags().GetString("config")
	}
	if path != "" {
		return path
	}
	if _, err := os.Stat(config.DefaultConfigName); err == nil {
		return config.DefaultConfigName
	}
	return ""
}
