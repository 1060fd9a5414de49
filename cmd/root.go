package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rescape/region-store/internal/config"
)

var (
	cfg        *config.Config
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "region-store",
	Short: "Region listings and per-user scope state",
	Long: `Accumulates paginated region, project and location listings and keeps
each user's region, project and search-location associations in sync with
the backend.

The backend is chosen by store.driver: graphql talks to the region API,
postgres and sqlite serve the same data from a local database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if err := config.InitLogger(c.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		cfg = c

		zap.L().Debug("config loaded",
			zap.String("command", cmd.Name()),
			zap.String("driver", cfg.Store.Driver),
			zap.String("file", configPath),
		)
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ./config.yaml when present)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
