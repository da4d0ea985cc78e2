package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/thereayou/voxnote/pkg/config"
	"github.com/thereayou/voxnote/pkg/logger"
	"go.uber.org/zap"
)

var (
	envFile string
	cfg     *config.Config
	log     *zap.Logger
)

func Execute() error {
	root := &cobra.Command{
		Use:           "voxnote",
		Short:         "Voice note messaging backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := os.Setenv("VOXNOTE_ENV_FILE", envFile); err != nil {
					return err
				}
			}
			cfg = config.Load()

			var err error
			log, err = logger.New(cfg.Environment, cfg.LogLevel)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if log != nil {
				_ = log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load (default .env.local, then .env)")

	root.AddCommand(serveCmd(), migrateCmd(), deleteMessageCmd())

	err := root.ExecuteContext(context.Background())
	if err != nil {
		if log != nil {
			log.Error("command failed", zap.Error(err))
		} else {
			root.PrintErrln(err)
		}
	}
	return err
}
