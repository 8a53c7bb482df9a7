package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/segment-assigner/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "segment-assigner",
	Short: "Assign stations to nearby overhead line segments",
	Long:  "Matches station points to overhead line segments within a distance radius, checks station elevation against each segment's elevation band, and ranks the best segments per group.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
