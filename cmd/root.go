package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/xsell-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "xsell-cli",
	Short: "Cross-sell and upsell recommendation pipeline",
	Long:  "Loads a customer profile, runs pattern analysis, product affinity, opportunity scoring and report generation through Claude, and returns ranked cross-sell and upsell recommendations.",
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
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
