package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/xsell-cli/internal/config"
	"github.com/sells-group/xsell-cli/internal/profile"
)

var importCSVPath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import customer profiles from CSV into Postgres",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate(config.ModeImport); err != nil {
			return err
		}

		f, err := os.Open(importCSVPath)
		if err != nil {
			return eris.Wrap(err, "open csv")
		}
		defer f.Close() //nolint:errcheck

		profiles, err := profile.ReadCSV(f)
		if err != nil {
			return eris.Wrap(err, "read csv")
		}

		pool, err := connectProfileDB(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		inserted, err := profile.Import(ctx, pool, profiles)
		if err != nil {
			return eris.Wrap(err, "import csv")
		}

		zap.L().Info("import complete",
			zap.Int("rows", len(profiles)),
			zap.Int64("inserted", inserted),
			zap.String("csv", importCSVPath),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to CSV file (required)")
	_ = importCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(importCmd)
}
