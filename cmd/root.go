package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/variantlab/genotype-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "genotype-cli",
	Short: "Local genotype import, QC and insight engine",
	Long:  "Imports consumer genotype exports, quality-checks them, stores them encrypted at rest, and evaluates curated modules and a clinical variant cache against them.",
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
