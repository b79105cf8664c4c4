package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/featherline/rarity-mapper/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "rarity-mapper",
	Short: "County-level rare bird API and tooling",
	Long:  "Serves recent notable bird observations resolved to US counties, with boundary geometry, rarity classification, and a county fallback ladder over the eBird API.",
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
