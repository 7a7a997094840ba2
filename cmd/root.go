package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/osulel12/itc-parser/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "itc-parser",
	Short: "Resumable trade statistics downloader",
	Long:  "Drives the trade portal through a real browser, downloads bilateral time series per reporter and partner, relays captchas to an operator over Telegram, and checkpoints progress so interrupted runs resume where they stopped.",
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
