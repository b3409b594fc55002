package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spinola103/sales-radar/pkg/cookies"
)

// cookiesCmd groups cookie management subcommands
var cookiesCmd = &cobra.Command{
	Use:   "cookies",
	Short: "Manage stored session cookies",
}

var cookiesStoreCmd = &cobra.Command{
	Use:   "store <file>",
	Short: "Store a cookie file in the system keychain",
	Long: `Validate a JSON cookie file and store it in the system keychain so
later runs can load it without keeping the file on disk.`,
	Example: `  salesradar cookies store ./cookies.json`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig(map[string]interface{}{})
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if cfg.Cookies.KeyringService == "" || cfg.Cookies.KeyringAccount == "" {
			return fmt.Errorf("keyring storage is not configured, set cookies.keyring_service and cookies.keyring_account")
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read cookie file: %w", err)
		}
		if err := cookies.Store(cfg.Cookies.KeyringService, cfg.Cookies.KeyringAccount, data); err != nil {
			return err
		}

		fmt.Printf("Cookies stored in keychain (%s/%s)\n", cfg.Cookies.KeyringService, cfg.Cookies.KeyringAccount)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cookiesCmd)
	cookiesCmd.AddCommand(cookiesStoreCmd)
}
