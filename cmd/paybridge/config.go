package main

import (
	"fmt"
	"os"

	paybridge "github.com/paybridge-hq/paybridge-go"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path, _ := configPath()

		fmt.Printf("Config file: %s\n\n", path)
		fmt.Println("[default]")
		fmt.Printf("  base_url     = %s\n", valueOrDefault(cfg.Default.BaseURL, paybridge.DefaultBaseURL))
		fmt.Printf("  realtime_url = %s\n", valueOrDefault(cfg.Default.RealtimeURL, paybridge.DefaultRealtimeURL))
		if cfg.Default.Email != "" {
			fmt.Printf("  email        = %s\n", cfg.Default.Email)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value (dot notation, e.g. default.base_url)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := setConfigValue(cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := saveConfig(cfg); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Set %s\n", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
