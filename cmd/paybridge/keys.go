package main

import (
	"context"
	"fmt"

	paybridge "github.com/paybridge-hq/paybridge-go"
	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys",
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		requireAuth()
		client := getClient()

		res := client.Keys().List(context.Background())
		exitOnError(res)

		var keys []paybridge.APIKey
		if err := res.Decode(&keys); err != nil {
			return fmt.Errorf("cannot decode keys: %w", err)
		}
		if len(keys) == 0 {
			fmt.Println("No API keys.")
			return nil
		}

		for _, k := range keys {
			state := "active"
			if k.Revoked {
				state = "revoked"
			}
			fmt.Printf("%-36s  %-20s  %-8s  %s\n", k.ID, k.Label, state, k.CreatedAt)
		}
		return nil
	},
}

var keysCreateCmd = &cobra.Command{
	Use:   "create <label>",
	Short: "Create a new API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		requireAuth()
		client := getClient()

		res := client.Keys().Create(context.Background(), args[0])
		exitOnError(res)

		var key paybridge.APIKey
		if err := res.Decode(&key); err != nil {
			return fmt.Errorf("cannot decode key: %w", err)
		}

		fmt.Printf("Created key %s (%s)\n", key.ID, key.Label)
		if key.Key != "" {
			fmt.Printf("\n  %s\n\nStore this key now. It will not be shown again.\n", key.Key)
		}
		return nil
	},
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		requireAuth()
		client := getClient()

		res := client.Keys().Revoke(context.Background(), args[0])
		exitOnError(res)

		fmt.Printf("Revoked key %s\n", args[0])
		return nil
	},
}

func init() {
	keysCmd.AddCommand(keysListCmd)
	keysCmd.AddCommand(keysCreateCmd)
	keysCmd.AddCommand(keysRevokeCmd)
	rootCmd.AddCommand(keysCmd)
}
