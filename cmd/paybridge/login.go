package main

import (
	"context"
	"fmt"
	"os"

	paybridge "github.com/paybridge-hq/paybridge-go"
	"github.com/spf13/cobra"
)

var loginPassword string

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Authenticate and store tokens",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := args[0]

		password := loginPassword
		if password == "" {
			p, err := promptPassword()
			if err != nil {
				return err
			}
			password = p
		}

		client := getClient()
		res := client.Login(context.Background(), &paybridge.LoginOptions{
			Email:    email,
			Password: password,
		})
		exitOnError(res)

		var data paybridge.LoginData
		if err := res.Decode(&data); err != nil {
			return fmt.Errorf("cannot decode login response: %w", err)
		}

		cfg, err := loadConfig()
		if err == nil {
			cfg.Default.Email = email
			if err := saveConfig(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: cannot save config: %v\n", err)
			}
		}

		fmt.Printf("Logged in as %s\n", data.User.Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear stored tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()
		client.Logout()
		fmt.Println("Logged out")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "password (prompted if omitted)")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
