package main

import (
	"context"
	"fmt"

	paybridge "github.com/paybridge-hq/paybridge-go"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show account profile and subscription",
	RunE: func(cmd *cobra.Command, args []string) error {
		requireAuth()
		client := getClient()
		ctx := context.Background()

		res := client.Profile().Me(ctx)
		exitOnError(res)

		var user paybridge.User
		if err := res.Decode(&user); err != nil {
			return fmt.Errorf("cannot decode profile: %w", err)
		}

		fmt.Println("Account")
		fmt.Printf("  Email:   %s\n", user.Email)
		if user.FirstName != "" || user.LastName != "" {
			fmt.Printf("  Name:    %s %s\n", user.FirstName, user.LastName)
		}
		if user.CompanyName != "" {
			fmt.Printf("  Company: %s\n", user.CompanyName)
		}
		if user.Country != "" {
			fmt.Printf("  Country: %s\n", user.Country)
		}

		planRes := client.Billing().Plan(ctx)
		if planRes.OK() {
			var plan paybridge.Plan
			if planRes.Decode(&plan) == nil && plan.Name != "" {
				fmt.Println("\nSubscription")
				fmt.Printf("  Plan:  %s\n", plan.Name)
				fmt.Printf("  Price: %.2f/month\n", plan.PriceMonthly)
			}
		}

		usageRes := client.Billing().Usage(ctx)
		if usageRes.OK() {
			var usage paybridge.Usage
			if usageRes.Decode(&usage) == nil && usage.RequestLimit > 0 {
				fmt.Printf("  Usage: %d / %d requests (%.1f%%)\n",
					usage.RequestsUsed, usage.RequestLimit, usage.PercentUsed)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
