package main

import (
	"context"
	"fmt"

	paybridge "github.com/paybridge-hq/paybridge-go"
	"github.com/spf13/cobra"
)

var transactionsCmd = &cobra.Command{
	Use:     "transactions",
	Aliases: []string{"tx"},
	Short:   "Inspect transactions",
}

var transactionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		requireAuth()
		client := getClient()

		res := client.Transactions().List(context.Background())
		exitOnError(res)

		var txs []paybridge.Transaction
		if err := res.Decode(&txs); err != nil {
			return fmt.Errorf("cannot decode transactions: %w", err)
		}
		if len(txs) == 0 {
			fmt.Println("No transactions.")
			return nil
		}

		for _, tx := range txs {
			fmt.Printf("%-20s  %10.2f %-4s  %-10s  %-12s  %s\n",
				tx.Reference, tx.Amount, tx.Currency, tx.Status, tx.Provider, tx.CreatedAt)
		}
		return nil
	},
}

var transactionsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		requireAuth()
		client := getClient()

		res := client.Transactions().Get(context.Background(), args[0])
		exitOnError(res)

		var tx paybridge.Transaction
		if err := res.Decode(&tx); err != nil {
			return fmt.Errorf("cannot decode transaction: %w", err)
		}

		fmt.Printf("Reference: %s\n", tx.Reference)
		fmt.Printf("Amount:    %.2f %s\n", tx.Amount, tx.Currency)
		fmt.Printf("Status:    %s\n", tx.Status)
		fmt.Printf("Provider:  %s\n", tx.Provider)
		if tx.CustomerEmail != "" {
			fmt.Printf("Customer:  %s\n", tx.CustomerEmail)
		}
		if tx.Fee > 0 {
			fmt.Printf("Fee:       %.2f (net %.2f)\n", tx.Fee, tx.NetAmount)
		}
		fmt.Printf("Created:   %s\n", tx.CreatedAt)
		return nil
	},
}

func init() {
	transactionsCmd.AddCommand(transactionsListCmd)
	transactionsCmd.AddCommand(transactionsGetCmd)
	rootCmd.AddCommand(transactionsCmd)
}
