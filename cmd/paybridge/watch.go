package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	paybridge "github.com/paybridge-hq/paybridge-go"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail live events from the realtime channel",
	Long:  "Joins the dashboard and transactions rooms and prints events\nas they arrive. Press Ctrl-C to stop.",
	RunE: func(cmd *cobra.Command, args []string) error {
		requireAuth()
		client := getClient()
		rt := client.Realtime()

		rt.OnConnected(func() {
			fmt.Println("-- connected --")
		})
		rt.OnDisconnected(func(reason string) {
			fmt.Printf("-- disconnected: %s --\n", reason)
		})

		dash := paybridge.NewDashboardFeed(rt, paybridge.DashboardFeedHandlers{
			OnTransactionUpdate: func(tx paybridge.Transaction) {
				fmt.Printf("[transaction] %s %s %.2f %s\n", tx.Reference, tx.Status, tx.Amount, tx.Currency)
			},
			OnAnalyticsUpdate: func(a paybridge.Analytics) {
				fmt.Printf("[analytics] %d transactions, volume %.2f, success %.1f%%\n",
					a.TotalTransactions, a.TotalVolume, a.SuccessRate)
			},
		})
		defer dash.Close()

		keys := paybridge.NewAPIKeysFeed(rt, paybridge.APIKeysFeedHandlers{
			OnKeyCreated: func(k paybridge.APIKey) {
				fmt.Printf("[api-key] created %s (%s)\n", k.ID, k.Label)
			},
			OnKeyRevoked: func(k paybridge.APIKey) {
				fmt.Printf("[api-key] revoked %s\n", k.ID)
			},
		})
		defer keys.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Println("Watching for events (Ctrl-C to stop)...")
		<-ctx.Done()
		fmt.Println("\nStopped.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
