package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	paybridge "github.com/paybridge-hq/paybridge-go"
)

// getClient constructs an SDK client from the saved config, backed by
// the file credential store so tokens survive between invocations.
func getClient() *paybridge.Client {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	credPath, err := paybridge.DefaultCredentialPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	opts := []paybridge.ClientOption{
		paybridge.WithCredentialStore(paybridge.NewFileStore(credPath)),
	}
	if cfg.Default.BaseURL != "" {
		opts = append(opts, paybridge.WithBaseURL(cfg.Default.BaseURL))
	}
	if cfg.Default.RealtimeURL != "" {
		opts = append(opts, paybridge.WithRealtimeURL(cfg.Default.RealtimeURL))
	}
	return paybridge.NewClient(opts...)
}

// requireAuth exits with a hint when no tokens are stored.
func requireAuth() {
	credPath, err := paybridge.DefaultCredentialPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cred, err := paybridge.NewFileStore(credPath).Get()
	if err != nil || cred.IsZero() {
		fmt.Fprintln(os.Stderr, "Not logged in. Run: paybridge login <email>")
		os.Exit(1)
	}
}

// promptPassword reads a password from stdin.
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("cannot read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// valueOrDefault returns the value if non-empty, otherwise the fallback
// with a "(default)" suffix.
func valueOrDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback + " (default)"
}

// exitOnError prints a Result error and exits nonzero.
func exitOnError(res *paybridge.Result) {
	if !res.OK() {
		if res.Status == 0 {
			fmt.Fprintf(os.Stderr, "Request failed: %s\n", res.Err)
		} else {
			fmt.Fprintf(os.Stderr, "Request failed (%d): %s\n", res.Status, res.Err)
		}
		os.Exit(1)
	}
}
