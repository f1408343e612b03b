// Command paymentsctl holds operator tasks: re-driving fulfillment,
// cancelling stuck orders and minting development tokens.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papegu/senegal-livres/internal/app"
	"github.com/papegu/senegal-livres/internal/config"
	"github.com/papegu/senegal-livres/internal/database"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "paymentsctl",
		Short:         "Operator tools for payments and fulfillment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(fulfillCmd())
	rootCmd.AddCommand(cancelCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(methodsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// withApp opens the database, builds the application and runs fn.  It
// waits for background fulfillment before closing the database.
func withApp(fn func(a *app.App) error) error {
	cfg := config.Load()
	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	a := app.Build(cfg, db)
	defer a.Drain()
	return fn(a)
}
