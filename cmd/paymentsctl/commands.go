package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papegu/senegal-livres/internal/app"
	"github.com/papegu/senegal-livres/internal/config"
	"github.com/papegu/senegal-livres/internal/model"
	"github.com/papegu/senegal-livres/internal/payment"
	"github.com/papegu/senegal-livres/internal/utils"
)

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Re-dispatch fulfillment for validated orders without a purchase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withApp(func(a *app.App) error {
				n, err := a.Sweeper.Sweep(cmd.Context(), limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "re-dispatched %d order(s)\n", n)
				return nil
			})
		},
	}
	cmd.Flags().IntP("limit", "n", 100, "Maximum orders to re-dispatch")
	return cmd
}

func fulfillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fulfill [orderId]",
		Short: "Fulfill one validated order now, bypassing the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				if err := a.Fulfiller.Fulfill(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s fulfilled\n", args[0])
				return nil
			})
		},
	}
}

func cancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel [orderId]",
		Short: "Cancel a transaction that is still pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, _ := cmd.Flags().GetString("reason")
			return withApp(func(a *app.App) error {
				if err := a.Reconciler.CancelPending(cmd.Context(), args[0], reason); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s cancelled\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringP("reason", "r", "cancelled_by_operator", "Recorded as the provider status")
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, _ := cmd.Flags().GetUint64("user")
			role, _ := cmd.Flags().GetString("role")
			if uid == 0 {
				return fmt.Errorf("--user is required")
			}
			cfg := config.Load()
			tok, err := utils.NewAccessToken(cfg.JWTSecret, uid, role, cfg.AccessTTLMin)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return nil
		},
	}
	cmd.Flags().Uint64P("user", "u", 0, "User id (sub claim)")
	cmd.Flags().String("role", model.RoleCustomer, "Role claim (CUSTOMER or ADMIN)")
	return cmd
}

func methodsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "List payment methods usable with the current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := payment.FromConfig(config.Load())
			for _, m := range reg.Methods() {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
}
