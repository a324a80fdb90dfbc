package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"escrowScope/internal/storage"
)

func newTransfersCmd() *cobra.Command {
	transfersCmd := &cobra.Command{
		Use:   "transfers",
		Short: "Query mirrored transfers",
		RunE:  runTransfers,
	}
	transfersCmd.Flags().String("wallet", "", "list transfers where wallet is sender or recipient")
	transfersCmd.Flags().String("address", "", "fetch one transfer by derived address")
	transfersCmd.Flags().Int("limit", 50, "maximum rows returned")
	return transfersCmd
}

func runTransfers(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	app, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.close()

	wallet, _ := cmd.Flags().GetString("wallet")
	address, _ := cmd.Flags().GetString("address")
	limit, _ := cmd.Flags().GetInt("limit")

	switch {
	case address != "":
		transfer, err := app.store.GetTransferByAddress(ctx, address)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("transfer %s not in mirror", address)
			}
			return err
		}
		return printJSON(transfer)

	case wallet != "":
		transfers, err := app.store.ListTransfersByWallet(ctx, wallet, limit)
		if err != nil {
			return err
		}
		return printJSON(transfers)

	default:
		transfers, err := app.store.ListRecentTransfers(ctx, limit)
		if err != nil {
			return err
		}
		return printJSON(transfers)
	}
}

func newTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens",
		Short: "List known tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			app, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer app.close()

			tokens, err := app.store.ListTokens(ctx)
			if err != nil {
				return err
			}
			return printJSON(tokens)
		},
	}
}

func newPoolCmd() *cobra.Command {
	poolCmd := &cobra.Command{
		Use:   "pool",
		Short: "Show a mirrored pool",
		RunE:  runPool,
	}
	poolCmd.Flags().String("address", "", "pool address")
	return poolCmd
}

func runPool(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	app, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.close()

	address, _ := cmd.Flags().GetString("address")
	if address == "" {
		pool, err := app.store.FirstActivePool(ctx)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("no active pool in mirror")
			}
			return err
		}
		return printJSON(pool)
	}

	pool, err := app.store.GetPoolByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("pool %s not in mirror; run escrowd sync pool", address)
		}
		return err
	}
	return printJSON(pool)
}
