package main

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"escrowScope/internal/chain"
	"escrowScope/internal/model"
	"escrowScope/internal/program"
)

func newSyncCmd() *cobra.Command {
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile mirror state from the ledger",
	}

	opCmd := &cobra.Command{
		Use:   "op <signature>",
		Short: "Reconcile one confirmed operation",
		Args:  cobra.ExactArgs(1),
		RunE:  runSyncOp,
	}
	syncCmd.AddCommand(opCmd)

	poolCmd := &cobra.Command{
		Use:   "pool",
		Short: "Materialize a pool (and its token) from the ledger",
		RunE:  runSyncPool,
	}
	poolCmd.Flags().String("name", "", "human-readable pool name (derives the pool id)")
	poolCmd.Flags().String("address", "", "explicit pool address (overrides --name)")
	poolCmd.Flags().String("token-name", "", "curated token name for the pool's mint")
	poolCmd.Flags().String("token-symbol", "", "curated token symbol for the pool's mint")
	poolCmd.Flags().Uint8("token-decimals", 0, "curated token decimals for the pool's mint")
	syncCmd.AddCommand(poolCmd)

	return syncCmd
}

func runSyncOp(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	app, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.close()

	sig, err := solana.SignatureFromBase58(args[0])
	if err != nil {
		return fmt.Errorf("parse signature: %w", err)
	}

	if err := chain.WithRetry(ctx, app.cfg.MaxRetries, app.cfg.RetryBackoff, func(ctx context.Context) error {
		return app.reconciler.Reconcile(ctx, sig)
	}); err != nil {
		return err
	}
	return printJSON(map[string]any{"opId": sig.String(), "reconciled": true})
}

func runSyncPool(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	app, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.close()

	name, _ := cmd.Flags().GetString("name")
	address, _ := cmd.Flags().GetString("address")

	var poolAddr solana.PublicKey
	switch {
	case address != "":
		poolAddr, err = solana.PublicKeyFromBase58(address)
		if err != nil {
			return fmt.Errorf("parse pool address: %w", err)
		}
	case name != "":
		poolID := program.NamedPoolID(name)
		poolAddr, _, err = program.DerivePoolAddress(app.programID, poolID)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("either --name or --address is required")
	}

	data, err := app.chain.FetchAccount(ctx, poolAddr)
	if err != nil {
		return fmt.Errorf("pool %s not on ledger: %w", poolAddr, err)
	}
	poolAcc, err := program.DecodePool(data)
	if err != nil {
		return fmt.Errorf("decode pool %s: %w", poolAddr, err)
	}

	token := model.Token{
		Mint:     poolAcc.Mint.String(),
		Name:     model.PlaceholderTokenName,
		Symbol:   model.PlaceholderTokenSymbol,
		Decimals: model.PlaceholderTokenDecimals,
	}
	if curatedName, _ := cmd.Flags().GetString("token-name"); curatedName != "" {
		token.Name = curatedName
	}
	if curatedSymbol, _ := cmd.Flags().GetString("token-symbol"); curatedSymbol != "" {
		token.Symbol = curatedSymbol
	}
	if curatedDecimals, _ := cmd.Flags().GetUint8("token-decimals"); curatedDecimals > 0 {
		token.Decimals = curatedDecimals
	}

	storedToken, err := app.store.UpsertToken(ctx, token)
	if err != nil {
		return err
	}

	storedPool, err := app.store.UpsertPool(ctx, model.Pool{
		PoolID:                 poolAcc.PoolID.String(),
		Address:                poolAddr.String(),
		Operator:               poolAcc.Operator.String(),
		TokenID:                storedToken.ID,
		FeeBps:                 poolAcc.FeeBps,
		TotalDeposits:          poolAcc.TotalDeposits,
		TotalWithdrawals:       poolAcc.TotalWithdrawals,
		TotalEscrowed:          poolAcc.TotalEscrowed,
		TotalTransfersCreated:  poolAcc.TotalTransfersCreated,
		TotalTransfersResolved: poolAcc.TotalTransfersResolved,
		CollectedFees:          poolAcc.CollectedFees,
		IsPaused:               poolAcc.IsPaused,
	})
	if err != nil {
		return err
	}

	app.logger.Info("pool synced",
		zap.String("address", storedPool.Address),
		zap.String("mint", storedToken.Mint),
		zap.Uint16("fee_bps", storedPool.FeeBps),
	)
	return printJSON(storedPool)
}
