package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"escrowScope/internal/builder"
)

func newTxCmd() *cobra.Command {
	txCmd := &cobra.Command{
		Use:   "tx",
		Short: "Build and submit escrow operations",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Build an unsigned create-transfer batch",
		RunE:  runTxCreate,
	}
	createCmd.Flags().String("sender", "", "sender wallet address")
	createCmd.Flags().String("recipient", "", "recipient wallet address")
	createCmd.Flags().Uint64("amount", 0, "amount in raw token units")
	createCmd.Flags().String("pool", "", "explicit pool address")
	createCmd.Flags().String("mint", "", "resolve pool by token mint")
	createCmd.Flags().String("token", "", "resolve pool by token symbol")
	createCmd.Flags().String("memo", "", "optional memo (max 64 bytes)")
	createCmd.Flags().Int64("claimable-after", 0, "claim window start, unix seconds (0 = immediate)")
	createCmd.Flags().Int64("claimable-until", 0, "claim window end, unix seconds (0 = no deadline)")
	txCmd.AddCommand(createCmd)

	claimCmd := &cobra.Command{
		Use:   "claim",
		Short: "Build an unsigned claim batch",
		RunE:  runTxClaim,
	}
	claimCmd.Flags().String("claimer", "", "recipient wallet address")
	claimCmd.Flags().String("transfer", "", "transfer record address")
	txCmd.AddCommand(claimCmd)

	cancelCmd := &cobra.Command{
		Use:   "cancel",
		Short: "Build an unsigned cancel batch",
		RunE:  runTxCancel,
	}
	cancelCmd.Flags().String("canceller", "", "sender wallet address")
	cancelCmd.Flags().String("transfer", "", "transfer record address")
	txCmd.AddCommand(cancelCmd)

	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a signed batch and reconcile on confirmation",
		RunE:  runTxSubmit,
	}
	submitCmd.Flags().String("tx", "", "base64 signed transaction (reads stdin when empty)")
	txCmd.AddCommand(submitCmd)

	return txCmd
}

func runTxCreate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	app, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.close()

	sender, err := flagPublicKey(cmd, "sender")
	if err != nil {
		return err
	}
	recipient, err := flagPublicKey(cmd, "recipient")
	if err != nil {
		return err
	}

	amount, _ := cmd.Flags().GetUint64("amount")
	poolAddr, _ := cmd.Flags().GetString("pool")
	mint, _ := cmd.Flags().GetString("mint")
	token, _ := cmd.Flags().GetString("token")
	memo, _ := cmd.Flags().GetString("memo")
	claimableAfter, _ := cmd.Flags().GetInt64("claimable-after")
	claimableUntil, _ := cmd.Flags().GetInt64("claimable-until")

	result, err := app.builder.BuildCreate(ctx, builder.CreateParams{
		Sender:         sender,
		Recipient:      recipient,
		PoolAddress:    poolAddr,
		Mint:           mint,
		TokenSymbol:    token,
		Amount:         amount,
		Memo:           memo,
		ClaimableAfter: claimableAfter,
		ClaimableUntil: claimableUntil,
	})
	if err != nil {
		return err
	}

	app.logger.Info("create batch built",
		zap.String("transfer", result.Address.String()),
		zap.Uint64("nonce", result.Nonce),
	)
	return printJSON(map[string]any{
		"transaction":     result.TxBase64,
		"transferAddress": result.Address.String(),
		"nonce":           result.Nonce,
		"feePayer":        result.FeePayer.String(),
		"expectedFee":     result.ExpectedFee,
		"netToRecipient":  result.NetToRecipient,
		"message":         "sign and submit via escrowd tx submit",
	})
}

func runTxClaim(cmd *cobra.Command, _ []string) error {
	return runResolveBuild(cmd, "claimer", func(ctx cmdContext, who, transfer solana.PublicKey) (*builder.BuildResult, error) {
		return ctx.app.builder.BuildClaim(ctx.ctx, who, transfer)
	})
}

func runTxCancel(cmd *cobra.Command, _ []string) error {
	return runResolveBuild(cmd, "canceller", func(ctx cmdContext, who, transfer solana.PublicKey) (*builder.BuildResult, error) {
		return ctx.app.builder.BuildCancel(ctx.ctx, who, transfer)
	})
}

func runTxSubmit(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	app, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.close()

	encoded, _ := cmd.Flags().GetString("tx")
	if encoded == "" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read transaction from stdin: %w", err)
		}
		encoded = strings.TrimSpace(string(raw))
	}
	if encoded == "" {
		return fmt.Errorf("signed transaction is required")
	}

	sig, err := app.gateway.Submit(ctx, encoded)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"opId": sig.String()})
}

type cmdContext struct {
	ctx context.Context
	app *app
}

func runResolveBuild(cmd *cobra.Command, whoFlag string, build func(cmdContext, solana.PublicKey, solana.PublicKey) (*builder.BuildResult, error)) error {
	ctx, stop := signalContext()
	defer stop()

	app, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.close()

	who, err := flagPublicKey(cmd, whoFlag)
	if err != nil {
		return err
	}
	transfer, err := flagPublicKey(cmd, "transfer")
	if err != nil {
		return err
	}

	result, err := build(cmdContext{ctx: ctx, app: app}, who, transfer)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"transaction": result.TxBase64,
		"feePayer":    result.FeePayer.String(),
		"message":     "sign and submit via escrowd tx submit",
	})
}

func flagPublicKey(cmd *cobra.Command, name string) (solana.PublicKey, error) {
	value, _ := cmd.Flags().GetString(name)
	if value == "" {
		return solana.PublicKey{}, fmt.Errorf("--%s is required", name)
	}
	pk, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("parse --%s: %w", name, err)
	}
	return pk, nil
}
