package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"escrowScope/internal/builder"
	"escrowScope/internal/chain"
	"escrowScope/internal/config"
	"escrowScope/internal/gateway"
	"escrowScope/internal/reconcile"
	"escrowScope/internal/storage"
	"escrowScope/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "escrowd",
		Short:        "Escrow transfer construction and mirror reconciliation",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("rpc", "", "Solana RPC URL")
	root.PersistentFlags().String("program-id", "", "handshake program id")
	root.PersistentFlags().String("pg-dsn", "", "Postgres DSN for the mirror")
	root.PersistentFlags().Duration("confirm-timeout", 0, "bounded wait for confirmation")
	root.PersistentFlags().Duration("poll-interval", 0, "confirmation poll interval")
	root.PersistentFlags().Int("max-retries", 5, "maximum retry attempts for reads")
	root.PersistentFlags().Duration("retry-backoff", 0, "initial retry backoff")
	root.PersistentFlags().String("journal", "", "reconcile journal JSONL path")
	root.PersistentFlags().Bool("journal-enabled", true, "enable the reconcile journal")
	root.PersistentFlags().Duration("pending-max-age", 0, "age after which unconfirmed PENDING rows are swept")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newTxCmd())
	root.AddCommand(newSyncCmd())
	root.AddCommand(newTransfersCmd())
	root.AddCommand(newTokensCmd())
	root.AddCommand(newPoolCmd())
	root.AddCommand(newSweepCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the wired components a subcommand needs. Everything is
// constructed explicitly from Config; no globals.
type app struct {
	cfg        config.Config
	logger     *zap.Logger
	chain      *chain.Client
	store      *postgres.Store
	journal    storage.Journal
	builder    *builder.Builder
	reconciler *reconcile.Reconciler
	gateway    *gateway.Gateway
	programID  solana.PublicKey
}

func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	programID, err := solana.PublicKeyFromBase58(cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("parse program id: %w", err)
	}

	chainClient, err := chain.NewClient(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	if cfg.PGDSN == "" {
		chainClient.Close()
		return nil, fmt.Errorf("pg-dsn is required")
	}
	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		chainClient.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		chainClient.Close()
		return nil, err
	}

	var journal storage.Journal = storage.NopJournal{}
	if cfg.JournalEnabled {
		journal = storage.NewJsonlJournal(cfg.JournalPath)
	}

	reconciler := reconcile.New(chainClient, store, journal, programID, logger)
	txBuilder := builder.New(chainClient, store, programID, logger)
	gw := gateway.New(gateway.Config{
		ConfirmTimeout: cfg.ConfirmTimeout,
		PollInterval:   cfg.PollInterval,
	}, chainClient, reconciler, logger)

	return &app{
		cfg:        cfg,
		logger:     logger,
		chain:      chainClient,
		store:      store,
		journal:    journal,
		builder:    txBuilder,
		reconciler: reconciler,
		gateway:    gw,
		programID:  programID,
	}, nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.chain != nil {
		a.chain.Close()
	}
	if a.logger != nil {
		a.logger.Sync()
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
