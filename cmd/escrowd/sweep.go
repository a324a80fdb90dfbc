package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete PENDING rows whose operation never confirmed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			app, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer app.close()

			cutoff := time.Now().UTC().Add(-app.cfg.PendingMaxAge)
			removed, err := app.store.DeleteStalePending(ctx, cutoff)
			if err != nil {
				return err
			}

			app.logger.Info("pending sweep complete",
				zap.Int64("removed", removed),
				zap.Time("cutoff", cutoff),
			)
			return printJSON(map[string]any{"removed": removed})
		},
	}
}
