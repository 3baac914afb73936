package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Isna13/BarManagerPro-sub003/internal/logging"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the background sync scheduler until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			go app.Idempotency.StartSweeper(ctx, app.Config.Idempotency.SweepInterval)
			app.Scheduler.Start(ctx)

			fmt.Fprintln(cmd.OutOrStdout(), "barsync running, press Ctrl+C to stop")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-sigCh:
				logging.Info("Shutting down", map[string]interface{}{"signal": sig.String()})
			case <-ctx.Done():
			}

			app.Scheduler.Stop()
			return nil
		},
	}
}
