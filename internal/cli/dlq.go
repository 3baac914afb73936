package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Isna13/BarManagerPro-sub003/internal/models"
)

func newDLQCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and manage dead-lettered mutations",
	}
	cmd.AddCommand(newDLQListCmd(), newDLQRequeueCmd(), newDLQDiscardCmd())
	return cmd
}

func newDLQListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List dead-lettered mutations",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			entries, err := app.Queue.ListDeadLetters()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "dead-letter queue is empty")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%s  %s %s %s  attempts=%d  failed=%s\n  reason: %s\n",
					e.ID, e.Operation, e.EntityType, e.EntityID,
					e.AttemptCount,
					time.Unix(e.FailedAt, 0).Format("2006-01-02 15:04:05"),
					e.Reason)
				if e.LastError != "" {
					fmt.Fprintf(out, "  error:  %s\n", e.LastError)
				}
			}
			return nil
		},
	}
}

func newDLQRequeueCmd() *cobra.Command {
	var payloadFile string

	cmd := &cobra.Command{
		Use:   "requeue <entry-id>",
		Short: "Move a dead-lettered mutation back into the queue",
		Long: `Requeue revives a dead-lettered mutation with a fresh retry budget.
Pass --payload to submit an operator-corrected payload instead of the
original one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			var payload json.RawMessage
			if payloadFile != "" {
				raw, err := os.ReadFile(payloadFile)
				if err != nil {
					return fmt.Errorf("failed to read payload file: %w", err)
				}
				if !json.Valid(raw) {
					return fmt.Errorf("payload file %s is not valid JSON", payloadFile)
				}
				payload = raw
			}

			item, err := app.Queue.Requeue(models.UUID(args[0]), payload)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requeued as %s (%s %s %s)\n",
				item.ID, item.Operation, item.EntityType, item.EntityID)
			return nil
		},
	}

	cmd.Flags().StringVar(&payloadFile, "payload", "", "JSON file with a corrected payload")
	return cmd
}

func newDLQDiscardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discard <entry-id>",
		Short: "Drop a dead-lettered mutation permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Queue.Discard(models.UUID(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "discarded %s\n", args[0])
			return nil
		},
	}
}
