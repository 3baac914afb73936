package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	var pushOnly bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle now and wait for it to finish",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()

			if pushOnly {
				res, err := app.Engine.Push(cmd.Context())
				if res != nil {
					fmt.Fprintf(out, "pushed %d, retried %d, deferred %d, dead-lettered %d, conflicts %d\n",
						res.Completed, res.Retried, res.Deferred, res.DeadLettered, res.Conflicts)
				}
				return err
			}

			res, err := app.Engine.SyncNow(cmd.Context())
			if res != nil && res.Push != nil {
				fmt.Fprintf(out, "pushed %d, retried %d, deferred %d, dead-lettered %d, conflicts %d\n",
					res.Push.Completed, res.Push.Retried, res.Push.Deferred,
					res.Push.DeadLettered, res.Push.Conflicts)
			}
			if res != nil && res.Pull != nil {
				fmt.Fprintf(out, "pulled %d applied, %d skipped, %d deferred\n",
					res.Pull.Applied, res.Pull.Skipped, res.Pull.Deferred)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&pushOnly, "push-only", false, "drain the queue without pulling remote changes")
	return cmd
}

func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Pull and merge remote changes without pushing",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Engine.Pull(cmd.Context())
			if res != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "pulled %d applied, %d skipped, %d deferred across %d pages\n",
					res.Applied, res.Skipped, res.Deferred, res.Pages)
			}
			return err
		},
	}
}
