package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue depth and sync state",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()

			info, err := app.Engine.Info()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "status:  %s\n", info.Status)
			if !info.LastSync.IsZero() {
				fmt.Fprintf(out, "last sync: %s\n", info.LastSync.Format("2006-01-02 15:04:05"))
			}
			if info.LastError != "" {
				fmt.Fprintf(out, "last error: %s\n", info.LastError)
			}
			fmt.Fprintf(out, "pending: %d\n", info.PendingChanges)

			cursor, err := app.Engine.Cursor()
			if err != nil {
				return err
			}
			if cursor != nil {
				fmt.Fprintf(out, "cursor:  %s (advanced %s)\n",
					cursor.Token, time.Unix(cursor.UpdatedAt, 0).Format("2006-01-02 15:04:05"))
			}

			stats, err := app.Queue.Stats()
			if err != nil {
				return err
			}
			statuses := make([]string, 0, len(stats))
			for s := range stats {
				statuses = append(statuses, s)
			}
			sort.Strings(statuses)
			for _, s := range statuses {
				fmt.Fprintf(out, "  %-12s %d\n", s, stats[s])
			}
			return nil
		},
	}
}
