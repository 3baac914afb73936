package cli

import (
	"github.com/spf13/cobra"
)

var configPath string

// NewRootCmd builds the barsync command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "barsync",
		Short: "Offline-first sync engine for point-of-sale terminals",
		Long: `barsync keeps a terminal's local SQLite state and the central store
converged. Local writes land in a durable queue and are pushed in
dependency order when the network allows; remote changes are pulled
through a cursor-backed feed and merged without clobbering unpushed
local work.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to barsync.yaml")

	root.AddCommand(
		newRunCmd(),
		newSyncCmd(),
		newStatusCmd(),
		newPullCmd(),
		newDLQCmd(),
	)
	return root
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}
