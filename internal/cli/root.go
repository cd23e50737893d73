// Package cli implements the dispatcher-demo command line.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the dispatcher-demo command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "dispatcher-demo",
		Short: "Exercise a priority dispatcher bound to one affinity goroutine",
		Long: `dispatcher-demo binds a dispatcher to a goroutine event loop and drives it with
producers at mixed priorities, interval and cron timers, and blocking invokes made
from inside jobs. Settings come from dispatcher.yaml, the environment
(DISPATCHER_* variables) and an optional .env file.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "config file (default is ./dispatcher.yaml when present)")
	root.PersistentFlags().StringSlice("env-file", nil, "env files loaded before the config (default .env)")

	root.AddCommand(newRunCommand())
	root.AddCommand(newPrioritiesCommand())
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}
