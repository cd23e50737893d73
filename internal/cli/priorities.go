package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Swind/go-dispatcher/core"
)

func newPrioritiesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "priorities",
		Short: "List priority levels, highest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			levels := core.Priorities()
			out := cmd.OutOrStdout()
			for i := len(levels) - 1; i >= 0; i-- {
				if _, err := fmt.Fprintf(out, "%2d  %s\n", int(levels[i]), levels[i]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
