package cli

import (
	"github.com/spf13/cobra"

	"github.com/no-instructions/relay-tools/internal/logging"
	"github.com/no-instructions/relay-tools/internal/watch"
)

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <directory>",
		Short: "Watch a directory tree and report file modifications",
		Long: `Watch monitors the given directory recursively and prints one line
per modified file:

  Modified file: <path>

File creations, deletions, and renames are not reported, but
directories created under the tree are picked up and watched. Watch
runs until interrupted (Ctrl-C).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watch.Run(cmd.Context(), watch.Options{
				Dir:    args[0],
				Out:    cmd.OutOrStdout(),
				Logger: logging.FromContext(cmd.Context()),
			})
		},
	}

	return cmd
}
