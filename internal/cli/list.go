package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wippyai/arlink/internal/arfile"
)

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list ARCHIVE",
		Short: "List the members of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, args[0])
		},
	}
	return cmd
}

func runList(cmd *cobra.Command, path string) error {
	a, err := arfile.Open(path)
	if err != nil {
		return WrapExitError(ExitFailure, "cannot read archive", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%s (%s, %d members)", path, a.Format, len(a.Members))))
	for _, m := range a.Members {
		fmt.Fprintf(out, "%10d  %s\n", m.Size, nameStyle.Render(m.Name))
	}
	return nil
}
