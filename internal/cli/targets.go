package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wippyai/arlink/target"
)

// NewTargetsCommand creates the targets command.
func NewTargetsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List known target triples",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, name := range target.Names() {
				t, err := target.Lookup(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-28s %s\n", nameStyle.Render(name),
					dimStyle.Render(fmt.Sprintf("%s%s%s %s", t.Staticlib.Prefix, "<name>", t.Staticlib.Suffix, t.ArchiveFormat)))
			}
			return nil
		},
	}
}
