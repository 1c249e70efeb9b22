package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	arerrors "github.com/wippyai/arlink/errors"
	"github.com/wippyai/arlink/native"
)

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	var verbatim bool

	cmd := &cobra.Command{
		Use:   "find NAME...",
		Short: "Locate static libraries on the search path",
		Long: `Locate static libraries by name.

Each -L directory is searched in order. Within a directory the target's
decorated name (e.g. foo.lib or libfoo.a) is tried before lib<name>.a.
With --verbatim the name is used as the file name as given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(cmd, rootOpts, args, verbatim)
		},
	}

	cmd.Flags().BoolVar(&verbatim, "verbatim", false, "use names as file names without target decoration")

	return cmd
}

func runFind(cmd *cobra.Command, opts *RootOptions, names []string, verbatim bool) error {
	t, err := opts.resolveTarget()
	if err != nil {
		return WrapExitError(ExitCommandError, "unknown target", err)
	}

	libs := make([]native.Library, len(names))
	for i, n := range names {
		libs[i] = native.Library{Name: n, Verbatim: verbatim}
	}

	paths, err := native.NewResolver().FindAll(cmd.Context(), libs, opts.SearchPaths, t)
	if err != nil {
		var unresolved *arerrors.UnresolvedLibrariesError
		if errors.As(err, &unresolved) {
			return WrapExitError(ExitFailure, "resolution failed", err)
		}
		return WrapExitError(ExitCommandError, "resolution failed", err)
	}

	out := cmd.OutOrStdout()
	for i, lib := range libs {
		fmt.Fprintf(out, "%s %s\n", nameStyle.Render(lib.Name), pathStyle.Render(paths[i]))
	}
	return nil
}
