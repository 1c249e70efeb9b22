package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	arerrors "github.com/wippyai/arlink/errors"
	"github.com/wippyai/arlink/native"
	"github.com/wippyai/arlink/plan"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	Parallel int
	Progress bool
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{}

	cmd := &cobra.Command{
		Use:   "build MANIFEST",
		Short: "Build the archives described by a manifest",
		Long: `Build every archive described by a YAML manifest.

All libraries referenced by "library:" merge sources are resolved first;
a missing library aborts the run before any archive is written. Archives
are then built concurrently. -L directories are searched after the
manifest's own search_paths, and --target overrides the manifest target.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Parallel < 0 {
				return NewExitError(ExitCommandError, "--parallel must not be negative")
			}
			if !cmd.Flags().Changed("progress") {
				opts.Progress = isTerminal(cmd.OutOrStdout())
			}
			return runBuild(cmd, rootOpts, opts, args[0])
		},
	}

	cmd.Flags().IntVarP(&opts.Parallel, "parallel", "j", 0, "maximum concurrent archive builds (0: unbounded)")
	cmd.Flags().BoolVar(&opts.Progress, "progress", false, "show an interactive progress view (default: when stdout is a terminal)")

	return cmd
}

func runBuild(cmd *cobra.Command, rootOpts *RootOptions, opts *BuildOptions, manifestPath string) error {
	m, err := plan.Load(manifestPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid manifest", err)
	}

	runOpts := plan.Options{
		SearchPaths: rootOpts.SearchPaths,
		Parallelism: opts.Parallel,
		Resolver:    native.NewResolver(),
	}
	if rootOpts.Target != "" || m.Target == "" {
		t, err := rootOpts.resolveTarget()
		if err != nil {
			return WrapExitError(ExitCommandError, "unknown target", err)
		}
		runOpts.Target = t
	}

	var res *plan.Result
	if opts.Progress {
		res, err = runWithProgress(cmd.Context(), cmd.OutOrStdout(), m, runOpts)
	} else {
		res, err = plan.Run(cmd.Context(), m, runOpts)
	}
	if err != nil {
		return buildExitError(err)
	}

	printSummary(cmd.OutOrStdout(), res)
	return nil
}

func buildExitError(err error) error {
	var e *arerrors.Error
	if errors.As(err, &e) && e.Phase == arerrors.PhaseConfig {
		return WrapExitError(ExitCommandError, "build failed", err)
	}
	return WrapExitError(ExitFailure, "build failed", err)
}

func printSummary(w io.Writer, res *plan.Result) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d archive(s) for %s", len(res.Archives), res.Target.Name)))
	for _, a := range res.Archives {
		fmt.Fprintf(w, "%s %s %s\n",
			okStyle.Render("✓"),
			pathStyle.Render(a.Output),
			dimStyle.Render(fmt.Sprintf("%d members, %s", len(a.Members), a.Duration.Round(time.Millisecond))))
	}
}

// runWithProgress runs the plan while a bubbletea view follows its events.
func runWithProgress(ctx context.Context, w io.Writer, m *plan.Manifest, opts plan.Options) (*plan.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := newProgressModel(m, cancel)
	p := tea.NewProgram(model, tea.WithOutput(w), tea.WithContext(ctx))

	opts.Reporter = plan.ReporterFunc(func(e plan.Event) {
		p.Send(eventMsg(e))
	})

	var (
		res    *plan.Result
		runErr error
		ran    = make(chan struct{})
	)
	go func() {
		defer close(ran)
		res, runErr = plan.Run(ctx, m, opts)
		p.Send(doneMsg{err: runErr})
	}()

	_, viewErr := p.Run()
	cancel()
	<-ran
	if runErr != nil {
		return nil, runErr
	}
	if viewErr != nil && !errors.Is(viewErr, tea.ErrProgramKilled) {
		return nil, viewErr
	}
	return res, nil
}
