package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/arlink/archive"
	"github.com/wippyai/arlink/native"
	"github.com/wippyai/arlink/plan"
	"github.com/wippyai/arlink/target"
)

// EnvPrefix prefixes environment variables bound to global flags, e.g.
// ARLINK_TARGET or ARLINK_SEARCH_PATH.
const EnvPrefix = "ARLINK"

// RootOptions holds global flags for all commands, merged with the
// environment by viper before any subcommand runs.
type RootOptions struct {
	Verbose     bool
	Target      string
	SearchPaths []string

	v *viper.Viper
}

// NewRootCommand creates the root command for the arlink CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "arlink",
		Short: "Resolve native static libraries and build archives",
		Long: `arlink locates static libraries on a search path and builds static
archives from object files, other archives and synthesized import libraries.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.load(cmd); err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			installLogger(opts.Verbose)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringP("target", "t", "", "target triple (default: host)")
	cmd.PersistentFlags().StringSliceP("search-path", "L", nil, "library search directory (repeatable, searched in order)")

	// Add subcommands
	cmd.AddCommand(NewFindCommand(opts))
	cmd.AddCommand(NewBuildCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewTargetsCommand(opts))

	return cmd
}

func (o *RootOptions) load(cmd *cobra.Command) error {
	o.v.SetEnvPrefix(EnvPrefix)
	o.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	o.v.AutomaticEnv()
	if err := o.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	o.Verbose = o.v.GetBool("verbose")
	o.Target = o.v.GetString("target")
	o.SearchPaths = splitSearchPaths(o.v.GetStringSlice("search-path"))
	return nil
}

// splitSearchPaths also accepts an os.PathListSeparator separated list, the
// usual shape of a search path in the environment.
func splitSearchPaths(in []string) []string {
	var out []string
	for _, p := range in {
		for _, part := range filepath.SplitList(p) {
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// resolveTarget returns the selected target, or the host when none is set.
func (o *RootOptions) resolveTarget() (target.Target, error) {
	if o.Target == "" {
		return target.Host()
	}
	return target.Lookup(o.Target)
}

func installLogger(verbose bool) {
	var (
		l   *zap.Logger
		err error
	)
	if verbose {
		l, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		cfg.OutputPaths = []string{"stderr"}
		l, err = cfg.Build()
	}
	if err != nil {
		l = zap.NewNop()
	}
	native.SetLogger(l.Named("native"))
	archive.SetLogger(l.Named("archive"))
	plan.SetLogger(l.Named("plan"))
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	cmd := NewRootCommand()
	err := cmd.Execute()
	if err != nil {
		cmd.PrintErrln(errorStyle.Render("error: ") + err.Error())
	}
	return GetExitCode(err)
}

func isTerminal(f any) bool {
	file, ok := f.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
