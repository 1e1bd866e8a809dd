// Package cli implements the piday command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/benshaw2/PiDay/internal/buildinfo"
	"github.com/benshaw2/PiDay/internal/config"
	"github.com/benshaw2/PiDay/internal/fit"
	"github.com/benshaw2/PiDay/internal/logger"
)

// ExitFitFailed is the exit status of a command whose fit did not succeed.
const ExitFitFailed = 2

// ExitError carries a specific process exit status. Its message, if any,
// has already been printed.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Execute runs the command line and returns the process exit status.
func Execute() int {
	return run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func run(args []string, in io.Reader, out, errOut io.Writer) int {
	a := &app{}
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	err := cmd.Execute()
	if a.cleanup != nil {
		_ = a.cleanup()
	}
	if err == nil {
		return 0
	}

	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	fmt.Fprintln(errOut, "Error:", err)
	return 1
}

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	configPath string
	debug      bool

	cfg     config.Config
	cleanup func() error
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "piday",
		Short:         "Estimate π from diameter and circumference measurements",
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("debug") {
				cfg.Log.Debug = a.debug
			}
			a.cfg = cfg

			cleanup, err := logger.Setup(logger.Config{
				File:   cfg.Log.File,
				Writer: cmd.ErrOrStderr(),
				Debug:  cfg.Log.Debug,
			})
			if err != nil {
				return fmt.Errorf("failed to set up logging: %w", err)
			}
			a.cleanup = cleanup
			logger.L().Debug("cli.start", "command", cmd.CommandPath(), "config", a.configPath)
			return nil
		},
	}

	cmd.SetVersionTemplate(buildinfo.String() + "\n")
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "configuration file (default "+config.DefaultFile+" if present)")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging to stderr or the configured log file")

	cmd.AddCommand(
		fitCmd(a),
		plotCmd(a),
		engineCmd(a),
		runCmd(a),
		inspectCmd(a),
		versionCmd(),
	)
	return cmd
}

// newFitter builds a Fitter from the configuration. A sandboxed fitter has
// no mixed-effects engine whatever the configuration says.
func (a *app) newFitter(sandbox bool) *fit.Fitter {
	var engine fit.MixedEffectsEngine = fit.Unavailable{}
	if !sandbox && a.cfg.Capabilities.MixedEffects != config.MixedOff {
		engine = &fit.LMM{
			MaxIterations: a.cfg.Fit.MaxIterations,
			Tolerance:     a.cfg.Fit.Tolerance,
			SingularTol:   fit.DefaultSingularTol,
		}
	}
	return fit.New(engine,
		fit.WithLogger(logger.L()),
		fit.WithPreferMixed(a.cfg.Fit.PreferMixed),
	)
}
