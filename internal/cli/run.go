package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/benshaw2/PiDay/internal/bridge"
	"github.com/benshaw2/PiDay/internal/dataset"
	"github.com/benshaw2/PiDay/internal/fit"
	"github.com/benshaw2/PiDay/internal/logger"
	"github.com/benshaw2/PiDay/internal/plot"
)

func runCmd(a *app) *cobra.Command {
	var flags fitFlags
	var outPath string
	var width, height int

	c := &cobra.Command{
		Use:   "run [data.csv]",
		Short: "Fit and plot a dataset through a sandboxed engine process",
		Long: `Start the configured engine (by default this program's own "engine --sandbox"),
send it the dataset, and print the decoded result. With --out the engine's
plot is copied from the session scratch directory to that file.

The whole exchange is bounded by engine.timeout. A fit that fails exits with
status 2. Whether a mixed-effects fit replaces the least-squares line is
decided by the engine's own configuration, so there is no --prefer-mixed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.apply(cmd, a)
			if err != nil {
				return err
			}
			rows, err := readRows(cmd, argOrEmpty(args))
			if err != nil {
				return err
			}
			if len(rows) < 2 {
				printResult(cmd.OutOrStdout(), fit.Failure(fit.MsgInsufficientData))
				return &ExitError{Code: ExitFitFailed}
			}
			ds, err := dataset.Parse(rows)
			if err != nil {
				// Mirrors the engine, which fails the fit on the first bad value.
				printResult(cmd.OutOrStdout(), fit.Failure("linear model failed: "+err.Error()))
				return &ExitError{Code: ExitFitFailed}
			}

			render := &bridge.RenderOptions{Width: a.cfg.Plot.Width, Height: a.cfg.Plot.Height}
			if cmd.Flags().Changed("width") {
				render.Width = width
			}
			if cmd.Flags().Changed("height") {
				render.Height = height
			}
			if outPath != "" {
				render.Format, render.Encoding = plot.ForPath(outPath)
			} else if render.Format, err = plot.ParseFormat(a.cfg.Plot.Format); err != nil {
				return err
			}

			command, err := a.engineCommand()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Engine.Timeout)
			defer cancel()

			sess, err := bridge.Start(ctx, command,
				bridge.WithScratchDir(a.cfg.Engine.ScratchDir),
				bridge.WithLogger(logger.L()),
			)
			if err != nil {
				return err
			}
			defer sess.Close()

			if req.AllowMixedEffects && req.Tier != fit.FixedOnly {
				caps, err := sess.Capabilities(ctx)
				if err != nil {
					return err
				}
				if !caps.MixedEffectsAvailable {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: engine %q cannot fit mixed-effects models; only the least-squares line is available\n", caps.Engine)
				}
			}

			out, err := sess.FitAndRender(ctx, ds, req, render)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			printResult(w, out.Result)
			printMixed(w, req.Tier, out.Mixed)
			switch {
			case out.PlotError != "":
				fmt.Fprintf(w, "plot:      not drawn: %s\n", out.PlotError)
			case outPath != "":
				if err := os.WriteFile(outPath, out.Image, 0o644); err != nil {
					return fmt.Errorf("failed to write plot: %w", err)
				}
				fmt.Fprintf(w, "plot:      %s\n", outPath)
			}

			if !out.Result.OK {
				return &ExitError{Code: ExitFitFailed}
			}
			return nil
		},
	}

	flags.register(c.Flags())
	c.Flags().StringVarP(&outPath, "out", "o", "", "copy the engine's plot to this file")
	c.Flags().IntVar(&width, "width", plot.DefaultWidth, "image width in pixels")
	c.Flags().IntVar(&height, "height", plot.DefaultHeight, "image height in pixels")
	return c
}

// engineCommand is the configured engine command, or this executable in
// sandbox mode.
func (a *app) engineCommand() ([]string, error) {
	if len(a.cfg.Engine.Command) > 0 {
		return a.cfg.Engine.Command, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate engine executable: %w", err)
	}
	command := []string{exe, "engine", "--sandbox"}
	if a.cfg.Log.Debug {
		command = append(command, "--debug")
	}
	return command, nil
}
