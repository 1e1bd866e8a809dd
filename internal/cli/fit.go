package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/benshaw2/PiDay/internal/codec"
	"github.com/benshaw2/PiDay/internal/fit"
)

// Output formats for fit results.
const (
	outputText = "text"
	outputWire = "wire"
	outputJSON = "json"
)

func fitCmd(a *app) *cobra.Command {
	var flags fitFlags
	var output string
	var sandbox bool

	c := &cobra.Command{
		Use:   "fit [data.csv]",
		Short: "Fit a dataset and print the π estimate",
		Long: `Fit Circumference against Diameter by least squares and print the slope,
which estimates π. The dataset is CSV with a Name,Diameter,Circumference
header, read from the named file or from stdin.

A fit that fails prints its reason and exits with status 2.`,
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

			rep := a.newFitter(sandbox).FitRaw(rows, req)
			if err := printReport(cmd.OutOrStdout(), rep, output); err != nil {
				return err
			}
			if !rep.Result.OK {
				return &ExitError{Code: ExitFitFailed}
			}
			return nil
		},
	}

	flags.register(c.Flags())
	flags.registerPreferMixed(c.Flags())
	c.Flags().StringVarP(&output, "output", "o", outputText, "output format: text|wire|json")
	c.Flags().BoolVar(&sandbox, "sandbox", false, "fit without mixed-effects support")
	return c
}

func printReport(w io.Writer, rep fit.Report, format string) error {
	switch format {
	case outputWire:
		line, err := codec.Encode(rep.Result)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, line)
		return err
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case outputText, "":
		printResult(w, rep.Result)
		printMixed(w, rep.Request.Tier, rep.Mixed)
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (expected text|wire|json)", format)
	}
}

// printMixed reports the mixed-effects attempt, if one was made.
func printMixed(w io.Writer, tier fit.Tier, m *fit.MixedOutcome) {
	if m == nil {
		return
	}
	fmt.Fprintf(w, "model:     %s\n", tier.Formula())
	fmt.Fprintf(w, "mixed:     %s\n", m.Message)
}

// printResult prints a failed result's message verbatim, or the estimate
// and coefficients of a successful one.
func printResult(w io.Writer, r fit.Result) {
	slope, ok := r.Estimate()
	if !ok {
		fmt.Fprintln(w, r.Message)
		return
	}
	fmt.Fprintf(w, "π ≈ %s\n", strconv.FormatFloat(slope, 'f', 4, 64))
	fmt.Fprintf(w, "slope:     %s\n", strconv.FormatFloat(slope, 'g', -1, 64))
	fmt.Fprintf(w, "intercept: %s\n", strconv.FormatFloat(*r.Intercept, 'g', -1, 64))
	fmt.Fprintf(w, "message:   %s\n", r.Message)
}
