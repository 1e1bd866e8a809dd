package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benshaw2/PiDay/internal/dataset"
	"github.com/benshaw2/PiDay/internal/logger"
	"github.com/benshaw2/PiDay/internal/plot"
)

func plotCmd(a *app) *cobra.Command {
	var flags fitFlags
	var outPath, format, encoding string
	var width, height int
	var slope, intercept float64
	var withFit bool

	c := &cobra.Command{
		Use:   "plot [data.csv]",
		Short: "Draw a scatter plot of a dataset, optionally with a fitted line",
		Long: `Draw every measurement coloured by specimen name. With --fit the dataset is
fitted first and the line drawn when the fit succeeds. A line can also be
given directly with --slope and --intercept.

The image kind follows the output file's extension (.png, .jpg, .gif, .svg,
.svgz) unless --format is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outPath == "" {
				return fmt.Errorf("--out is required")
			}
			lineGiven := cmd.Flags().Changed("slope") || cmd.Flags().Changed("intercept")
			if lineGiven && withFit {
				return fmt.Errorf("--fit cannot be combined with --slope or --intercept")
			}
			if lineGiven && !(cmd.Flags().Changed("slope") && cmd.Flags().Changed("intercept")) {
				return fmt.Errorf("--slope and --intercept must be given together")
			}

			rows, err := readRows(cmd, argOrEmpty(args))
			if err != nil {
				return err
			}
			ds, err := dataset.Parse(rows)
			if err != nil {
				return err
			}

			spec := plot.Spec{
				Dataset:  ds,
				Encoding: encoding,
				Width:    a.cfg.Plot.Width,
				Height:   a.cfg.Plot.Height,
			}
			if cmd.Flags().Changed("width") {
				spec.Width = width
			}
			if cmd.Flags().Changed("height") {
				spec.Height = height
			}
			if format == "" {
				// An encoding alone still pins the kind of image.
				format = encoding
			}
			if spec.Format, err = plot.ParseFormat(format); err != nil {
				return err
			}

			failed := false
			switch {
			case lineGiven:
				spec.Slope, spec.Intercept = &slope, &intercept
			case withFit:
				req, err := flags.apply(cmd, a)
				if err != nil {
					return err
				}
				result := a.newFitter(false).Fit(ds, req)
				printResult(cmd.OutOrStdout(), result)
				if result.OK {
					spec.Slope, spec.Intercept = result.Slope, result.Intercept
				} else {
					failed = true
				}
			}

			res, err := plot.New(plot.WithLogger(logger.L())).RenderFile(spec, outPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "plot:      %s (%s %s, %dx%d, %d specimens)\n",
				outPath, res.Format, res.Encoding, res.Width, res.Height, len(res.PointColors))

			if failed {
				return &ExitError{Code: ExitFitFailed}
			}
			return nil
		},
	}

	flags.register(c.Flags())
	flags.registerPreferMixed(c.Flags())
	c.Flags().StringVarP(&outPath, "out", "o", "", "image file to write")
	c.Flags().StringVar(&format, "format", "", "image kind: raster|vector (default from the file extension)")
	c.Flags().StringVar(&encoding, "encoding", "", "encoding: png|jpeg|gif|svg|svgz (default from the file extension)")
	c.Flags().IntVar(&width, "width", plot.DefaultWidth, "image width in pixels")
	c.Flags().IntVar(&height, "height", plot.DefaultHeight, "image height in pixels")
	c.Flags().Float64Var(&slope, "slope", 0, "slope of a line to draw")
	c.Flags().Float64Var(&intercept, "intercept", 0, "intercept of a line to draw")
	c.Flags().BoolVar(&withFit, "fit", false, "fit the dataset and draw the fitted line")
	return c
}
