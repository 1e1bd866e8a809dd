package cli

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/benshaw2/PiDay/internal/imaging"
	"github.com/benshaw2/PiDay/internal/plot"
)

type inspectReport struct {
	Image     *imaging.ImageInfo      `json:"image"`
	Colors    *imaging.CoverageResult `json:"colors"`
	Line      *imaging.Segment        `json:"line,omitempty"`
	Thumbnail *thumbnailReport        `json:"thumbnail,omitempty"`
}

type thumbnailReport struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func inspectCmd(a *app) *cobra.Command {
	var palette []string
	var specimens, top int
	var tolerance float64
	var thumbPath, caption, trace string
	var thumbSize int

	c := &cobra.Command{
		Use:   "inspect <image>",
		Short: "Report an image's size and colour coverage",
		Long: `Describe a raster image and how much of it is painted in each colour.

With --palette or --specimens the coverage of those colours is reported;
--specimens N checks the colours a plot of N specimens uses, plus the line
colour. Otherwise the most common colours are listed. --trace finds the
straight line drawn in the given colour, such as a plot's fitted line.
--thumbnail writes a small PNG preview with an optional caption.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			store, err := imaging.NewStore(filepath.Dir(path))
			if err != nil {
				return err
			}

			info, err := imaging.LoadImageInfo(store, path)
			if err != nil {
				return err
			}
			img, err := store.Load(path)
			if err != nil {
				return err
			}

			hexes := append([]string(nil), palette...)
			if specimens > 0 {
				for _, c := range plot.Palette(specimens) {
					hexes = append(hexes, c.Hex())
				}
				hexes = append(hexes, plot.AccentColor)
			}

			rep := inspectReport{Image: info}
			if len(hexes) > 0 {
				rep.Colors, err = imaging.PaletteCoverage(img, hexes, tolerance)
			} else {
				rep.Colors, err = imaging.DominantColors(img, top)
			}
			if err != nil {
				return err
			}

			if trace != "" {
				rep.Line, err = imaging.TraceLine(img, trace, tolerance)
				if err != nil {
					return err
				}
			}

			if thumbPath != "" {
				thumb, err := imaging.Thumbnail(img, thumbSize, thumbSize, caption)
				if err != nil {
					return err
				}
				data, err := base64.StdEncoding.DecodeString(thumb.ImageBase64)
				if err != nil {
					return err
				}
				if err := os.WriteFile(thumbPath, data, 0o644); err != nil {
					return fmt.Errorf("failed to write thumbnail: %w", err)
				}
				rep.Thumbnail = &thumbnailReport{Path: thumbPath, Width: thumb.Width, Height: thumb.Height}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}

	c.Flags().StringSliceVar(&palette, "palette", nil, "hex colours to measure, e.g. #f8766d,#00bfc4")
	c.Flags().IntVar(&specimens, "specimens", 0, "measure the colours of a plot with this many specimens")
	c.Flags().IntVar(&top, "top", 5, "number of dominant colours to list when no palette is given")
	c.Flags().Float64Var(&tolerance, "tolerance", imaging.DefaultTolerance, "Lab distance within which a pixel matches a colour")
	c.Flags().StringVar(&trace, "trace", "", "locate the straight line drawn in this hex colour")
	c.Flags().StringVar(&thumbPath, "thumbnail", "", "write a PNG preview to this file")
	c.Flags().IntVar(&thumbSize, "thumbnail-size", 200, "largest side of the preview in pixels")
	c.Flags().StringVar(&caption, "caption", "", "caption drawn beneath the preview")
	return c
}
