package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/benshaw2/PiDay/internal/dataset"
	"github.com/benshaw2/PiDay/internal/fit"
)

type fitFlags struct {
	tier        int
	allowMixed  bool
	preferMixed bool
}

func (f *fitFlags) register(fs *pflag.FlagSet) {
	fs.IntVar(&f.tier, "tier", 1, "model tier: 1 fixed effects, 2 random intercept, 3 random intercept and slope")
	fs.BoolVar(&f.allowMixed, "allow-mixed", false, "attempt the mixed-effects model for tiers 2 and 3")
}

// registerPreferMixed adds --prefer-mixed, for commands that fit in process.
func (f *fitFlags) registerPreferMixed(fs *pflag.FlagSet) {
	fs.BoolVar(&f.preferMixed, "prefer-mixed", false, "report a successful mixed-effects fit instead of the least-squares line")
}

// apply overlays flags the user set on the configuration and returns the
// resulting request.
func (f *fitFlags) apply(cmd *cobra.Command, a *app) (fit.Request, error) {
	tier := a.cfg.Fit.Tier
	if cmd.Flags().Changed("tier") {
		tier = f.tier
	}
	if cmd.Flags().Changed("allow-mixed") {
		a.cfg.Fit.AllowMixedEffects = f.allowMixed
	}
	if cmd.Flags().Changed("prefer-mixed") {
		a.cfg.Fit.PreferMixed = f.preferMixed
	}

	t, err := fit.ParseTier(tier)
	if err != nil {
		return fit.Request{}, err
	}
	return fit.Request{Tier: t, AllowMixedEffects: a.cfg.Fit.AllowMixedEffects}, nil
}

// readRows reads CSV rows from path, or from stdin when path is "" or "-".
func readRows(cmd *cobra.Command, path string) ([]dataset.RawMeasurement, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open dataset: %w", err)
		}
		defer f.Close()
		r = f
	}
	return dataset.ReadCSV(r)
}

func argOrEmpty(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
