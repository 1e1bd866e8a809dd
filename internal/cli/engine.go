package cli

import (
	"github.com/spf13/cobra"

	"github.com/benshaw2/PiDay/internal/logger"
	"github.com/benshaw2/PiDay/internal/plot"
	"github.com/benshaw2/PiDay/internal/server"
)

func engineCmd(a *app) *cobra.Command {
	var sandbox bool

	c := &cobra.Command{
		Use:   "engine",
		Short: "Serve fits and plots as an MCP engine over stdin and stdout",
		Long: `Run the numeric engine. Requests are JSON-RPC 2.0 messages, one per line on
stdin; responses are written one per line to stdout in request order. Logs
go to stderr or the configured log file, never stdout.

With --sandbox the engine reports no mixed-effects capability.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logger.L()
			srv := server.New(
				a.newFitter(sandbox),
				plot.New(plot.WithLogger(log)),
				server.WithLogger(log),
			)
			log.Info("engine.start", "sandbox", sandbox)
			err := srv.Run(cmd.InOrStdin(), cmd.OutOrStdout())
			log.Info("engine.stop")
			return err
		},
	}

	c.Flags().BoolVar(&sandbox, "sandbox", false, "run without mixed-effects support")
	return c
}
