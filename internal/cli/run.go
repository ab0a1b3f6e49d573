package cli

import (
	"github.com/spf13/cobra"

	"goldwatch/internal/app"
)

var runOpts app.RunOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sample the gold price on schedule, dispatch alerts and serve the API",
	Long: `Runs the sampler until interrupted. Each tick checks the operating days,
fetches one price, stores it and evaluates alerts.

With --once a single tick is taken and its outcome printed, which suits cron.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context(), runOpts)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runOpts.NoAPI, "no-api", false, "Do not start the HTTP API even if api.enabled is set")
	runCmd.Flags().BoolVar(&runOpts.Once, "once", false, "Take one sample, print it and exit")
}
