package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"goldwatch/internal/app"
)

var showOpts app.ShowOptions

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the newest stored prices with their change",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showOpts.Limit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		return getApp().Show(cmd.Context(), showOpts)
	},
}

func init() {
	showCmd.Flags().IntVarP(&showOpts.Limit, "limit", "n", 20, "How many rows to print")
	showCmd.Flags().BoolVar(&showOpts.Stats, "stats", false, "Append max/min/mean of the printed rows")
}
