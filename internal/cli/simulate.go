package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	simulatePrice string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Push one fixed price through the alert pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulatePrice == "" {
			return errors.New("--price must be provided")
		}

		price, err := parsePriceFlag("--price", simulatePrice)
		if err != nil {
			return err
		}
		return getApp().SimulateAlert(cmd.Context(), price)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulatePrice, "price", "", "Gold price in Rupiah, e.g. 2950000 or 2.950.000")
}
