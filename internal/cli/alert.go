package cli

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"goldwatch/internal/fetcher"
)

var (
	alertOwner    string
	alertBuy      string
	alertSell     string
	alertPrice    string
	alertLogLimit int
)

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Manage buy/sell price alerts",
}

var alertAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a buy/sell alert",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(alertOwner) == "" {
			return fmt.Errorf("--owner must be provided")
		}
		buy, err := parsePriceFlag("--buy", alertBuy)
		if err != nil {
			return err
		}
		sell, err := parsePriceFlag("--sell", alertSell)
		if err != nil {
			return err
		}
		return getApp().AddAlert(cmd.Context(), alertOwner, buy, sell)
	},
}

var alertListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ListAlerts(cmd.Context())
	},
}

var alertCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Show which alerts a price would trigger, without notifying",
	RunE: func(cmd *cobra.Command, args []string) error {
		price, err := parsePriceFlag("--price", alertPrice)
		if err != nil {
			return err
		}
		return getApp().CheckAlerts(cmd.Context(), price)
	},
}

var alertLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recently dispatched triggers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().TriggerLog(cmd.Context(), alertLogLimit)
	},
}

func init() {
	alertAddCmd.Flags().StringVar(&alertOwner, "owner", "", "Who the alert belongs to")
	alertAddCmd.Flags().StringVar(&alertBuy, "buy", "", "Buy target: trigger when price <= this")
	alertAddCmd.Flags().StringVar(&alertSell, "sell", "", "Sell target: trigger when price >= this")
	alertCheckCmd.Flags().StringVar(&alertPrice, "price", "", "Price to check against")
	alertLogCmd.Flags().IntVar(&alertLogLimit, "limit", 20, "Number of triggers to display")

	alertCmd.AddCommand(alertAddCmd, alertListCmd, alertCheckCmd, alertLogCmd)
}

// parsePriceFlag accepts 2950000, 2950000.50 or Rupiah-style 2.950.000 and 2.950.
func parsePriceFlag(flag, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Decimal{}, fmt.Errorf("%s must be provided", flag)
	}

	value, err := fetcher.ParseAmount(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s value: %w", flag, err)
	}
	if !value.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%s must be greater than zero", flag)
	}
	return value, nil
}
