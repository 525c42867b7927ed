package cli

import (
	"github.com/spf13/cobra"

	"github.com/nthpaul/stock-sentiment-dash/internal/app"
)

var (
	watchTicker string
	watchDays   int
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run the pipeline on the configured refresh interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.WatchOptions{
			Ticker:     watchTicker,
			PeriodDays: watchDays,
		}
		return getApp().Watch(cmd.Context(), opts)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchTicker, "ticker", "AAPL", "Stock ticker symbol")
	watchCmd.Flags().IntVar(&watchDays, "days", 0, "Price lookback in days (defaults to config)")
}
