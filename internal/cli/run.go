package cli

import (
	"github.com/spf13/cobra"

	"github.com/nthpaul/stock-sentiment-dash/internal/app"
)

var (
	runTicker  string
	runDays    int
	runSamples int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once and print the dashboard bundle",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.RunOptions{
			Ticker:          runTicker,
			PeriodDays:      runDays,
			SamplePostCount: runSamples,
		}
		return getApp().Run(cmd.Context(), opts)
	},
}

func init() {
	runCmd.Flags().StringVar(&runTicker, "ticker", "AAPL", "Stock ticker symbol")
	runCmd.Flags().IntVar(&runDays, "days", 0, "Price lookback in days (defaults to config)")
	runCmd.Flags().IntVar(&runSamples, "sample-posts", 10, "Number of scored posts to print")
}
