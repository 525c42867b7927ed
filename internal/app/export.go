package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/nthpaul/stock-sentiment-dash/internal/posts"
	"github.com/nthpaul/stock-sentiment-dash/internal/storage"
)

// Export renders stored daily samples as CSV and/or a price-vs-sentiment PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	ticker := strings.ToUpper(strings.TrimSpace(opts.Ticker))
	if ticker == "" {
		return errors.New("--ticker is required")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.AddDate(0, 0, -opts.MaxPoints)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	samples, err := store.ListSamplesBetween(ctx, ticker, from, to)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		a.Logger.Info().Str("ticker", ticker).Msg("no samples found for export window")
		return nil
	}

	downsampled := downsampleSamples(samples, opts.MaxPoints)
	a.Logger.Info().Str("ticker", ticker).Int("total", len(samples)).
		Int("exported", len(downsampled)).Msg("exporting samples")

	if opts.CSVPath != "" {
		if err := writeSamplesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSamplesPNG(opts.PNGPath, ticker, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleSamples(samples []storage.DailySample, max int) []storage.DailySample {
	if max <= 0 || len(samples) <= max {
		return samples
	}

	result := make([]storage.DailySample, 0, max)
	step := float64(len(samples)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		result = append(result, samples[idx])
	}
	return result
}

func writeSamplesCSV(path string, samples []storage.DailySample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"day", "ticker", "avg_sentiment", "post_count", "close_price"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, sample := range samples {
		closePrice := ""
		if sample.Close != nil {
			closePrice = sample.Close.String()
		}
		record := []string{
			sample.Day.Format(posts.DateLayout),
			sample.Ticker,
			sample.AvgSentiment.String(),
			strconv.Itoa(sample.PostCount),
			closePrice,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSamplesPNG(path, ticker string, samples []storage.DailySample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, 0, len(samples))
	sentiments := make([]float64, 0, len(samples))
	priceX := make([]time.Time, 0, len(samples))
	closes := make([]float64, 0, len(samples))

	for _, sample := range samples {
		x = append(x, sample.Day)
		sentiments = append(sentiments, sample.AvgSentiment.InexactFloat64())
		if sample.Close != nil {
			priceX = append(priceX, sample.Day)
			closes = append(closes, sample.Close.InexactFloat64())
		}
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: fmt.Sprintf("%s Close", ticker),
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
		},
		YAxisSecondary: chart.YAxis{
			Name: "Avg Sentiment",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Sentiment",
				XValues: x,
				YValues: sentiments,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	if len(closes) > 0 {
		graph.Series = append([]chart.Series{chart.TimeSeries{
			Name:    "Close",
			XValues: priceX,
			YValues: closes,
		}}, graph.Series...)
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
