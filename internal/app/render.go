package app

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nthpaul/stock-sentiment-dash/internal/pipeline"
	"github.com/nthpaul/stock-sentiment-dash/internal/posts"
)

const defaultSamplePosts = 10

// renderResult prints the three dashboard panels: price history, sentiment
// trend, and a sample of scored posts.
func renderResult(out io.Writer, res pipeline.Result, samplePosts int) error {
	if samplePosts <= 0 {
		samplePosts = defaultSamplePosts
	}

	fmt.Fprintf(out, "%s closing price (last %d days)\n", res.Ticker, len(res.Prices))
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Date\tClose")
	for _, point := range res.Prices {
		fmt.Fprintf(writer, "%s\t%s\n", point.Day.Format(posts.DateLayout), formatDecimal(point.Close, 2))
	}
	writer.Flush()

	fmt.Fprintln(out)
	if len(res.Trend) == 0 {
		fmt.Fprintln(out, "No sentiment data available. This could be due to API rate limits or no recent posts found.")
		return nil
	}

	fmt.Fprintln(out, "Average daily sentiment (+1 = positive, -1 = negative)")
	writer = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Date\tSentiment\tPosts")
	for _, point := range res.Trend {
		fmt.Fprintf(writer, "%s\t%+.3f\t%d\n", point.Day.Format(posts.DateLayout), point.Sentiment, point.Posts)
	}
	writer.Flush()

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Sample posts (%d of %d, source: %s)\n", min(samplePosts, len(res.Posts)), len(res.Posts), res.PostsSource)
	writer = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tSentiment\tConfidence\tText")
	for i, post := range res.Posts {
		if i >= samplePosts {
			break
		}
		fmt.Fprintf(
			writer,
			"%s\t%+d\t%.3f\t%s\n",
			post.CreatedAt.UTC().Format(time.RFC3339),
			post.Sentiment,
			post.Confidence,
			truncateInline(post.Text, 80),
		)
	}
	writer.Flush()

	return nil
}

func truncateInline(v string, limit int) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.ReplaceAll(cleaned, "\t", " ")
	runes := []rune(cleaned)
	if len(runes) <= limit {
		return cleaned
	}
	return string(runes[:limit-1]) + "…"
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
