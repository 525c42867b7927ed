package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Point is one daily close observation.
type Point struct {
	Day   time.Time
	Close decimal.Decimal
}

// Options parameterise the price source client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client retrieves daily close-price series from a chart-style JSON API.
// The provider is a black box to the pipeline; any failure here is fatal for
// the whole run since nothing can be rendered without price data.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs a price source client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "price_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// History returns the daily close series for the trailing number of calendar
// days, ascending by date.
func (c *Client) History(ctx context.Context, ticker string, days int) ([]Point, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}
	if days <= 0 {
		days = 7
	}

	params := url.Values{}
	params.Set("range", fmt.Sprintf("%dd", days))
	params.Set("interval", "1d")
	params.Set("includePrePost", "false")

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(ticker), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "sentimentdash/1.0")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var chartRes chartResponse
	if err := json.Unmarshal(payload, &chartRes); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("price api error (%d)", resp.StatusCode)
		}
		return nil, fmt.Errorf("decode price response: %w", err)
	}

	if chartRes.Chart.Error != nil {
		return nil, fmt.Errorf("price api error (%d): %s: %s",
			resp.StatusCode, chartRes.Chart.Error.Code, chartRes.Chart.Error.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price api error (%d)", resp.StatusCode)
	}
	if len(chartRes.Chart.Result) == 0 || len(chartRes.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("price api returned no series for %s", ticker)
	}

	result := chartRes.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close

	// One point per day, last write wins when the provider repeats a day.
	byDay := make(map[time.Time]decimal.Decimal, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		t := time.Unix(ts, 0).UTC()
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		byDay[day] = decimal.NewFromFloat(*closes[i])
	}

	if len(byDay) == 0 {
		return nil, fmt.Errorf("price api returned no usable closes for %s", ticker)
	}

	series := make([]Point, 0, len(byDay))
	for day, close := range byDay {
		series = append(series, Point{Day: day, Close: close})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Day.Before(series[j].Day) })

	c.logger.Debug().Str("ticker", ticker).Int("days", len(series)).Msg("price history fetched")
	return series, nil
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"chart"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}
