package posts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	searchPath = "/tweets/search/recent"

	// The search window trails 24 hours and ends slightly before "now" so
	// the API never sees an end_time it considers in the future.
	lookbackWindow  = 24 * time.Hour
	clockSkewOffset = 30 * time.Second

	// maxSearchResults is the per-request cap; no pagination is attempted.
	maxSearchResults = 100
)

// ClientOptions parameterise the search API client.
type ClientOptions struct {
	BaseURL     string
	BearerToken string
	Timeout     time.Duration
	MinInterval time.Duration
	UserAgent   string
}

// Client queries the recent-search endpoint for posts mentioning a ticker.
type Client struct {
	opts    ClientOptions
	logger  zerolog.Logger
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
	now     func() time.Time
}

// NewClient constructs a search client. A missing bearer token fails here,
// not on first use, so callers can surface the remediation immediately.
func NewClient(opts ClientOptions, logger zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(opts.BearerToken) == "" {
		return nil, missingTokenError()
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	minInterval := opts.MinInterval
	if minInterval <= 0 {
		minInterval = 2 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.twitter.com/2"
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "post_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
		baseURL: baseURL,
		now:     time.Now,
	}, nil
}

// Search fetches recent English-language posts mentioning $TICKER or
// #TICKER, excluding reposts, over the trailing 24-hour window. A zero-post
// result is not an error.
func (c *Client) Search(ctx context.Context, ticker string) ([]Post, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	end := c.now().UTC().Add(-clockSkewOffset)
	start := end.Add(-lookbackWindow)

	params := url.Values{}
	params.Set("query", fmt.Sprintf("$%s OR #%s -is:retweet lang:en", ticker, ticker))
	params.Set("start_time", start.Format(time.RFC3339))
	params.Set("end_time", end.Format(time.RFC3339))
	params.Set("max_results", strconv.Itoa(maxSearchResults))
	params.Set("tweet.fields", "created_at,text")

	endpoint := c.baseURL + searchPath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.BearerToken)
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

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if reset := resp.Header.Get("x-rate-limit-reset"); reset != "" {
			return nil, fmt.Errorf("%w (window resets at %s)", ErrRateLimited, reset)
		}
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, rejectedTokenError(apiErrorDetail(payload))
	case resp.StatusCode != http.StatusOK:
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	var searchRes searchResponse
	if err := json.Unmarshal(payload, &searchRes); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	found := make([]Post, 0, len(searchRes.Data))
	for _, item := range searchRes.Data {
		found = append(found, Post{CreatedAt: item.CreatedAt.UTC(), Text: item.Text})
	}

	c.logger.Debug().Str("ticker", ticker).Int("count", len(found)).
		Time("start", start).Time("end", end).Msg("search completed")

	return found, nil
}

type searchResponse struct {
	Data []struct {
		CreatedAt time.Time `json:"created_at"`
		Text      string    `json:"text"`
	} `json:"data"`
	Meta struct {
		ResultCount int `json:"result_count"`
	} `json:"meta"`
}

type errorResponse struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func apiErrorDetail(payload []byte) string {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err != nil {
		return ""
	}
	if apiErr.Detail != "" {
		return apiErr.Detail
	}
	if apiErr.Title != "" {
		return apiErr.Title
	}
	if len(apiErr.Errors) > 0 {
		return apiErr.Errors[0].Message
	}
	return ""
}

func parseHTTPError(status int, payload []byte) error {
	if detail := apiErrorDetail(payload); detail != "" {
		return fmt.Errorf("search api error (%d): %s", status, detail)
	}
	if len(payload) > 0 {
		return fmt.Errorf("search api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("search api error (%d)", status)
}

var _ Searcher = (*Client)(nil)
