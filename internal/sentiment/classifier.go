package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Prediction is one classification outcome from the black-box model.
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classifier runs binary polarity classification over a batch of texts,
// returning one prediction per input in the same order.
type Classifier interface {
	Classify(ctx context.Context, texts []string) ([]Prediction, error)
}

// HTTPOptions parameterise the inference endpoint client.
type HTTPOptions struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

// HTTPClassifier calls a hosted text-classification endpoint. The model
// behind it is opaque; only the {label, score} contract matters here.
type HTTPClassifier struct {
	opts   HTTPOptions
	logger zerolog.Logger
	client *http.Client
}

// NewHTTPClassifier constructs an inference endpoint client.
func NewHTTPClassifier(opts HTTPOptions, logger zerolog.Logger) *HTTPClassifier {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPClassifier{
		opts:   opts,
		logger: logger.With().Str("component", "classifier").Logger(),
		client: &http.Client{Timeout: timeout},
	}
}

// Classify posts the batch to the endpoint. The response carries candidate
// labels per input sorted by score; the top candidate is kept.
func (c *HTTPClassifier) Classify(ctx context.Context, texts []string) ([]Prediction, error) {
	if len(texts) == 0 {
		return []Prediction{}, nil
	}
	if c.opts.Endpoint == "" {
		return nil, fmt.Errorf("classifier endpoint not configured")
	}

	body, err := json.Marshal(map[string]any{"inputs": texts})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := strings.TrimSpace(c.opts.Token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
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

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var candidates [][]Prediction
	if err := json.Unmarshal(payload, &candidates); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}

	if len(candidates) != len(texts) {
		return nil, fmt.Errorf("classifier returned %d results for %d inputs", len(candidates), len(texts))
	}

	results := make([]Prediction, len(candidates))
	for i, ranked := range candidates {
		if len(ranked) == 0 {
			return nil, fmt.Errorf("classifier returned no candidates for input %d", i)
		}
		results[i] = ranked[0]
	}

	return results, nil
}

var _ Classifier = (*HTTPClassifier)(nil)
