package sentiment

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nthpaul/stock-sentiment-dash/internal/posts"
)

const labelPositive = "POSITIVE"

// ScoredPost is a post annotated with binary polarity and confidence.
type ScoredPost struct {
	posts.Post
	Sentiment  int
	Confidence float64
}

// Scorer annotates post batches using a black-box classifier. Scores are
// recomputed from text on every call; nothing is cached.
type Scorer struct {
	classifier Classifier
	logger     zerolog.Logger
}

// NewScorer wires a classifier into a scorer.
func NewScorer(classifier Classifier, logger zerolog.Logger) *Scorer {
	return &Scorer{
		classifier: classifier,
		logger:     logger.With().Str("component", "scorer").Logger(),
	}
}

// Score returns the batch in order, each post carrying sentiment in {-1,+1}
// and the classifier's confidence in [0,1].
func (s *Scorer) Score(ctx context.Context, batch []posts.Post) ([]ScoredPost, error) {
	if len(batch) == 0 {
		return []ScoredPost{}, nil
	}

	texts := make([]string, len(batch))
	for i, p := range batch {
		texts[i] = p.Text
	}

	predictions, err := s.classifier.Classify(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("classify posts: %w", err)
	}
	if len(predictions) != len(batch) {
		return nil, fmt.Errorf("classifier returned %d predictions for %d posts", len(predictions), len(batch))
	}

	scored := make([]ScoredPost, len(batch))
	for i, p := range batch {
		polarity := -1
		if predictions[i].Label == labelPositive {
			polarity = 1
		}
		scored[i] = ScoredPost{
			Post:       p,
			Sentiment:  polarity,
			Confidence: predictions[i].Score,
		}
	}

	s.logger.Debug().Int("count", len(scored)).Msg("batch scored")
	return scored, nil
}
