package sentiment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nthpaul/stock-sentiment-dash/internal/posts"
)

type fakeClassifier struct {
	predictions []Prediction
	err         error
	gotTexts    []string
}

func (c *fakeClassifier) Classify(ctx context.Context, texts []string) ([]Prediction, error) {
	c.gotTexts = texts
	if c.err != nil {
		return nil, c.err
	}
	return c.predictions, nil
}

func TestScoreMapsLabelsToPolarity(t *testing.T) {
	classifier := &fakeClassifier{predictions: []Prediction{
		{Label: "POSITIVE", Score: 0.95},
		{Label: "NEGATIVE", Score: 0.80},
		{Label: "NEUTRAL", Score: 0.60},
	}}
	scorer := NewScorer(classifier, zerolog.Nop())

	batch := []posts.Post{
		{CreatedAt: time.Now().UTC(), Text: "up"},
		{CreatedAt: time.Now().UTC(), Text: "down"},
		{CreatedAt: time.Now().UTC(), Text: "flat"},
	}

	scored, err := scorer.Score(context.Background(), batch)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}
	if len(scored) != 3 {
		t.Fatalf("expected 3 scored posts, got %d", len(scored))
	}
	if scored[0].Sentiment != 1 {
		t.Fatalf("POSITIVE must map to +1, got %d", scored[0].Sentiment)
	}
	if scored[1].Sentiment != -1 {
		t.Fatalf("NEGATIVE must map to -1, got %d", scored[1].Sentiment)
	}
	// Anything that is not POSITIVE counts as negative.
	if scored[2].Sentiment != -1 {
		t.Fatalf("non-POSITIVE label must map to -1, got %d", scored[2].Sentiment)
	}
	if scored[0].Confidence != 0.95 {
		t.Fatalf("confidence must be preserved, got %f", scored[0].Confidence)
	}
	if scored[1].Text != "down" {
		t.Fatalf("post order must be preserved, got %q", scored[1].Text)
	}
	if len(classifier.gotTexts) != 3 || classifier.gotTexts[2] != "flat" {
		t.Fatalf("classifier must receive texts in order, got %#v", classifier.gotTexts)
	}
}

func TestScoreEmptyBatch(t *testing.T) {
	scorer := NewScorer(&fakeClassifier{}, zerolog.Nop())

	scored, err := scorer.Score(context.Background(), nil)
	if err != nil {
		t.Fatalf("empty batch must not error: %v", err)
	}
	if scored == nil || len(scored) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", scored)
	}
}

func TestScoreClassifierError(t *testing.T) {
	scorer := NewScorer(&fakeClassifier{err: errors.New("model loading")}, zerolog.Nop())

	if _, err := scorer.Score(context.Background(), []posts.Post{{Text: "a"}}); err == nil {
		t.Fatal("classifier failure must surface as an error")
	}
}

func TestScoreCountMismatch(t *testing.T) {
	classifier := &fakeClassifier{predictions: []Prediction{{Label: "POSITIVE", Score: 0.9}}}
	scorer := NewScorer(classifier, zerolog.Nop())

	if _, err := scorer.Score(context.Background(), []posts.Post{{Text: "a"}, {Text: "b"}}); err == nil {
		t.Fatal("prediction count mismatch must surface as an error")
	}
}
