package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nthpaul/stock-sentiment-dash/internal/posts"
	"github.com/nthpaul/stock-sentiment-dash/internal/prices"
	"github.com/nthpaul/stock-sentiment-dash/internal/sentiment"
	"github.com/nthpaul/stock-sentiment-dash/internal/storage"
)

type fakePrices struct {
	series []prices.Point
	err    error
}

func (f *fakePrices) History(ctx context.Context, ticker string, days int) ([]prices.Point, error) {
	return f.series, f.err
}

type fakeFetcher struct {
	batch posts.Batch
	err   error
}

func (f *fakeFetcher) Fetch(ctx context.Context, ticker string) (posts.Batch, error) {
	return f.batch, f.err
}

type fakeScorer struct {
	scored []sentiment.ScoredPost
	err    error
}

func (f *fakeScorer) Score(ctx context.Context, batch []posts.Post) ([]sentiment.ScoredPost, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.scored, nil
}

type fakeStore struct {
	runs    []storage.RunRecord
	samples []storage.DailySample
}

func (f *fakeStore) InsertRun(ctx context.Context, run storage.RunRecord) error {
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeStore) UpsertDailySample(ctx context.Context, sample storage.DailySample) error {
	f.samples = append(f.samples, sample)
	return nil
}

func pricePoint(day time.Time, close string) prices.Point {
	d, _ := decimal.NewFromString(close)
	return prices.Point{Day: day, Close: d}
}

func postAt(t time.Time, text string) posts.Post {
	return posts.Post{CreatedAt: t, Text: text}
}

func scoredBatch(batch []posts.Post, polarities []int) []sentiment.ScoredPost {
	scored := make([]sentiment.ScoredPost, len(batch))
	for i, p := range batch {
		scored[i] = sentiment.ScoredPost{Post: p, Sentiment: polarities[i], Confidence: 0.9}
	}
	return scored
}

func TestRunPriceFailureAborts(t *testing.T) {
	p := New(&fakePrices{err: errors.New("provider down")}, &fakeFetcher{}, &fakeScorer{}, nil, zerolog.Nop())

	if _, err := p.Run(context.Background(), "AAPL", 7); err == nil {
		t.Fatal("price retrieval failure must abort the run")
	}
}

func TestRunEmptyPostsStillRendersPrices(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	p := New(
		&fakePrices{series: []prices.Point{pricePoint(day, "172.11")}},
		&fakeFetcher{batch: posts.Batch{Posts: []posts.Post{}, Source: posts.SourceEmpty}},
		&fakeScorer{},
		nil,
		zerolog.Nop(),
	)

	res, err := p.Run(context.Background(), "AAPL", 7)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(res.Prices) != 1 {
		t.Fatalf("expected 1 price point, got %d", len(res.Prices))
	}
	if res.Posts == nil || res.Trend == nil {
		t.Fatal("posts and trend must be non-nil even when empty")
	}
	if len(res.Posts) != 0 || len(res.Trend) != 0 {
		t.Fatalf("expected empty sentiment output, got %d posts, %d trend points", len(res.Posts), len(res.Trend))
	}
	if res.PostsSource != posts.SourceEmpty {
		t.Fatalf("unexpected posts source: %s", res.PostsSource)
	}
}

func TestRunAuthErrorDegrades(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{}
	authErr := &posts.AuthError{Variable: "TWITTER_BEARER_TOKEN", Reason: "missing search API credentials"}

	p := New(
		&fakePrices{series: []prices.Point{pricePoint(day, "172.11")}},
		&fakeFetcher{batch: posts.Batch{Posts: []posts.Post{}, Source: posts.SourceEmpty}, err: authErr},
		&fakeScorer{},
		store,
		zerolog.Nop(),
	)

	res, err := p.Run(context.Background(), "AAPL", 7)
	if err != nil {
		t.Fatalf("auth failure must degrade, not abort: %v", err)
	}
	if len(res.Prices) != 1 {
		t.Fatalf("price data must survive degradation, got %d points", len(res.Prices))
	}
	if len(store.runs) != 1 {
		t.Fatalf("expected 1 run record, got %d", len(store.runs))
	}
	if store.runs[0].Status != "degraded" {
		t.Fatalf("expected degraded status, got %q", store.runs[0].Status)
	}
	if store.runs[0].Error == nil {
		t.Fatal("degraded run must record the failure message")
	}
}

func TestRunScorerFailureDegrades(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	batch := []posts.Post{postAt(day.Add(10*time.Hour), "$AAPL up")}
	store := &fakeStore{}

	p := New(
		&fakePrices{series: []prices.Point{pricePoint(day, "172.11")}},
		&fakeFetcher{batch: posts.Batch{Posts: batch, Source: posts.SourceAPI}},
		&fakeScorer{err: errors.New("model loading")},
		store,
		zerolog.Nop(),
	)

	res, err := p.Run(context.Background(), "AAPL", 7)
	if err != nil {
		t.Fatalf("scorer failure must degrade, not abort: %v", err)
	}
	if len(res.Posts) != 0 || len(res.Trend) != 0 {
		t.Fatalf("degraded run must return empty sentiment, got %d posts, %d trend points", len(res.Posts), len(res.Trend))
	}
	if store.runs[0].Status != "degraded" {
		t.Fatalf("expected degraded status, got %q", store.runs[0].Status)
	}
}

func TestRunAggregatesAndPersists(t *testing.T) {
	day1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	batch := []posts.Post{
		postAt(day1.Add(9*time.Hour), "p1"),
		postAt(day1.Add(10*time.Hour), "p2"),
		postAt(day1.Add(11*time.Hour), "p3"),
		postAt(day1.Add(12*time.Hour), "p4"),
		postAt(day2.Add(9*time.Hour), "p5"),
		postAt(day2.Add(10*time.Hour), "p6"),
	}
	// Day 1: +1 +1 +1 -1 => 0.5. Day 2: -1 -1 => -1.
	scored := scoredBatch(batch, []int{1, 1, 1, -1, -1, -1})

	store := &fakeStore{}
	p := New(
		// No close for day2; its sample must persist a nil close.
		&fakePrices{series: []prices.Point{pricePoint(day1, "172.11")}},
		&fakeFetcher{batch: posts.Batch{Posts: batch, Source: posts.SourceAPI}},
		&fakeScorer{scored: scored},
		store,
		zerolog.Nop(),
	)

	res, err := p.Run(context.Background(), "aapl", 7)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if res.Ticker != "AAPL" {
		t.Fatalf("ticker must be normalised, got %q", res.Ticker)
	}
	if len(res.Trend) != 2 {
		t.Fatalf("expected 2 trend points, got %d", len(res.Trend))
	}
	if res.Trend[0].Sentiment != 0.5 || res.Trend[0].Posts != 4 {
		t.Fatalf("unexpected day1 point: %+v", res.Trend[0])
	}
	if res.Trend[1].Sentiment != -1 || res.Trend[1].Posts != 2 {
		t.Fatalf("unexpected day2 point: %+v", res.Trend[1])
	}

	if len(store.runs) != 1 || store.runs[0].Status != "complete" {
		t.Fatalf("expected 1 complete run record, got %#v", store.runs)
	}
	if store.runs[0].PostCount != 6 {
		t.Fatalf("run record must carry the scored post count, got %d", store.runs[0].PostCount)
	}

	if len(store.samples) != 2 {
		t.Fatalf("expected 2 daily samples, got %d", len(store.samples))
	}
	if store.samples[0].AvgSentiment.String() != "0.5" {
		t.Fatalf("unexpected persisted mean: %s", store.samples[0].AvgSentiment)
	}
	if store.samples[0].Close == nil || store.samples[0].Close.String() != "172.11" {
		t.Fatalf("day1 sample must join the close price, got %v", store.samples[0].Close)
	}
	if store.samples[1].Close != nil {
		t.Fatalf("day2 has no close and must persist nil, got %v", store.samples[1].Close)
	}
	if store.samples[0].RunID != res.RunID {
		t.Fatal("samples must reference the run that produced them")
	}
}

func TestRunWithoutStore(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	p := New(
		&fakePrices{series: []prices.Point{pricePoint(day, "100")}},
		&fakeFetcher{batch: posts.Batch{Posts: []posts.Post{}, Source: posts.SourceCache}},
		&fakeScorer{},
		nil,
		zerolog.Nop(),
	)

	if _, err := p.Run(context.Background(), "AAPL", 0); err != nil {
		t.Fatalf("nil store must be tolerated: %v", err)
	}
}
