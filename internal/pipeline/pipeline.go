package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nthpaul/stock-sentiment-dash/internal/posts"
	"github.com/nthpaul/stock-sentiment-dash/internal/prices"
	"github.com/nthpaul/stock-sentiment-dash/internal/sentiment"
	"github.com/nthpaul/stock-sentiment-dash/internal/storage"
)

// DefaultPeriodDays is the price lookback used when no override is given.
const DefaultPeriodDays = 7

// PriceSource retrieves the daily close series for a ticker.
type PriceSource interface {
	History(ctx context.Context, ticker string, days int) ([]prices.Point, error)
}

// PostFetcher retrieves a cache-aware post batch for a ticker.
type PostFetcher interface {
	Fetch(ctx context.Context, ticker string) (posts.Batch, error)
}

// PostScorer annotates a batch with sentiment.
type PostScorer interface {
	Score(ctx context.Context, batch []posts.Post) ([]sentiment.ScoredPost, error)
}

// SnapshotStore persists pipeline outcomes. Optional.
type SnapshotStore interface {
	InsertRun(ctx context.Context, run storage.RunRecord) error
	UpsertDailySample(ctx context.Context, sample storage.DailySample) error
}

// Result is the bundle handed to the presentation layer. Posts and Trend are
// never nil; empty slices signal "no sentiment data" without type errors.
type Result struct {
	RunID       uuid.UUID
	Ticker      string
	GeneratedAt time.Time
	Prices      []prices.Point
	Posts       []sentiment.ScoredPost
	Trend       []sentiment.Point
	PostsSource posts.Source
}

// Pipeline composes price retrieval, post fetching, scoring, and
// aggregation into one run.
type Pipeline struct {
	prices  PriceSource
	fetcher PostFetcher
	scorer  PostScorer
	store   SnapshotStore
	logger  zerolog.Logger
	now     func() time.Time
}

// New constructs a pipeline. store may be nil to disable persistence.
func New(priceSource PriceSource, fetcher PostFetcher, scorer PostScorer, store SnapshotStore, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		prices:  priceSource,
		fetcher: fetcher,
		scorer:  scorer,
		store:   store,
		logger:  logger.With().Str("component", "pipeline").Logger(),
		now:     time.Now,
	}
}

// Run executes one pipeline pass. Only price retrieval aborts the call;
// every post-side failure degrades to typed empty structures so the caller
// can still render price data with a "no sentiment data" notice.
func (p *Pipeline) Run(ctx context.Context, ticker string, periodDays int) (Result, error) {
	if periodDays <= 0 {
		periodDays = DefaultPeriodDays
	}

	res := Result{
		RunID:       uuid.New(),
		Ticker:      strings.ToUpper(strings.TrimSpace(ticker)),
		GeneratedAt: p.now().UTC(),
		Posts:       []sentiment.ScoredPost{},
		Trend:       []sentiment.Point{},
		PostsSource: posts.SourceEmpty,
	}
	logger := p.logger.With().Str("ticker", res.Ticker).Str("run_id", res.RunID.String()).Logger()

	series, err := p.prices.History(ctx, res.Ticker, periodDays)
	if err != nil {
		return Result{}, fmt.Errorf("fetch price history: %w", err)
	}
	res.Prices = series

	status := "complete"
	var failure *string

	batch, err := p.fetcher.Fetch(ctx, res.Ticker)
	if err != nil {
		var authErr *posts.AuthError
		if errors.As(err, &authErr) {
			logger.Error().Str("variable", authErr.Variable).Err(err).
				Msg("post fetching disabled; price data will be returned without sentiment")
		} else {
			logger.Error().Err(err).Msg("post fetch failed; continuing without sentiment")
		}
		status = "degraded"
		msg := err.Error()
		failure = &msg
	}
	res.PostsSource = batch.Source

	if len(batch.Posts) > 0 {
		scored, scoreErr := p.scorer.Score(ctx, batch.Posts)
		if scoreErr != nil {
			logger.Error().Err(scoreErr).Msg("sentiment scoring failed; continuing without sentiment")
			status = "degraded"
			msg := scoreErr.Error()
			failure = &msg
		} else {
			res.Posts = scored
			res.Trend = sentiment.Aggregate(scored)
		}
	} else {
		logger.Warn().Str("source", string(batch.Source)).Msg("no posts available for sentiment analysis")
	}

	p.persist(ctx, logger, res, status, failure)

	logger.Info().
		Int("prices", len(res.Prices)).
		Int("posts", len(res.Posts)).
		Int("trend_points", len(res.Trend)).
		Str("posts_source", string(res.PostsSource)).
		Str("status", status).
		Msg("pipeline run finished")

	return res, nil
}

func (p *Pipeline) persist(ctx context.Context, logger zerolog.Logger, res Result, status string, failure *string) {
	if p.store == nil {
		return
	}

	run := storage.RunRecord{
		ID:          res.RunID,
		Ticker:      res.Ticker,
		PostCount:   len(res.Posts),
		PostsSource: string(res.PostsSource),
		Status:      status,
		Error:       failure,
	}
	if err := p.store.InsertRun(ctx, run); err != nil {
		logger.Error().Err(err).Msg("failed to persist run record")
	}

	closeByDay := make(map[time.Time]prices.Point, len(res.Prices))
	for _, pt := range res.Prices {
		closeByDay[pt.Day] = pt
	}

	for _, point := range res.Trend {
		sample := storage.DailySample{
			Ticker:       res.Ticker,
			Day:          point.Day,
			AvgSentiment: decimalFromFloat(point.Sentiment),
			PostCount:    point.Posts,
			RunID:        res.RunID,
		}
		if pricePoint, ok := closeByDay[point.Day]; ok {
			close := pricePoint.Close
			sample.Close = &close
		}
		if err := p.store.UpsertDailySample(ctx, sample); err != nil {
			logger.Error().Time("day", point.Day).Err(err).Msg("failed to upsert daily sample")
		}
	}
}

// decimalFromFloat rounds persisted sentiment means to 6 places so repeated
// runs over identical cached text upsert identical values.
func decimalFromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(6)
}
