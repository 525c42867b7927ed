package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nthpaul/stock-sentiment-dash/internal/cache"
	"github.com/nthpaul/stock-sentiment-dash/internal/config"
	"github.com/nthpaul/stock-sentiment-dash/internal/pipeline"
	"github.com/nthpaul/stock-sentiment-dash/internal/posts"
	"github.com/nthpaul/stock-sentiment-dash/internal/prices"
	"github.com/nthpaul/stock-sentiment-dash/internal/scheduler"
	"github.com/nthpaul/stock-sentiment-dash/internal/sentiment"
	"github.com/nthpaul/stock-sentiment-dash/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// RunOptions configure a one-shot pipeline invocation.
type RunOptions struct {
	Ticker          string
	PeriodDays      int
	SamplePostCount int
}

// WatchOptions configure the refresh loop.
type WatchOptions struct {
	Ticker     string
	PeriodDays int
}

// ExportOptions hold parameters for exporting stored daily samples.
type ExportOptions struct {
	Ticker    string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newPipeline(store *storage.Store) *pipeline.Pipeline {
	priceClient := prices.NewClient(prices.Options{
		BaseURL:   a.Config.Prices.BaseURL,
		Timeout:   a.Config.Prices.RequestTimeout,
		UserAgent: a.Config.Prices.UserAgent,
	}, a.Logger)

	postCache := cache.NewStore(cache.Options{
		Dir:        a.Config.Cache.Dir,
		MaxEntries: a.Config.Cache.MaxEntries,
	}, a.Logger)

	fetcher := posts.NewFetcher(posts.FetcherOptions{
		CacheTTL: a.Config.Cache.TTL,
		Client: posts.ClientOptions{
			BaseURL:     a.Config.Posts.BaseURL,
			BearerToken: a.Config.Posts.BearerToken,
			Timeout:     a.Config.Posts.RequestTimeout,
			MinInterval: a.Config.Posts.MinInterval,
			UserAgent:   a.Config.Posts.UserAgent,
		},
	}, postCache, a.Logger)

	classifier := sentiment.NewHTTPClassifier(sentiment.HTTPOptions{
		Endpoint: a.Config.Classifier.Endpoint,
		Token:    a.Config.Classifier.Token,
		Timeout:  a.Config.Classifier.RequestTimeout,
	}, a.Logger)
	scorer := sentiment.NewScorer(classifier, a.Logger)

	var snapshots pipeline.SnapshotStore
	if store != nil {
		snapshots = store
	}

	return pipeline.New(priceClient, fetcher, scorer, snapshots, a.Logger)
}

// Run executes the pipeline once and renders the bundle to stdout.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Debug().Msg("database.dsn not configured; snapshot persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	pipe := a.newPipeline(store)

	result, err := pipe.Run(ctx, opts.Ticker, a.Config.ResolvePeriodDays(opts.PeriodDays))
	if err != nil {
		return err
	}

	return renderResult(os.Stdout, result, opts.SamplePostCount)
}

// Watch re-runs the pipeline on the configured interval so a fresh snapshot
// is always available; each cycle within the cache window costs zero post
// requests.
func (a *App) Watch(ctx context.Context, opts WatchOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; snapshot persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	pipe := a.newPipeline(store)
	periodDays := a.Config.ResolvePeriodDays(opts.PeriodDays)

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Watch.Interval,
		AlignToStart: a.Config.Watch.AlignToBucket,
		StartupDelay: a.Config.Watch.StartupDelay,
	}, a.Logger)

	a.Logger.Info().Str("ticker", opts.Ticker).Dur("interval", a.Config.Watch.Interval).
		Msg("starting refresh loop")

	err = sched.Run(ctx, func(ctx context.Context, _ time.Time) error {
		_, runErr := pipe.Run(ctx, opts.Ticker, periodDays)
		return runErr
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("refresh loop terminated with error")
		return err
	}

	a.Logger.Info().Msg("refresh loop stopped")
	return nil
}
