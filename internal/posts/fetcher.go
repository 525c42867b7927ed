package posts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCacheTTL is how long a cached batch counts as fresh.
const DefaultCacheTTL = 15 * time.Minute

// Searcher abstracts the recent-search API call.
type Searcher interface {
	Search(ctx context.Context, ticker string) ([]Post, error)
}

// Cache persists post batches per ticker. Load returns stale entries too;
// freshness is the fetcher's decision.
type Cache interface {
	Load(ticker string) ([]Post, time.Time, bool)
	Save(ticker string, batch []Post) error
}

// FetcherOptions parameterise the cache-aware fetcher.
type FetcherOptions struct {
	CacheTTL time.Duration
	Client   ClientOptions
}

// Fetcher serves post batches cache-first, falling back to cached or empty
// content when the search API cannot deliver.
type Fetcher struct {
	opts   FetcherOptions
	cache  Cache
	logger zerolog.Logger
	now    func() time.Time

	clientMux sync.Mutex
	client    Searcher
	newClient func() (Searcher, error)
}

// NewFetcher builds a fetcher. The API client is constructed lazily on the
// first cache miss, so a fresh cache never requires credentials.
func NewFetcher(opts FetcherOptions, cache Cache, logger zerolog.Logger) *Fetcher {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}

	f := &Fetcher{
		opts:   opts,
		cache:  cache,
		logger: logger.With().Str("component", "post_fetcher").Logger(),
		now:    time.Now,
	}
	f.newClient = func() (Searcher, error) {
		return NewClient(opts.Client, logger)
	}
	return f
}

// Fetch returns a batch for the ticker. The returned batch is always usable;
// a non-nil error only reports credential problems so the caller can surface
// the remediation. Rate limits, transient failures, and empty search results
// degrade to cached content or an empty batch internally.
func (f *Fetcher) Fetch(ctx context.Context, ticker string) (Batch, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	cached, fetchedAt, ok := f.cache.Load(ticker)
	now := f.now().UTC()
	if ok && now.Sub(fetchedAt) < f.opts.CacheTTL {
		f.logger.Debug().Str("ticker", ticker).Time("fetched_at", fetchedAt).
			Int("count", len(cached)).Msg("serving fresh cached posts")
		return Batch{Posts: cached, FetchedAt: fetchedAt, Source: SourceCache}, nil
	}

	client, err := f.getClient()
	if err != nil {
		return f.fallback(ticker, cached, fetchedAt, ok), err
	}

	found, err := client.Search(ctx, ticker)
	switch {
	case errors.Is(err, ErrRateLimited):
		f.logger.Warn().Str("ticker", ticker).Err(err).Msg("rate limit exceeded; falling back to cache")
		return f.fallback(ticker, cached, fetchedAt, ok), nil
	case err != nil:
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return f.fallback(ticker, cached, fetchedAt, ok), err
		}
		f.logger.Warn().Str("ticker", ticker).Err(err).Msg("post search failed; falling back to cache")
		return f.fallback(ticker, cached, fetchedAt, ok), nil
	case len(found) == 0:
		f.logger.Warn().Str("ticker", ticker).Msg("no posts found in the last 24 hours")
		return f.fallback(ticker, cached, fetchedAt, ok), nil
	}

	if err := f.cache.Save(ticker, found); err != nil {
		f.logger.Error().Str("ticker", ticker).Err(err).Msg("failed to persist post cache")
	}

	return Batch{Posts: found, FetchedAt: now, Source: SourceAPI}, nil
}

func (f *Fetcher) fallback(ticker string, cached []Post, fetchedAt time.Time, ok bool) Batch {
	if ok && len(cached) > 0 {
		f.logger.Info().Str("ticker", ticker).Time("fetched_at", fetchedAt).
			Int("count", len(cached)).Msg("serving stale cached posts as fallback")
		return Batch{Posts: cached, FetchedAt: fetchedAt, Source: SourceCache}
	}
	return Batch{Posts: []Post{}, FetchedAt: f.now().UTC(), Source: SourceEmpty}
}

func (f *Fetcher) getClient() (Searcher, error) {
	f.clientMux.Lock()
	defer f.clientMux.Unlock()

	if f.client != nil {
		return f.client, nil
	}

	client, err := f.newClient()
	if err != nil {
		return nil, err
	}
	f.client = client
	return client, nil
}
