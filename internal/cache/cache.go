package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nthpaul/stock-sentiment-dash/internal/posts"
)

// Options parameterise the on-disk cache store.
type Options struct {
	Dir        string
	MaxEntries int
}

// Store persists one JSON record per ticker under a cache directory. Records
// are overwritten in place on every save; freshness is evaluated by callers.
type Store struct {
	dir        string
	maxEntries int
	logger     zerolog.Logger
	now        func() time.Time
}

const recordSuffix = "_posts.json"

// NewStore constructs a cache store. The directory is created on first save.
func NewStore(opts Options, logger zerolog.Logger) *Store {
	dir := opts.Dir
	if dir == "" {
		dir = "cache"
	}

	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 64
	}

	return &Store{
		dir:        dir,
		maxEntries: maxEntries,
		logger:     logger.With().Str("component", "post_cache").Logger(),
		now:        time.Now,
	}
}

type record struct {
	Timestamp time.Time  `json:"timestamp"`
	Tweets    []wirePost `json:"tweets"`
}

type wirePost struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Date      string    `json:"date"`
}

// Load returns the persisted batch and fetch time for a ticker. A missing,
// unreadable, or corrupt record is reported as a plain miss so a bad cache
// file can never take down the pipeline.
func (s *Store) Load(ticker string) ([]posts.Post, time.Time, bool) {
	path := s.recordPath(ticker)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, false
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		s.logger.Warn().Str("ticker", ticker).Str("path", path).Err(err).
			Msg("corrupt cache record treated as miss")
		return nil, time.Time{}, false
	}
	if rec.Timestamp.IsZero() {
		s.logger.Warn().Str("ticker", ticker).Str("path", path).
			Msg("cache record missing timestamp; treated as miss")
		return nil, time.Time{}, false
	}

	batch := make([]posts.Post, 0, len(rec.Tweets))
	for _, item := range rec.Tweets {
		batch = append(batch, posts.Post{CreatedAt: item.Timestamp.UTC(), Text: item.Text})
	}

	return batch, rec.Timestamp.UTC(), true
}

// Save overwrites the record for a ticker, stamped with the current UTC time.
func (s *Store) Save(ticker string, batch []posts.Post) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	rec := record{
		Timestamp: s.now().UTC(),
		Tweets:    make([]wirePost, 0, len(batch)),
	}
	for _, p := range batch {
		rec.Tweets = append(rec.Tweets, wirePost{
			Timestamp: p.CreatedAt.UTC(),
			Text:      p.Text,
			Date:      p.DateString(),
		})
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal cache record: %w", err)
	}

	path := s.recordPath(ticker)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write cache record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace cache record: %w", err)
	}

	s.evict()
	return nil
}

func (s *Store) recordPath(ticker string) string {
	return filepath.Join(s.dir, sanitizeTicker(ticker)+recordSuffix)
}

func sanitizeTicker(ticker string) string {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	var b strings.Builder
	for _, r := range ticker {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// evict removes the oldest records once the directory exceeds maxEntries.
// Ordering uses file modification time, which tracks the fetch timestamp
// because records are rewritten whole on every save.
func (s *Store) evict() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}

	type aged struct {
		path string
		mod  time.Time
	}

	records := make([]aged, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), recordSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		records = append(records, aged{path: filepath.Join(s.dir, entry.Name()), mod: info.ModTime()})
	}

	if len(records) <= s.maxEntries {
		return
	}

	sort.Slice(records, func(i, j int) bool { return records[i].mod.Before(records[j].mod) })

	for _, victim := range records[:len(records)-s.maxEntries] {
		if err := os.Remove(victim.path); err != nil {
			s.logger.Warn().Str("path", victim.path).Err(err).Msg("failed to evict cache record")
			continue
		}
		s.logger.Debug().Str("path", victim.path).Msg("evicted cache record")
	}
}

var _ posts.Cache = (*Store)(nil)
