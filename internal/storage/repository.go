package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertDailySampleSQL = `INSERT INTO daily_sentiment (
        ticker,
        day,
        avg_sentiment,
        post_count,
        close_price,
        run_id
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    ON CONFLICT (ticker, day) DO UPDATE
    SET
        avg_sentiment = EXCLUDED.avg_sentiment,
        post_count    = EXCLUDED.post_count,
        close_price   = EXCLUDED.close_price,
        run_id        = EXCLUDED.run_id;`

	listSamplesBetweenSQL = `SELECT
        ticker,
        day,
        avg_sentiment,
        post_count,
        close_price,
        run_id,
        created_at
    FROM daily_sentiment
    WHERE ticker = $1
      AND day >= $2
      AND day < $3
    ORDER BY day;`

	insertRunSQL = `INSERT INTO pipeline_runs (
        id,
        ticker,
        post_count,
        posts_source,
        status,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    );`

	listRecentRunsSQL = `SELECT
        id,
        ticker,
        post_count,
        posts_source,
        status,
        error,
        created_at
    FROM pipeline_runs
    ORDER BY created_at DESC
    LIMIT $1;`

	countRunsSQL = `SELECT COUNT(*) FROM pipeline_runs;`
)

// SampleStore defines operations for daily sentiment persistence.
type SampleStore interface {
	UpsertDailySample(ctx context.Context, sample DailySample) error
	ListSamplesBetween(ctx context.Context, ticker string, from, to time.Time) ([]DailySample, error)
}

// RunStore defines operations for run auditing.
type RunStore interface {
	InsertRun(ctx context.Context, run RunRecord) error
	ListRecentRuns(ctx context.Context, limit int) ([]RunRecord, error)
	CountRuns(ctx context.Context) (int64, error)
}

// Store aggregates access to daily samples and pipeline runs.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertDailySample persists or updates one (ticker, day) observation.
func (s *Store) UpsertDailySample(ctx context.Context, sample DailySample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var closeStr interface{}
	if sample.Close != nil {
		closeStr = sample.Close.String()
	}

	_, execErr := pool.Exec(ctx, upsertDailySampleSQL,
		sample.Ticker,
		sample.Day,
		sample.AvgSentiment.String(),
		sample.PostCount,
		closeStr,
		sample.RunID.String(),
	)
	if execErr != nil {
		return fmt.Errorf("upsert daily sample: %w", execErr)
	}
	return nil
}

// ListSamplesBetween lists samples for a ticker within a day window.
func (s *Store) ListSamplesBetween(ctx context.Context, ticker string, from, to time.Time) ([]DailySample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesBetweenSQL, ticker, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples between: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]DailySample, 0)
	for rows.Next() {
		sample, scanErr := scanDailySample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// InsertRun persists a run audit record.
func (s *Store) InsertRun(ctx context.Context, run RunRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var errMsg interface{}
	if run.Error != nil {
		errMsg = *run.Error
	}

	_, execErr := pool.Exec(ctx, insertRunSQL,
		run.ID.String(),
		run.Ticker,
		run.PostCount,
		run.PostsSource,
		run.Status,
		errMsg,
	)
	if execErr != nil {
		return fmt.Errorf("insert run: %w", execErr)
	}
	return nil
}

// ListRecentRuns lists the most recent runs ordered by descending creation time.
func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRunsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent runs: %w", queryErr)
	}
	defer rows.Close()

	runs := make([]RunRecord, 0, limit)
	for rows.Next() {
		var rec RunRecord
		var idStr string
		var errMsg sql.NullString
		if err := rows.Scan(
			&idStr,
			&rec.Ticker,
			&rec.PostCount,
			&rec.PostsSource,
			&rec.Status,
			&errMsg,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}

		id, parseErr := uuid.Parse(idStr)
		if parseErr != nil {
			return nil, fmt.Errorf("parse run id: %w", parseErr)
		}
		rec.ID = id
		if errMsg.Valid {
			msg := errMsg.String
			rec.Error = &msg
		}

		runs = append(runs, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

// CountRuns counts stored run records.
func (s *Store) CountRuns(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countRunsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count runs: %w", scanErr)
	}
	return count, nil
}

func scanDailySample(rows pgx.Rows) (DailySample, error) {
	var (
		ticker       string
		day          time.Time
		sentimentStr string
		postCount    int
		closeStr     sql.NullString
		runIDStr     string
		createdAt    time.Time
	)

	if err := rows.Scan(
		&ticker,
		&day,
		&sentimentStr,
		&postCount,
		&closeStr,
		&runIDStr,
		&createdAt,
	); err != nil {
		return DailySample{}, err
	}

	avg, err := decimal.NewFromString(sentimentStr)
	if err != nil {
		return DailySample{}, fmt.Errorf("parse avg sentiment: %w", err)
	}

	runID, err := uuid.Parse(runIDStr)
	if err != nil {
		return DailySample{}, fmt.Errorf("parse run id: %w", err)
	}

	sample := DailySample{
		Ticker:       ticker,
		Day:          day,
		AvgSentiment: avg,
		PostCount:    postCount,
		RunID:        runID,
		CreatedAt:    createdAt,
	}

	if closeStr.Valid {
		close, convErr := decimal.NewFromString(closeStr.String)
		if convErr != nil {
			return DailySample{}, fmt.Errorf("parse close price: %w", convErr)
		}
		sample.Close = &close
	}

	return sample, nil
}
