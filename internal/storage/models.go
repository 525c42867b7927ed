package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RunRecord captures one pipeline invocation for auditing.
type RunRecord struct {
	ID          uuid.UUID
	Ticker      string
	PostCount   int
	PostsSource string
	Status      string
	Error       *string
	CreatedAt   time.Time
}

// DailySample is one persisted (ticker, day) sentiment observation, joined
// with the close price for that day when the price series covered it.
type DailySample struct {
	Ticker       string
	Day          time.Time
	AvgSentiment decimal.Decimal
	PostCount    int
	Close        *decimal.Decimal
	RunID        uuid.UUID
	CreatedAt    time.Time
}
