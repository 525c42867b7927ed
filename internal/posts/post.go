package posts

import "time"

// DateLayout is the calendar-date format used in cache records and output.
const DateLayout = "2006-01-02"

// Post is one social-media post mentioning a ticker. Sentiment is never
// stored here; cached batches stay text-only and are re-scored downstream.
type Post struct {
	CreatedAt time.Time
	Text      string
}

// Day returns the UTC calendar date the post was created on.
func (p Post) Day() time.Time {
	t := p.CreatedAt.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateString formats Day using DateLayout.
func (p Post) DateString() string {
	return p.Day().Format(DateLayout)
}

// Source identifies where a batch came from.
type Source string

const (
	// SourceAPI means the batch was fetched from the search API.
	SourceAPI Source = "api"
	// SourceCache means a cached batch was served, fresh or as fallback.
	SourceCache Source = "cache"
	// SourceEmpty means no posts were available from any source.
	SourceEmpty Source = "empty"
)

// Batch is an ordered sequence of posts for one ticker.
type Batch struct {
	Posts     []Post
	FetchedAt time.Time
	Source    Source
}
