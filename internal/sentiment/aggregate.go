package sentiment

import (
	"sort"
	"time"
)

// Point is the mean sentiment for one observed calendar day.
type Point struct {
	Day       time.Time
	Sentiment float64
	Posts     int
}

// Aggregate groups scored posts by UTC calendar date and returns the daily
// arithmetic mean, ascending by date. Days without posts are omitted, not
// zero-filled. An empty batch yields an empty, non-nil series.
func Aggregate(scored []ScoredPost) []Point {
	sums := make(map[time.Time]*Point, len(scored))
	for _, post := range scored {
		day := post.Day()
		agg, ok := sums[day]
		if !ok {
			agg = &Point{Day: day}
			sums[day] = agg
		}
		agg.Sentiment += float64(post.Sentiment)
		agg.Posts++
	}

	series := make([]Point, 0, len(sums))
	for _, agg := range sums {
		agg.Sentiment /= float64(agg.Posts)
		series = append(series, *agg)
	}

	sort.Slice(series, func(i, j int) bool { return series[i].Day.Before(series[j].Day) })
	return series
}
