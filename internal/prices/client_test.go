package prices

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func chartPayload(timestamps []int64, closes []string) string {
	ts := ""
	for i, v := range timestamps {
		if i > 0 {
			ts += ","
		}
		ts += fmt.Sprintf("%d", v)
	}
	cs := ""
	for i, v := range closes {
		if i > 0 {
			cs += ","
		}
		cs += v
	}
	return fmt.Sprintf(`{"chart":{"result":[{"timestamp":[%s],"indicators":{"quote":[{"close":[%s]}]}}],"error":null}}`, ts, cs)
}

func TestHistorySuccess(t *testing.T) {
	var gotPath, gotRange string

	day1 := time.Date(2024, 3, 1, 21, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 4, 21, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRange = r.URL.Query().Get("range")
		_, _ = w.Write([]byte(chartPayload(
			[]int64{day2.Unix(), day1.Unix()},
			[]string{"175.30", "172.11"},
		)))
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL}, zerolog.Nop())
	series, err := client.History(context.Background(), "aapl", 7)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}

	if gotPath != "/v8/finance/chart/AAPL" {
		t.Fatalf("unexpected request path: %q", gotPath)
	}
	if gotRange != "7d" {
		t.Fatalf("unexpected range parameter: %q", gotRange)
	}

	if len(series) != 2 {
		t.Fatalf("expected 2 points, got %d", len(series))
	}
	if !series[0].Day.Before(series[1].Day) {
		t.Fatalf("series must be ascending: %s, %s", series[0].Day, series[1].Day)
	}
	if series[0].Close.String() != "172.11" {
		t.Fatalf("unexpected first close: %s", series[0].Close)
	}
	if series[1].Close.String() != "175.3" {
		t.Fatalf("unexpected second close: %s", series[1].Close)
	}
}

func TestHistorySkipsNullCloses(t *testing.T) {
	day := time.Date(2024, 3, 1, 21, 0, 0, 0, time.UTC)
	next := day.Add(24 * time.Hour)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chartPayload(
			[]int64{day.Unix(), next.Unix()},
			[]string{"null", "190.55"},
		)))
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL}, zerolog.Nop())
	series, err := client.History(context.Background(), "TSLA", 7)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(series) != 1 {
		t.Fatalf("null closes must be skipped, got %d points", len(series))
	}
	if series[0].Close.String() != "190.55" {
		t.Fatalf("unexpected close: %s", series[0].Close)
	}
}

func TestHistoryAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL}, zerolog.Nop())
	if _, err := client.History(context.Background(), "NOPE", 7); err == nil {
		t.Fatal("expected error from provider error payload")
	}
}

func TestHistoryEmptySeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chartPayload(nil, nil)))
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL}, zerolog.Nop())
	if _, err := client.History(context.Background(), "AAPL", 7); err == nil {
		t.Fatal("expected error when no closes are usable")
	}
}

func TestHistoryRequiresTicker(t *testing.T) {
	client := NewClient(Options{}, zerolog.Nop())
	if _, err := client.History(context.Background(), "  ", 7); err == nil {
		t.Fatal("expected error for blank ticker")
	}
}
