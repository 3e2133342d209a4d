package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// 2024-05-02 and 2024-05-03 09:00 KST, a null holiday row, and a repeated live row.
const chartJSON = `{"chart":{"result":[{
	"meta":{"gmtoffset":32400},
	"timestamp":[1714608000,1714694400,1714780800,1714694500],
	"indicators":{"quote":[{
		"open":[78000,79000,null,79100],
		"high":[79000,80000,null,80500],
		"low":[77500,78500,null,78600],
		"close":[78500,79500,null,80100],
		"volume":[1200000,1500000,null,1600000]
	}]}
}],"error":null}}`

func TestDecodeChart(t *testing.T) {
	got, err := decodeChart([]byte(chartJSON))
	if err != nil {
		t.Fatalf("decodeChart: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d bars, want 2: %+v", len(got), got)
	}
	if !got[0].Date.Equal(day("2024-05-02")) || !got[1].Date.Equal(day("2024-05-03")) {
		t.Errorf("dates = %s, %s", got[0].Date, got[1].Date)
	}
	if got[1].Close != 80100 || got[1].Volume != 1600000 {
		t.Errorf("duplicate day should keep the later row, got %+v", got[1])
	}
}

func TestDecodeChart_APIError(t *testing.T) {
	body := `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`
	if _, err := decodeChart([]byte(body)); err == nil || !strings.Contains(err.Error(), "No data found") {
		t.Errorf("err = %v", err)
	}
}

func TestChartRange(t *testing.T) {
	tests := map[int]string{5: "1mo", 60: "3mo", 200: "1y", 400: "2y", 1000: "5y", 5000: "max"}
	for days, want := range tests {
		if got := chartRange(days); got != want {
			t.Errorf("chartRange(%d) = %q, want %q", days, got, want)
		}
	}
}

func TestYahooFetcher_SymbolAndRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/005930.KS") {
			http.NotFound(w, r)
			return
		}
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, chartJSON)
	}))
	defer srv.Close()

	f := NewYahooFetcher(YahooOptions{Suffix: ".KS", RequestsPerSecond: 50, BaseURL: srv.URL + "/", Timeout: 5 * time.Second})
	got, err := f.FetchDailyBars(context.Background(), "005930", 1)
	if err != nil {
		t.Fatalf("FetchDailyBars: %v", err)
	}
	if len(got) != 1 || !got[0].Date.Equal(day("2024-05-03")) {
		t.Errorf("got %+v, want only the latest bar", got)
	}
	if calls.Load() != 2 {
		t.Errorf("server called %d times, want 2", calls.Load())
	}
}

func TestYahooFetcher_PermanentError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewYahooFetcher(YahooOptions{RequestsPerSecond: 50, BaseURL: srv.URL + "/"})
	if _, err := f.FetchDailyBars(context.Background(), "NOPE", 10); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("404 retried: %d calls", calls.Load())
	}
}
