package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetrics_Exposed(t *testing.T) {
	m := New(nil)
	m.SignalsTotal.WithLabelValues("trend", "BUY").Inc()
	m.InsufficientData.WithLabelValues("reversal").Add(2)
	m.BarsUpserted.Add(30)
	m.ObserveEval("trend", time.Now().Add(-time.Millisecond))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		`bandsentinel_signals_total{direction="BUY",strategy="trend"} 1`,
		`bandsentinel_insufficient_data_total{strategy="reversal"} 2`,
		`bandsentinel_bars_upserted_total 30`,
		`bandsentinel_eval_duration_seconds_count{strategy="trend"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in exposition", want)
		}
	}
}

func TestNew_IndependentRegistries(t *testing.T) {
	// registering twice on fresh registries must not panic
	New(nil)
	New(nil)
}
