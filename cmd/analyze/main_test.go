package main

import (
	"testing"

	"BandSentinel/internal/config"
	"BandSentinel/internal/strategy"
)

func TestDateRange(t *testing.T) {
	end, start, err := dateRange("2024-01-02", "2024-03-01", 400)
	if err != nil {
		t.Fatalf("dateRange: %v", err)
	}
	if got := start.Format("2006-01-02"); got != "2024-01-02" {
		t.Errorf("start = %s", got)
	}
	if got := end.Format("2006-01-02"); got != "2024-03-01" {
		t.Errorf("end = %s", got)
	}

	_, start, err = dateRange("", "2024-03-01", 10)
	if err != nil {
		t.Fatalf("dateRange: %v", err)
	}
	if got := start.Format("2006-01-02"); got != "2024-02-20" {
		t.Errorf("lookback start = %s, want 2024-02-20", got)
	}

	if _, _, err := dateRange("2024-04-01", "2024-03-01", 10); err == nil {
		t.Error("expected error for inverted range")
	}
	if _, _, err := dateRange("01/02/2024", "", 10); err == nil {
		t.Error("expected error for bad layout")
	}
}

func TestSelectProfiles(t *testing.T) {
	cfg := &config.Config{}
	cfg.Analysis.Profiles = []string{strategy.Reversal}

	got, err := selectProfiles(cfg, "")
	if err != nil || len(got) != 1 || got[0].Name != strategy.Reversal {
		t.Fatalf("default selection = %v, %v", got, err)
	}

	got, err = selectProfiles(cfg, "trend, triple-screen")
	if err != nil {
		t.Fatalf("selectProfiles: %v", err)
	}
	if len(got) != 2 || got[0].Name != strategy.Trend || got[1].Name != strategy.TripleScreen {
		t.Errorf("selection = %+v", got)
	}

	if _, err := selectProfiles(cfg, "momentum"); err == nil {
		t.Error("expected error for unknown profile")
	}
}
