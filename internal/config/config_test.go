package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaultsOnTopOfFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "statsited.json")
	doc := `{
		"listen_addr": ":8125",
		"flush_interval_seconds": 10,
		"sinks": [{"type": "stream", "stream_cmd": "cat"}]
	}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TimerEps != 0.01 {
		t.Errorf("TimerEps = %v, want default 0.01", cfg.TimerEps)
	}
	if len(cfg.Quantiles) != 3 {
		t.Errorf("Quantiles = %v, want 3 defaults", cfg.Quantiles)
	}
	if len(cfg.Sinks) != 1 || cfg.Sinks[0].Type != "stream" {
		t.Errorf("Sinks = %+v, want one stream sink", cfg.Sinks)
	}
}

func TestMetricsConfigBuildsHistogramTree(t *testing.T) {
	cfg := Default()
	cfg.Histograms = []HistogramEntry{{Prefix: "t.", MinVal: 0, MaxVal: 1000, NumBins: 11}}

	mc := cfg.MetricsConfig()
	if mc.Histograms == nil {
		t.Fatal("MetricsConfig() histogram tree is nil")
	}
	hc, ok := mc.Histograms.LongestPrefixMatch("t.latency")
	if !ok {
		t.Fatal("LongestPrefixMatch() did not match configured prefix")
	}
	if hc.NumBins != 11 {
		t.Errorf("NumBins = %d, want 11", hc.NumBins)
	}
}

func TestBuildSinksRejectsUnknownType(t *testing.T) {
	cfg := Default()
	cfg.Sinks = []SinkEntry{{Type: "carrier-pigeon"}}
	if _, err := cfg.BuildSinks(); err == nil {
		t.Error("BuildSinks() error = nil, want error for unknown sink type")
	}
}
