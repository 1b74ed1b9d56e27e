package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if got := cfg.GetOnTimeThreshold(); got != 0.85 {
		t.Errorf("GetOnTimeThreshold() = %v, want 0.85", got)
	}
	if got := cfg.GetMaxLayoverSec(); got != 900 {
		t.Errorf("GetMaxLayoverSec() = %v, want 900", got)
	}
	if cfg.GetAMPeakStartSec() != 21600 || cfg.GetAMPeakEndSec() != 32400 {
		t.Errorf("AM peak defaults = (%d, %d)", cfg.GetAMPeakStartSec(), cfg.GetAMPeakEndSec())
	}
	if cfg.GetPMPeakStartSec() != 55800 || cfg.GetPMPeakEndSec() != 66600 {
		t.Errorf("PM peak defaults = (%d, %d)", cfg.GetPMPeakStartSec(), cfg.GetPMPeakEndSec())
	}
	if cfg.GetChunkWindow() != 5 || cfg.GetBlockWindow() != 25 {
		t.Errorf("window defaults = (%d, %d)", cfg.GetChunkWindow(), cfg.GetBlockWindow())
	}
	if cfg.GetNormClip() != 5 {
		t.Errorf("GetNormClip() = %v, want 5", cfg.GetNormClip())
	}
	if cfg.GetProbThreshold() != 0.5 {
		t.Errorf("GetProbThreshold() = %v, want 0.5", cfg.GetProbThreshold())
	}

	weekdays := cfg.GetWeekdays()
	if len(weekdays) != 5 || weekdays[0] != 1 || weekdays[4] != 5 {
		t.Errorf("GetWeekdays() = %v, want Monday-Friday", weekdays)
	}
	if ids := cfg.GetServiceIDs(); len(ids) != 0 {
		t.Errorf("GetServiceIDs() = %v, want empty", ids)
	}
}

func TestLoadPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.json")
	content := `{"on_time_threshold": 0.9, "max_layover_sec": 600, "weekdays": [6, 0]}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := cfg.GetOnTimeThreshold(); got != 0.9 {
		t.Errorf("GetOnTimeThreshold() = %v, want 0.9", got)
	}
	if got := cfg.GetMaxLayoverSec(); got != 600 {
		t.Errorf("GetMaxLayoverSec() = %v, want 600", got)
	}
	// Omitted fields keep their defaults.
	if got := cfg.GetChunkWindow(); got != 5 {
		t.Errorf("GetChunkWindow() = %v, want 5", got)
	}
	if weekdays := cfg.GetWeekdays(); len(weekdays) != 2 || weekdays[0] != 6 {
		t.Errorf("GetWeekdays() = %v, want [6 0]", weekdays)
	}
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for non-.json extension")
	}
}

func TestValidate(t *testing.T) {
	bad := func(mutate func(*PipelineConfig)) *PipelineConfig {
		cfg := Default()
		mutate(cfg)
		return cfg
	}
	f := func(v float64) *float64 { return &v }
	i := func(v int) *int { return &v }
	i64 := func(v int64) *int64 { return &v }

	cases := []struct {
		name string
		cfg  *PipelineConfig
	}{
		{"threshold above one", bad(func(c *PipelineConfig) { c.OnTimeThreshold = f(1.5) })},
		{"negative threshold", bad(func(c *PipelineConfig) { c.OnTimeThreshold = f(-0.1) })},
		{"zero layover bound", bad(func(c *PipelineConfig) { c.MaxLayoverSec = i64(0) })},
		{"zero chunk window", bad(func(c *PipelineConfig) { c.ChunkWindow = i(0) })},
		{"negative clip", bad(func(c *PipelineConfig) { c.NormClip = f(-1) })},
		{"prob threshold above one", bad(func(c *PipelineConfig) { c.ProbThreshold = f(2) })},
		{"weekday out of range", bad(func(c *PipelineConfig) { c.Weekdays = []int{7} })},
	}

	for _, c := range cases {
		if err := c.cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", c.name)
		}
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}
