// Package config holds the pipeline configuration object.
//
// The configuration is loaded once, validated, and passed explicitly into
// both training and inference entry points so the two always apply the
// same thresholds and windows. Fields omitted from the JSON file fall
// back to compiled-in defaults via the Get* accessors.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// PipelineConfig represents the tunable parameters of the feature
// pipeline. All fields are optional in the JSON file.
type PipelineConfig struct {
	// Labeling
	OnTimeThreshold *float64 `json:"on_time_threshold,omitempty"` // positive class cutoff on on_time_pct

	// Pairing
	MaxLayoverSec *int64 `json:"max_layover_sec,omitempty"` // pairs at or beyond this layover are dropped

	// Peak windows, seconds of day, exclusive start / inclusive end
	AMPeakStartSec *int64 `json:"am_peak_start_sec,omitempty"`
	AMPeakEndSec   *int64 `json:"am_peak_end_sec,omitempty"`
	PMPeakStartSec *int64 `json:"pm_peak_start_sec,omitempty"`
	PMPeakEndSec   *int64 `json:"pm_peak_end_sec,omitempty"`

	// Windowing
	ChunkWindow *int `json:"chunk_window,omitempty"` // slots per chunked sequence
	BlockWindow *int `json:"block_window,omitempty"` // slots per whole-block sequence

	// Encoding
	NormClip      *float64 `json:"norm_clip,omitempty"`      // symmetric clamp after normalization (sequence mode)
	ProbThreshold *float64 `json:"prob_threshold,omitempty"` // scoring cutoff on model probability

	// History selection
	Weekdays   []int   `json:"weekdays,omitempty"`    // 0=Sunday .. 6=Saturday
	ServiceIDs []int64 `json:"service_ids,omitempty"` // empty means all services
}

// Load reads a PipelineConfig from a JSON file. Partial configs are safe:
// omitted fields keep their defaults.
func Load(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &PipelineConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Default returns a config with every field at its compiled-in default.
func Default() *PipelineConfig {
	return &PipelineConfig{}
}

// Validate checks that the configuration values are usable.
func (c *PipelineConfig) Validate() error {
	if c.OnTimeThreshold != nil {
		if *c.OnTimeThreshold < 0 || *c.OnTimeThreshold > 1 {
			return fmt.Errorf("on_time_threshold must be between 0 and 1, got %f", *c.OnTimeThreshold)
		}
	}
	if c.MaxLayoverSec != nil && *c.MaxLayoverSec <= 0 {
		return fmt.Errorf("max_layover_sec must be positive, got %d", *c.MaxLayoverSec)
	}
	if c.ChunkWindow != nil && *c.ChunkWindow <= 0 {
		return fmt.Errorf("chunk_window must be positive, got %d", *c.ChunkWindow)
	}
	if c.BlockWindow != nil && *c.BlockWindow <= 0 {
		return fmt.Errorf("block_window must be positive, got %d", *c.BlockWindow)
	}
	if c.NormClip != nil && *c.NormClip <= 0 {
		return fmt.Errorf("norm_clip must be positive, got %f", *c.NormClip)
	}
	if c.ProbThreshold != nil {
		if *c.ProbThreshold < 0 || *c.ProbThreshold > 1 {
			return fmt.Errorf("prob_threshold must be between 0 and 1, got %f", *c.ProbThreshold)
		}
	}
	for _, wd := range c.Weekdays {
		if wd < 0 || wd > 6 {
			return fmt.Errorf("weekday out of range: %d", wd)
		}
	}
	return nil
}

// GetOnTimeThreshold returns the on-time class cutoff or the default.
func (c *PipelineConfig) GetOnTimeThreshold() float64 {
	if c.OnTimeThreshold == nil {
		return 0.85
	}
	return *c.OnTimeThreshold
}

// GetMaxLayoverSec returns the pair-dropping layover bound or the default.
func (c *PipelineConfig) GetMaxLayoverSec() int64 {
	if c.MaxLayoverSec == nil {
		return 900
	}
	return *c.MaxLayoverSec
}

// GetAMPeakStartSec returns the AM peak window start (exclusive).
func (c *PipelineConfig) GetAMPeakStartSec() int64 {
	if c.AMPeakStartSec == nil {
		return 21600 // 06:00
	}
	return *c.AMPeakStartSec
}

// GetAMPeakEndSec returns the AM peak window end (inclusive).
func (c *PipelineConfig) GetAMPeakEndSec() int64 {
	if c.AMPeakEndSec == nil {
		return 32400 // 09:00
	}
	return *c.AMPeakEndSec
}

// GetPMPeakStartSec returns the PM peak window start (exclusive).
func (c *PipelineConfig) GetPMPeakStartSec() int64 {
	if c.PMPeakStartSec == nil {
		return 55800 // 15:30
	}
	return *c.PMPeakStartSec
}

// GetPMPeakEndSec returns the PM peak window end (inclusive).
func (c *PipelineConfig) GetPMPeakEndSec() int64 {
	if c.PMPeakEndSec == nil {
		return 66600 // 18:30
	}
	return *c.PMPeakEndSec
}

// GetChunkWindow returns the chunked-mode window size.
func (c *PipelineConfig) GetChunkWindow() int {
	if c.ChunkWindow == nil {
		return 5
	}
	return *c.ChunkWindow
}

// GetBlockWindow returns the whole-block-mode window size.
func (c *PipelineConfig) GetBlockWindow() int {
	if c.BlockWindow == nil {
		return 25
	}
	return *c.BlockWindow
}

// GetNormClip returns the symmetric normalization clamp bound.
func (c *PipelineConfig) GetNormClip() float64 {
	if c.NormClip == nil {
		return 5
	}
	return *c.NormClip
}

// GetProbThreshold returns the scoring probability cutoff.
func (c *PipelineConfig) GetProbThreshold() float64 {
	if c.ProbThreshold == nil {
		return 0.5
	}
	return *c.ProbThreshold
}

// GetWeekdays returns the weekday filter, defaulting to Monday-Friday.
func (c *PipelineConfig) GetWeekdays() []int {
	if len(c.Weekdays) == 0 {
		return []int{1, 2, 3, 4, 5}
	}
	return c.Weekdays
}

// GetServiceIDs returns the service filter; empty means all services.
func (c *PipelineConfig) GetServiceIDs() []int64 {
	return c.ServiceIDs
}
