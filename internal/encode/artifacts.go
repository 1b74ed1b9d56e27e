package encode

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Artifact file names inside the model directory. The inference side
// reads them by these exact names.
const (
	NumericStatsFile = "numeric_stats.json"
	CategoryMapsFile = "category_maps.json"
)

// SaveArtifacts writes the fitted statistics and vocabularies into dir.
func (e *Encoder) SaveArtifacts(dir string) error {
	if err := writeJSON(filepath.Join(dir, NumericStatsFile), e.Stats); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, CategoryMapsFile), e.Categories)
}

// LoadArtifacts reads a fitted encoder back from dir and validates it
// against spec. Validation is fail-fast: a stats file that covers a
// different column set than the current feature schema means the model
// directory and the pipeline are out of sync, and scoring with it would
// produce garbage vectors.
func LoadArtifacts(dir string, spec Spec) (*Encoder, error) {
	enc := &Encoder{Spec: spec}

	if err := readJSON(filepath.Join(dir, NumericStatsFile), &enc.Stats); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, CategoryMapsFile), &enc.Categories); err != nil {
		return nil, err
	}

	if err := enc.validate(); err != nil {
		return nil, fmt.Errorf("model artifacts in %s: %w", dir, err)
	}
	return enc, nil
}

func (e *Encoder) validate() error {
	if len(e.Stats.Mean) != len(e.Spec.Numeric) || len(e.Stats.Std) != len(e.Spec.Numeric) {
		return fmt.Errorf("numeric stats cover %d/%d columns, want %d",
			len(e.Stats.Mean), len(e.Stats.Std), len(e.Spec.Numeric))
	}
	for _, col := range e.Spec.Numeric {
		if _, ok := e.Stats.Mean[col]; !ok {
			return fmt.Errorf("numeric stats missing column %q", col)
		}
		std, ok := e.Stats.Std[col]
		if !ok {
			return fmt.Errorf("numeric stats missing std for column %q", col)
		}
		if std == 0 {
			return fmt.Errorf("numeric stats have zero std for column %q", col)
		}
	}

	if len(e.Categories) != len(e.Spec.Categorical) {
		return fmt.Errorf("category maps cover %d columns, want %d",
			len(e.Categories), len(e.Spec.Categorical))
	}
	for _, col := range e.Spec.Categorical {
		m, ok := e.Categories[col]
		if !ok {
			return fmt.Errorf("category maps missing column %q", col)
		}
		if m.Size < 1 {
			return fmt.Errorf("category map for %q has size %d", col, m.Size)
		}
		for v, idx := range m.Map {
			if idx < 0 || idx >= m.Size {
				return fmt.Errorf("category map for %q: value %q has index %d outside size %d",
					col, v, idx, m.Size)
			}
		}
	}

	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
