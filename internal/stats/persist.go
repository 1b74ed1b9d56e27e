package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// keySep joins key fields in the persisted form. Trip IDs and route IDs
// in the report never contain it.
const keySep = "|"

func (k Key) persistKey() string {
	if k.TripID != "" {
		return k.TripID
	}
	return strings.Join([]string{
		k.RouteID,
		strconv.FormatInt(k.DirectionID, 10),
		strconv.FormatInt(k.PlannedStartSec, 10),
	}, keySep)
}

func parsePersistKey(s string, by GroupBy) (Key, error) {
	if by == ByTrip {
		return Key{TripID: s}, nil
	}
	parts := strings.Split(s, keySep)
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("malformed variability key %q", s)
	}
	dir, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("malformed direction in variability key %q: %w", s, err)
	}
	start, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("malformed start in variability key %q: %w", s, err)
	}
	return Key{RouteID: parts[0], DirectionID: dir, PlannedStartSec: start}, nil
}

type persistedCells struct {
	GroupBy string          `json:"group_by"`
	Cells   map[string]Cell `json:"cells"`
}

func groupByName(by GroupBy) string {
	if by == ByTrip {
		return "trip"
	}
	return "routedir"
}

// Save writes the computed cells to a JSON file. The file is an artifact
// of a training run and is consumed unmodified by inference runs.
func Save(path string, by GroupBy, cells map[Key]Cell) error {
	p := persistedCells{
		GroupBy: groupByName(by),
		Cells:   make(map[string]Cell, len(cells)),
	}
	for k, c := range cells {
		p.Cells[k.persistKey()] = c
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal variability cells: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write variability cells: %w", err)
	}
	return nil
}

// Load reads cells previously written by Save.
func Load(path string) (GroupBy, map[Key]Cell, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read variability cells: %w", err)
	}

	var p persistedCells
	if err := json.Unmarshal(data, &p); err != nil {
		return 0, nil, fmt.Errorf("failed to parse variability cells: %w", err)
	}

	var by GroupBy
	switch p.GroupBy {
	case "trip":
		by = ByTrip
	case "routedir":
		by = ByRouteDirStart
	default:
		return 0, nil, fmt.Errorf("unknown variability grouping %q", p.GroupBy)
	}

	cells := make(map[Key]Cell, len(p.Cells))
	for s, c := range p.Cells {
		k, err := parsePersistKey(s, by)
		if err != nil {
			return 0, nil, err
		}
		cells[k] = c
	}

	return by, cells, nil
}
