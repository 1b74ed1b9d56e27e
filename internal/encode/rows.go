package encode

import (
	"encoding/csv"
	"fmt"
	"io"
)

// ReadRows reads a headered CSV into one map per row, keyed by column
// name. Feature CSVs produced by the pipeline are small enough to hold in
// memory, and fitting needs two passes anyway.
func ReadRows(r io.Reader) ([]map[string]string, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var rows []map[string]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", len(rows)+1, err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			row[col] = rec[i]
		}
		rows = append(rows, row)
	}

	return rows, nil
}
