package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PipelineRun records one batch command execution, including the count of
// rows rejected for malformed block identifiers so that rejects are
// surfaced rather than silently dropped.
type PipelineRun struct {
	RunID             string
	Command           string
	StartedUnix       float64
	FinishedUnix      sql.NullFloat64
	RowsIn            int64
	RowsOut           int64
	MalformedBlockIDs int64
	Detail            sql.NullString
}

// StartRun creates a pipeline_runs row and returns its generated run ID.
func (db *DB) StartRun(ctx context.Context, command string) (string, error) {
	runID := uuid.NewString()
	_, err := db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (run_id, command, started_unix) VALUES (?, ?, ?)`,
		runID, command, float64(time.Now().UnixNano())/1e9,
	)
	if err != nil {
		return "", fmt.Errorf("failed to record pipeline run: %w", err)
	}
	return runID, nil
}

// FinishRun closes out a pipeline_runs row with its final counters.
func (db *DB) FinishRun(ctx context.Context, runID string, rowsIn, rowsOut, malformed int64, detail string) error {
	var d sql.NullString
	if detail != "" {
		d = sql.NullString{String: detail, Valid: true}
	}
	res, err := db.ExecContext(ctx,
		`UPDATE pipeline_runs
		SET finished_unix = ?, rows_in = ?, rows_out = ?, malformed_block_ids = ?, detail = ?
		WHERE run_id = ?`,
		float64(time.Now().UnixNano())/1e9, rowsIn, rowsOut, malformed, d, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish pipeline run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("pipeline run %s not found", runID)
	}
	return nil
}

// RecentRuns returns the most recent N pipeline runs.
func (db *DB) RecentRuns(ctx context.Context, limit int) ([]PipelineRun, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT run_id, command, started_unix, finished_unix, rows_in, rows_out, malformed_block_ids, detail
		FROM pipeline_runs ORDER BY started_unix DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipeline runs: %w", err)
	}
	defer rows.Close()

	var runs []PipelineRun
	for rows.Next() {
		var r PipelineRun
		if err := rows.Scan(
			&r.RunID, &r.Command, &r.StartedUnix, &r.FinishedUnix,
			&r.RowsIn, &r.RowsOut, &r.MalformedBlockIDs, &r.Detail,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pipeline run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
