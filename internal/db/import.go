package db

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"
)

// ImportResult summarises a trips-report CSV load.
type ImportResult struct {
	Inserted int64
	Skipped  int64 // rows with unparseable required fields
}

// column aliases accepted for the raw trips-report export. The upstream
// report names the scheduled start "firstlast" (first/last stop times,
// first element used).
var importAliases = map[string]string{
	"firstlast":       "planned_start_sec",
	"plannedduration": "planned_duration_sec",
	"realduration":    "real_duration_sec",
}

// ImportTripsCSV loads a raw trips-report CSV into trips_report inside a
// single transaction. Rows whose required fields fail to parse are counted
// and skipped, not fatal: a partial export should still load.
func (db *DB) ImportTripsCSV(ctx context.Context, r io.Reader) (ImportResult, error) {
	var res ImportResult

	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return res, fmt.Errorf("failed to read CSV header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		if canonical, ok := importAliases[name]; ok {
			name = canonical
		}
		idx[name] = i
	}
	required := []string{
		"date", "service_id", "block_id", "trip_id", "route_id",
		"direction_id", "planned_start_sec", "planned_duration_sec",
	}
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return res, fmt.Errorf("trips CSV is missing required column %q", col)
		}
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return res, err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("warning: failed to rollback import transaction: %v", err)
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trips_report (
			date, service_id, block_id, trip_id, route_id, direction_id,
			planned_start_sec, planned_duration_sec, real_duration_sec, on_time_pct
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return res, err
	}
	defer stmt.Close()

	field := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, fmt.Errorf("failed to read CSV row: %w", err)
		}

		serviceID, err1 := strconv.ParseInt(field(rec, "service_id"), 10, 64)
		directionID, err2 := strconv.ParseInt(field(rec, "direction_id"), 10, 64)
		startSec, err3 := strconv.ParseInt(field(rec, "planned_start_sec"), 10, 64)
		plannedDur, err4 := strconv.ParseInt(field(rec, "planned_duration_sec"), 10, 64)
		date := field(rec, "date")
		blockID := field(rec, "block_id")
		tripID := field(rec, "trip_id")
		routeID := field(rec, "route_id")

		if err1 != nil || err2 != nil || err3 != nil || err4 != nil ||
			date == "" || blockID == "" || tripID == "" || routeID == "" || startSec < 0 {
			res.Skipped++
			continue
		}

		var realDur sql.NullInt64
		if v := field(rec, "real_duration_sec"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				realDur = sql.NullInt64{Int64: n, Valid: true}
			}
		}
		var onTime sql.NullFloat64
		if v := field(rec, "on_time_pct"); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				onTime = sql.NullFloat64{Float64: f, Valid: true}
			}
		}

		if _, err := stmt.ExecContext(ctx,
			date, serviceID, blockID, tripID, routeID, directionID,
			startSec, plannedDur, realDur, onTime,
		); err != nil {
			return res, fmt.Errorf("failed to insert trip %s: %w", tripID, err)
		}
		res.Inserted++
	}

	if err := tx.Commit(); err != nil {
		return res, err
	}

	if res.Skipped > 0 {
		log.Printf("trips import: skipped %d unparseable rows", res.Skipped)
	}

	return res, nil
}
