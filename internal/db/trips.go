package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// TripExecution is one row of the trips report: a scheduled trip execution
// with its observed outcome when available.
type TripExecution struct {
	Date               string // YYYY-MM-DD
	ServiceID          int64
	BlockID            string // composite "<blockKey>_<token>"
	TripID             string
	RouteID            string
	DirectionID        int64
	PlannedStartSec    int64
	PlannedDurationSec int64
	RealDurationSec    sql.NullInt64
	OnTimePct          sql.NullFloat64
}

// Filter restricts which trips-report rows a query returns.
// Zero values mean "no restriction" for the corresponding field.
type Filter struct {
	DateStart string // inclusive, YYYY-MM-DD
	DateEnd   string // inclusive, YYYY-MM-DD
	Weekdays  []int  // 0=Sunday .. 6=Saturday (strftime %w convention)
	ServiceIDs []int64

	// RequireDurations keeps only rows with both planned and real durations,
	// as needed for variability aggregation.
	RequireDurations bool
}

func (f Filter) whereClause() (string, []any) {
	var conds []string
	var args []any

	if f.DateStart != "" {
		conds = append(conds, "date >= ?")
		args = append(args, f.DateStart)
	}
	if f.DateEnd != "" {
		conds = append(conds, "date <= ?")
		args = append(args, f.DateEnd)
	}
	if len(f.Weekdays) > 0 {
		ph := make([]string, len(f.Weekdays))
		for i, wd := range f.Weekdays {
			ph[i] = "?"
			args = append(args, wd)
		}
		conds = append(conds, "CAST(strftime('%w', date) AS INTEGER) IN ("+strings.Join(ph, ", ")+")")
	}
	if len(f.ServiceIDs) > 0 {
		ph := make([]string, len(f.ServiceIDs))
		for i, id := range f.ServiceIDs {
			ph[i] = "?"
			args = append(args, id)
		}
		conds = append(conds, "service_id IN ("+strings.Join(ph, ", ")+")")
	}
	if f.RequireDurations {
		conds = append(conds, "real_duration_sec IS NOT NULL")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// TripHistory returns the trips-report rows matching the filter, ordered by
// date then planned start. The full history must be loaded before any
// enrichment pass begins (the statistics engine needs a complete pass).
func (db *DB) TripHistory(ctx context.Context, f Filter) ([]TripExecution, error) {
	where, args := f.whereClause()
	query := `SELECT date, service_id, block_id, trip_id, route_id, direction_id,
			planned_start_sec, planned_duration_sec, real_duration_sec, on_time_pct
		FROM trips_report` + where + ` ORDER BY date, block_id, planned_start_sec`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trips report: %w", err)
	}
	defer rows.Close()

	var trips []TripExecution
	for rows.Next() {
		var t TripExecution
		if err := rows.Scan(
			&t.Date,
			&t.ServiceID,
			&t.BlockID,
			&t.TripID,
			&t.RouteID,
			&t.DirectionID,
			&t.PlannedStartSec,
			&t.PlannedDurationSec,
			&t.RealDurationSec,
			&t.OnTimePct,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trips report row: %w", err)
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return trips, nil
}

// InsertTripExecution records a single trips-report row.
func (db *DB) InsertTripExecution(ctx context.Context, t TripExecution) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO trips_report (
			date, service_id, block_id, trip_id, route_id, direction_id,
			planned_start_sec, planned_duration_sec, real_duration_sec, on_time_pct
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Date, t.ServiceID, t.BlockID, t.TripID, t.RouteID, t.DirectionID,
		t.PlannedStartSec, t.PlannedDurationSec, t.RealDurationSec, t.OnTimePct,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trip execution: %w", err)
	}
	return nil
}

// CountTrips returns the number of rows matching the filter.
func (db *DB) CountTrips(ctx context.Context, f Filter) (int64, error) {
	where, args := f.whereClause()
	var n int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM trips_report"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count trips: %w", err)
	}
	return n, nil
}
