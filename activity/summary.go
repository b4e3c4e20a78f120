// Copyright 2025 The PlaceGeo Authors
// SPDX-License-Identifier: Apache-2.0

package activity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SummaryRow aggregates the entries of one city and outcome.
type SummaryRow struct {
	City        string
	Outcome     string
	Count       int
	AvgDistance sql.NullFloat64
	LastSeen    time.Time
}

// Summarize loads entries into db, which must be a DuckDB connection, and
// returns the counts per city and outcome, sorted by city then outcome.
func Summarize(ctx context.Context, db *sql.DB, entries []Entry) (rows []SummaryRow, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}

	defer func() {
		if rErr := tx.Rollback(); rErr != nil && !errors.Is(rErr, sql.ErrTxDone) {
			err = errors.Join(err, rErr)
		}
	}()

	if _, err := tx.ExecContext(ctx, `
		CREATE OR REPLACE TABLE activity (
			run_id VARCHAR,
			city VARCHAR NOT NULL,
			place_id VARCHAR NOT NULL,
			outcome VARCHAR NOT NULL,
			distance_m DOUBLE,
			logged_at TIMESTAMP
		)
	`); err != nil {
		return nil, fmt.Errorf("creating activity table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO activity (run_id, city, place_id, outcome, distance_m, logged_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		var distance sql.NullFloat64
		if e.DistanceMeters != nil {
			distance = sql.NullFloat64{Float64: *e.DistanceMeters, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx, e.RunID, e.City, e.PlaceID, e.Outcome, distance, e.Time.UTC()); err != nil {
			return nil, fmt.Errorf("inserting entry for %s: %w", e.PlaceID, err)
		}
	}

	result, err := tx.QueryContext(ctx, `
		SELECT city, outcome, count(*), avg(distance_m), max(logged_at)
		FROM activity
		GROUP BY city, outcome
		ORDER BY city, outcome
	`)
	if err != nil {
		return nil, fmt.Errorf("summarizing activity: %w", err)
	}
	defer result.Close()

	for result.Next() {
		var row SummaryRow
		if err := result.Scan(&row.City, &row.Outcome, &row.Count, &row.AvgDistance, &row.LastSeen); err != nil {
			return nil, fmt.Errorf("scanning summary row: %w", err)
		}

		rows = append(rows, row)
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("iterating summary rows: %w", err)
	}

	if err := result.Close(); err != nil {
		return nil, fmt.Errorf("closing summary rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing: %w", err)
	}

	return rows, nil
}
