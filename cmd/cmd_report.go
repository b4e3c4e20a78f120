// Copyright 2025 The PlaceGeo Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/audiotour/placegeo/activity"
	"github.com/audiotour/placegeo/utils/textutils"
	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize the activity log by city and outcome",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		log, err := activity.Load(cfg.Paths.LogFile)
		if err != nil {
			return fmt.Errorf("loading activity log: %w", err)
		}

		db, err := sql.Open("duckdb", "")
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		rows, err := activity.Summarize(cmd.Context(), db, log.Entries())
		if err != nil {
			return err
		}

		printReport(cmd.OutOrStdout(), rows)

		return nil
	},
}

func printReport(w io.Writer, rows []activity.SummaryRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "The activity log is empty")

		return
	}

	a, b, c, d, e := strings.Repeat("─", 20), strings.Repeat("─", 14), strings.Repeat("─", 8), strings.Repeat("─", 12), strings.Repeat("─", 19)
	fmt.Fprintf(w, "╭─%-20s─┬─%-14s─┬─%8s─┬─%12s─┬─%-19s─╮\n", a, b, c, d, e)
	fmt.Fprintf(w, "│ %-20s │ %-14s │ %8s │ %12s │ %-19s │\n", "City", "Outcome", "Places", "Avg dist (m)", "Last seen")
	fmt.Fprintf(w, "├─%-20s─┼─%-14s─┼─%8s─┼─%12s─┼─%-19s─┤\n", a, b, c, d, e)

	for _, r := range rows {
		dist := "-"
		if r.AvgDistance.Valid {
			dist = fmt.Sprintf("%.1f", r.AvgDistance.Float64)
		}

		fmt.Fprintf(w, "│ %-20s │ %-14s │ %8s │ %12s │ %-19s │\n",
			r.City, r.Outcome, textutils.FormatCount(r.Count), dist, r.LastSeen.Format("2006-01-02 15:04:05"))
	}

	fmt.Fprintf(w, "╰─%-20s─┴─%-14s─┴─%8s─┴─%12s─┴─%-19s─╯\n", a, b, c, d, e)
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
