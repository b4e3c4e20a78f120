// Copyright 2025 The PlaceGeo Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/audiotour/placegeo/cache"
	"github.com/audiotour/placegeo/geocode"
	"github.com/spf13/cobra"
)

var queryOptions struct {
	city   string
	lookup bool
}

var queryCmd = &cobra.Command{
	Use:   "query <title>",
	Short: "Show how a place title would be resolved",
	Long: `Prints the search queries generated for a title, the cached result for it
and, with --lookup, what the geocoding service answers for each query.
No file is modified.

$ placegeo query "Römer & Rathaus" --city Frankfurt
query 1: "Römer Rathaus"
query 2: "Römer"
query 3: "Rathaus"
	`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var g geocode.Geocoder
		if queryOptions.lookup {
			var err error

			g, err = newGeocoder(ctx, cfg, httpOptions)
			if err != nil {
				return fmt.Errorf("creating geocoder: %w", err)
			}
		}

		c, err := cache.Load(cfg.Paths.CacheFile)
		if err != nil {
			return fmt.Errorf("loading cache: %w", err)
		}

		return explainQuery(ctx, cmd.OutOrStdout(), args[0], queryOptions.city, c, g, categories(cfg))
	},
}

// explainQuery writes the resolution steps for title. A nil geocoder skips
// the lookups.
func explainQuery(
	ctx context.Context,
	w io.Writer,
	title, city string,
	c *cache.Cache,
	g geocode.Geocoder,
	cats geocode.Categories,
) error {
	queries := geocode.FallbackQueries(title)
	for i, q := range queries {
		fmt.Fprintf(w, "query %d: %q\n", i+1, q)
	}

	key := cache.Key{Title: title, City: city}
	if entry, ok := c.Get(key); ok {
		fmt.Fprintf(w, "cached: %s %q\n", entry.Point(), entry.DisplayName)
	} else {
		fmt.Fprintf(w, "cached: none for %q\n", key.String())
	}

	if g == nil {
		return nil
	}

	for i, q := range queries {
		if q == "" {
			continue
		}

		cands, err := g.Search(ctx, q, city)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			fmt.Fprintf(w, "query %d: error: %v\n", i+1, err)

			continue
		}

		valid := geocode.ValidCandidates(cands)
		fmt.Fprintf(w, "query %d: %d candidates\n", i+1, len(valid))

		for _, cand := range valid {
			mark := " "
			if cats.Allows(cand) {
				mark = "*"
			}

			fmt.Fprintf(w, "  %s %s %s/%s %s\n", mark, cand.Point(), cand.Class, cand.Type, cand.DisplayName)
		}

		if match := geocode.SelectBest(valid, cats); match != nil {
			fmt.Fprintf(w, "match: %s %q\n", match.Point, match.DisplayName)

			return nil
		}
	}

	fmt.Fprintln(w, "match: none")

	return nil
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVar(&queryOptions.city, "city", "", "City name the search is scoped to")
	queryCmd.Flags().BoolVar(&queryOptions.lookup, "lookup", false, "Query the geocoding service")
	_ = queryCmd.MarkFlagRequired("city")
	addHTTPFlags(queryCmd)
}
