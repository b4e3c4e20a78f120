// Copyright 2025 The PlaceGeo Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/audiotour/placegeo/activity"
	"github.com/audiotour/placegeo/cache"
	"github.com/audiotour/placegeo/config"
	"github.com/audiotour/placegeo/enrich"
	"github.com/audiotour/placegeo/geocode"
	"github.com/audiotour/placegeo/overrides"
	"github.com/audiotour/placegeo/places"
	"github.com/audiotour/placegeo/utils/textutils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var enrichOptions = enrich.Options{}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Resolve and update the coordinates of every place",
	Long: `Processes every city file in the places directory, one place at a time.
A place takes the coordinates of its manual override when there is one;
otherwise the cached or freshly geocoded point is adopted when it is farther
than the threshold from the current one.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		job, err := newEnrichJob(ctx, cfg, httpOptions, enrichOptions)
		if err != nil {
			return err
		}

		err = job.Run(ctx)
		logEnrichMetrics(&job.Metrics)

		return err
	},
}

// newEnrichJob loads the overrides, the cache and the activity log and
// wires them to the configured geocoder.
func newEnrichJob(
	ctx context.Context,
	cfg *config.Config,
	httpOpts geocode.HTTPOptions,
	options enrich.Options,
) (*enrich.Job, error) {
	ovr, err := overrides.Load(cfg.Paths.OverridesFile)
	if err != nil {
		return nil, fmt.Errorf("loading overrides: %w", err)
	}

	c, err := cache.Load(cfg.Paths.CacheFile)
	if err != nil {
		return nil, fmt.Errorf("loading cache: %w", err)
	}

	log, err := activity.Load(cfg.Paths.LogFile)
	if err != nil {
		return nil, fmt.Errorf("loading activity log: %w", err)
	}

	g, err := newGeocoder(ctx, cfg, httpOpts)
	if err != nil {
		return nil, fmt.Errorf("creating geocoder: %w", err)
	}

	zap.L().Info("loaded state",
		zap.Int("overrides", len(ovr)),
		zap.Int("cache_entries", c.Len()),
		zap.Int("log_entries", log.Len()),
	)

	resolver := enrich.NewResolver(ovr, c, g, categories(cfg), cfg.Enrich.ThresholdMeters)

	return enrich.NewJob(places.NewStore(cfg.Paths.PlacesDir), c, resolver, log, options), nil
}

func logEnrichMetrics(m *enrich.Metrics) {
	zap.L().Sugar().Infof(
		"Total: %s places in %s cities (%s files skipped), %s updated, %s files written",
		textutils.FormatCount(m.Places),
		textutils.FormatCount(m.Cities),
		textutils.FormatCount(m.SkippedFiles),
		textutils.FormatCount(m.Updated),
		textutils.FormatCount(m.FilesWritten),
	)
	zap.L().Sugar().Infof(
		"Outcomes: %d override, %d cache kept, %d cache adopted, %d lookup kept, %d lookup adopted, %d missed",
		m.Overrides, m.CacheKept, m.CacheAdopted, m.LookupKept, m.LookupAdopted, m.Misses,
	)
	zap.L().Sugar().Infof(
		"Lookups: %d requests, %d failed (%d rate limited or over quota, %d timed out)",
		m.Lookups, m.LookupErrors, m.Throttled, m.Timeouts,
	)
}

func init() {
	rootCmd.AddCommand(enrichCmd)
	enrichCmd.PersistentFlags().BoolVar(&enrichOptions.DryRun, "dry-run", false, "Resolve every place but write nothing")
	addHTTPFlags(enrichCmd)
}
