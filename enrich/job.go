// Copyright 2025 The PlaceGeo Authors
// SPDX-License-Identifier: Apache-2.0

package enrich

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/audiotour/placegeo/activity"
	"github.com/audiotour/placegeo/cache"
	"github.com/audiotour/placegeo/geocode"
	"github.com/audiotour/placegeo/places"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// CellResolution is the H3 resolution recorded in the activity log,
// roughly a city block.
const CellResolution = 9

// Options controls a Job.
type Options struct {
	// DryRun resolves every place but writes nothing back.
	DryRun bool
}

// Metrics tracks what a run did.
type Metrics struct {
	Cities       int
	SkippedFiles int
	Places       int
	Updated      int

	Overrides     int
	CacheKept     int
	CacheAdopted  int
	LookupKept    int
	LookupAdopted int
	Misses        int

	Lookups      int
	LookupErrors int
	Throttled    int
	Timeouts     int
	FilesWritten int
}

// Merge combines two Metrics.
func (m *Metrics) Merge(o *Metrics) *Metrics {
	if o == nil {
		return m
	}

	m.Cities += o.Cities
	m.SkippedFiles += o.SkippedFiles
	m.Places += o.Places
	m.Updated += o.Updated
	m.Overrides += o.Overrides
	m.CacheKept += o.CacheKept
	m.CacheAdopted += o.CacheAdopted
	m.LookupKept += o.LookupKept
	m.LookupAdopted += o.LookupAdopted
	m.Misses += o.Misses
	m.Lookups += o.Lookups
	m.LookupErrors += o.LookupErrors
	m.Throttled += o.Throttled
	m.Timeouts += o.Timeouts
	m.FilesWritten += o.FilesWritten

	return m
}

func (m *Metrics) add(res *Resolution) {
	m.Places++
	m.Lookups += res.Lookups
	m.LookupErrors += len(res.LookupErrors)

	for _, t := range res.LookupErrors {
		switch {
		case t.Throttled():
			m.Throttled++
		case t == geocode.ErrorTypeTimeout:
			m.Timeouts++
		}
	}

	if res.Changed() {
		m.Updated++
	}

	switch res.Outcome {
	case OutcomeOverride:
		m.Overrides++
	case OutcomeCacheKept:
		m.CacheKept++
	case OutcomeCacheAdopted:
		m.CacheAdopted++
	case OutcomeLookupKept:
		m.LookupKept++
	case OutcomeLookupAdopted:
		m.LookupAdopted++
	case OutcomeMiss:
		m.Misses++
	}
}

// Job is one enrichment run over every city file of a store.
type Job struct {
	store    *places.Store
	cache    *cache.Cache
	resolver *Resolver
	log      *activity.Log
	options  Options

	runID string
	now   func() time.Time

	// progressBar returns the bar tracking n city files, or nil for none.
	progressBar func(n int) *progressbar.ProgressBar

	Metrics Metrics
}

// NewJob creates a job. The resolver must share c, the cache that is
// persisted at the end of the run.
func NewJob(store *places.Store, c *cache.Cache, resolver *Resolver, log *activity.Log, options Options) *Job {
	return &Job{
		store:    store,
		cache:    c,
		resolver: resolver,
		log:      log,
		options:  options,
		runID:    uuid.NewString(),
		now:      time.Now,

		progressBar: terminalProgressBar,
	}
}

// RunID identifies the run in the activity log.
func (j *Job) RunID() string {
	return j.runID
}

// Run processes the cities in listing order and their places one at a
// time, then writes the modified city files, the cache and the activity
// log. Nothing is written if the run fails or in dry-run mode.
func (j *Job) Run(ctx context.Context) error {
	slugs, err := j.store.List()
	if err != nil {
		return err
	}

	zap.L().Info("starting enrichment",
		zap.String("run_id", j.runID),
		zap.String("places_dir", j.store.Root()),
		zap.Int("files", len(slugs)),
		zap.Bool("dry_run", j.options.DryRun),
	)

	bar := j.progressBar(len(slugs))
	advance := func(slug string) error {
		if bar == nil {
			return nil
		}

		if err := bar.Add(1); err != nil {
			return fmt.Errorf("updating progress bar for %s: %w", slug, err)
		}

		return nil
	}

	var dirty []*places.CityFile

	for _, slug := range slugs {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("enrichment interrupted: %w", err)
		}

		city, err := j.store.Load(slug)
		if errors.Is(err, places.ErrNoPlaces) {
			zap.L().Warn("skipping file without places", zap.String("file", slug), zap.Error(err))
			j.Metrics.SkippedFiles++

			if err := advance(slug); err != nil {
				return err
			}

			continue
		}

		if err != nil {
			return err
		}

		if bar != nil {
			bar.Describe(city.Name)
		}

		metrics, err := j.processCity(ctx, city, bar == nil)
		j.Metrics.Merge(metrics)

		if err != nil {
			return err
		}

		zap.L().Info("city done",
			zap.String("city", city.Name),
			zap.Int("places", metrics.Places),
			zap.Int("updated", metrics.Updated),
			zap.Int("misses", metrics.Misses),
		)

		if city.Dirty {
			dirty = append(dirty, city)
		}

		if err := advance(slug); err != nil {
			return err
		}
	}

	if j.options.DryRun {
		zap.L().Info("dry run, nothing written",
			zap.Int("modified_files", len(dirty)),
			zap.Int("new_cache_entries", j.cache.Added()),
			zap.Int("new_log_entries", len(j.log.Added())),
		)

		return nil
	}

	return j.persist(dirty)
}

// terminalProgressBar shows a bar on stderr when it is a terminal.
func terminalProgressBar(n int) *progressbar.ProgressBar {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		return nil
	}

	return progressbar.NewOptions(n,
		progressbar.OptionSetDescription("Enriching"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (j *Job) processCity(ctx context.Context, city *places.CityFile, verbose bool) (*Metrics, error) {
	metrics := &Metrics{Cities: 1}

	zap.L().Info("processing city", zap.String("city", city.Name), zap.Int("places", len(city.Places)))

	for _, p := range city.Places {
		res, err := j.resolver.Resolve(ctx, city.Name, p)
		if err != nil {
			return metrics, err
		}

		metrics.add(&res)

		if res.Changed() {
			city.SetPoint(p, res.Chosen.Lat, res.Chosen.Lng)
		}

		j.report(city, p, &res, verbose)
		j.log.Append(j.entry(city, p, &res))
	}

	return metrics, nil
}

// report prints one line per place. Unchanged places are only reported
// when no progress bar is shown.
func (j *Job) report(city *places.CityFile, p *places.Place, res *Resolution, verbose bool) {
	fields := []zap.Field{
		zap.String("city", city.Name),
		zap.String("id", p.ID),
		zap.String("title", p.GeocodeTitle()),
		zap.String("outcome", string(res.Outcome)),
	}

	if res.Distance != nil {
		fields = append(fields, zap.Float64("distance_m", *res.Distance))
	}

	switch {
	case res.Changed():
		zap.L().Info("updated", append(fields,
			zap.Stringer("from", res.Previous),
			zap.Stringer("to", res.Chosen),
			zap.String("display_name", res.DisplayName),
		)...)
	case res.Outcome == OutcomeMiss:
		zap.L().Info("no match", append(fields, zap.Int("lookups", res.Lookups))...)
	case verbose:
		zap.L().Info("kept", fields...)
	default:
		zap.L().Debug("kept", fields...)
	}
}

func (j *Job) entry(city *places.CityFile, p *places.Place, res *Resolution) activity.Entry {
	e := activity.Entry{
		Time:           j.now().UTC(),
		RunID:          j.runID,
		City:           city.Name,
		PlaceID:        p.ID,
		Title:          p.GeocodeTitle(),
		Outcome:        string(res.Outcome),
		Query:          res.Query,
		Previous:       res.Previous,
		Chosen:         res.Chosen,
		DistanceMeters: res.Distance,
		DisplayName:    res.DisplayName,
	}

	for _, t := range res.LookupErrors {
		e.LookupErrors = append(e.LookupErrors, t.String())
	}

	if res.Chosen != nil {
		cell, err := res.Chosen.Cell(CellResolution)
		if err != nil {
			zap.L().Debug("computing h3 cell", zap.String("id", p.ID), zap.Error(err))
		} else {
			e.Cell = cell
		}
	}

	return e
}

func (j *Job) persist(dirty []*places.CityFile) error {
	for _, city := range dirty {
		if err := j.store.Save(city); err != nil {
			return err
		}

		j.Metrics.FilesWritten++
	}

	if err := j.cache.Save(); err != nil {
		return err
	}

	if err := j.log.Save(); err != nil {
		return err
	}

	zap.L().Info("saved",
		zap.Int("city_files", j.Metrics.FilesWritten),
		zap.Int("cache_entries", j.cache.Len()),
		zap.Int("log_entries", j.log.Len()),
	)

	return nil
}
