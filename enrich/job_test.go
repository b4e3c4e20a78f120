// Copyright 2025 The PlaceGeo Authors
// SPDX-License-Identifier: Apache-2.0

package enrich

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/audiotour/placegeo/activity"
	"github.com/audiotour/placegeo/cache"
	"github.com/audiotour/placegeo/geocode"
	"github.com/audiotour/placegeo/overrides"
	"github.com/audiotour/placegeo/places"
	"github.com/schollz/progressbar/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frankfurtJSON = `{
  "name": "Frankfurt",
  "places": [
    {
      "id": "fr-01",
      "title": {"en": "Römer & Rathaus", "de": "Römer"},
      "lat": 50.0,
      "lng": 8.0,
      "audio": {"en": "audio/fr-01.en.mp3"}
    }
  ]
}
`

const viennaJSON = `{
  "places": [
    {"id": "vi-01", "title": {"en": "Stephansdom"}, "lat": 48.2085, "lng": 16.3731}
  ]
}
`

type fixture struct {
	placesDir string
	cachePath string
	logPath   string
	geocoder  *fakeGeocoder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	f := &fixture{
		placesDir: filepath.Join(dir, "places"),
		cachePath: filepath.Join(dir, "geocode-cache.json"),
		logPath:   filepath.Join(dir, "geocode-log.json"),
		geocoder: &fakeGeocoder{answers: map[string][]geocode.Candidate{
			"Römer|Frankfurt": {
				{Lat: 50.1102, Lng: 8.6822, Class: "highway", Type: "pedestrian", DisplayName: "Römerberg"},
				roemerMonument,
			},
			"Stephansdom|Vienna": {
				{Lat: 48.20849, Lng: 16.37313, Class: "amenity", Type: "place_of_worship", DisplayName: "Stephansdom"},
			},
		}},
	}

	require.NoError(t, os.MkdirAll(f.placesDir, 0o750))
	f.write(t, "frankfurt.json", frankfurtJSON)

	return f
}

func (f *fixture) write(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.placesDir, name), []byte(content), 0o600))
}

func (f *fixture) run(t *testing.T, ovr overrides.Overrides, options Options) *Job {
	t.Helper()

	c, err := cache.Load(f.cachePath)
	require.NoError(t, err)

	log, err := activity.Load(f.logPath)
	require.NoError(t, err)

	g := geocode.Throttled(f.geocoder, geocode.NewGate(0))
	resolver := NewResolver(ovr, c, g, geocode.DefaultCategories(), 50)

	job := NewJob(places.NewStore(f.placesDir), c, resolver, log, options)
	require.NoError(t, job.Run(context.Background()))

	return job
}

func (f *fixture) place(t *testing.T, slug string, i int) *places.Place {
	t.Helper()

	city, err := places.NewStore(f.placesDir).Load(slug)
	require.NoError(t, err)

	return city.Places[i]
}

func TestRunFrankfurt(t *testing.T) {
	f := newFixture(t)

	job := f.run(t, nil, Options{})

	p := f.place(t, "frankfurt", 0)
	assert.InDelta(t, 50.1109, p.Lat, 1e-9)
	assert.InDelta(t, 8.6821, p.Lng, 1e-9)

	c, err := cache.Load(f.cachePath)
	require.NoError(t, err)

	entry, ok := c.Get(cache.Key{Title: "Römer & Rathaus", City: "Frankfurt"})
	require.True(t, ok)
	assert.InDelta(t, 50.1109, entry.Lat, 1e-9)
	assert.Equal(t, roemerMonument.DisplayName, entry.DisplayName)

	assert.Equal(t, 1, job.Metrics.Cities)
	assert.Equal(t, 1, job.Metrics.Places)
	assert.Equal(t, 1, job.Metrics.LookupAdopted)
	assert.Equal(t, 1, job.Metrics.Updated)
	assert.Equal(t, 2, job.Metrics.Lookups)
	assert.Equal(t, 1, job.Metrics.FilesWritten)

	log, err := activity.Load(f.logPath)
	require.NoError(t, err)

	entries := log.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, job.RunID(), entries[0].RunID)
	assert.Equal(t, "fr-01", entries[0].PlaceID)
	assert.Equal(t, string(OutcomeLookupAdopted), entries[0].Outcome)
	assert.Equal(t, "Römer", entries[0].Query)
	assert.Len(t, entries[0].Cell, 15)
	require.NotNil(t, entries[0].DistanceMeters)
	assert.Greater(t, *entries[0].DistanceMeters, 50.0)

	data, err := os.ReadFile(filepath.Join(f.placesDir, "frankfurt.json"))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Frankfurt", doc["name"])

	first := doc["places"].([]any)[0].(map[string]any)
	assert.Equal(t, map[string]any{"en": "audio/fr-01.en.mp3"}, first["audio"])
}

func TestRunDryRunWritesNothing(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, os.WriteFile(f.cachePath, []byte("[]\n"), 0o600))
	require.NoError(t, os.WriteFile(f.logPath, []byte("[\"prior\"]\n"), 0o600))

	paths := []string{filepath.Join(f.placesDir, "frankfurt.json"), f.cachePath, f.logPath}
	before := make(map[string][]byte, len(paths))

	for _, path := range paths {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		before[path] = data
	}

	job := f.run(t, nil, Options{DryRun: true})
	assert.Equal(t, 1, job.Metrics.Updated)
	assert.Equal(t, 0, job.Metrics.FilesWritten)

	for _, path := range paths {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, string(before[path]), string(data), path)
	}

	entries, err := os.ReadDir(f.placesDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestRunDryRunDoesNotCreateFiles(t *testing.T) {
	f := newFixture(t)

	f.run(t, nil, Options{DryRun: true})

	assert.NoFileExists(t, f.cachePath)
	assert.NoFileExists(t, f.logPath)
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFixture(t)

	f.run(t, nil, Options{})
	first, err := os.ReadFile(filepath.Join(f.placesDir, "frankfurt.json"))
	require.NoError(t, err)

	queries := len(f.geocoder.queries)

	job := f.run(t, nil, Options{})
	second, err := os.ReadFile(filepath.Join(f.placesDir, "frankfurt.json"))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Equal(t, 0, job.Metrics.Updated)
	assert.Equal(t, 1, job.Metrics.CacheKept)
	assert.Equal(t, 0, job.Metrics.FilesWritten)
	assert.Len(t, f.geocoder.queries, queries, "second run is served from the cache")

	log, err := activity.Load(f.logPath)
	require.NoError(t, err)
	assert.Equal(t, 2, log.Len())
}

func TestRunOverrideWins(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, os.WriteFile(f.cachePath, []byte(`[
  {"title": "Römer & Rathaus", "city": "Frankfurt", "lat": 50.2, "lng": 8.7, "displayName": "elsewhere"}
]`), 0o600))

	job := f.run(t, overrides.Overrides{"fr-01": {Lat: 50.11068, Lng: 8.68204}}, Options{})

	p := f.place(t, "frankfurt", 0)
	assert.InDelta(t, 50.11068, p.Lat, 1e-12)
	assert.InDelta(t, 8.68204, p.Lng, 1e-12)
	assert.Equal(t, 1, job.Metrics.Overrides)
	assert.Empty(t, f.geocoder.queries)
}

func TestRunUnchangedFilesAreNotRewritten(t *testing.T) {
	f := newFixture(t)
	f.write(t, "vienna.json", viennaJSON)

	path := filepath.Join(f.placesDir, "vienna.json")
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, old, old))

	job := f.run(t, nil, Options{})
	assert.Equal(t, 2, job.Metrics.Cities)
	assert.Equal(t, 1, job.Metrics.LookupKept)
	assert.Equal(t, 1, job.Metrics.FilesWritten)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, viennaJSON, string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old))
}

func TestRunSkipsFilesWithoutPlaces(t *testing.T) {
	f := newFixture(t)
	f.write(t, "broken.json", `{"name": "Broken"}`)
	f.write(t, "garbage.json", `not json`)

	job := f.run(t, nil, Options{})
	assert.Equal(t, 2, job.Metrics.SkippedFiles)
	assert.Equal(t, 1, job.Metrics.Cities)
}

func TestRunMissingPlacesDirectory(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.RemoveAll(f.placesDir))

	c, err := cache.Load(f.cachePath)
	require.NoError(t, err)

	log, err := activity.Load(f.logPath)
	require.NoError(t, err)

	resolver := NewResolver(nil, c, f.geocoder, geocode.DefaultCategories(), 50)
	job := NewJob(places.NewStore(f.placesDir), c, resolver, log, Options{})

	require.Error(t, job.Run(context.Background()))
	assert.NoFileExists(t, f.cachePath)
}

func TestRunCanceled(t *testing.T) {
	f := newFixture(t)

	c, err := cache.Load(f.cachePath)
	require.NoError(t, err)

	log, err := activity.Load(f.logPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resolver := NewResolver(nil, c, f.geocoder, geocode.DefaultCategories(), 50)
	job := NewJob(places.NewStore(f.placesDir), c, resolver, log, Options{})

	require.ErrorIs(t, job.Run(ctx), context.Canceled)
	assert.NoFileExists(t, f.cachePath)
}

func TestMetricsMerge(t *testing.T) {
	m := &Metrics{Cities: 1, Places: 3, Misses: 1}
	m.Merge(&Metrics{Cities: 1, Places: 2, LookupAdopted: 2, Lookups: 4, Throttled: 1}).Merge(nil)

	assert.Equal(t, Metrics{Cities: 2, Places: 5, Misses: 1, LookupAdopted: 2, Lookups: 4, Throttled: 1}, *m)
}

func TestRunProgressCountsSkippedFiles(t *testing.T) {
	f := newFixture(t)
	f.write(t, "broken.json", `{"name": "Broken"}`)
	f.write(t, "vienna.json", viennaJSON)

	c, err := cache.Load(f.cachePath)
	require.NoError(t, err)

	log, err := activity.Load(f.logPath)
	require.NoError(t, err)

	resolver := NewResolver(nil, c, f.geocoder, geocode.DefaultCategories(), 50)
	job := NewJob(places.NewStore(f.placesDir), c, resolver, log, Options{DryRun: true})

	var bar *progressbar.ProgressBar
	job.progressBar = func(n int) *progressbar.ProgressBar {
		bar = progressbar.NewOptions(n, progressbar.OptionSetWriter(io.Discard))

		return bar
	}

	require.NoError(t, job.Run(context.Background()))
	require.NotNil(t, bar)
	assert.Equal(t, 1, job.Metrics.SkippedFiles)
	assert.Equal(t, int64(3), bar.State().CurrentNum)
}

func TestRunLogsLookupErrors(t *testing.T) {
	f := newFixture(t)
	f.geocoder.errs = map[string]error{
		"Römer Rathaus|Frankfurt": geocode.StatusError(http.StatusForbidden, "blocked"),
	}

	job := f.run(t, nil, Options{})
	assert.Equal(t, 1, job.Metrics.LookupErrors)
	assert.Equal(t, 1, job.Metrics.Throttled)
	assert.Equal(t, 1, job.Metrics.LookupAdopted)

	log, err := activity.Load(f.logPath)
	require.NoError(t, err)

	entries := log.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"quota_exceeded"}, entries[0].LookupErrors)
}
