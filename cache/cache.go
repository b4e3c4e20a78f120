// Copyright 2025 The PlaceGeo Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache persists previously resolved geocoding results so that
// repeated runs don't hit the search service again.
package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/audiotour/placegeo/spatial"
	"github.com/audiotour/placegeo/utils/fileutils"
	"go.uber.org/zap"
)

// Key identifies a cached lookup.
type Key struct {
	Title string
	City  string
}

// String returns the legacy "title|city" form, for display only.
func (k Key) String() string {
	return k.Title + "|" + k.City
}

// Entry is a resolved geocoding result.
type Entry struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	DisplayName string  `json:"displayName"`
}

// Point returns the cached coordinates.
func (e Entry) Point() spatial.Point {
	return spatial.Point{Lat: e.Lat, Lng: e.Lng}
}

type record struct {
	Title string `json:"title"`
	City  string `json:"city"`
	Entry
}

// Cache is an in-memory view of the cache file. Entries are never evicted.
type Cache struct {
	path    string
	entries map[Key]Entry
	added   int
}

// Load reads the cache file at path. A missing file yields an empty cache.
func Load(path string) (*Cache, error) {
	c := &Cache{
		path:    path,
		entries: make(map[Key]Entry),
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}

		return nil, fmt.Errorf("reading cache file: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return c, nil
	}

	switch data[0] {
	case '[':
		var records []record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cache file %s: %w", path, err)
		}

		for _, r := range records {
			c.entries[Key{Title: r.Title, City: r.City}] = r.Entry
		}
	default:
		if err := c.loadLegacy(data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cache file %s: %w", path, err)
		}
	}

	return c, nil
}

// loadLegacy reads the former object format keyed by "title|city". The
// city never contains a '|', so the key is split at the last one.
func (c *Cache) loadLegacy(data []byte) error {
	var legacy map[string]Entry
	if err := json.Unmarshal(data, &legacy); err != nil {
		return err
	}

	for k, e := range legacy {
		i := strings.LastIndex(k, "|")
		if i < 0 {
			zap.L().Warn("skipping legacy cache entry without city", zap.String("key", k))

			continue
		}

		c.entries[Key{Title: k[:i], City: k[i+1:]}] = e
	}

	return nil
}

// Get returns the entry for key.
func (c *Cache) Get(key Key) (Entry, bool) {
	e, ok := c.entries[key]

	return e, ok
}

// Put stores an entry, replacing any previous one for the same key.
func (c *Cache) Put(key Key, e Entry) {
	if _, ok := c.entries[key]; !ok {
		c.added++
	}

	c.entries[key] = e
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Added returns the number of keys stored since loading.
func (c *Cache) Added() int {
	return c.added
}

// Save writes the whole cache, sorted by city and title to keep diffs
// small.
func (c *Cache) Save() error {
	records := make([]record, 0, len(c.entries))
	for k, e := range c.entries {
		records = append(records, record{Title: k.Title, City: k.City, Entry: e})
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].City != records[j].City {
			return records[i].City < records[j].City
		}

		return records[i].Title < records[j].Title
	})

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	if err := fileutils.WriteFileAtomic(c.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	return nil
}
