// Copyright 2025 The PlaceGeo Authors
// SPDX-License-Identifier: Apache-2.0

package places

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/audiotour/placegeo/utils/fileutils"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrNoPlaces is returned for a city file without a places list.
var ErrNoPlaces = errors.New("no places list")

const cityFileExt = ".json"

// CityFile is the content of one city file.
type CityFile struct {
	Slug   string
	Name   string
	Places []*Place

	// Dirty is set when a place coordinate changed since loading.
	Dirty bool

	path  string
	extra map[string]json.RawMessage
}

// SetPoint moves a place and marks the file as modified when the
// coordinates actually change.
func (c *CityFile) SetPoint(p *Place, lat, lng float64) {
	if p.Lat == lat && p.Lng == lng {
		return
	}

	p.Lat, p.Lng = lat, lng
	c.Dirty = true
}

// Store reads and writes city files in a directory.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the places directory.
func (s *Store) Root() string {
	return s.root
}

// List returns the slugs of the city files, in directory listing order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("reading places directory: %w", err)
	}

	slugs := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), cityFileExt) || strings.HasPrefix(name, ".") {
			continue
		}

		slugs = append(slugs, strings.TrimSuffix(name, filepath.Ext(name)))
	}

	return slugs, nil
}

// Load reads a city file. It returns ErrNoPlaces, wrapped, when the file
// is not a JSON object with a places list.
func (s *Store) Load(slug string) (*CityFile, error) {
	path := filepath.Join(s.root, slug+cityFileExt)

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading city file %s: %w", path, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, ErrNoPlaces, err)
	}

	placesData, ok := raw["places"]
	if !ok || bytes.Equal(bytes.TrimSpace(placesData), []byte("null")) {
		return nil, fmt.Errorf("%s: %w", path, ErrNoPlaces)
	}

	city := &CityFile{
		Slug:  slug,
		path:  path,
		extra: raw,
	}

	if err := json.Unmarshal(placesData, &city.Places); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, ErrNoPlaces, err)
	}

	delete(raw, "places")

	city.Name = cityName(slug, raw)

	return city, nil
}

// Save writes the city file back, pretty-printed, replacing the previous
// version atomically.
func (s *Store) Save(city *CityFile) error {
	out := make(map[string]any, len(city.extra)+1)
	for k, v := range city.extra {
		out[k] = v
	}

	out["places"] = city.Places

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding city file %s: %w", city.Slug, err)
	}

	path := city.path
	if path == "" {
		path = filepath.Join(s.root, city.Slug+cityFileExt)
	}

	if err := fileutils.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing city file %s: %w", path, err)
	}

	city.Dirty = false

	return nil
}

// cityName prefers an explicit name in the file and otherwise derives it
// from the slug: "new-york" becomes "New York".
func cityName(slug string, fields map[string]json.RawMessage) string {
	for _, key := range []string{"name", "city"} {
		var name string
		if err := json.Unmarshal(fields[key], &name); err == nil && strings.TrimSpace(name) != "" {
			return strings.TrimSpace(name)
		}
	}

	words := strings.Fields(strings.NewReplacer("-", " ", "_", " ").Replace(slug))

	return cases.Title(language.Und).String(strings.Join(words, " "))
}
