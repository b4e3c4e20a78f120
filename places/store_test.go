// Copyright 2025 The PlaceGeo Authors
// SPDX-License-Identifier: Apache-2.0

package places

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frankfurtJSON = `{
  "name": "Frankfurt",
  "center": [50.11, 8.68],
  "places": [
    {
      "id": "fr-01",
      "title": {"en": "Römer & Rathaus", "de": "Römer und Rathaus"},
      "lat": 50.0,
      "lng": 8.0,
      "audio": {"en": "audio/fr-01.en.mp3"},
      "tags": ["gothic", "town hall"]
    },
    {
      "id": "fr-02",
      "title": {"de": "Paulskirche"},
      "lat": 50.1114,
      "lng": 8.6808
    }
  ]
}
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestStoreList(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "vienna.json", "{}")
	writeFile(t, dir, "frankfurt.json", "{}")
	writeFile(t, dir, "README.md", "")
	writeFile(t, dir, ".hidden.json", "{}")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "audio.json"), 0o750))

	slugs, err := NewStore(dir).List()
	require.NoError(t, err)
	assert.Equal(t, []string{"frankfurt", "vienna"}, slugs)
}

func TestStoreListMissingDirectory(t *testing.T) {
	_, err := NewStore(filepath.Join(t.TempDir(), "missing")).List()
	require.Error(t, err)
}

func TestStoreLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "frankfurt.json", frankfurtJSON)

	city, err := NewStore(dir).Load("frankfurt")
	require.NoError(t, err)

	assert.Equal(t, "frankfurt", city.Slug)
	assert.Equal(t, "Frankfurt", city.Name)
	require.Len(t, city.Places, 2)

	assert.Equal(t, "fr-01", city.Places[0].ID)
	assert.Equal(t, "Römer & Rathaus", city.Places[0].GeocodeTitle())
	assert.InDelta(t, 50.0, city.Places[0].Lat, 1e-9)
	assert.Equal(t, "fr-02", city.Places[1].GeocodeTitle(), "missing en title falls back to the id")
	assert.False(t, city.Dirty)
}

func TestStoreLoadMalformed(t *testing.T) {
	tests := map[string]string{
		"no places key":   `{"name": "x"}`,
		"null places":     `{"places": null}`,
		"places not list": `{"places": {"a": 1}}`,
		"top-level array": `[1, 2]`,
		"not json":        `places:`,
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "broken.json", content)

			_, err := NewStore(dir).Load("broken")
			require.ErrorIs(t, err, ErrNoPlaces)
		})
	}
}

func TestStoreSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "frankfurt.json", frankfurtJSON)

	store := NewStore(dir)
	city, err := store.Load("frankfurt")
	require.NoError(t, err)

	city.SetPoint(city.Places[0], 50.1109, 8.6821)
	assert.True(t, city.Dirty)
	require.NoError(t, store.Save(city))
	assert.False(t, city.Dirty)

	data, err := os.ReadFile(filepath.Join(dir, "frankfurt.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Römer & Rathaus"`, "html characters must not be escaped")
	assert.Contains(t, string(data), "\n  \"places\": [\n")

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, []any{50.11, 8.68}, doc["center"])

	places := doc["places"].([]any)
	first := places[0].(map[string]any)
	assert.InDelta(t, 50.1109, first["lat"], 1e-9)
	assert.InDelta(t, 8.6821, first["lng"], 1e-9)
	assert.Equal(t, map[string]any{"en": "audio/fr-01.en.mp3"}, first["audio"])
	assert.Equal(t, []any{"gothic", "town hall"}, first["tags"])

	second := places[1].(map[string]any)
	assert.InDelta(t, 50.1114, second["lat"], 1e-9)
}

func TestSetPointUnchanged(t *testing.T) {
	city := &CityFile{Places: []*Place{{ID: "a", Lat: 1, Lng: 2}}}

	city.SetPoint(city.Places[0], 1, 2)
	assert.False(t, city.Dirty)

	city.SetPoint(city.Places[0], 1, 3)
	assert.True(t, city.Dirty)
}

func TestCityName(t *testing.T) {
	tests := []struct {
		slug   string
		fields map[string]json.RawMessage
		want   string
	}{
		{"frankfurt", nil, "Frankfurt"},
		{"new-york", nil, "New York"},
		{"rio_de_janeiro", nil, "Rio De Janeiro"},
		{"koln", map[string]json.RawMessage{"name": json.RawMessage(`"Köln"`)}, "Köln"},
		{"wien", map[string]json.RawMessage{"city": json.RawMessage(`"Vienna"`)}, "Vienna"},
		{"paris", map[string]json.RawMessage{"name": json.RawMessage(`{"en":"Paris"}`)}, "Paris"},
	}

	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			assert.Equal(t, tt.want, cityName(tt.slug, tt.fields))
		})
	}
}
