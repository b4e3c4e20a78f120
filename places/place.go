// Copyright 2025 The PlaceGeo Authors
// SPDX-License-Identifier: Apache-2.0

// Package places reads and rewrites the per-city place files of the tour
// guide.
package places

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/audiotour/placegeo/spatial"
)

// Place is a point of interest. Only the fields the geocoder needs are
// decoded; everything else in the record is kept as-is.
type Place struct {
	ID    string            `json:"id"`
	Title map[string]string `json:"title"`
	Lat   float64           `json:"lat"`
	Lng   float64           `json:"lng"`

	extra map[string]json.RawMessage
}

// GeocodeTitle returns the English title, or the id when there is none.
func (p *Place) GeocodeTitle() string {
	if title := strings.TrimSpace(p.Title["en"]); title != "" {
		return p.Title["en"]
	}

	return p.ID
}

// Point returns the current coordinates.
func (p *Place) Point() spatial.Point {
	return spatial.Point{Lat: p.Lat, Lng: p.Lng}
}

// UnmarshalJSON decodes the known fields and keeps the rest of the record.
func (p *Place) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	type known Place

	var k known
	if err := json.Unmarshal(data, &k); err != nil {
		return err
	}

	*p = Place(k)

	for _, field := range []string{"id", "title", "lat", "lng"} {
		delete(raw, field)
	}

	p.extra = raw

	return nil
}

// MarshalJSON writes the record back with its original extra fields.
func (p *Place) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.extra)+4)
	for k, v := range p.extra {
		out[k] = v
	}

	out["id"] = p.ID
	out["lat"] = p.Lat
	out["lng"] = p.Lng

	if p.Title != nil {
		out["title"] = p.Title
	}

	return marshal(out)
}

// marshal encodes without HTML escaping, so titles such as "Römer & Rathaus"
// stay readable in the files.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding json: %w", err)
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
