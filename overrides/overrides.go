// Copyright 2025 The PlaceGeo Authors
// SPDX-License-Identifier: Apache-2.0

// Package overrides loads the hand-verified coordinate corrections that
// take precedence over any geocoding result.
package overrides

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/audiotour/placegeo/spatial"
	"gopkg.in/yaml.v3"
)

// Overrides maps a place id to its authoritative coordinates.
type Overrides map[string]spatial.Point

// Load reads the overrides file. JSON and YAML (.yaml/.yml) are accepted;
// a missing file means there are no overrides.
func Load(path string) (Overrides, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Overrides{}, nil
		}

		return nil, fmt.Errorf("reading overrides file: %w", err)
	}

	ret := Overrides{}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &ret)
	default:
		if len(strings.TrimSpace(string(data))) == 0 {
			return ret, nil
		}

		err = json.Unmarshal(data, &ret)
	}

	if err != nil {
		return nil, fmt.Errorf("parsing overrides file %s: %w", path, err)
	}

	for id, p := range ret {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("override for %s: %w", id, err)
		}
	}

	return ret, nil
}

// Get returns the override for a place id.
func (o Overrides) Get(id string) (spatial.Point, bool) {
	p, ok := o[id]

	return p, ok
}
