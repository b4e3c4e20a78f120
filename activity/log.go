// Copyright 2025 The PlaceGeo Authors
// SPDX-License-Identifier: Apache-2.0

// Package activity keeps the run log of the enrichment job: one entry per
// processed place, appended after whatever the log already holds.
package activity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/audiotour/placegeo/spatial"
	"github.com/audiotour/placegeo/utils/fileutils"
)

// Entry records what happened to one place during a run.
type Entry struct {
	Time           time.Time      `json:"time"`
	RunID          string         `json:"runId"`
	City           string         `json:"city"`
	PlaceID        string         `json:"placeId"`
	Title          string         `json:"title"`
	Outcome        string         `json:"outcome"`
	Query          string         `json:"query,omitempty"`
	Previous       spatial.Point  `json:"previous"`
	Chosen         *spatial.Point `json:"chosen,omitempty"`
	DistanceMeters *float64       `json:"distanceMeters,omitempty"`
	Cell           string         `json:"h3Cell,omitempty"`
	DisplayName    string         `json:"displayName,omitempty"`
	LookupErrors   []string       `json:"lookupErrors,omitempty"`
}

// Log is the in-memory view of the log file. Entries written by other
// tools or older versions are kept verbatim and in order.
type Log struct {
	path  string
	prior []json.RawMessage
	added []Entry
}

// Load reads the log file at path. A missing or empty file yields an empty
// log; anything other than a JSON array is an error.
func Load(path string) (*Log, error) {
	l := &Log{path: path}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return l, nil
		}

		return nil, fmt.Errorf("reading log file: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return l, nil
	}

	if err := json.Unmarshal(data, &l.prior); err != nil {
		return nil, fmt.Errorf("failed to unmarshal log file %s: %w", path, err)
	}

	return l, nil
}

// Append adds an entry to the log.
func (l *Log) Append(e Entry) {
	l.added = append(l.added, e)
}

// Added returns the entries appended since loading.
func (l *Log) Added() []Entry {
	return l.added
}

// Len returns the total number of entries.
func (l *Log) Len() int {
	return len(l.prior) + len(l.added)
}

// Entries returns every entry that has the structure written by this
// tool: the prior ones that decode as an Entry with an outcome, followed by
// the appended ones.
func (l *Log) Entries() []Entry {
	ret := make([]Entry, 0, l.Len())

	for _, raw := range l.prior {
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil || e.Outcome == "" {
			continue
		}

		ret = append(ret, e)
	}

	return append(ret, l.added...)
}

// Save rewrites the log file with the prior entries followed by the
// appended ones.
func (l *Log) Save() error {
	all := make([]any, 0, l.Len())
	for _, raw := range l.prior {
		all = append(all, raw)
	}

	for _, e := range l.added {
		all = append(all, e)
	}

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err := enc.Encode(all); err != nil {
		return fmt.Errorf("failed to marshal log: %w", err)
	}

	if err := fileutils.WriteFileAtomic(l.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write log file: %w", err)
	}

	return nil
}
