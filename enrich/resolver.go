// Copyright 2025 The PlaceGeo Authors
// SPDX-License-Identifier: Apache-2.0

// Package enrich runs the coordinate enrichment over the city files.
package enrich

import (
	"context"
	"fmt"

	"github.com/audiotour/placegeo/cache"
	"github.com/audiotour/placegeo/geocode"
	"github.com/audiotour/placegeo/overrides"
	"github.com/audiotour/placegeo/places"
	"github.com/audiotour/placegeo/spatial"
	"go.uber.org/zap"
)

// Outcome describes how a place was resolved.
type Outcome string

const (
	OutcomeOverride      Outcome = "override"
	OutcomeCacheKept     Outcome = "cache-kept"
	OutcomeCacheAdopted  Outcome = "cache-adopted"
	OutcomeLookupKept    Outcome = "lookup-kept"
	OutcomeLookupAdopted Outcome = "lookup-adopted"
	OutcomeMiss          Outcome = "miss"
)

// Resolution is the result of resolving a single place. It does not
// modify the place; Chosen is the point the place must move to when
// Changed reports true.
type Resolution struct {
	Outcome     Outcome
	Previous    spatial.Point
	Chosen      *spatial.Point
	Distance    *float64
	Query       string
	DisplayName string

	Lookups      int
	LookupErrors []geocode.ErrorType
}

// Changed reports whether the place must take the chosen coordinates.
func (r *Resolution) Changed() bool {
	switch r.Outcome {
	case OutcomeOverride:
		return *r.Chosen != r.Previous
	case OutcomeCacheAdopted, OutcomeLookupAdopted:
		return true
	default:
		return false
	}
}

// Resolver decides the coordinates of a place from the overrides, the
// cache and, as a last resort, the geocoder.
type Resolver struct {
	overrides  overrides.Overrides
	cache      *cache.Cache
	geocoder   geocode.Geocoder
	categories geocode.Categories
	threshold  float64
}

// NewResolver creates a resolver. The geocoder is expected to be
// throttled already; thresholdMeters is the distance below which an
// existing coordinate is kept.
func NewResolver(
	ovr overrides.Overrides,
	c *cache.Cache,
	g geocode.Geocoder,
	cats geocode.Categories,
	thresholdMeters float64,
) *Resolver {
	return &Resolver{
		overrides:  ovr,
		cache:      c,
		geocoder:   g,
		categories: cats,
		threshold:  thresholdMeters,
	}
}

// Resolve works out the coordinates of p in city. Lookup failures are not
// errors; the only error returned is the context being done.
func (r *Resolver) Resolve(ctx context.Context, city string, p *places.Place) (Resolution, error) {
	res := Resolution{Previous: p.Point()}

	if pt, ok := r.overrides.Get(p.ID); ok {
		res.Outcome = OutcomeOverride
		res.choose(pt)

		return res, nil
	}

	title := p.GeocodeTitle()
	key := cache.Key{Title: title, City: city}

	if entry, ok := r.cache.Get(key); ok {
		err := entry.Point().Validate()
		if err == nil {
			res.DisplayName = entry.DisplayName
			res.decide(entry.Point(), r.threshold, OutcomeCacheKept, OutcomeCacheAdopted)

			return res, nil
		}

		zap.L().Warn("ignoring invalid cache entry",
			zap.Stringer("key", key),
			zap.Error(err),
		)
	}

	for _, query := range geocode.FallbackQueries(title) {
		if query == "" {
			continue
		}

		res.Lookups++

		cands, err := r.geocoder.Search(ctx, query, city)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, fmt.Errorf("resolving %s: %w", p.ID, ctxErr)
			}

			errType := geocode.ErrorTypeOf(err)
			res.LookupErrors = append(res.LookupErrors, errType)

			logLookup := zap.L().Warn
			if errType.Throttled() {
				logLookup = zap.L().Error
			}

			logLookup("lookup failed",
				zap.String("query", query),
				zap.String("city", city),
				zap.Stringer("error_type", errType),
				zap.Error(err),
			)

			continue
		}

		match := geocode.SelectBest(geocode.ValidCandidates(cands), r.categories)
		if match == nil {
			continue
		}

		r.cache.Put(key, cache.Entry{
			Lat:         match.Point.Lat,
			Lng:         match.Point.Lng,
			DisplayName: match.DisplayName,
		})

		res.Query = query
		res.DisplayName = match.DisplayName
		res.decide(match.Point, r.threshold, OutcomeLookupKept, OutcomeLookupAdopted)

		return res, nil
	}

	res.Outcome = OutcomeMiss

	return res, nil
}

func (r *Resolution) choose(pt spatial.Point) {
	d := r.Previous.HaversineDistance(pt)
	r.Chosen = &pt
	r.Distance = &d
}

// decide keeps the current coordinates when pt is closer than threshold
// and adopts pt otherwise.
func (r *Resolution) decide(pt spatial.Point, threshold float64, kept, adopted Outcome) {
	r.choose(pt)

	if *r.Distance < threshold {
		r.Outcome = kept
	} else {
		r.Outcome = adopted
	}
}
