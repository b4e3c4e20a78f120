// Copyright 2025 The PlaceGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// DefaultDelay is the spacing between two requests to the search service.
const DefaultDelay = 1100 * time.Millisecond

// Gate is a single-slot throttle shared by every outbound request: a
// request may only start once the previous one started at least the
// configured delay ago.
type Gate struct {
	limiter *rate.Limiter
}

// NewGate returns a gate that spaces requests by delay. A non-positive
// delay disables throttling.
func NewGate(delay time.Duration) *Gate {
	if delay <= 0 {
		return &Gate{limiter: rate.NewLimiter(rate.Inf, 1)}
	}

	return &Gate{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

// Acquire blocks until the next request may be sent or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limit gate: %w", err)
	}

	return nil
}

type throttledGeocoder struct {
	next Geocoder
	gate *Gate
}

// Throttled wraps g so that every Search acquires gate first.
func Throttled(g Geocoder, gate *Gate) Geocoder {
	return &throttledGeocoder{next: g, gate: gate}
}

func (t *throttledGeocoder) Search(ctx context.Context, query string, city string) ([]Candidate, error) {
	if err := t.gate.Acquire(ctx); err != nil {
		return nil, err
	}

	return t.next.Search(ctx, query, city)
}
