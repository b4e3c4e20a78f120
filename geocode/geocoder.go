// Copyright 2025 The PlaceGeo Authors
// SPDX-License-Identifier: Apache-2.0

// Package geocode resolves free-text place queries into coordinates using
// third-party search services.
package geocode

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/audiotour/placegeo/spatial"
	"github.com/audiotour/placegeo/utils/httputils"
)

// Candidate is a single search result returned by a provider, in the
// provider's own ranking order.
type Candidate struct {
	Lat         float64
	Lng         float64
	Class       string // e.g. tourism, historic, amenity
	Type        string // e.g. museum, monument, church
	DisplayName string
}

// Point returns the candidate coordinates.
func (c Candidate) Point() spatial.Point {
	return spatial.Point{Lat: c.Lat, Lng: c.Lng}
}

// Geocoder interface for different geocoding providers.
type Geocoder interface {
	// Search looks up query within city. An error means the provider could
	// not answer; an empty slice means it answered with nothing.
	Search(ctx context.Context, query string, city string) ([]Candidate, error)
}

// HTTPOptions configures the HTTP client shared by the providers.
type HTTPOptions struct {
	// UserAgent identifies the tool to the service, as its usage policy requires
	UserAgent string

	// Timeout for a whole request
	Timeout time.Duration

	// Enables light tracing of HTTP requests and responses
	EnableHTTPTrace bool

	// Enables full HTTP body tracing
	EnableHTTPBodyTrace bool

	// Writer receives the traces. Defaults to stderr.
	TraceWriter io.Writer
}

// NewHTTPClient builds the client used to talk to geocoding services.
func NewHTTPClient(options HTTPOptions) *http.Client {
	var httpLogWriter io.Writer
	if options.EnableHTTPTrace || options.EnableHTTPBodyTrace {
		httpLogWriter = options.TraceWriter
		if httpLogWriter == nil {
			httpLogWriter = os.Stderr
		}
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          4,
		MaxIdleConnsPerHost:   1,
		MaxConnsPerHost:       1,
		IdleConnTimeout:       30 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}

	loggingTransport := &httputils.LoggingRoundTripper{
		Writer:    httpLogWriter,
		DumpBody:  options.EnableHTTPBodyTrace,
		Transport: transport,
	}

	userAgent := "placegeo/unknown"
	if options.UserAgent != "" {
		userAgent = options.UserAgent
	}

	headerTransport := &httputils.AppendRequestHeadersRoundTripper{
		Headers: map[string]string{
			"User-Agent": userAgent,
			"Accept":     "application/json",
		},
		Transport: loggingTransport,
	}

	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: headerTransport,
	}
}
