// Copyright 2025 The PlaceGeo Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/audiotour/placegeo/config"
	"github.com/audiotour/placegeo/geocode"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var httpOptions = geocode.HTTPOptions{}

func addHTTPFlags(c *cobra.Command) {
	c.PersistentFlags().BoolVar(&httpOptions.EnableHTTPTrace, "trace-http", false, "Print HTTP request/response traces")
	c.PersistentFlags().BoolVar(&httpOptions.EnableHTTPBodyTrace, "trace-http-body", false, "Include HTTP bodies in traces")
}

// newGeocoder builds the configured provider behind the shared rate limit
// gate.
func newGeocoder(ctx context.Context, cfg *config.Config, options geocode.HTTPOptions) (geocode.Geocoder, error) {
	options.UserAgent = cfg.Geocoder.UserAgent
	options.Timeout = cfg.Geocoder.Timeout
	client := geocode.NewHTTPClient(options)

	var g geocode.Geocoder

	switch cfg.Geocoder.Provider {
	case config.ProviderGoogle:
		apiKey, err := geocode.ResolveGoogleAPIKey(ctx, cfg.Geocoder.GoogleAPIKey, cfg.Geocoder.GoogleKeyName)
		if err != nil {
			return nil, err
		}

		g = geocode.NewGoogleMapsGeocoder(apiKey, cfg.Geocoder.Endpoint, cfg.Geocoder.Limit, client)
	case config.ProviderNominatim:
		g = geocode.NewNominatimGeocoder(cfg.Geocoder.Endpoint, cfg.Geocoder.Limit, client)
	default:
		return nil, fmt.Errorf("unknown geocoder provider %q", cfg.Geocoder.Provider)
	}

	zap.L().Debug("geocoder ready",
		zap.String("provider", cfg.Geocoder.Provider),
		zap.Duration("delay", cfg.Geocoder.Delay),
		zap.String("user_agent", cfg.Geocoder.UserAgent),
	)

	return geocode.Throttled(g, geocode.NewGate(cfg.Geocoder.Delay)), nil
}

func categories(cfg *config.Config) geocode.Categories {
	return geocode.NewCategories(cfg.Geocoder.Classes, cfg.Geocoder.Types)
}
