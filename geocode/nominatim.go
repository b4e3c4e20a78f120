// Copyright 2025 The PlaceGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"
)

// DefaultNominatimEndpoint is the public OpenStreetMap search endpoint.
const DefaultNominatimEndpoint = "https://nominatim.openstreetmap.org/search"

// DefaultLimit is the number of candidates requested per query.
const DefaultLimit = 5

// NominatimGeocoder uses the OpenStreetMap Nominatim search API.
type NominatimGeocoder struct {
	endpoint   string
	limit      int
	httpClient *http.Client
}

// NewNominatimGeocoder creates a Nominatim geocoder. The client must send a
// descriptive User-Agent, see NewHTTPClient.
func NewNominatimGeocoder(endpoint string, limit int, httpClient *http.Client) *NominatimGeocoder {
	if endpoint == "" {
		endpoint = DefaultNominatimEndpoint
	}

	if limit <= 0 {
		limit = DefaultLimit
	}

	return &NominatimGeocoder{
		endpoint:   endpoint,
		limit:      limit,
		httpClient: httpClient,
	}
}

// jsonv2 names the class "category"; the older json format names it "class".
type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Category    string `json:"category"`
	Class       string `json:"class"`
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
}

func (g *NominatimGeocoder) Search(ctx context.Context, query string, city string) ([]Candidate, error) {
	searchQuery := query
	if city != "" {
		searchQuery = fmt.Sprintf("%s, %s", query, city)
	}

	params := url.Values{}
	params.Set("q", searchQuery)
	params.Set("format", "jsonv2")
	params.Set("limit", strconv.Itoa(g.limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating nominatim request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, TransportError(err)
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return nil, StatusError(resp.StatusCode, string(body))
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, &GeocodingError{
			Type:    ErrorTypeUnknown,
			Message: "decoding nominatim response",
			Err:     err,
		}
	}

	cands := make([]Candidate, 0, len(results))

	for _, r := range results {
		lat, errLat := strconv.ParseFloat(r.Lat, 64)
		lng, errLng := strconv.ParseFloat(r.Lon, 64)

		if errLat != nil || errLng != nil {
			zap.L().Debug("dropping nominatim result with unparsable coordinates",
				zap.String("display_name", r.DisplayName),
				zap.String("lat", r.Lat),
				zap.String("lon", r.Lon))

			continue
		}

		class := r.Category
		if class == "" {
			class = r.Class
		}

		cands = append(cands, Candidate{
			Lat:         lat,
			Lng:         lng,
			Class:       class,
			Type:        r.Type,
			DisplayName: r.DisplayName,
		})
	}

	return cands, nil
}
