// Copyright 2025 The PlaceGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"

	apikeys "cloud.google.com/go/apikeys/apiv2"
	"cloud.google.com/go/apikeys/apiv2/apikeyspb"
	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
)

// DefaultGoogleEndpoint is the Google Maps Geocoding API endpoint.
const DefaultGoogleEndpoint = "https://maps.googleapis.com/maps/api/geocode/json"

// GoogleMapsGeocoder uses Google Maps Geocoding API.
type GoogleMapsGeocoder struct {
	apiKey     string
	endpoint   string
	limit      int
	httpClient *http.Client
}

// NewGoogleMapsGeocoder creates a new Google Maps geocoder.
func NewGoogleMapsGeocoder(apiKey string, endpoint string, limit int, httpClient *http.Client) *GoogleMapsGeocoder {
	if endpoint == "" {
		endpoint = DefaultGoogleEndpoint
	}

	if limit <= 0 {
		limit = DefaultLimit
	}

	return &GoogleMapsGeocoder{
		apiKey:     apiKey,
		endpoint:   endpoint,
		limit:      limit,
		httpClient: httpClient,
	}
}

type googleMapsResponse struct {
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		FormattedAddress string   `json:"formatted_address"`
		Types            []string `json:"types"`
	} `json:"results"`
	Status       string `json:"status"` // OK, ZERO_RESULTS, etc.
	ErrorMessage string `json:"error_message"`
}

// Google place types that carry the same meaning as an OSM type under
// another name.
var googleTypeAliases = map[string]string{
	"tourist_attraction": "attraction",
	"place_of_worship":   "church",
}

func googleCandidateType(types []string) (class string, typ string) {
	if len(types) == 0 {
		return "", ""
	}

	typ = types[0]
	if alias, ok := googleTypeAliases[typ]; ok {
		typ = alias
	}

	for _, t := range types {
		if t == "tourist_attraction" {
			class = "tourism"

			break
		}
	}

	return class, typ
}

func (g *GoogleMapsGeocoder) Search(ctx context.Context, query string, city string) ([]Candidate, error) {
	searchQuery := query
	if city != "" {
		searchQuery = fmt.Sprintf("%s, %s", query, city)
	}

	params := url.Values{}
	params.Set("address", searchQuery)
	params.Set("key", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating google maps request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, TransportError(err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, StatusError(resp.StatusCode, "")
	}

	var gmResp googleMapsResponse
	if err := json.NewDecoder(resp.Body).Decode(&gmResp); err != nil {
		return nil, &GeocodingError{
			Type:    ErrorTypeUnknown,
			Message: "decoding google maps response",
			Err:     err,
		}
	}

	switch gmResp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, nil
	case "OVER_QUERY_LIMIT", "REQUEST_DENIED":
		return nil, &GeocodingError{
			Type:    ErrorTypeQuotaExceeded,
			Message: fmt.Sprintf("google maps status: %s %s", gmResp.Status, gmResp.ErrorMessage),
		}
	case "INVALID_REQUEST":
		return nil, &GeocodingError{
			Type:    ErrorTypeInvalidRequest,
			Message: fmt.Sprintf("google maps status: %s %s", gmResp.Status, gmResp.ErrorMessage),
		}
	default:
		return nil, &GeocodingError{
			Type:    ErrorTypeUnknown,
			Message: "google maps status: " + gmResp.Status,
		}
	}

	n := min(len(gmResp.Results), g.limit)
	cands := make([]Candidate, 0, n)

	for _, r := range gmResp.Results[:n] {
		class, typ := googleCandidateType(r.Types)
		cands = append(cands, Candidate{
			Lat:         r.Geometry.Location.Lat,
			Lng:         r.Geometry.Location.Lng,
			Class:       class,
			Type:        typ,
			DisplayName: r.FormattedAddress,
		})
	}

	return cands, nil
}

// ResolveGoogleAPIKey returns configured if set, then GOOGLE_MAPS_API_KEY,
// and finally looks the key up by display name through Application Default
// Credentials.
func ResolveGoogleAPIKey(ctx context.Context, configured string, keyDisplayName string) (string, error) {
	if configured != "" {
		return configured, nil
	}

	if apiKey := os.Getenv("GOOGLE_MAPS_API_KEY"); apiKey != "" {
		return apiKey, nil
	}

	zap.L().Info("GOOGLE_MAPS_API_KEY is not set, attempting to retrieve it via ADC")

	apiKey, err := getAPIKeyFromADC(ctx, keyDisplayName)
	if err != nil {
		return "", fmt.Errorf("retrieving google maps api key via ADC: %w", err)
	}

	zap.L().Info("retrieved google maps api key via ADC")

	return apiKey, nil
}

func getAPIKeyFromADC(ctx context.Context, targetDisplayName string) (string, error) {
	creds, err := google.FindDefaultCredentials(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return "", fmt.Errorf("finding default credentials: %w", err)
	}

	projectID := creds.ProjectID
	if projectID == "" {
		return "", errors.New("no project id found in default credentials")
	}

	client, err := apikeys.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("creating apikeys client: %w", err)
	}
	defer client.Close()

	req := &apikeyspb.ListKeysRequest{
		Parent: fmt.Sprintf("projects/%s/locations/global", projectID),
	}

	it := client.ListKeys(ctx, req)

	for {
		key, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}

		if err != nil {
			return "", fmt.Errorf("listing keys: %w", err)
		}

		if key.DisplayName != targetDisplayName {
			continue
		}

		// ListKeys redacts the secret, GetKeyString returns it.
		resp, err := client.GetKeyString(ctx, &apikeyspb.GetKeyStringRequest{Name: key.Name})
		if err != nil {
			return "", fmt.Errorf("getting key string: %w", err)
		}

		if resp.KeyString == "" {
			return "", fmt.Errorf("key '%s' found but its key string is empty", targetDisplayName)
		}

		return resp.KeyString, nil
	}

	return "", fmt.Errorf("key with display name '%s' not found in project %s", targetDisplayName, projectID)
}
