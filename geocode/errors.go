// Copyright 2025 The PlaceGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// GeocodingError is a lookup the service could not answer.
type GeocodingError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *GeocodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *GeocodingError) Unwrap() error {
	return e.Err
}

// ErrorType classifies a GeocodingError.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeRateLimit
	ErrorTypeQuotaExceeded
	ErrorTypeTimeout
	ErrorTypeNotFound
	ErrorTypeInvalidRequest
	ErrorTypeNetworkError
)

var errorTypeNames = [...]string{
	ErrorTypeUnknown:        "unknown",
	ErrorTypeRateLimit:      "rate_limit",
	ErrorTypeQuotaExceeded:  "quota_exceeded",
	ErrorTypeTimeout:        "timeout",
	ErrorTypeNotFound:       "not_found",
	ErrorTypeInvalidRequest: "invalid_request",
	ErrorTypeNetworkError:   "network",
}

func (t ErrorType) String() string {
	if t < 0 || int(t) >= len(errorTypeNames) {
		return errorTypeNames[ErrorTypeUnknown]
	}

	return errorTypeNames[t]
}

// Throttled reports whether the service refused the request because of its
// usage limits.
func (t ErrorType) Throttled() bool {
	return t == ErrorTypeRateLimit || t == ErrorTypeQuotaExceeded
}

// ErrorTypeOf returns the type of the GeocodingError in err's chain, or
// ErrorTypeUnknown when there is none.
func ErrorTypeOf(err error) ErrorType {
	var geoErr *GeocodingError
	if errors.As(err, &geoErr) {
		return geoErr.Type
	}

	return ErrorTypeUnknown
}

var statusTypes = map[int]ErrorType{
	http.StatusTooManyRequests:    ErrorTypeRateLimit,
	http.StatusForbidden:          ErrorTypeQuotaExceeded,
	http.StatusBadRequest:         ErrorTypeInvalidRequest,
	http.StatusNotFound:           ErrorTypeNotFound,
	http.StatusBadGateway:         ErrorTypeNetworkError,
	http.StatusServiceUnavailable: ErrorTypeNetworkError,
	http.StatusGatewayTimeout:     ErrorTypeNetworkError,
}

// StatusError builds the error for a non-success HTTP response. body is an
// excerpt of the response, included in the message when not blank.
func StatusError(statusCode int, body string) *GeocodingError {
	msg := fmt.Sprintf("status %d %s", statusCode, http.StatusText(statusCode))
	if body = strings.TrimSpace(body); body != "" {
		msg += ": " + body
	}

	return &GeocodingError{Type: statusTypes[statusCode], Message: msg}
}

// TransportError wraps an error returned by the HTTP client.
func TransportError(err error) *GeocodingError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &GeocodingError{Type: ErrorTypeTimeout, Message: "request timed out", Err: err}
	}

	return &GeocodingError{Type: ErrorTypeNetworkError, Message: "request failed", Err: err}
}
