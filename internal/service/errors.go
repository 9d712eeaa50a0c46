package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ProviderErrorKind classifies provider failures at the boundary
type ProviderErrorKind string

const (
	ProviderUnavailable     ProviderErrorKind = "unavailable"
	ProviderRateLimited     ProviderErrorKind = "rate_limited"
	ProviderTimeout         ProviderErrorKind = "timeout"
	ProviderInvalidResponse ProviderErrorKind = "invalid_response"
)

// ErrProviderDisabled is returned when no API key is configured
var ErrProviderDisabled = errors.New("provider is not enabled (missing API key)")

// ProviderError is the only error shape that leaves the provider client
type ProviderError struct {
	Op         string
	Kind       ProviderErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s %s (status %d): %v", e.Op, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsProviderKind reports whether err carries a ProviderError of the given kind
func IsProviderKind(err error, kind ProviderErrorKind) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == kind
}

func newTransportError(op string, err error) *ProviderError {
	kind := ProviderUnavailable
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = ProviderTimeout
	}
	return &ProviderError{Op: op, Kind: kind, Err: err}
}

func newStatusError(op string, statusCode int, body string) *ProviderError {
	kind := ProviderUnavailable
	switch statusCode {
	case http.StatusTooManyRequests:
		kind = ProviderRateLimited
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		kind = ProviderTimeout
	}
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return &ProviderError{
		Op:         op,
		Kind:       kind,
		StatusCode: statusCode,
		Err:        fmt.Errorf("API request failed: %s", body),
	}
}

func newInvalidResponseError(op string, err error) *ProviderError {
	return &ProviderError{Op: op, Kind: ProviderInvalidResponse, Err: err}
}

func newDisabledError(op string) *ProviderError {
	return &ProviderError{Op: op, Kind: ProviderUnavailable, Err: ErrProviderDisabled}
}
