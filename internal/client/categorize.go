package client

import (
	"context"
	"errors"
	"strings"

	"github.com/kjstillabower/weather-display/internal/circuitbreaker"
	"github.com/kjstillabower/weather-display/internal/parser"
)

// ErrorCategory is a stable label for error classification in metrics and logs.
type ErrorCategory string

const (
	ErrorCategoryTimeout          ErrorCategory = "timeout"
	ErrorCategoryNetwork          ErrorCategory = "network"
	ErrorCategoryInvalidAPIKey    ErrorCategory = "invalid_api_key"
	ErrorCategoryLocationNotFound ErrorCategory = "location_not_found"
	ErrorCategoryRateLimited      ErrorCategory = "rate_limited"
	ErrorCategoryCircuitOpen      ErrorCategory = "circuit_open"
	ErrorCategoryUpstream5xx      ErrorCategory = "upstream_5xx"
	ErrorCategoryParsing          ErrorCategory = "parsing"
	ErrorCategoryUnknown          ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorCategoryTimeout
	}
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return ErrorCategoryCircuitOpen
	}
	if errors.Is(err, ErrInvalidAPIKey) {
		return ErrorCategoryInvalidAPIKey
	}
	if errors.Is(err, ErrLocationNotFound) {
		return ErrorCategoryLocationNotFound
	}
	if errors.Is(err, ErrRateLimited) {
		return ErrorCategoryRateLimited
	}
	if errors.Is(err, ErrUpstreamFailure) {
		return ErrorCategoryUpstream5xx
	}
	var missing *parser.MissingFieldError
	var malformed *parser.MalformedPayloadError
	if errors.As(err, &missing) || errors.As(err, &malformed) {
		return ErrorCategoryParsing
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "timeout") {
		return ErrorCategoryTimeout
	}
	if errors.Is(err, ErrTransport) || strings.Contains(errStr, "connection") {
		return ErrorCategoryNetwork
	}
	return ErrorCategoryUnknown
}

// CountsAgainstBreaker reports whether err indicates an unhealthy upstream.
// Configuration problems (bad key, unknown location) do not open the circuit.
func CountsAgainstBreaker(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrInvalidAPIKey) && !errors.Is(err, ErrLocationNotFound)
}
