// Package client fetches current-weather payloads from OpenWeatherMap. It
// returns the raw response body; decoding belongs to the parser so the flat and
// structured decoders see exactly what the provider sent.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kjstillabower/weather-display/internal/circuitbreaker"
	"github.com/kjstillabower/weather-display/internal/models"
	"github.com/kjstillabower/weather-display/internal/observability"
)

// Fetcher returns the raw current-weather payload for a location.
type Fetcher interface {
	FetchCurrent(ctx context.Context, loc models.Location) ([]byte, error)
	ValidateAPIKey(ctx context.Context, loc models.Location) error
}

var (
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrRateLimited      = errors.New("rate limited")
	// ErrTransport covers timeouts and connection failures.
	ErrTransport = errors.New("transport failure")
)

// maxBodyBytes bounds the payload read; current-weather bodies are under 1KB.
const maxBodyBytes = 1 << 20

type OpenWeatherClient struct {
	apiKey         string
	apiURL         string
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *circuitbreaker.CircuitBreaker
}

func NewOpenWeatherClient(apiKey, apiURL string, timeout time.Duration) (*OpenWeatherClient, error) {
	return NewOpenWeatherClientWithRetry(apiKey, apiURL, timeout, 3, 100*time.Millisecond, 2*time.Second)
}

func NewOpenWeatherClientWithRetry(apiKey, apiURL string, timeout time.Duration, retryAttempts int, retryBaseDelay, retryMaxDelay time.Duration) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if _, err := url.Parse(apiURL); err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	if retryAttempts < 1 {
		retryAttempts = 1
	}

	return &OpenWeatherClient{
		apiKey:         apiKey,
		apiURL:         apiURL,
		timeout:        timeout,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetCircuitBreaker routes every attempt through cb. Nil disables it.
func (c *OpenWeatherClient) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

// FetchCurrent returns the current-weather body for loc, retrying transient
// failures with exponential backoff.
func (c *OpenWeatherClient) FetchCurrent(ctx context.Context, loc models.Location) ([]byte, error) {
	ctx, span := observability.Tracer().Start(ctx, "fetch-weather")
	defer span.End()
	span.SetAttributes(attribute.String("location", loc.Label()))

	body, err := c.fetchWithRetry(ctx, loc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(CategorizeError(err)))
		return nil, err
	}
	span.SetAttributes(attribute.Int("body.bytes", len(body)))
	return body, nil
}

func (c *OpenWeatherClient) fetchWithRetry(ctx context.Context, loc models.Location) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.WeatherAPIRetriesTotal.Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrTransport, ctx.Err())
			case <-time.After(delay):
			}
		}

		body, err := c.callThroughBreaker(ctx, loc)
		if err == nil {
			return body, nil
		}

		lastErr = err
		if !c.isRetryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *OpenWeatherClient) callThroughBreaker(ctx context.Context, loc models.Location) ([]byte, error) {
	if c.breaker == nil {
		return c.callAPI(ctx, loc)
	}
	var body []byte
	err := c.breaker.Call(ctx, func() error {
		var err error
		body, err = c.callAPI(ctx, loc)
		return err
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamFailure, err)
	}
	return body, err
}

func (c *OpenWeatherClient) callAPI(ctx context.Context, loc models.Location) ([]byte, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, loc)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("build request: %w", err)
	}

	if cycleID := extractCycleID(ctx); cycleID != "" {
		req.Header.Set("X-Correlation-ID", cycleID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: request timeout: %w", ErrTransport, err)
		}
		return nil, fmt.Errorf("%w: http request failed: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(duration)

	if err := c.handleErrorResponse(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %w", ErrTransport, err)
	}
	return body, nil
}

func (c *OpenWeatherClient) isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return false
	}
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUpstreamFailure) ||
		errors.Is(err, ErrTransport)
}

func (c *OpenWeatherClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

// buildRequest queries by coordinates when present, else by city name. No
// units parameter is sent so temperatures arrive in Kelvin.
func (c *OpenWeatherClient) buildRequest(ctx context.Context, loc models.Location) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	switch {
	case loc.HasCoords():
		params.Set("lat", strconv.FormatFloat(*loc.Lat, 'f', -1, 64))
		params.Set("lon", strconv.FormatFloat(*loc.Lon, 'f', -1, 64))
	case loc.City != "":
		params.Set("q", loc.City)
	default:
		return nil, fmt.Errorf("%w: no city or coordinates", ErrLocationNotFound)
	}
	params.Set("appid", c.apiKey)
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *OpenWeatherClient) handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: invalid API key", ErrInvalidAPIKey)
	case http.StatusNotFound:
		return fmt.Errorf("%w", ErrLocationNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	return nil
}

// CycleIDKey is the context key the poll loop stores its cycle ID under.
type CycleIDKey struct{}

func extractCycleID(ctx context.Context) string {
	if id, ok := ctx.Value(CycleIDKey{}).(string); ok {
		return id
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

// ValidateAPIKey makes one request for loc and reports whether the key is
// accepted. Used at startup before the first cycle.
func (c *OpenWeatherClient) ValidateAPIKey(ctx context.Context, loc models.Location) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := c.buildRequest(ctx, loc)
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: validation request failed: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: API key is invalid or not activated", ErrInvalidAPIKey)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("validation failed: HTTP %d", resp.StatusCode)
	}

	return nil
}
