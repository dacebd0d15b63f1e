// Package degraded decides whether the display is serving stale weather. The
// service is degraded when the share of failed location fetches in the health
// window reaches the configured threshold.
package degraded

import (
	"time"

	"github.com/kjstillabower/weather-display/internal/traffic"
)

// Status is the health reported by the preview server.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
)

// Policy configures degraded detection.
type Policy struct {
	Window time.Duration
	// ErrorPct is the failure percentage (0-100) at or above which the service is degraded.
	ErrorPct float64
	// MinSamples is the number of outcomes needed before the rate is trusted.
	MinSamples int
}

// Evaluate reports the status from the recorded outcomes, along with the
// error and total counts it was derived from.
func (p Policy) Evaluate() (status Status, errors, total int) {
	errors, total = traffic.ErrorRate(p.Window)
	if total == 0 || total < p.MinSamples {
		return StatusHealthy, errors, total
	}
	if float64(errors)*100/float64(total) >= p.ErrorPct {
		return StatusDegraded, errors, total
	}
	return StatusHealthy, errors, total
}

// IsDegraded is Evaluate reduced to a bool.
func (p Policy) IsDegraded() bool {
	s, _, _ := p.Evaluate()
	return s == StatusDegraded
}

// Reset clears all recorded outcomes. For tests and after recovery.
func Reset() {
	traffic.Reset()
}
