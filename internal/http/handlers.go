package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-display/internal/degraded"
	"github.com/kjstillabower/weather-display/internal/lifecycle"
	"github.com/kjstillabower/weather-display/internal/render"
	"github.com/kjstillabower/weather-display/internal/traffic"
)

// defaultDenialWindow is used for deniedInWindow when no degraded window is set.
const defaultDenialWindow = time.Minute

// FrameSource encodes the current display frame.
type FrameSource interface {
	WritePNG(w io.Writer) error
}

// RegionSource returns a copy of every region's current content.
type RegionSource interface {
	Snapshot() map[render.RegionID]render.Content
}

// HealthConfig holds the thresholds the health handler evaluates.
type HealthConfig struct {
	Degraded degraded.Policy
	// Phase reports the process phase. Defaults to lifecycle.Current.
	Phase func() lifecycle.Phase
}

// Handler serves the preview endpoints. It only reads display state.
type Handler struct {
	frame        FrameSource
	regions      RegionSource
	layoutName   string
	healthConfig *HealthConfig
	logger       *zap.Logger

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(frame FrameSource, regions RegionSource, layoutName string, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if healthConfig == nil {
		healthConfig = &HealthConfig{}
	}
	if healthConfig.Phase == nil {
		healthConfig.Phase = lifecycle.Current
	}
	return &Handler{
		frame:        frame,
		regions:      regions,
		layoutName:   layoutName,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
	errors     int
	total      int
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"weatherApi": "healthy"}
	if result.status == string(degraded.StatusDegraded) {
		checks["weatherApi"] = "unhealthy"
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":          result.status,
		"service":         "weather-display",
		"layout":          h.layoutName,
		"phase":           h.healthConfig.Phase().String(),
		"checks":          checks,
		"errorsInWindow":  result.errors,
		"fetchesInWindow": result.total,
		"deniedInWindow":  traffic.DenialCount(h.denialWindow()),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates, in order: shutting-down, starting (no cycle
// has completed yet), degraded, healthy.
func (h *Handler) computeHealthStatus() healthResult {
	switch h.healthConfig.Phase() {
	case lifecycle.PhaseShuttingDown:
		return healthResult{status: "shutting-down", statusCode: http.StatusServiceUnavailable, reason: "signal"}
	case lifecycle.PhaseStarting:
		return healthResult{status: "starting", statusCode: http.StatusServiceUnavailable, reason: "first_cycle_pending"}
	}
	if h.healthConfig.Degraded.Window <= 0 {
		return healthResult{status: string(degraded.StatusHealthy), statusCode: http.StatusOK}
	}
	status, errs, total := h.healthConfig.Degraded.Evaluate()
	if status == degraded.StatusDegraded {
		return healthResult{status: string(status), statusCode: http.StatusServiceUnavailable, reason: "error_rate_breach", errors: errs, total: total}
	}
	return healthResult{status: string(status), statusCode: http.StatusOK, errors: errs, total: total}
}

func (h *Handler) denialWindow() time.Duration {
	if w := h.healthConfig.Degraded.Window; w > 0 {
		return w
	}
	return defaultDenialWindow
}

// GetRegions handles GET /regions with the region table as JSON.
func (h *Handler) GetRegions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"layout":  h.layoutName,
		"regions": h.regions.Snapshot(),
	})
}

// GetFrame handles GET /frame.png. The frame is encoded fully before any byte
// is written so an encode failure can still return a JSON error.
func (h *Handler) GetFrame(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.frame.WritePNG(&buf); err != nil {
		loggerFromRequest(r, h.logger).Error("frame encode failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "FRAME_UNAVAILABLE", "Unable to encode display frame")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": correlationID(r),
		},
	})
}
