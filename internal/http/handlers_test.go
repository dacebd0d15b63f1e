package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kjstillabower/weather-display/internal/degraded"
	"github.com/kjstillabower/weather-display/internal/display"
	"github.com/kjstillabower/weather-display/internal/lifecycle"
	"github.com/kjstillabower/weather-display/internal/render"
	"github.com/kjstillabower/weather-display/internal/traffic"
)

type fakeRegions map[render.RegionID]render.Content

func (f fakeRegions) Snapshot() map[render.RegionID]render.Content { return f }

type failingFrame struct{ err error }

func (f failingFrame) WritePNG(io.Writer) error { return f.err }

func phase(p lifecycle.Phase) func() lifecycle.Phase {
	return func() lifecycle.Phase { return p }
}

func newTestHandler(t *testing.T, frame FrameSource, cfg *HealthConfig) *Handler {
	t.Helper()
	regions := fakeRegions{
		"single.temp": {Text: "Temp: 15.0C", Color: render.ColorWhite},
		"single.icon": {Image: "icons/50d.bmp"},
	}
	if frame == nil {
		fb, err := display.NewFramebuffer(32, 24)
		if err != nil {
			t.Fatalf("NewFramebuffer: %v", err)
		}
		frame = fb
	}
	return NewHandler(frame, regions, "single", cfg, nil)
}

func decodeBody(t *testing.T, body *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestGetHealth_Phases(t *testing.T) {
	traffic.Reset()
	t.Cleanup(traffic.Reset)

	tests := []struct {
		name       string
		phase      lifecycle.Phase
		wantStatus string
		wantCode   int
	}{
		{"starting", lifecycle.PhaseStarting, "starting", http.StatusServiceUnavailable},
		{"running", lifecycle.PhaseRunning, "healthy", http.StatusOK},
		{"shutting down", lifecycle.PhaseShuttingDown, "shutting-down", http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(t, nil, &HealthConfig{
				Degraded: degraded.Policy{Window: time.Minute, ErrorPct: 50, MinSamples: 2},
				Phase:    phase(tc.phase),
			})
			w := httptest.NewRecorder()
			h.GetHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tc.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tc.wantCode)
			}
			body := decodeBody(t, w.Body)
			if body["status"] != tc.wantStatus {
				t.Errorf("status = %v, want %s", body["status"], tc.wantStatus)
			}
			if body["phase"] != tc.phase.String() {
				t.Errorf("phase = %v, want %s", body["phase"], tc.phase)
			}
			if body["service"] != "weather-display" {
				t.Errorf("service = %v, want weather-display", body["service"])
			}
		})
	}
}

func TestGetHealth_DegradedFromCycleErrors(t *testing.T) {
	traffic.Reset()
	t.Cleanup(traffic.Reset)
	traffic.RecordSuccess()
	traffic.RecordError()
	traffic.RecordError()

	h := newTestHandler(t, nil, &HealthConfig{
		Degraded: degraded.Policy{Window: time.Minute, ErrorPct: 50, MinSamples: 2},
		Phase:    phase(lifecycle.PhaseRunning),
	})
	w := httptest.NewRecorder()
	h.GetHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want 503", w.Code)
	}
	body := decodeBody(t, w.Body)
	if body["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", body["status"])
	}
	if body["errorsInWindow"] != float64(2) || body["fetchesInWindow"] != float64(3) {
		t.Errorf("window counts = %v/%v, want 2/3", body["errorsInWindow"], body["fetchesInWindow"])
	}
	checks, _ := body["checks"].(map[string]interface{})
	if checks["weatherApi"] != "unhealthy" {
		t.Errorf("checks.weatherApi = %v, want unhealthy", checks["weatherApi"])
	}
}

func TestGetHealth_ReportsDenials(t *testing.T) {
	traffic.Reset()
	t.Cleanup(traffic.Reset)
	traffic.RecordDenied()
	traffic.RecordDenied()

	h := newTestHandler(t, nil, &HealthConfig{Phase: phase(lifecycle.PhaseRunning)})
	w := httptest.NewRecorder()
	h.GetHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want 200; denials do not degrade health", w.Code)
	}
	body := decodeBody(t, w.Body)
	if body["deniedInWindow"] != float64(2) {
		t.Errorf("deniedInWindow = %v, want 2", body["deniedInWindow"])
	}
	if body["fetchesInWindow"] != float64(0) {
		t.Errorf("fetchesInWindow = %v, want 0", body["fetchesInWindow"])
	}
}

func TestGetHealth_BelowMinSamplesIsHealthy(t *testing.T) {
	traffic.Reset()
	t.Cleanup(traffic.Reset)
	traffic.RecordError()

	h := newTestHandler(t, nil, &HealthConfig{
		Degraded: degraded.Policy{Window: time.Minute, ErrorPct: 50, MinSamples: 2},
		Phase:    phase(lifecycle.PhaseRunning),
	})
	w := httptest.NewRecorder()
	h.GetHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want 200 with a single sample", w.Code)
	}
}

func TestGetRegions(t *testing.T) {
	h := newTestHandler(t, nil, nil)
	w := httptest.NewRecorder()
	h.GetRegions(w, httptest.NewRequest(http.MethodGet, "/regions", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", w.Code)
	}
	var body struct {
		Layout  string                            `json:"layout"`
		Regions map[string]map[string]interface{} `json:"regions"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Layout != "single" {
		t.Errorf("layout = %q, want single", body.Layout)
	}
	temp := body.Regions["single.temp"]
	if temp["text"] != "Temp: 15.0C" || temp["color"] != "#ffffff" {
		t.Errorf("single.temp = %v, want text and #ffffff", temp)
	}
	if body.Regions["single.icon"]["image"] != "icons/50d.bmp" {
		t.Errorf("single.icon = %v", body.Regions["single.icon"])
	}
}

func TestGetFrame_PNG(t *testing.T) {
	h := newTestHandler(t, nil, nil)
	w := httptest.NewRecorder()
	h.GetFrame(w, httptest.NewRequest(http.MethodGet, "/frame.png", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}
}

func TestGetFrame_EncodeError(t *testing.T) {
	h := newTestHandler(t, failingFrame{err: errors.New("encoder broke")}, nil)
	w := httptest.NewRecorder()
	h.GetFrame(w, httptest.NewRequest(http.MethodGet, "/frame.png", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status code = %d, want 500", w.Code)
	}
	body := decodeBody(t, w.Body)
	errObj, _ := body["error"].(map[string]interface{})
	if errObj["code"] != "FRAME_UNAVAILABLE" {
		t.Errorf("error.code = %v, want FRAME_UNAVAILABLE", errObj["code"])
	}
}
