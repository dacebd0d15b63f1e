package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestInFlightTracker_Count(t *testing.T) {
	tracker := &InFlightTracker{}
	tracker.Increment()
	tracker.Increment()
	tracker.Decrement()
	if got := tracker.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
}

func TestInFlightTracker_WaitForZero(t *testing.T) {
	tracker := &InFlightTracker{}
	tracker.Increment()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- tracker.WaitForZero(ctx, 5*time.Millisecond) }()

	time.Sleep(10 * time.Millisecond)
	tracker.Decrement()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WaitForZero() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForZero did not return after count reached zero")
	}
}

func TestInFlightTracker_WaitForZero_ContextCanceled(t *testing.T) {
	tracker := &InFlightTracker{}
	tracker.Increment()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := tracker.WaitForZero(ctx, 5*time.Millisecond); err == nil {
		t.Error("WaitForZero expected context error, got nil")
	}
}

func TestMetricsMiddleware_TracksInFlight(t *testing.T) {
	var during int64
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = InFlightCount()
		w.WriteHeader(http.StatusNoContent)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	if during < 1 {
		t.Errorf("InFlightCount() during request = %d, want >= 1", during)
	}
	if got := InFlightCount(); got != 0 {
		t.Errorf("InFlightCount() after request = %d, want 0", got)
	}
}
