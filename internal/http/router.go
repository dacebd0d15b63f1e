// Package http serves the optional preview endpoints: health, metrics, the
// region table and the rendered frame.
package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-display/internal/observability"
)

// NewRouter registers the preview routes. The region and frame routes share
// limiter; nil disables rate limiting.
func NewRouter(handler *Handler, limiter *rate.Limiter, logger *zap.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	preview := router.NewRoute().Subrouter()
	preview.Use(RateLimitMiddleware(limiter))
	preview.HandleFunc("/regions", handler.GetRegions).Methods(http.MethodGet)
	preview.HandleFunc("/frame.png", handler.GetFrame).Methods(http.MethodGet)
	return router
}
