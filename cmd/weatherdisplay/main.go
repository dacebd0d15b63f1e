package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-display/internal/circuitbreaker"
	"github.com/kjstillabower/weather-display/internal/client"
	"github.com/kjstillabower/weather-display/internal/config"
	"github.com/kjstillabower/weather-display/internal/degraded"
	"github.com/kjstillabower/weather-display/internal/display"
	httphandler "github.com/kjstillabower/weather-display/internal/http"
	"github.com/kjstillabower/weather-display/internal/lifecycle"
	"github.com/kjstillabower/weather-display/internal/models"
	"github.com/kjstillabower/weather-display/internal/observability"
	"github.com/kjstillabower/weather-display/internal/parser"
	"github.com/kjstillabower/weather-display/internal/render"
	"github.com/kjstillabower/weather-display/internal/service"
)

const serviceName = "weather-display"

func main() {
	logger, err := observability.NewLogger(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	if err := observability.InitTracing(serviceName, cfg.ZipkinURL); err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}
	observability.RegisterHealthGauges(cfg.DegradedWindow)
	observability.SetTrackedLocations(cfg.TrackedLocations())

	weatherClient, err := client.NewOpenWeatherClientWithRetry(
		cfg.WeatherAPIKey,
		cfg.WeatherAPIURL,
		cfg.WeatherAPITimeout,
		cfg.RetryAttempts,
		cfg.RetryBaseDelay,
		cfg.RetryMaxDelay,
	)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}
	if cfg.CircuitBreakerEnabled {
		weatherClient.SetCircuitBreaker(newBreaker(cfg))
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CBFailureThreshold),
			zap.Duration("timeout", cfg.CBTimeout))
	}

	decoder, err := parser.New(cfg.DecodeMode)
	if err != nil {
		logger.Fatal("decoder", zap.Error(err))
	}
	if cfg.DecodeMode == parser.ModeFlat {
		logger.Warn("flat decode mode is deprecated; field positions are not checked against the payload")
	}

	layout := render.LayoutFor(len(cfg.Locations))
	fb, err := display.NewFramebuffer(layout.Width, layout.Height)
	if err != nil {
		logger.Fatal("framebuffer", zap.Error(err))
	}
	targets := service.TargetsFor(cfg.Locations)
	renderer := render.New(layout, fb, render.NewAssets(os.DirFS(cfg.AssetsDir)), render.Options{
		Units:              cfg.Units,
		USADate:            cfg.USADate,
		Location:           cfg.Timezone,
		SeasonalBackground: cfg.SeasonalBackground,
		Splash:             cfg.Splash,
		Flags:              flagsFor(targets),
	}, logger)
	logger.Info("display ready",
		zap.String("layout", renderer.Layout().Name),
		zap.Stringer("frame", fb.Bounds()),
		zap.Strings("locations", cfg.TrackedLocations()),
		zap.String("decode_mode", string(cfg.DecodeMode)),
		zap.String("assets_dir", cfg.AssetsDir))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := weatherClient.ValidateAPIKey(ctx, cfg.Locations[0]); err != nil {
		logger.Warn("API key validation failed; polling anyway", zap.Error(err))
	}

	policy := degraded.Policy{
		Window:     cfg.DegradedWindow,
		ErrorPct:   cfg.DegradedErrorPct,
		MinSamples: cfg.DegradedMinSamples,
	}
	var svc *service.DisplayService
	recovery := degraded.NewRecovery(
		func(ctx context.Context) error { return weatherClient.ValidateAPIKey(ctx, cfg.Locations[0]) },
		degraded.RecoveryConfig{
			Initial:     cfg.DegradedRetryInitial,
			Max:         cfg.DegradedRetryMax,
			OnRecovered: func() {
				if !lifecycle.IsShuttingDown() {
					svc.Trigger()
				}
			},
			OnExhausted: func() { logger.Error("recovery probes exhausted; waiting for the next poll interval") },
		},
		logger,
	)
	svc = service.NewDisplayService(weatherClient, decoder, renderer, targets, service.Options{
		Interval:   cfg.PollInterval,
		IsDegraded: policy.IsDegraded,
		OnDegraded: recovery.Notify,
	}, logger)
	recovery.Start(ctx)

	var srv *http.Server
	if cfg.PreviewEnabled {
		var limiter *rate.Limiter
		if cfg.RateLimitRPS > 0 {
			limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
		}
		handler := httphandler.NewHandler(fb, renderer.Table(), renderer.Layout().Name, &httphandler.HealthConfig{Degraded: policy}, logger)
		srv = &http.Server{
			Addr:         ":" + cfg.PreviewPort,
			Handler:      httphandler.NewRouter(handler, limiter, logger),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("preview server starting", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("preview server", zap.Error(err))
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("poll cycle did not finish before shutdown timeout")
	}

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("preview server shutdown", zap.Error(err))
		}
		if err := httphandler.WaitForInFlight(shutdownCtx, 50*time.Millisecond); err != nil {
			logger.Warn("in-flight preview requests not completed", zap.Int64("remaining", httphandler.InFlightCount()))
		}
	}

	if err := observability.FlushTelemetry(shutdownCtx, logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// newBreaker builds the weather API breaker and reports its transitions to metrics.
func newBreaker(cfg *config.Config) *circuitbreaker.CircuitBreaker {
	const component = "weather_api"
	observability.CircuitBreakerState.WithLabelValues(component).Set(float64(circuitbreaker.StateClosed))
	return circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.CBFailureThreshold,
		SuccessThreshold: cfg.CBSuccessThreshold,
		Timeout:          cfg.CBTimeout,
		Component:        component,
		IsFailure:        client.CountsAgainstBreaker,
		OnStateChange: func(component string, from, to circuitbreaker.State) {
			observability.CircuitBreakerTransitionsTotal.WithLabelValues(component, from.String(), to.String()).Inc()
			observability.CircuitBreakerState.WithLabelValues(component).Set(float64(to))
		},
	})
}

// flagsFor maps each comparison slot to its location's flag bitmap.
func flagsFor(targets []service.Target) map[models.DisplaySlot]string {
	flags := make(map[models.DisplaySlot]string)
	for _, t := range targets {
		if t.Slot == models.SlotSingle || t.Location.Flag == "" {
			continue
		}
		flags[t.Slot] = t.Location.Flag
	}
	return flags
}
