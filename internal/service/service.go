// Package service runs the poll loop: fetch each configured location, decode
// the payload and render it into the location's display slot.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-display/internal/client"
	"github.com/kjstillabower/weather-display/internal/lifecycle"
	"github.com/kjstillabower/weather-display/internal/models"
	"github.com/kjstillabower/weather-display/internal/observability"
	"github.com/kjstillabower/weather-display/internal/parser"
	"github.com/kjstillabower/weather-display/internal/render"
	"github.com/kjstillabower/weather-display/internal/traffic"
)

// Cycle outcomes, used as the pollCyclesTotal label.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// Target pairs a configured location with the slot it renders into.
type Target struct {
	Slot     models.DisplaySlot
	Location models.Location
}

// TargetsFor assigns locations to the slots of the matching layout in order.
func TargetsFor(locations []models.Location) []Target {
	slots := models.SlotsFor(len(locations))
	targets := make([]Target, 0, len(locations))
	for i, loc := range locations {
		if i >= len(slots) {
			break
		}
		targets = append(targets, Target{Slot: slots[i], Location: loc})
	}
	return targets
}

// SlotReport is what happened to one slot in a cycle.
type SlotReport struct {
	Slot     models.DisplaySlot
	Location string
	// Err is set when the slot was skipped for the whole cycle (fetch or payload failure).
	Err error
	// FieldErrs holds fields that were skipped while the rest of the slot rendered.
	FieldErrs map[string]error
}

// CycleReport summarizes one poll cycle.
type CycleReport struct {
	CycleID  string
	Started  time.Time
	Duration time.Duration
	Outcome  string
	Slots    []SlotReport
}

// Options tunes the service.
type Options struct {
	Interval time.Duration
	// Now is the clock used for the date/time header. Defaults to time.Now.
	Now func() time.Time
	// IsDegraded is checked after every cycle; OnDegraded runs when it reports true.
	IsDegraded func() bool
	OnDegraded func()
}

// DisplayService owns the poll loop. A cycle always runs to completion on the
// goroutine that called RunCycle; Run is the only caller in production.
type DisplayService struct {
	fetcher  client.Fetcher
	decoder  parser.Decoder
	renderer *render.Renderer
	targets  []Target
	opts     Options
	logger   *zap.Logger

	trigger chan struct{}
}

// NewDisplayService wires the fetch, decode and render stages together.
func NewDisplayService(fetcher client.Fetcher, decoder parser.Decoder, renderer *render.Renderer, targets []Target, opts Options, logger *zap.Logger) *DisplayService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	return &DisplayService{
		fetcher:  fetcher,
		decoder:  decoder,
		renderer: renderer,
		targets:  targets,
		opts:     opts,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger requests an extra cycle from Run. Non-blocking; coalesces with a
// pending request.
func (s *DisplayService) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run draws the splash and flags, runs a cycle immediately and then one per
// interval or Trigger until ctx is done.
func (s *DisplayService) Run(ctx context.Context) {
	if err := s.renderer.RenderSplash(); err != nil {
		s.logger.Warn("splash render failed", zap.Error(err))
	}
	if err := s.renderer.RenderFlags(); err != nil {
		s.logger.Warn("flag render failed", zap.Error(err))
	}

	s.RunCycle(ctx)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("poll loop stopped")
			return
		case <-ticker.C:
			s.RunCycle(ctx)
		case <-s.trigger:
			s.logger.Info("poll cycle triggered")
			s.RunCycle(ctx)
		}
	}
}

// RunCycle renders the date/time header and every target once. A failed fetch
// or unusable payload skips that slot; a bad field skips only that field.
// Regions that were not rewritten keep their previous content.
func (s *DisplayService) RunCycle(ctx context.Context) CycleReport {
	report := CycleReport{
		CycleID: uuid.New().String(),
		Started: time.Now(),
	}
	ctx = context.WithValue(ctx, client.CycleIDKey{}, report.CycleID)
	logger := s.logger.With(zap.String("cycle_id", report.CycleID))

	ctx, span := observability.Tracer().Start(ctx, "poll-cycle")
	defer span.End()
	span.SetAttributes(attribute.String("cycle.id", report.CycleID), attribute.Int("targets", len(s.targets)))

	if len(s.targets) > 0 {
		if err := s.renderer.RenderDateTime(s.opts.Now(), s.targets[0].Slot); err != nil {
			observability.FieldRenderErrorsTotal.WithLabelValues("datetime").Inc()
			logger.Warn("date/time render failed", zap.Error(err))
		}
	}

	failed := 0
	partial := false
	for _, target := range s.targets {
		sr := s.runTarget(ctx, logger, target)
		if sr.Err != nil {
			failed++
		} else if len(sr.FieldErrs) > 0 {
			partial = true
		}
		report.Slots = append(report.Slots, sr)
	}

	switch {
	case len(s.targets) > 0 && failed == len(s.targets):
		report.Outcome = OutcomeFailed
		span.SetStatus(codes.Error, "all slots failed")
	case failed > 0 || partial:
		report.Outcome = OutcomePartial
	default:
		report.Outcome = OutcomeOK
	}
	report.Duration = time.Since(report.Started)

	observability.PollCyclesTotal.WithLabelValues(report.Outcome).Inc()
	observability.PollCycleDuration.Observe(report.Duration.Seconds())
	span.SetAttributes(attribute.String("outcome", report.Outcome))
	logger.Info("poll cycle complete",
		zap.String("outcome", report.Outcome),
		zap.Int("failed_slots", failed),
		zap.Duration("duration", report.Duration),
	)

	lifecycle.MarkRunning()

	if s.opts.IsDegraded != nil && s.opts.IsDegraded() {
		logger.Warn("display degraded, weather may be stale")
		if s.opts.OnDegraded != nil {
			s.opts.OnDegraded()
		}
	}
	return report
}

func (s *DisplayService) runTarget(ctx context.Context, logger *zap.Logger, target Target) SlotReport {
	label := target.Location.Label()
	sr := SlotReport{Slot: target.Slot, Location: label}
	logger = logger.With(zap.String("slot", target.Slot.String()), zap.String("location", label))

	rec, err := s.fetchAndDecode(ctx, target.Location)
	if err != nil {
		sr.Err = err
		traffic.RecordError()
		observability.RecordPoll(label, "error")
		logger.Warn("slot skipped this cycle",
			zap.String("error_category", string(client.CategorizeError(err))),
			zap.Error(err),
		)
		return sr
	}
	traffic.RecordSuccess()
	observability.RecordPoll(label, "success")

	sr.FieldErrs = s.renderRecord(ctx, rec, target.Slot)
	for field, ferr := range sr.FieldErrs {
		observability.FieldRenderErrorsTotal.WithLabelValues(field).Inc()
		logger.Warn("field skipped", zap.String("field", field), zap.Error(ferr))
	}
	return sr
}

func (s *DisplayService) fetchAndDecode(ctx context.Context, loc models.Location) (models.WeatherRecord, error) {
	body, err := s.fetcher.FetchCurrent(ctx, loc)
	if err != nil {
		return models.WeatherRecord{}, fmt.Errorf("fetch %s: %w", loc.Label(), err)
	}

	_, span := observability.Tracer().Start(ctx, "decode-payload")
	defer span.End()
	mode := string(s.decoder.Mode())
	span.SetAttributes(attribute.String("mode", mode))

	rec, err := s.decoder.Decode(body)
	if err != nil {
		observability.PayloadDecodeTotal.WithLabelValues(mode, "malformed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed payload")
		return models.WeatherRecord{}, fmt.Errorf("decode %s: %w", loc.Label(), err)
	}
	result := "ok"
	if len(rec.FieldErrors()) > 0 {
		result = "partial"
	}
	observability.PayloadDecodeTotal.WithLabelValues(mode, result).Inc()
	return rec, nil
}

// renderRecord writes every usable field of rec into slot and returns the
// fields that were skipped, keyed by field name. An optional field that is
// simply absent is not an error.
func (s *DisplayService) renderRecord(ctx context.Context, rec models.WeatherRecord, slot models.DisplaySlot) map[string]error {
	_, span := observability.Tracer().Start(ctx, "render-slot")
	defer span.End()
	span.SetAttributes(attribute.String("slot", slot.String()))

	skipped := make(map[string]error)
	step := func(field models.Field, fn func() error) {
		if err := rec.Err(field); err != nil {
			skipped[string(field)] = err
			return
		}
		if err := fn(); err != nil {
			skipped[string(field)] = err
		}
	}

	step(models.FieldPlaceName, func() error {
		return s.renderer.RenderPlaceName(rec.PlaceName, slot)
	})
	step(models.FieldTemperature, func() error {
		feels := rec.FeelsLikeK
		if err := rec.Err(models.FieldFeelsLike); err != nil {
			feels = nil
			if !absent(rec, models.FieldFeelsLike) {
				skipped[string(models.FieldFeelsLike)] = err
			}
		}
		return s.renderer.RenderTemperature(rec.TemperatureK, feels, slot)
	})
	step(models.FieldDescription, func() error {
		return s.renderer.RenderDescription(rec.PrimaryDescription(), rec.SecondaryDescription(), slot)
	})
	step(models.FieldHumidity, func() error {
		return s.renderer.RenderHumidity(rec.HumidityPct, slot)
	})
	step(models.FieldWindSpeed, func() error {
		return s.renderer.RenderWind(rec.WindSpeedMS, slot)
	})
	if !absent(rec, models.FieldCloud) {
		step(models.FieldCloud, func() error {
			return s.renderer.RenderCloud(*rec.CloudPct, slot)
		})
	}
	// A malformed offset falls back to the display zone for sun times.
	if err := rec.Err(models.FieldTimezone); err != nil && !absent(rec, models.FieldTimezone) {
		skipped[string(models.FieldTimezone)] = err
	}
	if !absent(rec, models.FieldSunrise) && !absent(rec, models.FieldSunset) {
		if err := errors.Join(rec.Err(models.FieldSunrise), rec.Err(models.FieldSunset)); err != nil {
			skipped["sun"] = err
		} else if err := s.renderer.RenderSun(*rec.Sunrise, *rec.Sunset, rec.TimezoneOffset, slot); err != nil {
			skipped["sun"] = err
		}
	}
	if !absent(rec, models.FieldIcon) {
		step(models.FieldIcon, func() error {
			return s.renderer.RenderIcon(rec.IconCode, slot)
		})
	}

	if len(skipped) > 0 {
		span.SetAttributes(attribute.Int("fields.skipped", len(skipped)))
	}
	return skipped
}

// absent reports whether an optional field is missing from the payload. A
// malformed optional field is not absent and is reported as skipped.
func absent(rec models.WeatherRecord, f models.Field) bool {
	var missing *parser.MissingFieldError
	return errors.As(rec.Err(f), &missing)
}
