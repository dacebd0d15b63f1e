package degraded

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ProbeFunc checks whether the upstream is usable again. Returns nil if recovered.
type ProbeFunc func(ctx context.Context) error

// Recovery probes the weather API on a Fibonacci schedule while the display is
// degraded, so fresh weather returns sooner than the next poll interval.
type Recovery struct {
	probe        ProbeFunc
	initial      time.Duration
	max          time.Duration
	probeTimeout time.Duration
	onRecovered  func()
	onExhausted  func()
	logger       *zap.Logger

	ch      chan struct{}
	running atomic.Bool
}

// RecoveryConfig holds the probe schedule and callbacks.
type RecoveryConfig struct {
	Initial      time.Duration
	Max          time.Duration
	ProbeTimeout time.Duration
	// OnRecovered runs after a successful probe, typically to trigger a poll cycle.
	OnRecovered func()
	// OnExhausted runs when the last scheduled probe fails.
	OnExhausted func()
}

// NewRecovery returns an idle Recovery. Call Start to begin listening.
func NewRecovery(probe ProbeFunc, cfg RecoveryConfig, logger *zap.Logger) *Recovery {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	return &Recovery{
		probe:        probe,
		initial:      cfg.Initial,
		max:          cfg.Max,
		probeTimeout: cfg.ProbeTimeout,
		onRecovered:  cfg.OnRecovered,
		onExhausted:  cfg.OnExhausted,
		logger:       logger,
		ch:           make(chan struct{}, 1),
	}
}

// Notify signals that the display is degraded. Non-blocking; a notification
// while a recovery run is active is dropped.
func (r *Recovery) Notify() {
	select {
	case r.ch <- struct{}{}:
	default:
	}
}

// Start listens for Notify until ctx is done.
func (r *Recovery) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.ch:
				if r.running.Swap(true) {
					continue
				}
				go func() {
					defer r.running.Store(false)
					r.Run(ctx)
				}()
			}
		}
	}()
}

// Run probes at each Fibonacci delay (1x, 2x, 3x, 5x, 8x... initial, up to max)
// until a probe succeeds or the schedule is exhausted. It returns true on recovery.
func (r *Recovery) Run(ctx context.Context) bool {
	delays := fibDelays(r.initial, r.max)
	for i, d := range delays {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
		}

		probeCtx, cancel := context.WithTimeout(ctx, r.probeTimeout)
		err := r.probe(probeCtx)
		cancel()
		if err == nil {
			r.logger.Info("upstream recovered", zap.Int("attempt", i+1))
			Reset()
			if r.onRecovered != nil {
				r.onRecovered()
			}
			return true
		}
		r.logger.Warn("recovery probe failed",
			zap.Int("attempt", i+1),
			zap.Duration("next_in", nextDelay(delays, i)),
			zap.Error(err),
		)
	}
	if len(delays) > 0 && r.onExhausted != nil {
		r.onExhausted()
	}
	return false
}

func nextDelay(delays []time.Duration, i int) time.Duration {
	if i+1 < len(delays) {
		return delays[i+1]
	}
	return 0
}

func fibDelays(initial, max time.Duration) []time.Duration {
	if initial <= 0 || max < initial {
		return nil
	}
	a, b := time.Duration(1), time.Duration(2)
	var out []time.Duration
	for {
		d := a * initial
		if d > max {
			break
		}
		out = append(out, d)
		a, b = b, a+b
	}
	return out
}
