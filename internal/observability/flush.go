package observability

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// FlushTelemetry flushes telemetry buffers before process exit.
// Prometheus is pull-based; this exports pending spans and syncs logs.
// Call during graceful shutdown after the poll loop has stopped.
func FlushTelemetry(ctx context.Context, logger *zap.Logger) error {
	var errs []error
	if err := shutdownTracing(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush spans: %w", err))
	}
	if logger != nil {
		if err := logger.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("flush logs: %w", err))
		}
	}
	return errors.Join(errs...)
}
