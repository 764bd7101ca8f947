package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/orrery/internal/core/ports"
)

// DefaultSlowThreshold is the span duration above which LogBridge reports a span.
const DefaultSlowThreshold = 2 * time.Second

// LogBridge implements sdktrace.SpanProcessor and reports failed or slow spans
// through a Logger.
type LogBridge struct {
	logger    ports.Logger
	threshold time.Duration
}

// NewLogBridge returns a bridge that reports failed spans as warnings and spans
// slower than threshold as info. A zero threshold disables slow-span reports.
func NewLogBridge(logger ports.Logger, threshold time.Duration) *LogBridge {
	return &LogBridge{logger: logger, threshold: threshold}
}

// OnStart is called when a span starts.
func (b *LogBridge) OnStart(_ context.Context, _ sdktrace.ReadWriteSpan) {}

// OnEnd is called when a span ends.
func (b *LogBridge) OnEnd(s sdktrace.ReadOnlySpan) {
	if b.logger == nil || !s.SpanContext().IsValid() {
		return
	}

	elapsed := s.EndTime().Sub(s.StartTime()).Round(time.Millisecond)
	if s.Status().Code == codes.Error {
		desc := s.Status().Description
		if desc == "" {
			desc = "failed"
		}
		b.logger.Warn(fmt.Sprintf("%s failed after %s: %s", s.Name(), elapsed, desc))
		return
	}

	if b.threshold > 0 && elapsed > b.threshold {
		b.logger.Info(fmt.Sprintf("%s took %s", s.Name(), elapsed))
	}
}

// ForceFlush does nothing.
func (b *LogBridge) ForceFlush(_ context.Context) error {
	return nil
}

// Shutdown does nothing.
func (b *LogBridge) Shutdown(_ context.Context) error {
	return nil
}
