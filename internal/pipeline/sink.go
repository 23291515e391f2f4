package pipeline

import (
	"context"
	"log/slog"

	"github.com/airshedlabs/enviro-risk-service/internal/domain"
)

// MultiSink fans one cycle out to several sinks in order. The first error
// aborts the cycle so it is retried; sinks must therefore tolerate seeing the
// same results twice, which the deterministic reading and alert IDs make safe.
type MultiSink []ResultSink

// LoadCycle implements ResultSink.
func (m MultiSink) LoadCycle(ctx context.Context, results []domain.CycleResult) error {
	for _, s := range m {
		if err := s.LoadCycle(ctx, results); err != nil {
			return err
		}
	}
	return nil
}

// BestEffortSink wraps an optional sink whose failures must not stall the
// pipeline. Errors are logged and swallowed.
type BestEffortSink struct {
	Sink   ResultSink
	Logger *slog.Logger
	Name   string
}

// LoadCycle implements ResultSink.
func (b BestEffortSink) LoadCycle(ctx context.Context, results []domain.CycleResult) error {
	if err := b.Sink.LoadCycle(ctx, results); err != nil {
		b.Logger.Warn("optional sink failed, continuing", "sink", b.Name, "error", err)
	}
	return nil
}
