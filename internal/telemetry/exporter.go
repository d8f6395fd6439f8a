package telemetry

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/felixgeelhaar/portal/internal/log"
)

// LogExporter writes finished spans to a logger at debug level. It backs the
// --trace flag, where no collector is available.
type LogExporter struct {
	logger *log.Logger
}

// NewLogExporter creates an exporter writing to logger
func NewLogExporter(logger *log.Logger) *LogExporter {
	return &LogExporter{logger: logger.WithGroup("span")}
}

// ExportSpans logs each span with its timing, status and attributes
func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		args := []any{
			"name", s.Name(),
			"trace_id", s.SpanContext().TraceID().String(),
			"duration_ms", s.EndTime().Sub(s.StartTime()).Milliseconds(),
			"status", s.Status().Code.String(),
		}
		for _, kv := range s.Attributes() {
			args = append(args, string(kv.Key), kv.Value.Emit())
		}
		e.logger.DebugContext(ctx, "span", args...)
	}
	return nil
}

// Shutdown is a no-op
func (e *LogExporter) Shutdown(ctx context.Context) error {
	return nil
}

var _ sdktrace.SpanExporter = (*LogExporter)(nil)
