package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Options configures the process-wide logging setup.
type Options struct {
	Level  slog.Level
	Format string // text|json
	// Exporter enables OpenTelemetry log export: none|http|grpc|stdout.
	Exporter string
	// Endpoint overrides the OTLP endpoint URL. Empty uses the OTEL_EXPORTER_* environment.
	Endpoint string
	// Output receives human-readable logs. Defaults to os.Stdout.
	Output io.Writer
}

// Instrument installs the default slog logger and the W3C trace context propagator.
// The returned function flushes and stops log export; it is safe to call when export
// is disabled.
func Instrument(ctx context.Context, opts Options) (func(context.Context) error, error) {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	handler, err := newStdoutHandler(opts.Level, opts.Format, out)
	if err != nil {
		return nil, err
	}

	shutdown := func(context.Context) error { return nil }

	if exporter := strings.ToLower(opts.Exporter); exporter != "" && exporter != "none" {
		provider, err := newLoggerProvider(ctx, exporter, opts.Endpoint, opts.Level)
		if err != nil {
			return nil, fmt.Errorf("failed to set up log export: %w", err)
		}
		handler = newFanoutHandler(handler, newOTelHandler(provider))
		shutdown = provider.Shutdown
	}

	slog.SetDefault(slog.New(newContextHandler(handler)))

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return shutdown, nil
}

// newStdoutHandler creates a handler for human-readable logs.
func newStdoutHandler(level slog.Level, logFormat string, out io.Writer) (slog.Handler, error) {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	switch strings.ToLower(logFormat) {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	case "text", "":
		handler = slog.NewTextHandler(out, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q (expected: json, text)", logFormat)
	}

	return handler, nil
}
