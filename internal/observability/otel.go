package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// instrumentationName identifies this module as the OTel log scope.
const instrumentationName = "github.com/florianilch/vela-proxy"

// newLoggerProvider creates a LoggerProvider exporting records at or above level.
func newLoggerProvider(ctx context.Context, exporter, endpoint string, level slog.Level) (*sdklog.LoggerProvider, error) {
	exp, err := newExporter(ctx, exporter, endpoint)
	if err != nil {
		return nil, err
	}

	processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(exp), minSeverity(level))

	return sdklog.NewLoggerProvider(sdklog.WithProcessor(processor)), nil
}

// newExporter creates the log exporter selected by name.
func newExporter(ctx context.Context, exporter, endpoint string) (sdklog.Exporter, error) {
	switch exporter {
	case "http":
		var opts []otlploghttp.Option
		if endpoint != "" {
			opts = append(opts, otlploghttp.WithEndpointURL(endpoint))
		}
		return otlploghttp.New(ctx, opts...)
	case "grpc":
		var opts []otlploggrpc.Option
		if endpoint != "" {
			opts = append(opts, otlploggrpc.WithEndpointURL(endpoint))
		}
		return otlploggrpc.New(ctx, opts...)
	case "stdout":
		return stdoutlog.New()
	default:
		return nil, fmt.Errorf("unsupported log exporter %q (expected: none, http, grpc, stdout)", exporter)
	}
}

// newOTelHandler bridges slog records into the provider.
func newOTelHandler(provider *sdklog.LoggerProvider) slog.Handler {
	return otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider))
}

// minSeverity adapts a slog level to minsev.Severitier.
// slog levels are offset by 9 from OTel severities (Info 0 ↔ SeverityInfo 9).
type minSeverity slog.Level

func (s minSeverity) Severity() log.Severity {
	return log.Severity(int(s) + 9)
}
