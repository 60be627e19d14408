// Package telemetry emits OpenTelemetry spans for runs and records. Spans
// go to a JSON lines file through the stdout exporter; nothing is exported
// unless tracing is enabled.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const tracerName = "github.com/devicelab-dev/pageflow"

// Config selects where spans go.
type Config struct {
	Enabled     bool
	Path        string    // file receiving spans; ignored when Writer is set
	Writer      io.Writer // overrides Path
	ServiceName string
	RunID       string
}

// Telemetry wraps a tracer. The zero value and nil are disabled.
type Telemetry struct {
	enabled bool
	tracer  trace.Tracer
}

// Init configures tracing and returns a shutdown func that flushes spans.
func Init(ctx context.Context, cfg Config, logger *zap.Logger) (*Telemetry, func(context.Context) error, error) {
	if !cfg.Enabled {
		return &Telemetry{tracer: noop.NewTracerProvider().Tracer(tracerName)}, func(context.Context) error { return nil }, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := cfg.Writer
	var file *os.File
	if w == nil {
		if cfg.Path == "" {
			return nil, nil, fmt.Errorf("telemetry: trace path required when tracing is enabled")
		}
		f, err := os.Create(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("telemetry: %w", err)
		}
		file, w = f, f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	service := cfg.ServiceName
	if service == "" {
		service = "pageflow"
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", service),
		attribute.String("pageflow.run_id", cfg.RunID),
	))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	shutdown := func(ctx context.Context) error {
		err := provider.Shutdown(ctx)
		if file != nil {
			if cerr := file.Close(); err == nil {
				err = cerr
			}
		}
		return err
	}
	logger.Info("tracing enabled", zap.String("path", cfg.Path))
	return &Telemetry{enabled: true, tracer: provider.Tracer(tracerName)}, shutdown, nil
}

// Enabled reports whether spans are exported.
func (t *Telemetry) Enabled() bool {
	return t != nil && t.enabled
}

// StartSpan starts a span with string attributes. Safe on a nil Telemetry.
func (t *Telemetry) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, trace.Span) {
	if t == nil || t.tracer == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return t.tracer.Start(ctx, name, trace.WithAttributes(toAttributes(attrs)...))
}

// End marks the span with the outcome and ends it.
func (t *Telemetry) End(span trace.Span, status string, err error) {
	if span == nil {
		return
	}
	span.SetAttributes(attribute.String("pageflow.status", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, status)
	}
	span.End()
}

func toAttributes(attrs map[string]string) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		out = append(out, attribute.String(k, v))
	}
	return out
}
