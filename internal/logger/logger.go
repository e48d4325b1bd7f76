// Package logger wires log/slog and OpenTelemetry tracing for TradeLens.
// Every log line emitted through this package carries the trace and span
// IDs of the context it was given, when tracing is on.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "tradelens"

var (
	mu             sync.RWMutex
	globalLogger   = slog.Default()
	tracingEnabled bool
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider
)

// Config holds logging configuration.
type Config struct {
	Level   string // debug, info, warn, error
	Format  string // json or text
	Tracing bool   // enable OpenTelemetry tracing to stdout
	Output  io.Writer
}

// Init installs the global logger (and tracer, if requested).
func Init(cfg Config, version string) error {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	l := slog.New(handler)
	slog.SetDefault(l)

	mu.Lock()
	globalLogger = l
	mu.Unlock()

	if cfg.Tracing {
		if err := initTracer(version); err != nil {
			l.Warn("tracing disabled: failed to initialise tracer", "error", err)
			return nil
		}
	}
	return nil
}

func initTracer(version string) error {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return err
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	mu.Lock()
	tracerProvider = tp
	tracer = otel.Tracer(serviceName)
	tracingEnabled = true
	mu.Unlock()
	return nil
}

// Shutdown flushes pending spans.
func Shutdown(ctx context.Context) error {
	mu.RLock()
	tp := tracerProvider
	mu.RUnlock()
	if tp != nil {
		return tp.Shutdown(ctx)
	}
	return nil
}

// ParseLevel converts a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// L returns the global logger.
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}

// StartSpan starts a span, or returns ctx unchanged with a no-op span when
// tracing is off.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	mu.RLock()
	t, on := tracer, tracingEnabled
	mu.RUnlock()
	if !on || t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.Start(ctx, name, opts...)
}

func traceAttrs(ctx context.Context) []any {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return nil
	}
	return []any{"trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String()}
}

func logCtx(ctx context.Context, level slog.Level, msg string, args ...any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if ta := traceAttrs(ctx); ta != nil {
		args = append(ta, args...)
	}
	L().Log(ctx, level, msg, args...)
}

// Debug logs at debug level.
func Debug(ctx context.Context, msg string, args ...any) { logCtx(ctx, slog.LevelDebug, msg, args...) }

// Info logs at info level.
func Info(ctx context.Context, msg string, args ...any) { logCtx(ctx, slog.LevelInfo, msg, args...) }

// Warn logs at warn level.
func Warn(ctx context.Context, msg string, args ...any) { logCtx(ctx, slog.LevelWarn, msg, args...) }

// Error logs at error level.
func Error(ctx context.Context, msg string, args ...any) { logCtx(ctx, slog.LevelError, msg, args...) }

// ErrorWithErr logs err and records it on the active span.
func ErrorWithErr(ctx context.Context, msg string, err error, args ...any) {
	if ctx != nil {
		span := trace.SpanFromContext(ctx)
		if span.SpanContext().IsValid() && err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	logCtx(ctx, slog.LevelError, msg, append([]any{"error", err}, args...)...)
}

// ── Operation timing ──

// OperationTimer measures one operation and closes its span.
type OperationTimer struct {
	ctx    context.Context
	span   trace.Span
	name   string
	start  time.Time
	fields []any
}

// StartOperation opens a span named operation; fields become span attributes.
func StartOperation(ctx context.Context, operation string, fields ...any) *OperationTimer {
	ctx, span := StartSpan(ctx, operation)
	span.SetAttributes(toAttributes(fields)...)
	Debug(ctx, "operation started", append([]any{"operation", operation}, fields...)...)
	return &OperationTimer{ctx: ctx, span: span, name: operation, start: time.Now(), fields: fields}
}

// Context returns the context carrying the operation span.
func (ot *OperationTimer) Context() context.Context { return ot.ctx }

// End closes the span successfully.
func (ot *OperationTimer) End(fields ...any) {
	d := time.Since(ot.start)
	ot.span.SetAttributes(attribute.Int64("duration_ms", d.Milliseconds()))
	ot.span.SetAttributes(toAttributes(fields)...)
	ot.span.SetStatus(codes.Ok, "completed")
	ot.span.End()

	args := append([]any{"operation", ot.name, "duration_ms", d.Milliseconds()}, ot.fields...)
	Debug(ot.ctx, "operation completed", append(args, fields...)...)
}

// EndWithError closes the span with an error status.
func (ot *OperationTimer) EndWithError(err error, fields ...any) {
	d := time.Since(ot.start)
	ot.span.SetAttributes(attribute.Int64("duration_ms", d.Milliseconds()))
	ot.span.SetAttributes(toAttributes(fields)...)
	if err != nil {
		ot.span.RecordError(err)
		ot.span.SetStatus(codes.Error, err.Error())
	}
	ot.span.End()

	args := append([]any{"operation", ot.name, "duration_ms", d.Milliseconds()}, ot.fields...)
	ErrorWithErr(ot.ctx, "operation failed", err, append(args, fields...)...)
}

func toAttributes(fields []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		switch v := fields[i+1].(type) {
		case string:
			attrs = append(attrs, attribute.String(key, v))
		case int:
			attrs = append(attrs, attribute.Int(key, v))
		case int64:
			attrs = append(attrs, attribute.Int64(key, v))
		case float64:
			attrs = append(attrs, attribute.Float64(key, v))
		case bool:
			attrs = append(attrs, attribute.Bool(key, v))
		}
	}
	return attrs
}
