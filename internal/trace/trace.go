package trace

import (
	"context"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const ServiceName = "bhavcopy-ingest"

// Options controls where spans go. A nil Output writes to stdout.
type Options struct {
	Enabled bool
	Output  io.Writer
	Version string
	Pretty  bool
}

type state struct {
	mu       sync.RWMutex
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

var current state

// Init installs the span exporter described by opts. Disabled options leave spans as no-ops.
func Init(opts Options) error {
	if !opts.Enabled {
		current.set(nil)
		return nil
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	exporterOpts := []stdouttrace.Option{stdouttrace.WithWriter(out)}
	if opts.Pretty {
		exporterOpts = append(exporterOpts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(exporterOpts...)
	if err != nil {
		current.set(nil)
		return err
	}

	version := opts.Version
	if version == "" {
		version = "dev"
	}
	res := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(version),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	current.set(tp)
	return nil
}

func (s *state) set(tp *sdktrace.TracerProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provider = tp
	s.tracer = nil
	if tp != nil {
		s.tracer = tp.Tracer(ServiceName)
	}
}

func (s *state) get() (trace.Tracer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracer, s.tracer != nil
}

// Shutdown flushes pending spans and disables tracing.
func Shutdown(ctx context.Context) error {
	current.mu.Lock()
	tp := current.provider
	current.provider, current.tracer = nil, nil
	current.mu.Unlock()

	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// StartSpan opens a child span, or returns the span already in ctx when tracing is off.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	tracer, ok := current.get()
	if !ok {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// Fail marks span as failed with err.
func Fail(span trace.Span, err error) {
	if err == nil || !Enabled() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func Attrs(span trace.Span, kv ...attribute.KeyValue) {
	if Enabled() {
		span.SetAttributes(kv...)
	}
}

func Enabled() bool {
	_, ok := current.get()
	return ok
}

// GetTraceFields returns the hex ids of the span in ctx.
func GetTraceFields(ctx context.Context) (traceID, spanID string, ok bool) {
	if !Enabled() {
		return "", "", false
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", "", false
	}
	return sc.TraceID().String(), sc.SpanID().String(), true
}
