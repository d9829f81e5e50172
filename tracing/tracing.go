package tracing

import (
	"context"
	"io"
	"net/http"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Span kinds used by the gateway. Remote calls to the classifier and the
// security endpoint open CLIENT spans; the gate execution path opens an
// INTERNAL span around the whole tool invocation.
const (
	SpanKindClient   = "CLIENT"
	SpanKindInternal = "INTERNAL"
)

var (
	setupOnce sync.Once
	setupErr  error
)

// Init installs a stdout span exporter as the global trace provider. When
// outputFile is empty spans are written to os.Stdout. Only the first call
// takes effect; later calls return the outcome of the first.
func Init(serviceName, serviceVersion, outputFile string) error {
	var sink io.Writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return err
		}
		sink = f
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(sink))
	if err != nil {
		return err
	}
	setupOnce.Do(func() {
		var res *resource.Resource
		res, setupErr = resource.New(context.Background(),
			resource.WithAttributes(
				attribute.String("service.name", serviceName),
				attribute.String("service.version", serviceVersion),
			),
		)
		if setupErr != nil {
			return
		}
		otel.SetTracerProvider(sdktrace.NewTracerProvider(
			sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
			sdktrace.WithResource(res),
		))
	})
	return setupErr
}

// Span hides the upstream trace.Span type so that the audit, gate and
// secgate packages do not import OpenTelemetry directly.
type Span struct {
	span trace.Span
}

// WithAttributes records string attributes on the span.
func (s *Span) WithAttributes(attrs map[string]string) *Span {
	if s == nil || len(attrs) == 0 {
		return s
	}
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kvs = append(kvs, attribute.String(k, v))
	}
	s.span.SetAttributes(kvs...)
	return s
}

// SetStatus marks the span failed when err is non nil, otherwise OK.
func (s *Span) SetStatus(err error) {
	if s == nil {
		return
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
		return
	}
	s.span.SetStatus(codes.Ok, "")
}

// SetStatusFromHTTPCode derives the span status from an upstream HTTP
// response code. The classifier and security clients call this before
// decoding the body.
func (s *Span) SetStatusFromHTTPCode(code int) {
	if s == nil {
		return
	}
	switch {
	case code >= 100 && code < 400:
		s.span.SetStatus(codes.Ok, "")
	case code >= 400:
		s.span.SetStatus(codes.Error, http.StatusText(code))
	default:
		s.span.SetStatus(codes.Unset, "")
	}
}

// StartSpan opens a child span of whatever span lives in ctx.
func StartSpan(ctx context.Context, name, kind string) (context.Context, *Span) {
	otelKind := trace.SpanKindInternal
	if kind == SpanKindClient {
		otelKind = trace.SpanKindClient
	}
	ctx, span := otel.Tracer("gatekit").Start(ctx, name, trace.WithSpanKind(otelKind))
	return ctx, &Span{span: span}
}

// EndSpan records the final status and closes the span.
func EndSpan(sp *Span, err error) {
	if sp == nil {
		return
	}
	sp.SetStatus(err)
	sp.span.End()
}

// SpanFromContext returns the span recorded in ctx, if any.
func SpanFromContext(ctx context.Context) (*Span, bool) {
	sp := trace.SpanFromContext(ctx)
	if sp == nil {
		return nil, false
	}
	return &Span{span: sp}, true
}
