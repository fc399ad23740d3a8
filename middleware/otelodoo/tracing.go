// Package otelodoo provides OpenTelemetry instrumentation for the connector's
// JSON-RPC calls.
package otelodoo

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/averat/odoorpc"
	"github.com/averat/odoorpc/internal/version"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracing is an implementation of odoorpc.Invoker that provides OpenTelemetry
// tracing for each JSON-RPC call.
//
// It adheres to the OpenTelemetry RPC semantic conventions as specified in
// https://github.com/open-telemetry/opentelemetry-specification/blob/main/specification/trace/semantic_conventions/rpc.md.
type Tracing struct {
	// Next is the next invoker in the middleware stack.
	Next odoorpc.Invoker

	// TracerProvider is the OpenTelemetry TracerProvider to use for creating
	// spans.
	TracerProvider trace.TracerProvider

	// ServiceName is an application specific service name to use in the span
	// name and attributes.
	//
	// It may be prefixed with a dot-separated "package name", for example
	// "myapp.staging.Odoo".
	//
	// It may be empty, in which case it is omitted from the span.
	ServiceName string

	once           sync.Once
	tracer         trace.Tracer
	spanNamePrefix string
	attributes     []attribute.KeyValue
}

var _ odoorpc.Invoker = (*Tracing)(nil)

// Invoke sends a call request to an endpoint path and returns its response.
//
// A new client span is created for each call, parented by the span in ctx, if
// any.
func (t *Tracing) Invoke(ctx context.Context, path string, req odoorpc.Request) (*odoorpc.Response, error) {
	t.init()

	ctx, span := t.tracer.Start(
		ctx,
		t.spanNamePrefix+sanitizeEndpointPath(path),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	span.SetAttributes(t.attributes...)
	span.SetAttributes(requestAttributes(path, req)...)
	span.SetAttributes(
		semconv.RPCJsonrpcRequestIDKey.String(sanitizeRequestID(req)),
	)

	res, err := t.Next.Invoke(ctx, path, req)

	if err != nil {
		var rerr *odoorpc.Error
		if errors.As(err, &rerr) {
			span.SetAttributes(faultAttributes(rerr)...)
			span.SetStatus(codes.Error, rerr.Message())
		} else {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		}

		return nil, err
	}

	span.SetStatus(codes.Ok, "")

	return res, nil
}

// init initializes the tracer if it has not already been initialized.
func (t *Tracing) init() {
	t.once.Do(func() {
		t.tracer = t.TracerProvider.Tracer(
			"github.com/averat/odoorpc/middleware/otelodoo",
			trace.WithInstrumentationVersion(version.Version),
		)

		t.attributes = commonAttributes(t.ServiceName)

		if t.ServiceName != "" {
			t.spanNamePrefix = t.ServiceName + "/"
		}
	})
}

// sanitizeRequestID returns a request ID suitable for use as a span attribute.
//
// As per semconv.RPCJsonrpcRequestIDKey it returns an empty string if the
// request ID is null.
func sanitizeRequestID(req odoorpc.Request) string {
	requestID := string(req.ID)

	if strings.EqualFold(requestID, "null") {
		return ""
	}

	return strings.Trim(requestID, `"`)
}

// sanitizeEndpointPath returns an endpoint path suitable for use as part of a
// span name.
func sanitizeEndpointPath(p string) string {
	return strings.ReplaceAll(p, "/", "-")
}
