package otelodoo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/averat/odoorpc"
	"github.com/averat/odoorpc/internal/version"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics is an implementation of odoorpc.Invoker that provides OpenTelemetry
// metrics for each JSON-RPC call.
type Metrics struct {
	// Next is the next invoker in the middleware stack.
	Next odoorpc.Invoker

	// MeterProvider is the OpenTelemetry MeterProvider used to create meters.
	MeterProvider metric.MeterProvider

	// ServiceName is an application specific service name to use in the
	// metric attributes.
	//
	// It may be prefixed with a dot-separated "package name", for example
	// "myapp.staging.Odoo".
	//
	// It may be empty, in which case it is omitted from the metrics.
	ServiceName string

	once       sync.Once
	calls      metric.Int64Counter
	errors     metric.Int64Counter
	duration   metric.Int64Histogram
	attributes []attribute.KeyValue
}

var _ odoorpc.Invoker = (*Metrics)(nil)

// Invoke sends a call request to an endpoint path and returns its response.
func (m *Metrics) Invoke(ctx context.Context, path string, req odoorpc.Request) (*odoorpc.Response, error) {
	m.init()

	attrs := requestAttributes(path, req)
	attrs = append(attrs, m.attributes...)
	attrOption := metric.WithAttributes(attrs...)

	m.calls.Add(ctx, 1, attrOption)

	start := time.Now()
	res, err := m.Next.Invoke(ctx, path, req)
	elapsed := time.Since(start)

	m.duration.Record(ctx, durationToMillis(elapsed), attrOption)

	if err != nil {
		var rerr *odoorpc.Error
		if errors.As(err, &rerr) {
			attrs = append(attrs, faultAttributes(rerr)...)
			m.errors.Add(ctx, 1, metric.WithAttributes(attrs...))
		} else {
			m.errors.Add(ctx, 1, attrOption)
		}
	}

	return res, err
}

// init initializes the meter if it has not already been initialized.
func (m *Metrics) init() {
	m.once.Do(func() {
		meter := m.MeterProvider.Meter(
			"github.com/averat/odoorpc/middleware/otelodoo",
			metric.WithInstrumentationVersion(version.Version),
		)

		var err error

		m.calls, err = meter.Int64Counter(
			"rpc.client.calls",
			metric.WithDescription("The number of JSON-RPC calls that have been made."),
			metric.WithUnit("1"),
		)
		if err != nil {
			panic(err)
		}

		m.errors, err = meter.Int64Counter(
			"rpc.client.errors",
			metric.WithDescription("The number of JSON-RPC calls that result in an error."),
			metric.WithUnit("1"),
		)
		if err != nil {
			panic(err)
		}

		m.duration, err = meter.Int64Histogram(
			"rpc.client.duration",
			metric.WithDescription("The amount of time it takes the server to respond to JSON-RPC calls."),
			metric.WithUnit("ms"),
		)
		if err != nil {
			panic(err)
		}

		m.attributes = commonAttributes(m.ServiceName)
	})
}

// durationToMillis converts a duration to milliseconds.
func durationToMillis(d time.Duration) int64 {
	return int64(d / time.Millisecond)
}
