package otelodoo

import (
	"github.com/averat/odoorpc"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
)

// commonAttributes returns the OpenTelemetry attributes that are recorded on
// every span and meter.
func commonAttributes(serviceName string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.RPCSystemKey.String("averat/odoorpc"),
	}

	if serviceName != "" {
		attrs = append(
			attrs,
			semconv.RPCServiceKey.String(serviceName),
		)
	}

	return attrs
}

// requestAttributes returns the OpenTelemetry attributes that describe a
// single JSON-RPC call.
//
// The endpoint path plays the role of the RPC method name; it is recorded
// unsanitized so that the real path is always visible.
func requestAttributes(path string, req odoorpc.Request) []attribute.KeyValue {
	return []attribute.KeyValue{
		semconv.RPCMethodKey.String(path),
		semconv.RPCJsonrpcVersionKey.String(req.Version),
	}
}

// faultAttributes returns the OpenTelemetry attributes that describe a fault
// reported by the server.
func faultAttributes(err *odoorpc.Error) []attribute.KeyValue {
	return []attribute.KeyValue{
		semconv.RPCJsonrpcErrorCodeKey.Int(err.Code()),
		semconv.RPCJsonrpcErrorMessageKey.String(err.Message()),
	}
}
