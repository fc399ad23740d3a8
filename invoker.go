package odoorpc

import "context"

// Invoker performs a JSON-RPC call against a path on the server.
//
// It is the seam through which every Endpoint invocation flows, allowing
// middleware such as tracing or metrics to observe each call.
type Invoker interface {
	// Invoke sends req to path and returns the parsed response envelope.
	//
	// On success the returned response always carries a result; a fault
	// reported by the server is returned as an *Error, a malformed response
	// as a *ProtocolError, and a transport failure as a *ConnectionError.
	Invoke(ctx context.Context, path string, req Request) (*Response, error)
}

// InvokerFunc is an adaptor that allows an ordinary function to be used as an
// Invoker.
type InvokerFunc func(ctx context.Context, path string, req Request) (*Response, error)

// Invoke calls f(ctx, path, req).
func (f InvokerFunc) Invoke(ctx context.Context, path string, req Request) (*Response, error) {
	return f(ctx, path, req)
}

// Middleware wraps an Invoker to observe or augment each call.
type Middleware func(next Invoker) Invoker
