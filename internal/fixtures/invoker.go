package fixtures

import (
	"context"

	"github.com/averat/odoorpc"
)

// InvokerStub is a test implementation of the Invoker interface.
type InvokerStub struct {
	InvokeFunc func(context.Context, string, odoorpc.Request) (*odoorpc.Response, error)
}

// Invoke sends a call request to an endpoint path and returns its response.
func (s *InvokerStub) Invoke(ctx context.Context, path string, req odoorpc.Request) (*odoorpc.Response, error) {
	if s.InvokeFunc != nil {
		return s.InvokeFunc(ctx, path, req)
	}

	return &odoorpc.Response{}, nil
}

// CallLoggerStub is a test implementation of the CallLogger interface.
type CallLoggerStub struct {
	LogCallFunc        func(context.Context, string, odoorpc.Request, *odoorpc.Response)
	LogCallErrorFunc   func(context.Context, string, odoorpc.Request, error)
	LogHTTPRequestFunc func(context.Context, string, string, int, error)
}

// LogCall logs about a JSON-RPC call that produced a result.
func (s *CallLoggerStub) LogCall(ctx context.Context, path string, req odoorpc.Request, res *odoorpc.Response) {
	if s.LogCallFunc != nil {
		s.LogCallFunc(ctx, path, req, res)
	}
}

// LogCallError logs about a JSON-RPC call that failed.
func (s *CallLoggerStub) LogCallError(ctx context.Context, path string, req odoorpc.Request, err error) {
	if s.LogCallErrorFunc != nil {
		s.LogCallErrorFunc(ctx, path, req, err)
	}
}

// LogHTTPRequest logs about a request made through the plain HTTP proxy.
func (s *CallLoggerStub) LogHTTPRequest(ctx context.Context, method, path string, statusCode int, err error) {
	if s.LogHTTPRequestFunc != nil {
		s.LogHTTPRequestFunc(ctx, method, path, statusCode, err)
	}
}
