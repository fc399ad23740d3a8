package odoorpc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CallLogger is an interface for logging the requests made through a
// Connector's proxies.
type CallLogger interface {
	// LogCall logs about a JSON-RPC call that produced a result.
	LogCall(ctx context.Context, path string, req Request, res *Response)

	// LogCallError logs about a JSON-RPC call that failed, whether due to a
	// remote fault or a problem communicating with the server.
	LogCallError(ctx context.Context, path string, req Request, err error)

	// LogHTTPRequest logs about a request made through the plain HTTP proxy
	// or a raw JSON-RPC invocation. statusCode is zero if no response was
	// received.
	LogHTTPRequest(ctx context.Context, method, path string, statusCode int, err error)
}

// ZapCallLogger is an implementation of CallLogger using zap.Logger.
type ZapCallLogger struct {
	// Target is the destination for log messages.
	Target *zap.Logger
}

var _ CallLogger = (*ZapCallLogger)(nil)

// LogCall logs information about a JSON-RPC call and its result.
func (l ZapCallLogger) LogCall(ctx context.Context, path string, req Request, res *Response) {
	var w strings.Builder

	w.WriteString("call ")
	writePath(&w, path)

	fields := []zap.Field{
		zap.Int("param_size", len(req.Parameters)),
		zap.Int("result_size", len(res.Result)),
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		fields = append(fields, zap.String("trace_id", span.SpanContext().TraceID().String()))
	}

	l.Target.Info(
		w.String(),
		fields...,
	)
}

// LogCallError logs information about a JSON-RPC call that failed.
func (l ZapCallLogger) LogCallError(ctx context.Context, path string, req Request, err error) {
	var w strings.Builder

	w.WriteString("call ")
	writePath(&w, path)

	fields := []zap.Field{
		zap.Int("param_size", len(req.Parameters)),
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		fields = append(fields, zap.String("trace_id", span.SpanContext().TraceID().String()))
	}

	var rerr *Error
	if errors.As(err, &rerr) {
		fields = append(
			fields,
			zap.Int("error_code", rerr.Code()),
			zap.String("error", rerr.Message()),
		)

		if name := rerr.RemoteName(); name != "" {
			fields = append(fields, zap.String("remote_exception", name))
		}
	} else {
		fields = append(fields, zap.String("error", err.Error()))

		if cause := errors.Unwrap(err); cause != nil {
			fields = append(fields, zap.String("caused_by", cause.Error()))
		}
	}

	l.Target.Error(
		w.String(),
		fields...,
	)
}

// LogHTTPRequest logs information about a request made through the plain
// HTTP proxy or a raw JSON-RPC invocation.
func (l ZapCallLogger) LogHTTPRequest(ctx context.Context, method, path string, statusCode int, err error) {
	var w strings.Builder

	w.WriteString(method)
	w.WriteByte(' ')
	writePath(&w, path)

	var fields []zap.Field

	if statusCode != 0 {
		fields = append(fields, zap.Int("http_status", statusCode))
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		fields = append(fields, zap.String("trace_id", span.SpanContext().TraceID().String()))
	}

	if err != nil {
		fields = append(fields, zap.String("error", err.Error()))

		l.Target.Error(
			w.String(),
			fields...,
		)

		return
	}

	l.Target.Info(
		w.String(),
		fields...,
	)
}

// writePath formats a server path for display and writes it to w.
func writePath(w *strings.Builder, p string) {
	if p == "" || !isPath(p) {
		fmt.Fprintf(w, "%#v", p)
	} else {
		w.WriteString("/")
		w.WriteString(p)
	}
}

// isPath returns true if s consists of only letters, digits and the
// punctuation that commonly appears in server paths.
func isPath(s string) bool {
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
		case unicode.IsNumber(r):
		case r == '/', r == '.', r == '_', r == '-':
		default:
			return false
		}
	}

	return true
}
