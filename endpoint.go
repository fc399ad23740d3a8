package odoorpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Endpoint addresses a not-yet-resolved path on the server's JSON-RPC
// surface.
//
// Paths are built fluently; each accessor returns a new Endpoint bound to the
// accumulated path, leaving the receiver unchanged:
//
//	res, err := conn.JSON().
//		Segment("web").
//		Segment("dataset").
//		Segment("call").
//		Invoke(ctx, params)
//
// The same endpoint can be addressed with a single slash-delimited path:
//
//	res, err := conn.JSON().At("/web/dataset/call").Invoke(ctx, params)
type Endpoint struct {
	conn *Connector
	path string
}

// Segment returns a new Endpoint bound to the accumulated path plus one more
// segment.
//
// name must be a single path segment; it panics if name is empty or contains
// a slash. Use At() to append a slash-delimited path.
func (e Endpoint) Segment(name string) Endpoint {
	if name == "" || strings.Contains(name, "/") {
		panic(fmt.Sprintf(
			"invalid endpoint segment (%q): segments must be non-empty and must not contain slashes",
			name,
		))
	}

	return Endpoint{
		conn: e.conn,
		path: joinPath(e.path, name),
	}
}

// At returns a new Endpoint bound to the accumulated path plus a
// slash-delimited path.
//
// Leading and trailing slashes are ignored, so At("/web/dataset/call") on the
// root endpoint addresses the same endpoint as chaining the "web", "dataset"
// and "call" segments.
func (e Endpoint) At(path string) Endpoint {
	path = strings.Trim(path, "/")
	if path == "" {
		return e
	}

	return Endpoint{
		conn: e.conn,
		path: joinPath(e.path, path),
	}
}

// Path returns the accumulated path, without a leading slash.
//
// The root endpoint's path is empty.
func (e Endpoint) Path() string {
	return e.path
}

// Invoke sends a JSON-RPC call to the endpoint and returns the parsed
// response envelope.
//
// params must marshal to a JSON object (or be nil); Invoke panics otherwise,
// as that is a bug in the caller. A fault reported by the server is returned
// as an *Error, a malformed response as a *ProtocolError, and a transport
// failure as a *ConnectionError.
func (e Endpoint) Invoke(ctx context.Context, params interface{}) (*Response, error) {
	return e.conn.invoker.Invoke(ctx, e.path, e.newCallRequest(params))
}

// InvokeRaw sends a JSON-RPC call to the endpoint and returns the raw,
// unparsed response body.
//
// No JSON handling is performed at all: a fault envelope is returned verbatim
// rather than surfacing as an *Error. It is intended for deferring the
// decoding of large payloads, and for debugging.
func (e Endpoint) InvokeRaw(ctx context.Context, params interface{}) (json.RawMessage, error) {
	return e.conn.invokeRaw(ctx, e.path, e.newCallRequest(params))
}

// newCallRequest builds the request for an invocation of this endpoint.
func (e Endpoint) newCallRequest(params interface{}) Request {
	req, err := NewCallRequest(params)
	if err != nil {
		panic(fmt.Sprintf(
			"unable to invoke JSON-RPC endpoint (/%s): %s",
			e.path,
			err,
		))
	}

	return req
}

// joinPath appends a segment (or slash-delimited sub-path) to a path.
func joinPath(path, segment string) string {
	if path == "" {
		return segment
	}

	return path + "/" + segment
}
