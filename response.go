package odoorpc

import (
	"encoding/json"
	"fmt"
	"io"
)

// Response encapsulates a JSON-RPC response envelope.
//
// The envelope is preserved as received, so callers that inspect "id" or
// "jsonrpc" see exactly what the server sent. Invocations only ever return a
// Response whose Result is populated; an envelope carrying "error" surfaces
// as an *Error instead.
type Response struct {
	// Version is the JSON-RPC version.
	//
	// As per the JSON-RPC specification it MUST be exactly "2.0".
	Version string `json:"jsonrpc"`

	// ID is the ID of the request that produced this response, verbatim.
	ID json.RawMessage `json:"id"`

	// Result is the raw result value.
	//
	// It is left as raw JSON so that callers can defer (or skip) decoding of
	// large payloads; use UnmarshalResult() to decode it. Note that a JSON
	// null result is a present result, represented as the text "null".
	Result json.RawMessage `json:"result,omitempty"`

	// Error describes the fault reported by the server, if any.
	Error *ErrorInfo `json:"error,omitempty"`
}

// UnmarshalResult is a convenience method for unmarshaling the result value
// into a Go value.
//
// Unknown fields are disallowed unless the AllowUnknownFields() option is
// provided.
func (r *Response) UnmarshalResult(v interface{}, options ...UnmarshalOption) error {
	if r.Result == nil {
		return fmt.Errorf("response does not contain a result")
	}

	if err := unmarshalJSON(r.Result, v, options...); err != nil {
		return fmt.Errorf("unable to unmarshal result: %w", err)
	}

	return nil
}

// ErrorInfo describes a fault as it appears on the wire, inside the "error"
// member of a response envelope. It is not a Go error; see Error.
type ErrorInfo struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e ErrorInfo) String() string {
	var name string
	if e.Data != nil {
		var data ErrorData
		if err := json.Unmarshal(e.Data, &data); err == nil {
			name = data.Name
		}
	}

	return describeError(e.Code, e.Message, name)
}

// UnmarshalResponse unmarshals a single JSON-RPC response envelope from r.
//
// If the content is not valid JSON, or the envelope contains neither or both
// of "result" and "error", it returns a *ProtocolError. Unknown envelope
// fields are tolerated.
func UnmarshalResponse(r io.Reader) (Response, error) {
	var res Response

	if err := decodeJSON(r, &res, AllowUnknownFields(true)); err != nil {
		return Response{}, newProtocolError(
			"unable to parse JSON-RPC response",
			err,
		)
	}

	if res.Result != nil && res.Error != nil {
		return Response{}, newProtocolError(
			"the JSON-RPC response contains both a result and an error",
			nil,
		)
	}

	if res.Result == nil && res.Error == nil {
		return Response{}, newProtocolError(
			"the JSON-RPC response contains neither a result nor an error",
			nil,
		)
	}

	return res, nil
}
