package odoorpc

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Error is a Go error that describes a fault reported by the remote server in
// a JSON-RPC error response.
//
// It carries the server's message, the numeric code from the envelope, and
// the optional "data" object in which Odoo places the remote exception class
// name, arguments and traceback.
type Error struct {
	code    int
	message string
	cause   error

	m         sync.Mutex
	dataValue interface{}
	dataJSON  json.RawMessage
}

// newError returns a new Error with the given code.
//
// The options are applied in order.
func newError(code int, options []ErrorOption) *Error {
	e := &Error{
		code: code,
	}

	for _, opt := range options {
		opt(e)
	}

	return e
}

// NewError returns a new Error describing a remote fault.
//
// It is primarily useful for constructing faults in tests and fakes; faults
// produced by a real server are built from the response envelope.
func NewError(code int, options ...ErrorOption) *Error {
	return newError(code, options)
}

// newRemoteError returns an Error built from the "error" member of a response
// envelope.
func newRemoteError(info ErrorInfo) *Error {
	return &Error{
		code:     info.Code,
		message:  info.Message,
		dataJSON: info.Data,
	}
}

// Code returns the numeric error code from the response envelope.
//
// Odoo reports most faults with a code of 200; the interesting information is
// usually in Message() and RemoteName().
func (e *Error) Code() int {
	return e.code
}

// Message returns the error message reported by the server.
func (e *Error) Message() string {
	return e.message
}

// RemoteName returns the class name of the server-side exception that caused
// this fault, such as "odoo.exceptions.AccessDenied".
//
// It returns an empty string if the server did not provide one. Callers are
// expected to branch on this name to distinguish categories of server-side
// failure.
func (e *Error) RemoteName() string {
	data, ok := e.Data()
	if !ok {
		return ""
	}

	return data.Name
}

// Debug returns the server-side traceback associated with this fault, if the
// server provided one.
func (e *Error) Debug() string {
	data, ok := e.Data()
	if !ok {
		return ""
	}

	return data.Debug
}

// Data returns the structured view of the user-defined data associated with
// the error.
//
// ok is false if there is no data, or if it is not a JSON object.
func (e *Error) Data() (_ ErrorData, ok bool) {
	data, ok, err := e.MarshalData()
	if !ok || err != nil {
		return ErrorData{}, false
	}

	var d ErrorData
	if err := json.Unmarshal(data, &d); err != nil {
		return ErrorData{}, false
	}

	return d, true
}

// MarshalData returns the JSON representation of the data value associated
// with the error.
//
// ok is false if there is no data associated with the error.
func (e *Error) MarshalData() (_ json.RawMessage, ok bool, _ error) {
	e.m.Lock()
	defer e.m.Unlock()

	if e.dataJSON == nil {
		if e.dataValue == nil {
			return nil, false, nil
		}

		d, err := json.Marshal(e.dataValue)
		if err != nil {
			return nil, false, err
		}

		e.dataJSON = d
	}

	return e.dataJSON, true, nil
}

// UnmarshalData unmarshals the data associated with the error into v.
//
// ok is false if there is no data associated with the error.
func (e *Error) UnmarshalData(v interface{}) (ok bool, _ error) {
	data, ok, err := e.MarshalData()
	if !ok || err != nil {
		return false, err
	}

	return true, json.Unmarshal(data, v)
}

// Error returns the error message.
func (e *Error) Error() string {
	return describeError(e.code, e.message, e.RemoteName())
}

// Unwrap returns the cause of e, if known.
func (e *Error) Unwrap() error {
	return e.cause
}

// ErrorOption is an option that provides further information about an error.
type ErrorOption func(*Error)

// WithCause is an ErrorOption that associates a causal error with a remote
// fault.
//
// c is wrapped by the resulting error, such that it can be used with
// errors.Is() and errors.As().
//
// If the error does not already have a message, c.Error() is used as the
// message.
func WithCause(c error) ErrorOption {
	return func(e *Error) {
		e.cause = c

		if e.message == "" {
			// If there is no error message already provided, use this error as
			// the message.
			e.message = c.Error()
		}
	}
}

// WithMessage is an ErrorOption that provides a message for a remote fault.
func WithMessage(format string, values ...interface{}) ErrorOption {
	return func(e *Error) {
		e.message = fmt.Sprintf(format, values...)
	}
}

// WithData is an ErrorOption that associates additional data with an error,
// mirroring the "data" member of an error response envelope.
func WithData(data interface{}) ErrorOption {
	return func(e *Error) {
		e.dataValue = data
	}
}

// ErrorData is the structured fault information that Odoo places in the
// "data" member of an error response.
//
// Any fields the server does not provide are left at their zero value.
type ErrorData struct {
	// Name is the class name of the server-side exception, such as
	// "odoo.exceptions.AccessDenied".
	Name string `json:"name,omitempty"`

	// Message is the server-side exception message. It often repeats the
	// envelope-level message.
	Message string `json:"message,omitempty"`

	// Debug is the server-side traceback.
	Debug string `json:"debug,omitempty"`

	// Arguments are the positional arguments the exception was raised with.
	Arguments []interface{} `json:"arguments,omitempty"`

	// ExceptionType is a coarse classification of the exception provided by
	// newer server versions, such as "access_denied" or "validation_error".
	ExceptionType string `json:"exception_type,omitempty"`
}

// describeError returns a short string containing the most useful information
// from a remote fault.
func describeError(code int, message, remoteName string) string {
	if message == "" {
		message = "unknown error"
	}

	if remoteName != "" {
		return fmt.Sprintf("[%d] %s: %s", code, remoteName, message)
	}

	return fmt.Sprintf("[%d] %s", code, message)
}

// ConfigError indicates that a Connector could not be constructed because its
// configuration is invalid.
//
// It is always detected before any network activity occurs.
type ConfigError struct {
	message string
}

// newConfigError returns a new ConfigError with a formatted message.
func newConfigError(format string, values ...interface{}) *ConfigError {
	return &ConfigError{
		message: fmt.Sprintf(format, values...),
	}
}

// Error returns the error message.
func (e *ConfigError) Error() string {
	return e.message
}

// ConnectionError indicates that a request could not be delivered to the
// server, or that its response could not be read back.
//
// It wraps the underlying transport failure, such as a DNS, dial, TLS or
// timeout error.
type ConnectionError struct {
	cause error
}

// Error returns the error message.
func (e *ConnectionError) Error() string {
	return "unable to communicate with the server: " + e.cause.Error()
}

// Unwrap returns the underlying transport failure.
func (e *ConnectionError) Unwrap() error {
	return e.cause
}

// ProtocolError indicates that the server responded in a way that violates
// the JSON-RPC protocol, such as a body that is not JSON, or an envelope that
// contains neither or both of "result" and "error".
//
// It is distinct from Error, which describes a well-formed fault reported by
// the server.
type ProtocolError struct {
	message string
	cause   error
}

// newProtocolError returns a new ProtocolError with the given message and
// optional cause.
func newProtocolError(message string, cause error) *ProtocolError {
	return &ProtocolError{
		message: message,
		cause:   cause,
	}
}

// Error returns the error message.
func (e *ProtocolError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}

	return e.message
}

// Unwrap returns the cause of e, if known.
func (e *ProtocolError) Unwrap() error {
	return e.cause
}
