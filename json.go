package odoorpc

import (
	"bytes"
	"encoding/json"
	"io"
)

// UnmarshalOption is an option that changes the behavior of JSON unmarshaling.
type UnmarshalOption func(*unmarshalOptions)

// AllowUnknownFields is an UnmarshalOption that controls whether results and
// error data may contain unknown fields.
//
// Unknown fields are disallowed by default.
func AllowUnknownFields(allow bool) UnmarshalOption {
	return func(opts *unmarshalOptions) {
		opts.allowUnknownFields = allow
	}
}

// unmarshalOptions is the configuration accumulated from a set of
// UnmarshalOptions.
type unmarshalOptions struct {
	allowUnknownFields bool
}

// decodeJSON unmarshals JSON content from r into v.
func decodeJSON(r io.Reader, v interface{}, options ...UnmarshalOption) error {
	var opts unmarshalOptions
	for _, fn := range options {
		fn(&opts)
	}

	dec := json.NewDecoder(r)
	if !opts.allowUnknownFields {
		dec.DisallowUnknownFields()
	}

	return dec.Decode(&v)
}

// unmarshalJSON unmarshals JSON content from data into v.
func unmarshalJSON(data []byte, v interface{}, options ...UnmarshalOption) error {
	return decodeJSON(
		bytes.NewReader(data),
		v,
		options...,
	)
}
