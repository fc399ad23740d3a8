package odoorpc

import (
	"crypto/tls"
	"net/http"
	"time"
)

// connectorOptions is the resolved set of optional connection parameters.
type connectorOptions struct {
	port         int
	timeout      time.Duration
	version      string
	tlsConfig    *tls.Config
	logger       CallLogger
	middleware   []Middleware
	roundTripper http.RoundTripper
}

// Option is a function that changes one of a Connector's optional connection
// parameters.
type Option func(*connectorOptions)

// WithPort returns an Option that sets the TCP port of the server.
//
// The default is DefaultPort.
func WithPort(port int) Option {
	return func(o *connectorOptions) {
		o.port = port
	}
}

// WithTimeout returns an Option that sets the timeout applied to each
// request.
//
// A zero duration disables the timeout. The default is DefaultTimeout. The
// timeout can be changed after construction with Connector.SetTimeout().
func WithTimeout(d time.Duration) Option {
	return func(o *connectorOptions) {
		o.timeout = d
	}
}

// WithVersion returns an Option that supplies the server's version, such as
// "16.0".
//
// A connector with a supplied version never probes the server for it; see
// Connector.ServerVersion().
func WithVersion(v string) Option {
	return func(o *connectorOptions) {
		o.version = v
	}
}

// WithTLSConfig returns an Option that sets the TLS configuration used when
// dialing the server.
//
// It may only be used with NewTLSConnector(), and cannot be combined with
// WithHTTPTransport().
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *connectorOptions) {
		o.tlsConfig = cfg
	}
}

// WithCallLogger returns an Option that sets the logger notified of each
// call made through either proxy.
//
// The default logger discards everything.
func WithCallLogger(l CallLogger) Option {
	return func(o *connectorOptions) {
		o.logger = l
	}
}

// WithMiddleware returns an Option that wraps the connector's invoker in
// middleware.
//
// Calls flow through the middleware in the order given, so the first
// middleware listed is the outermost. Middleware observes calls made via
// Endpoint.Invoke(); it does not observe raw invocations or requests made
// through the plain HTTP proxy.
func WithMiddleware(middleware ...Middleware) Option {
	return func(o *connectorOptions) {
		o.middleware = append(o.middleware, middleware...)
	}
}

// WithHTTPTransport returns an Option that sets the http.RoundTripper used
// for every request.
//
// The default is a clone of http.DefaultTransport. WithHTTPTransport is
// intended for tests and for environments with bespoke dialing requirements.
// It cannot be combined with WithTLSConfig(); TLS settings for a custom
// round-tripper belong on the round-tripper itself.
func WithHTTPTransport(rt http.RoundTripper) Option {
	return func(o *connectorOptions) {
		o.roundTripper = rt
	}
}
