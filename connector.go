// Package odoorpc is a client-side connector for servers that expose Odoo's
// JSON-RPC interface over HTTP.
//
// A Connector owns a single cookie-aware HTTP transport and exposes two
// proxies bound to it: a JSON endpoint proxy for JSON-RPC calls, and a plain
// HTTP proxy for endpoints that speak raw HTTP (binary downloads, report
// exports). Because both proxies share one transport, a session established
// through either channel is honored by the other.
package odoorpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultPort is the port used when none is configured. It is the
	// conventional port of an Odoo HTTP listener.
	DefaultPort = 8069

	// DefaultTimeout is the request timeout used when none is configured.
	DefaultTimeout = 120 * time.Second
)

// versionInfoPath is the well-known endpoint used to discover the server's
// version.
const versionInfoPath = "web/webclient/version_info"

// Connector is the entry point for communicating with a server.
//
// It validates and stores the connection parameters, owns the shared
// transport, and exposes the JSON endpoint proxy and the plain HTTP proxy. A
// Connector is safe for concurrent use.
type Connector struct {
	host      string
	port      int
	transport *transport
	logger    CallLogger
	invoker   Invoker
	httpProxy *HTTPProxy

	versionM     sync.RWMutex
	version      string
	versionKnown bool
	versionGroup singleflight.Group
}

// NewConnector returns a Connector that communicates with the server over
// plain HTTP.
func NewConnector(host string, options ...Option) (*Connector, error) {
	return newConnector("http", host, options)
}

// NewTLSConnector returns a Connector that communicates with the server over
// HTTPS.
//
// It differs from NewConnector() only in the URL scheme used for every
// request; the scheme is fixed for the lifetime of the Connector.
func NewTLSConnector(host string, options ...Option) (*Connector, error) {
	return newConnector("https", host, options)
}

func newConnector(scheme, host string, options []Option) (*Connector, error) {
	opts := connectorOptions{
		port:    DefaultPort,
		timeout: DefaultTimeout,
	}

	for _, opt := range options {
		opt(&opts)
	}

	if host == "" {
		return nil, newConfigError("the host must not be empty")
	}

	if opts.port < 0 || opts.port > 65535 {
		return nil, newConfigError(
			"the port '%d' is invalid: an integer between 0 and 65535 is required",
			opts.port,
		)
	}

	if opts.timeout < 0 {
		return nil, newConfigError("the timeout must not be negative")
	}

	if opts.tlsConfig != nil && scheme != "https" {
		return nil, newConfigError("a TLS configuration requires a TLS connector")
	}

	if opts.tlsConfig != nil && opts.roundTripper != nil {
		return nil, newConfigError("a TLS configuration cannot be combined with a custom HTTP transport")
	}

	logger := opts.logger
	if logger == nil {
		logger = ZapCallLogger{Target: zap.NewNop()}
	}

	c := &Connector{
		host: host,
		port: opts.port,
		transport: newTransport(
			scheme,
			host,
			opts.port,
			opts.roundTripper,
			opts.tlsConfig,
			opts.timeout,
		),
		logger: logger,
	}

	if opts.version != "" {
		c.version = opts.version
		c.versionKnown = true
	}

	var inv Invoker = &coreInvoker{
		transport: c.transport,
		logger:    logger,
	}
	for i := len(opts.middleware) - 1; i >= 0; i-- {
		inv = opts.middleware[i](inv)
	}
	c.invoker = inv

	c.httpProxy = &HTTPProxy{
		transport: c.transport,
		logger:    logger,
	}

	return c, nil
}

// Host returns the configured host.
func (c *Connector) Host() string {
	return c.host
}

// Port returns the configured port.
func (c *Connector) Port() int {
	return c.port
}

// JSON returns the root JSON endpoint proxy.
func (c *Connector) JSON() Endpoint {
	return Endpoint{conn: c}
}

// HTTP returns the plain HTTP proxy.
func (c *Connector) HTTP() *HTTPProxy {
	return c.httpProxy
}

// Timeout returns the timeout applied to each request from both proxies.
func (c *Connector) Timeout() time.Duration {
	return c.transport.Timeout()
}

// SetTimeout changes the timeout applied to each subsequent request.
//
// Both proxies share the connector's transport, so the change is observed by
// both on their next request. A zero duration disables the timeout.
func (c *Connector) SetTimeout(d time.Duration) {
	c.transport.SetTimeout(d)
}

// ServerVersion returns the server's version string, such as "16.0".
//
// If a version was supplied with WithVersion() it is returned without any
// network activity. Otherwise the first call discovers the version via the
// server's version-info endpoint and memoizes it; concurrent calls share a
// single discovery request. A server that omits the version field from its
// response is not an error: the version is simply unknown, reported as an
// empty string.
func (c *Connector) ServerVersion(ctx context.Context) (string, error) {
	c.versionM.RLock()
	if c.versionKnown {
		v := c.version
		c.versionM.RUnlock()
		return v, nil
	}
	c.versionM.RUnlock()

	v, err, _ := c.versionGroup.Do("version", func() (interface{}, error) {
		res, err := c.JSON().At(versionInfoPath).Invoke(ctx, nil)
		if err != nil {
			return "", err
		}

		var info struct {
			ServerVersion string `json:"server_version"`
		}
		if err := res.UnmarshalResult(&info, AllowUnknownFields(true)); err != nil {
			// A result of an unexpected shape is treated the same as an
			// absent version field: the version remains unknown.
			info.ServerVersion = ""
		}

		c.versionM.Lock()
		c.version = info.ServerVersion
		c.versionKnown = true
		c.versionM.Unlock()

		return info.ServerVersion, nil
	})
	if err != nil {
		return "", err
	}

	return v.(string), nil
}

// coreInvoker is the innermost Invoker: it performs the HTTP round-trip and
// translates the raw response into an envelope or a typed failure.
type coreInvoker struct {
	transport *transport
	logger    CallLogger
}

func (i *coreInvoker) Invoke(ctx context.Context, path string, req Request) (*Response, error) {
	httpRes, err := postCallRequest(ctx, i.transport, path, req)
	if err != nil {
		i.logger.LogCallError(ctx, path, req, err)
		return nil, err
	}
	defer httpRes.Body.Close()

	if err := checkResponseStatus(httpRes); err != nil {
		i.logger.LogCallError(ctx, path, req, err)
		return nil, err
	}

	payload, err := io.ReadAll(httpRes.Body)
	if err != nil {
		err = &ConnectionError{cause: err}
		i.logger.LogCallError(ctx, path, req, err)
		return nil, err
	}

	res, err := UnmarshalResponse(bytes.NewReader(payload))
	if err != nil {
		i.logger.LogCallError(ctx, path, req, err)
		return nil, err
	}

	if res.Error != nil {
		err := newRemoteError(*res.Error)
		i.logger.LogCallError(ctx, path, req, err)
		return nil, err
	}

	i.logger.LogCall(ctx, path, req, &res)

	return &res, nil
}

// invokeRaw performs a JSON-RPC call but returns the response body verbatim,
// bypassing the middleware stack and all JSON handling.
func (c *Connector) invokeRaw(ctx context.Context, path string, req Request) (json.RawMessage, error) {
	httpRes, err := postCallRequest(ctx, c.transport, path, req)
	if err != nil {
		c.logger.LogHTTPRequest(ctx, http.MethodPost, path, 0, err)
		return nil, err
	}
	defer httpRes.Body.Close()

	if err := checkResponseStatus(httpRes); err != nil {
		c.logger.LogHTTPRequest(ctx, http.MethodPost, path, httpRes.StatusCode, err)
		return nil, err
	}

	payload, err := io.ReadAll(httpRes.Body)
	if err != nil {
		err = &ConnectionError{cause: err}
		c.logger.LogHTTPRequest(ctx, http.MethodPost, path, httpRes.StatusCode, err)
		return nil, err
	}

	c.logger.LogHTTPRequest(ctx, http.MethodPost, path, httpRes.StatusCode, nil)

	return payload, nil
}

// postCallRequest sends a single JSON-RPC request to a path on the server.
func postCallRequest(
	ctx context.Context,
	t *transport,
	path string,
	req Request,
) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		// CODE COVERAGE: This should never fail as the request parameters
		// have already been marshaled.
		panic(err)
	}

	header := http.Header{}
	header.Set("Content-Type", mediaType)

	return t.Do(ctx, http.MethodPost, path, header, bytes.NewReader(body))
}

// checkResponseStatus returns a *ProtocolError if the HTTP status does not
// indicate success.
//
// Odoo reports remote faults inside a 200 response; a non-2xx status means
// the request never reached the JSON-RPC layer at all, and its body cannot be
// assumed to be an envelope.
func checkResponseStatus(res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}

	return newProtocolError(
		fmt.Sprintf(
			"unexpected HTTP %d (%s) status code",
			res.StatusCode,
			http.StatusText(res.StatusCode),
		),
		nil,
	)
}

// mediaType is the MIME media-type used for JSON-RPC requests.
const mediaType = "application/json"
