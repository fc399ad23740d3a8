package odoorpc

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// transport performs cookie-aware HTTP requests against a single server.
//
// There is exactly one transport per Connector; the JSON endpoint proxy and
// the plain HTTP proxy both issue their requests through it, so cookies set
// via one channel are replayed on the other, and a timeout change is observed
// by both.
type transport struct {
	baseURL string
	client  *http.Client

	m       sync.RWMutex
	timeout time.Duration
}

// newTransport returns a transport addressing scheme://host:port.
//
// If rt is nil, a clone of http.DefaultTransport configured with tlsConfig is
// used.
func newTransport(
	scheme, host string,
	port int,
	rt http.RoundTripper,
	tlsConfig *tls.Config,
	timeout time.Duration,
) *transport {
	jar, err := cookiejar.New(&cookiejar.Options{
		PublicSuffixList: publicsuffix.List,
	})
	if err != nil {
		// CODE COVERAGE: cookiejar.New() does not fail when given valid
		// options.
		panic(err)
	}

	if rt == nil {
		base := http.DefaultTransport.(*http.Transport).Clone()
		base.TLSClientConfig = tlsConfig
		rt = base
	}

	return &transport{
		baseURL: scheme + "://" + net.JoinHostPort(host, strconv.Itoa(port)),
		client: &http.Client{
			Transport: rt,
			Jar:       jar,
		},
		timeout: timeout,
	}
}

// Timeout returns the timeout applied to each request.
func (t *transport) Timeout() time.Duration {
	t.m.RLock()
	defer t.m.RUnlock()

	return t.timeout
}

// SetTimeout changes the timeout applied to each subsequent request.
//
// A zero duration disables the timeout.
func (t *transport) SetTimeout(d time.Duration) {
	t.m.Lock()
	defer t.m.Unlock()

	t.timeout = d
}

// URL returns the absolute URL for a path on the server.
func (t *transport) URL(path string) string {
	return t.baseURL + "/" + strings.TrimPrefix(path, "/")
}

// Do performs an HTTP request against the server.
//
// The configured timeout bounds the round-trip including the reading of the
// response body. On transport failure it returns a *ConnectionError wrapping
// the cause. The caller owns the response body.
func (t *transport) Do(
	ctx context.Context,
	method, path string,
	header http.Header,
	body io.Reader,
) (*http.Response, error) {
	cancel := context.CancelFunc(func() {})
	if d := t.Timeout(); d > 0 {
		ctx, cancel = context.WithTimeout(ctx, d)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.URL(path), body)
	if err != nil {
		cancel()
		return nil, &ConnectionError{cause: err}
	}

	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	res, err := t.client.Do(req)
	if err != nil {
		cancel()
		return nil, &ConnectionError{cause: err}
	}

	// The request deadline must remain in force until the body has been
	// consumed, so cancellation is deferred to the body's Close().
	res.Body = &cancelBody{res.Body, cancel}

	return res, nil
}

// cancelBody is a response body that releases the request's timeout context
// when closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	b.cancel()
	return b.ReadCloser.Close()
}
