package odoorpc

import (
	"context"
	"io"
	"net/http"
)

// HTTPProxy performs plain HTTP requests against the server.
//
// It shares the owning Connector's transport, so requests carry the session
// cookies established by JSON-RPC calls and vice versa. The proxy returns
// each *http.Response verbatim; it does not inspect the status code or the
// body, and the caller is responsible for closing the body.
type HTTPProxy struct {
	transport *transport
	logger    CallLogger
}

// Get performs a GET request against a path on the server.
//
// The path is relative to the server root; a leading slash is optional.
func (p *HTTPProxy) Get(ctx context.Context, path string, header http.Header) (*http.Response, error) {
	return p.Do(ctx, http.MethodGet, path, header, nil)
}

// Post performs a POST request against a path on the server.
func (p *HTTPProxy) Post(ctx context.Context, path string, body io.Reader, header http.Header) (*http.Response, error) {
	return p.Do(ctx, http.MethodPost, path, header, body)
}

// Do performs an HTTP request with an arbitrary method against a path on the
// server.
func (p *HTTPProxy) Do(
	ctx context.Context,
	method string,
	path string,
	header http.Header,
	body io.Reader,
) (*http.Response, error) {
	res, err := p.transport.Do(ctx, method, path, header, body)
	if err != nil {
		p.logger.LogHTTPRequest(ctx, method, path, 0, err)
		return nil, err
	}

	p.logger.LogHTTPRequest(ctx, method, path, res.StatusCode, nil)

	return res, nil
}
