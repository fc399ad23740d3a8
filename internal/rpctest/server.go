// Package rpctest provides a fake JSON-RPC server for exercising the
// connector in tests.
package rpctest

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// Handler produces the outcome of a single JSON-RPC call.
//
// It may use w to manipulate the HTTP response before the envelope is
// written, such as setting cookies. Exactly one of the result and the fault
// is used: if the fault is non-nil the result is ignored.
type Handler func(w http.ResponseWriter, r *http.Request, params json.RawMessage) (interface{}, *Fault)

// Fault describes a failure reported inside a JSON-RPC envelope.
type Fault struct {
	// Code is the numeric fault code. If it is zero the conventional value
	// of 200 is used, matching how Odoo reports application errors.
	Code int

	// Message is the fault message.
	Message string

	// Data describes the server-side exception, if any.
	Data *FaultData
}

// FaultData mirrors the data object attached to faults by the server's
// exception serializer.
type FaultData struct {
	Name          string        `json:"name,omitempty"`
	Message       string        `json:"message,omitempty"`
	Debug         string        `json:"debug,omitempty"`
	Arguments     []interface{} `json:"arguments,omitempty"`
	ExceptionType string        `json:"exception_type,omitempty"`
}

// CapturedCall is a record of one request received by the server.
type CapturedCall struct {
	// Path is the request path, without a leading slash.
	Path string

	// Version, Method and ID are the fields of the received envelope. ID is
	// the raw JSON of the request ID. They are empty for requests served by
	// a raw route, which bypasses envelope handling.
	Version string
	Method  string
	ID      json.RawMessage

	// Params is the raw JSON of the request parameters.
	Params json.RawMessage

	// Header and Cookies are taken from the HTTP request.
	Header  http.Header
	Cookies []*http.Cookie
}

// Server is a fake JSON-RPC server.
//
// It dispatches calls to handlers registered per path and records every call
// it receives. Paths with no registered handler produce an HTTP 404
// response; requests that do not contain a JSON-RPC envelope produce an
// HTTP 400 response.
type Server struct {
	*httptest.Server

	m         sync.Mutex
	routes    map[string]Handler
	rawRoutes map[string]http.HandlerFunc
	captured  []CapturedCall
}

// NewServer starts a fake JSON-RPC server over plain HTTP.
func NewServer() *Server {
	s := &Server{
		routes:    map[string]Handler{},
		rawRoutes: map[string]http.HandlerFunc{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))

	return s
}

// NewTLSServer starts a fake JSON-RPC server over HTTPS with a self-signed
// certificate, available via the Certificate() method.
func NewTLSServer() *Server {
	s := &Server{
		routes:    map[string]Handler{},
		rawRoutes: map[string]http.HandlerFunc{},
	}
	s.Server = httptest.NewTLSServer(http.HandlerFunc(s.serveHTTP))

	return s
}

// Host returns the host on which the server is listening.
func (s *Server) Host() string {
	host, _, err := net.SplitHostPort(s.Listener.Addr().String())
	if err != nil {
		panic(err)
	}

	return host
}

// Port returns the port on which the server is listening.
func (s *Server) Port() int {
	_, port, err := net.SplitHostPort(s.Listener.Addr().String())
	if err != nil {
		panic(err)
	}

	n, err := strconv.Atoi(port)
	if err != nil {
		panic(err)
	}

	return n
}

// Route registers a handler for calls to a path, replacing any existing
// handler for that path.
//
// The path must not have a leading slash.
func (s *Server) Route(path string, h Handler) {
	checkRoutePath(path)

	s.m.Lock()
	defer s.m.Unlock()

	s.routes[path] = h
}

// RouteResult registers a route that always succeeds with the given result.
func (s *Server) RouteResult(path string, result interface{}) {
	s.Route(path, func(http.ResponseWriter, *http.Request, json.RawMessage) (interface{}, *Fault) {
		return result, nil
	})
}

// RouteFault registers a route that always fails with the given fault.
func (s *Server) RouteFault(path string, fault Fault) {
	s.Route(path, func(http.ResponseWriter, *http.Request, json.RawMessage) (interface{}, *Fault) {
		return nil, &fault
	})
}

// RouteRaw registers a handler that takes over the HTTP exchange for a path
// entirely, bypassing envelope handling on both the request and the
// response.
//
// It is used to serve non-JSON-RPC content, and to exercise the connector
// against responses a JSON-RPC server should never produce.
func (s *Server) RouteRaw(path string, h http.HandlerFunc) {
	checkRoutePath(path)

	s.m.Lock()
	defer s.m.Unlock()

	s.rawRoutes[path] = h
}

// Calls returns a copy of the calls received so far, in order of receipt.
func (s *Server) Calls() []CapturedCall {
	s.m.Lock()
	defer s.m.Unlock()

	calls := make([]CapturedCall, len(s.captured))
	copy(calls, s.captured)

	return calls
}

// LastCall returns the most recently received call.
func (s *Server) LastCall() (CapturedCall, bool) {
	s.m.Lock()
	defer s.m.Unlock()

	if len(s.captured) == 0 {
		return CapturedCall{}, false
	}

	return s.captured[len(s.captured)-1], true
}

func checkRoutePath(path string) {
	if path == "" || path[0] == '/' {
		panic(fmt.Sprintf("invalid route path (%q)", path))
	}
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}

	s.m.Lock()
	raw, isRaw := s.rawRoutes[path]
	s.m.Unlock()

	if isRaw {
		s.record(CapturedCall{
			Path:    path,
			Header:  r.Header.Clone(),
			Cookies: r.Cookies(),
		})

		raw(w, r)
		return
	}

	var env struct {
		Version string          `json:"jsonrpc"`
		Method  string          `json:"method"`
		ID      json.RawMessage `json:"id"`
		Params  json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, "invalid JSON-RPC request", http.StatusBadRequest)
		return
	}

	s.record(CapturedCall{
		Path:    path,
		Version: env.Version,
		Method:  env.Method,
		ID:      env.ID,
		Params:  env.Params,
		Header:  r.Header.Clone(),
		Cookies: r.Cookies(),
	})

	s.m.Lock()
	h, ok := s.routes[path]
	s.m.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	result, fault := h(w, r, env.Params)

	body := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      env.ID,
	}

	if fault != nil {
		code := fault.Code
		if code == 0 {
			code = 200
		}

		e := map[string]interface{}{
			"code":    code,
			"message": fault.Message,
		}
		if fault.Data != nil {
			e["data"] = fault.Data
		}

		body["error"] = e
	} else {
		body["result"] = result
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(body); err != nil {
		panic(err)
	}
}

func (s *Server) record(call CapturedCall) {
	s.m.Lock()
	defer s.m.Unlock()

	s.captured = append(s.captured, call)
}
