package odoorpc_test

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	. "github.com/averat/odoorpc"
	"github.com/averat/odoorpc/internal/fixtures"
	"github.com/averat/odoorpc/internal/rpctest"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
	"golang.org/x/sync/errgroup"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

var _ = Describe("type Connector", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		server *rpctest.Server
		conn   *Connector
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 3*time.Second)

		server = rpctest.NewServer()
		server.RouteResult("web/webclient/version_info", map[string]interface{}{
			"server_version":   "16.0",
			"protocol_version": 1,
		})

		var err error
		conn, err = NewConnector(server.Host(), WithPort(server.Port()))
		Expect(err).ShouldNot(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
		cancel()
	})

	Describe("func NewConnector()", func() {
		It("applies the default port and timeout", func() {
			conn, err := NewConnector("odoo.example.org")
			Expect(err).ShouldNot(HaveOccurred())

			Expect(conn.Host()).To(Equal("odoo.example.org"))
			Expect(conn.Port()).To(Equal(DefaultPort))
			Expect(conn.Timeout()).To(Equal(DefaultTimeout))
		})

		It("performs no network activity", func() {
			_, err := NewConnector(
				"odoo.example.org",
				WithHTTPTransport(roundTripperFunc(
					func(*http.Request) (*http.Response, error) {
						Fail("unexpected network activity")
						return nil, nil
					},
				)),
			)
			Expect(err).ShouldNot(HaveOccurred())
		})

		It("returns a configuration error when the host is empty", func() {
			_, err := NewConnector("")

			var cerr *ConfigError
			Expect(errors.As(err, &cerr)).To(BeTrue())
			Expect(err).To(MatchError("the host must not be empty"))
		})

		DescribeTable(
			"it returns a configuration error when the port is out of range",
			func(port int) {
				_, err := NewConnector("odoo.example.org", WithPort(port))

				var cerr *ConfigError
				Expect(errors.As(err, &cerr)).To(BeTrue())
				Expect(err).To(MatchError(fmt.Sprintf(
					"the port '%d' is invalid: an integer between 0 and 65535 is required",
					port,
				)))
			},
			Entry("negative", -1),
			Entry("too large", 65536),
		)

		It("returns a configuration error when the timeout is negative", func() {
			_, err := NewConnector("odoo.example.org", WithTimeout(-time.Second))
			Expect(err).To(MatchError("the timeout must not be negative"))
		})

		It("returns a configuration error when a TLS configuration is supplied", func() {
			_, err := NewConnector("odoo.example.org", WithTLSConfig(&tls.Config{}))
			Expect(err).To(MatchError("a TLS configuration requires a TLS connector"))
		})
	})

	Describe("func Invoke()", func() {
		It("posts a JSON-RPC call to the endpoint's path", func() {
			server.RouteResult("web/dataset/call", map[string]interface{}{
				"records": []int{1, 2, 3},
			})

			res, err := conn.JSON().
				Segment("web").
				Segment("dataset").
				Segment("call").
				Invoke(ctx, map[string]interface{}{
					"model":  "res.partner",
					"method": "read",
					"args":   []interface{}{[]int{1}},
				})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(res.Result).To(MatchJSON(`{"records": [1, 2, 3]}`))

			call, ok := server.LastCall()
			Expect(ok).To(BeTrue())
			Expect(call.Path).To(Equal("web/dataset/call"))
			Expect(call.Version).To(Equal("2.0"))
			Expect(call.Method).To(Equal("call"))
			Expect(call.Params).To(MatchJSON(`{
				"model": "res.partner",
				"method": "read",
				"args": [[1]]
			}`))
			Expect(call.Header.Get("Content-Type")).To(Equal("application/json"))

			_, err = strconv.ParseInt(string(call.ID), 10, 64)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(res.ID).To(Equal(call.ID))
		})

		It("addresses the same path via a slash-delimited key", func() {
			server.RouteResult("web/dataset/call", true)

			_, err := conn.JSON().At("/web/dataset/call").Invoke(ctx, nil)
			Expect(err).ShouldNot(HaveOccurred())

			call, ok := server.LastCall()
			Expect(ok).To(BeTrue())
			Expect(call.Path).To(Equal("web/dataset/call"))
		})

		It("does not reuse the previous request ID", func() {
			server.RouteResult("web/dataset/call", true)

			e := conn.JSON().At("web/dataset/call")

			_, err := e.Invoke(ctx, nil)
			Expect(err).ShouldNot(HaveOccurred())

			_, err = e.Invoke(ctx, nil)
			Expect(err).ShouldNot(HaveOccurred())

			calls := server.Calls()
			Expect(calls).To(HaveLen(2))
			Expect(calls[0].ID).NotTo(Equal(calls[1].ID))
		})

		It("returns the response envelope unchanged", func() {
			server.RouteRaw("web/session/authenticate", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"jsonrpc": "2.0", "id": 7, "result": {"uid": 1}}`)
			})

			res, err := conn.JSON().At("web/session/authenticate").Invoke(ctx, nil)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(res.Version).To(Equal("2.0"))
			Expect(res.ID).To(Equal(json.RawMessage(`7`)))
			Expect(res.Result).To(MatchJSON(`{"uid": 1}`))
		})

		It("returns the fault reported by the server as an *Error", func() {
			server.RouteRaw("web/dataset/call", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"jsonrpc": "2.0", "id": 7, "error": {"message": "Access Denied", "code": 200, "data": {"name": "odoo.exceptions.AccessDenied"}}}`)
			})

			_, err := conn.JSON().At("web/dataset/call").Invoke(ctx, nil)

			var rerr *Error
			Expect(errors.As(err, &rerr)).To(BeTrue())
			Expect(rerr.Code()).To(Equal(200))
			Expect(rerr.Message()).To(Equal("Access Denied"))
			Expect(rerr.RemoteName()).To(Equal("odoo.exceptions.AccessDenied"))
			Expect(err).To(MatchError("[200] odoo.exceptions.AccessDenied: Access Denied"))
		})

		It("exposes the debug traceback attached to a fault", func() {
			server.RouteFault("web/dataset/call_kw", rpctest.Fault{
				Message: "Invalid email address",
				Data: &rpctest.FaultData{
					Name:  "odoo.exceptions.ValidationError",
					Debug: "Traceback (most recent call last): ...",
				},
			})

			_, err := conn.JSON().At("web/dataset/call_kw").Invoke(ctx, nil)

			var rerr *Error
			Expect(errors.As(err, &rerr)).To(BeTrue())
			Expect(rerr.Code()).To(Equal(200))
			Expect(rerr.RemoteName()).To(Equal("odoo.exceptions.ValidationError"))
			Expect(rerr.Debug()).To(Equal("Traceback (most recent call last): ..."))
		})

		It("returns a protocol error when the body is not JSON", func() {
			server.RouteRaw("web/dataset/call", func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `not json`)
			})

			_, err := conn.JSON().At("web/dataset/call").Invoke(ctx, nil)

			var perr *ProtocolError
			Expect(errors.As(err, &perr)).To(BeTrue())

			var rerr *Error
			Expect(errors.As(err, &rerr)).To(BeFalse())
		})

		It("returns a protocol error when the HTTP status does not indicate success", func() {
			server.RouteRaw("web/dataset/call", func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			})

			_, err := conn.JSON().At("web/dataset/call").Invoke(ctx, nil)

			var perr *ProtocolError
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(err).To(MatchError("unexpected HTTP 500 (Internal Server Error) status code"))
		})

		It("returns a protocol error when the path is not routed", func() {
			_, err := conn.JSON().At("web/unknown").Invoke(ctx, nil)
			Expect(err).To(MatchError("unexpected HTTP 404 (Not Found) status code"))
		})

		It("returns a connection error when the server cannot be reached", func() {
			server.Close()

			_, err := conn.JSON().At("web/dataset/call").Invoke(ctx, nil)

			var cerr *ConnectionError
			Expect(errors.As(err, &cerr)).To(BeTrue())
			Expect(err).To(MatchError(fmt.Sprintf(
				`unable to communicate with the server: Post "%s/web/dataset/call": dial tcp %s: connect: connection refused`,
				server.URL,
				strings.TrimPrefix(server.URL, "http://"),
			)))
		})

		It("observes a timeout change on the next request", func() {
			server.RouteRaw("web/slow", func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(time.Second):
				case <-r.Context().Done():
				}
			})

			conn.SetTimeout(10 * time.Millisecond)

			_, err := conn.JSON().At("web/slow").Invoke(ctx, nil)

			var cerr *ConnectionError
			Expect(errors.As(err, &cerr)).To(BeTrue())
			Expect(err).To(MatchError(ContainSubstring("context deadline exceeded")))
		})
	})

	Describe("func InvokeRaw()", func() {
		It("returns the response body verbatim", func() {
			server.RouteRaw("web/dataset/call", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"jsonrpc": "2.0", "id": 7, "error": {"code": 200, "message": "Access Denied"}}`)
			})

			body, err := conn.JSON().At("web/dataset/call").InvokeRaw(ctx, nil)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(string(body)).To(Equal(
				`{"jsonrpc": "2.0", "id": 7, "error": {"code": 200, "message": "Access Denied"}}`,
			))
		})

		It("still reports HTTP-level failures", func() {
			server.RouteRaw("web/dataset/call", func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "suspended", http.StatusServiceUnavailable)
			})

			_, err := conn.JSON().At("web/dataset/call").InvokeRaw(ctx, nil)
			Expect(err).To(MatchError("unexpected HTTP 503 (Service Unavailable) status code"))
		})
	})

	Describe("func ServerVersion()", func() {
		It("returns the version supplied at construction without probing", func() {
			conn, err := NewConnector(
				server.Host(),
				WithPort(server.Port()),
				WithVersion("17.0"),
			)
			Expect(err).ShouldNot(HaveOccurred())

			v, err := conn.ServerVersion(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(v).To(Equal("17.0"))
			Expect(server.Calls()).To(BeEmpty())
		})

		It("discovers the version via the well-known endpoint", func() {
			v, err := conn.ServerVersion(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(v).To(Equal("16.0"))

			call, ok := server.LastCall()
			Expect(ok).To(BeTrue())
			Expect(call.Path).To(Equal("web/webclient/version_info"))
		})

		It("memoizes the discovered version", func() {
			_, err := conn.ServerVersion(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			v, err := conn.ServerVersion(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(v).To(Equal("16.0"))
			Expect(server.Calls()).To(HaveLen(1))
		})

		It("shares a single discovery request between concurrent callers", func() {
			server.Route("web/webclient/version_info", func(http.ResponseWriter, *http.Request, json.RawMessage) (interface{}, *rpctest.Fault) {
				time.Sleep(100 * time.Millisecond)
				return map[string]interface{}{"server_version": "16.0"}, nil
			})

			g, gctx := errgroup.WithContext(ctx)
			for i := 0; i < 5; i++ {
				g.Go(func() error {
					v, err := conn.ServerVersion(gctx)
					if err != nil {
						return err
					}
					if v != "16.0" {
						return fmt.Errorf("unexpected version: %s", v)
					}
					return nil
				})
			}

			Expect(g.Wait()).ShouldNot(HaveOccurred())
			Expect(server.Calls()).To(HaveLen(1))
		})

		It("reports an unknown version as an empty string", func() {
			server.RouteResult("web/webclient/version_info", map[string]interface{}{
				"protocol_version": 1,
			})

			v, err := conn.ServerVersion(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(v).To(Equal(""))
		})

		It("treats a result of an unexpected shape as an unknown version", func() {
			server.RouteResult("web/webclient/version_info", "16.0")

			v, err := conn.ServerVersion(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(v).To(Equal(""))
		})

		It("propagates a failed probe without memoizing it", func() {
			server.RouteFault("web/webclient/version_info", rpctest.Fault{
				Message: "Access Denied",
			})

			_, err := conn.ServerVersion(ctx)
			Expect(err).Should(HaveOccurred())

			server.RouteResult("web/webclient/version_info", map[string]interface{}{
				"server_version": "16.0",
			})

			v, err := conn.ServerVersion(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(v).To(Equal("16.0"))
			Expect(server.Calls()).To(HaveLen(2))
		})
	})

	Describe("cookie handling", func() {
		It("replays a session cookie set by a JSON call on subsequent HTTP requests", func() {
			server.Route("web/session/authenticate", func(w http.ResponseWriter, r *http.Request, params json.RawMessage) (interface{}, *rpctest.Fault) {
				http.SetCookie(w, &http.Cookie{
					Name:  "session_id",
					Value: "d4fc65f0",
					Path:  "/",
				})
				return map[string]interface{}{"uid": 1}, nil
			})
			server.RouteRaw("web/content/42", func(w http.ResponseWriter, r *http.Request) {})

			_, err := conn.JSON().At("web/session/authenticate").Invoke(ctx, nil)
			Expect(err).ShouldNot(HaveOccurred())

			res, err := conn.HTTP().Get(ctx, "web/content/42", nil)
			Expect(err).ShouldNot(HaveOccurred())
			res.Body.Close()

			call, ok := server.LastCall()
			Expect(ok).To(BeTrue())
			Expect(call.Path).To(Equal("web/content/42"))
			Expect(call.Cookies).To(HaveLen(1))
			Expect(call.Cookies[0].Name).To(Equal("session_id"))
			Expect(call.Cookies[0].Value).To(Equal("d4fc65f0"))
		})

		It("replays a session cookie set by an HTTP response on subsequent JSON calls", func() {
			server.RouteRaw("web/login", func(w http.ResponseWriter, r *http.Request) {
				http.SetCookie(w, &http.Cookie{
					Name:  "session_id",
					Value: "90fe32ab",
					Path:  "/",
				})
			})
			server.RouteResult("web/dataset/call", true)

			res, err := conn.HTTP().Get(ctx, "web/login", nil)
			Expect(err).ShouldNot(HaveOccurred())
			res.Body.Close()

			_, err = conn.JSON().At("web/dataset/call").Invoke(ctx, nil)
			Expect(err).ShouldNot(HaveOccurred())

			call, ok := server.LastCall()
			Expect(ok).To(BeTrue())
			Expect(call.Path).To(Equal("web/dataset/call"))
			Expect(call.Cookies).To(HaveLen(1))
			Expect(call.Cookies[0].Name).To(Equal("session_id"))
			Expect(call.Cookies[0].Value).To(Equal("90fe32ab"))
		})
	})

	Describe("func WithMiddleware()", func() {
		It("wraps the invoker in the order given, outermost first", func() {
			var order []string

			mw := func(name string) Middleware {
				return func(next Invoker) Invoker {
					return InvokerFunc(func(ctx context.Context, path string, req Request) (*Response, error) {
						order = append(order, name)
						return next.Invoke(ctx, path, req)
					})
				}
			}

			server.RouteResult("web/dataset/call", true)

			conn, err := NewConnector(
				server.Host(),
				WithPort(server.Port()),
				WithMiddleware(mw("outer"), mw("inner")),
			)
			Expect(err).ShouldNot(HaveOccurred())

			_, err = conn.JSON().At("web/dataset/call").Invoke(ctx, nil)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(order).To(Equal([]string{"outer", "inner"}))
		})

		It("allows middleware to observe the error produced by a call", func() {
			var observed error

			server.RouteFault("web/dataset/call", rpctest.Fault{
				Message: "Access Denied",
			})

			conn, err := NewConnector(
				server.Host(),
				WithPort(server.Port()),
				WithMiddleware(func(next Invoker) Invoker {
					return InvokerFunc(func(ctx context.Context, path string, req Request) (*Response, error) {
						res, err := next.Invoke(ctx, path, req)
						observed = err
						return res, err
					})
				}),
			)
			Expect(err).ShouldNot(HaveOccurred())

			_, err = conn.JSON().At("web/dataset/call").Invoke(ctx, nil)
			Expect(err).Should(HaveOccurred())
			Expect(observed).To(BeIdenticalTo(err))
		})
	})

	Describe("func WithCallLogger()", func() {
		It("notifies the logger of each call", func() {
			var logged []string

			server.RouteResult("web/dataset/call", true)

			conn, err := NewConnector(
				server.Host(),
				WithPort(server.Port()),
				WithCallLogger(&fixtures.CallLoggerStub{
					LogCallFunc: func(_ context.Context, path string, _ Request, _ *Response) {
						logged = append(logged, path)
					},
				}),
			)
			Expect(err).ShouldNot(HaveOccurred())

			_, err = conn.JSON().At("web/dataset/call").Invoke(ctx, nil)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(logged).To(Equal([]string{"web/dataset/call"}))
		})

		It("notifies the logger when a call fails", func() {
			var logged error

			server.RouteFault("web/dataset/call", rpctest.Fault{
				Message: "Access Denied",
			})

			conn, err := NewConnector(
				server.Host(),
				WithPort(server.Port()),
				WithCallLogger(&fixtures.CallLoggerStub{
					LogCallErrorFunc: func(_ context.Context, _ string, _ Request, err error) {
						logged = err
					},
				}),
			)
			Expect(err).ShouldNot(HaveOccurred())

			_, err = conn.JSON().At("web/dataset/call").Invoke(ctx, nil)
			Expect(err).Should(HaveOccurred())
			Expect(logged).To(BeIdenticalTo(err))
		})
	})

	Describe("func NewTLSConnector()", func() {
		var tlsServer *rpctest.Server

		BeforeEach(func() {
			tlsServer = rpctest.NewTLSServer()
		})

		AfterEach(func() {
			tlsServer.Close()
		})

		It("communicates over HTTPS", func() {
			tlsServer.RouteResult("web/dataset/call", true)

			pool := x509.NewCertPool()
			pool.AddCert(tlsServer.Certificate())

			conn, err := NewTLSConnector(
				tlsServer.Host(),
				WithPort(tlsServer.Port()),
				WithTLSConfig(&tls.Config{RootCAs: pool}),
			)
			Expect(err).ShouldNot(HaveOccurred())

			res, err := conn.JSON().At("web/dataset/call").Invoke(ctx, nil)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(res.Result).To(MatchJSON(`true`))
		})

		It("refuses a server whose certificate is not trusted", func() {
			tlsServer.RouteResult("web/dataset/call", true)

			conn, err := NewTLSConnector(
				tlsServer.Host(),
				WithPort(tlsServer.Port()),
			)
			Expect(err).ShouldNot(HaveOccurred())

			_, err = conn.JSON().At("web/dataset/call").Invoke(ctx, nil)

			var cerr *ConnectionError
			Expect(errors.As(err, &cerr)).To(BeTrue())
		})

		It("returns a configuration error when a TLS configuration is combined with a custom HTTP transport", func() {
			_, err := NewTLSConnector(
				"odoo.example.org",
				WithTLSConfig(&tls.Config{}),
				WithHTTPTransport(http.DefaultTransport),
			)

			var cerr *ConfigError
			Expect(errors.As(err, &cerr)).To(BeTrue())
			Expect(err).To(MatchError("a TLS configuration cannot be combined with a custom HTTP transport"))
		})
	})
})
