// Package report provides access to the report rendering service exposed by
// the server's generic service dispatch endpoint.
package report

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/averat/odoorpc"
)

// servicePath is the generic service dispatch endpoint. Unlike the
// web-session endpoints it is stateless: each call carries the database name
// and the user's credentials.
const servicePath = "jsonrpc"

// Session identifies the database and user that reports are rendered for.
type Session struct {
	// Database is the name of the database to render against.
	Database string

	// UserID is the ID of the user performing the rendering.
	UserID int

	// Password is the user's password, or an API key.
	Password string

	// Context is the user context applied while rendering, such as the
	// "lang" key that selects the document language. It may be nil.
	Context map[string]interface{}
}

// Document is a rendered report.
type Document struct {
	// Content is the decoded content of the document.
	Content []byte

	// Format is the document format reported by the server, such as "pdf".
	// It is empty if the server does not report one.
	Format string
}

// Service renders reports.
type Service struct {
	conn    *odoorpc.Connector
	session Session
}

// NewService returns a Service that renders reports over conn on behalf of
// the given session.
func NewService(conn *odoorpc.Connector, session Session) *Service {
	return &Service{
		conn:    conn,
		session: session,
	}
}

// renderParams is the parameter object of a render_report service call.
type renderParams struct {
	Service string        `json:"service"`
	Method  string        `json:"method"`
	Args    []interface{} `json:"args"`
}

// renderResult is the payload produced by a render_report service call. The
// content arrives base64-encoded.
type renderResult struct {
	Result string `json:"result"`
	Format string `json:"format"`
}

// Render renders the report identified by name for the given record IDs.
//
// data carries report-specific values, such as the form content of reports
// that are driven by a wizard. It may be nil.
func (s *Service) Render(
	ctx context.Context,
	name string,
	ids []int,
	data map[string]interface{},
) (Document, error) {
	res, err := s.conn.JSON().At(servicePath).Invoke(ctx, renderParams{
		Service: "report",
		Method:  "render_report",
		Args: []interface{}{
			s.session.Database,
			s.session.UserID,
			s.session.Password,
			name,
			ids,
			data,
			s.session.Context,
		},
	})
	if err != nil {
		return Document{}, err
	}

	var payload renderResult
	if err := res.UnmarshalResult(&payload, odoorpc.AllowUnknownFields(true)); err != nil {
		return Document{}, fmt.Errorf("unable to render report: %w", err)
	}

	if payload.Result == "" {
		return Document{}, errors.New("unable to render report: the server did not produce any content")
	}

	content, err := base64.StdEncoding.DecodeString(payload.Result)
	if err != nil {
		return Document{}, fmt.Errorf("unable to render report: %w", err)
	}

	return Document{
		Content: content,
		Format:  payload.Format,
	}, nil
}

// RenderTo renders the report identified by name and writes its content to
// w. It returns the document format reported by the server.
func (s *Service) RenderTo(
	ctx context.Context,
	w io.Writer,
	name string,
	ids []int,
	data map[string]interface{},
) (string, error) {
	doc, err := s.Render(ctx, name, ids, data)
	if err != nil {
		return "", err
	}

	if _, err := w.Write(doc.Content); err != nil {
		return "", fmt.Errorf("unable to write report content: %w", err)
	}

	return doc.Format, nil
}
