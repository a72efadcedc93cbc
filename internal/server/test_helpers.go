package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/MeKo-Tech/scanocr/internal/engine"
	"github.com/MeKo-Tech/scanocr/internal/workflow"
	"github.com/stretchr/testify/require"
)

// newTestServer builds a server around eng with a 1 MB upload limit.
func newTestServer(t *testing.T, eng engine.Engine, mutate ...func(*Config)) *Server {
	t.Helper()

	cfg := Config{
		CORSOrigin:  "*",
		MaxUploadMB: 1,
		Engine:      eng,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, m := range mutate {
		m(&cfg)
	}

	s, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// multipartBody builds a form with one file part. An empty contentType
// leaves the default application/octet-stream.
func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	var (
		part io.Writer
		err  error
	)
	if contentType == "" {
		part, err = w.CreateFormFile(field, filename)
	} else {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
		h.Set("Content-Type", contentType)
		part, err = w.CreatePart(h)
	}
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return &body, w.FormDataContentType()
}

func doRequest(h http.Handler, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) workflow.Snapshot {
	t.Helper()

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	require.True(t, resp.Success, rec.Body.String())
	return resp.Session
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	require.False(t, resp.Success)
	return resp
}

// createSession posts /sessions and returns the new id.
func createSession(t *testing.T, h http.Handler) string {
	t.Helper()

	rec := doRequest(h, http.MethodPost, "/sessions", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeSession(t, rec).ID
}

func uploadImage(t *testing.T, h http.Handler, id, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()

	body, ct := multipartBody(t, "image", filename, "", data)
	return doRequest(h, http.MethodPost, "/sessions/"+id+"/image", body, ct)
}
