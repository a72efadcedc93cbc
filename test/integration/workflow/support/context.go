// Package support holds the godog step definitions for the workflow
// feature suite. Scenarios drive a real server over an httptest listener
// with a scripted OCR engine.
package support

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/MeKo-Tech/scanocr/internal/server"
	"github.com/MeKo-Tech/scanocr/internal/testutil"
	"github.com/gorilla/mux"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	Engine     *testutil.FakeEngine
	App        *server.Server
	HTTPServer *httptest.Server
	Client     *http.Client

	SessionID string

	// Last HTTP exchange
	LastStatus  int
	LastBody    []byte
	LastHeaders http.Header
}

// NewTestContext creates an empty scenario context.
func NewTestContext() *TestContext {
	return &TestContext{Engine: testutil.NewFakeEngine()}
}

// StartServer starts the application on an httptest listener.
func (tc *TestContext) StartServer() error {
	app, err := server.NewServer(server.Config{
		CORSOrigin:  "*",
		MaxUploadMB: 5,
		Engine:      tc.Engine,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		return err
	}

	router := mux.NewRouter()
	app.SetupRoutes(router)

	tc.App = app
	tc.HTTPServer = httptest.NewServer(router)
	tc.Client = tc.HTTPServer.Client()
	return nil
}

// Cleanup stops the server and releases the session store.
func (tc *TestContext) Cleanup() error {
	if tc.HTTPServer != nil {
		tc.HTTPServer.Close()
		tc.HTTPServer = nil
	}
	if tc.App != nil {
		err := tc.App.Close()
		tc.App = nil
		return err
	}
	return nil
}
