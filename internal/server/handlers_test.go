package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/scanocr/internal/imageio"
	"github.com/MeKo-Tech/scanocr/internal/session"
	"github.com/MeKo-Tech/scanocr/internal/testutil"
	"github.com/MeKo-Tech/scanocr/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer_RequiresEngine(t *testing.T) {
	_, err := NewServer(Config{})
	require.Error(t, err)
}

func TestServer_HealthHandler(t *testing.T) {
	h := newTestServer(t, testutil.NewFakeEngine()).Handler()

	tests := []struct {
		name           string
		method         string
		expectedStatus int
		checkResponse  bool
	}{
		{"GET request success", http.MethodGet, http.StatusOK, true},
		{"POST request not allowed", http.MethodPost, http.StatusMethodNotAllowed, false},
		{"PUT request not allowed", http.MethodPut, http.StatusMethodNotAllowed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(h, tt.method, "/health", nil, "")
			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.checkResponse {
				var response HealthResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
				assert.Equal(t, "healthy", response.Status)
				assert.NotEmpty(t, response.Time)
				assert.NotEmpty(t, response.Version)
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestServer_EngineHandler(t *testing.T) {
	eng := testutil.NewFakeEngine()
	eng.EngineName = "tesseract"
	h := newTestServer(t, eng, func(c *Config) {
		c.Workflow.Languages = []string{"en", "de"}
	}).Handler()

	w := doRequest(h, http.MethodGet, "/engine", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp EngineResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "tesseract", resp.Name)
	assert.Equal(t, []string{"en", "de"}, resp.Languages)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	h := newTestServer(t, testutil.NewFakeEngine()).Handler()
	createSession(t, h)

	w := doRequest(h, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "scanocr_http_requests_total")
	assert.Contains(t, w.Body.String(), "scanocr_active_sessions")
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"decode", &imageio.DecodeError{Reason: "malformed image"}, http.StatusBadRequest, "decode_error"},
		{"recognition", &workflow.RecognitionError{Engine: "fake", Err: errors.New("x")}, http.StatusBadGateway, "recognition_error"},
		{"busy", workflow.ErrBusy, http.StatusConflict, "busy"},
		{"no image", workflow.ErrNoImage, http.StatusConflict, "no_image"},
		{"no result", &workflow.ClipboardError{Reason: "none"}, http.StatusConflict, "no_result"},
		{"not found", session.ErrNotFound, http.StatusNotFound, "not_found"},
		{"capacity", fmt.Errorf("create: %w", session.ErrCapacity), http.StatusServiceUnavailable, "capacity"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, errType := classifyError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantType, errType)
		})
	}
}

func TestServer_WriteErrorResponse(t *testing.T) {
	server := newTestServer(t, testutil.NewFakeEngine())

	tests := []struct {
		name       string
		message    string
		errType    string
		statusCode int
	}{
		{"bad request error", "Invalid input", errTypeBadRequest, http.StatusBadRequest},
		{"too large", "File too large", errTypeTooLarge, http.StatusRequestEntityTooLarge},
		{"internal server error", "Something went wrong", errTypeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			server.writeErrorResponse(w, tt.message, tt.errType, tt.statusCode)

			assert.Equal(t, tt.statusCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var response ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.False(t, response.Success)
			assert.Equal(t, tt.message, response.Error)
			assert.Equal(t, tt.errType, response.ErrorType)
			assert.Nil(t, response.Session)
		})
	}
}
