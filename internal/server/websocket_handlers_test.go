package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MeKo-Tech/scanocr/internal/testutil"
	"github.com/MeKo-Tech/scanocr/internal/workflow"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockWebSocketConn records written messages.
type mockWebSocketConn struct {
	mu       sync.Mutex
	messages [][]byte
}

func (m *mockWebSocketConn) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, append([]byte(nil), data...))
	return nil
}

func (m *mockWebSocketConn) responses(t *testing.T) []WebSocketResponse {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]WebSocketResponse, 0, len(m.messages))
	for _, data := range m.messages {
		var resp WebSocketResponse
		require.NoError(t, json.Unmarshal(data, &resp))
		out = append(out, resp)
	}
	return out
}

func (m *mockWebSocketConn) last(t *testing.T) WebSocketResponse {
	t.Helper()
	resps := m.responses(t)
	require.NotEmpty(t, resps)
	return resps[len(resps)-1]
}

func wsMessage(t *testing.T, req WebSocketRequest) []byte {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	return data
}

func TestHandleWebSocketMessage_Workflow(t *testing.T) {
	eng := testutil.NewFakeEngine("HELLO")
	srv := newTestServer(t, eng)
	sess, err := srv.Store().Create()
	require.NoError(t, err)

	conn := &mockWebSocketConn{}
	var wg sync.WaitGroup
	ctx := context.Background()

	srv.handleWebSocketMessage(ctx, conn, sess, wsMessage(t, WebSocketRequest{
		Action: "upload", Filename: "hello.png", Image: testutil.HelloPNG(t),
	}), &wg)
	resp := conn.last(t)
	assert.Equal(t, "state", resp.Type)
	assert.Equal(t, "upload", resp.Action)
	require.NotNil(t, resp.Session)
	assert.Equal(t, workflow.ImageLoaded, resp.Session.State)

	srv.handleWebSocketMessage(ctx, conn, sess, wsMessage(t, WebSocketRequest{Action: "extract"}), &wg)
	wg.Wait()
	resp = conn.last(t)
	assert.Equal(t, "extract", resp.Action)
	require.NotNil(t, resp.Session.Result)
	assert.Equal(t, "HELLO", resp.Session.Result.Text)

	srv.handleWebSocketMessage(ctx, conn, sess, wsMessage(t, WebSocketRequest{Action: "copy"}), &wg)
	resp = conn.last(t)
	assert.Equal(t, "artifact", resp.Type)
	require.NotNil(t, resp.Artifact)
	assert.Equal(t, "extracted_text.txt", resp.Artifact.Filename)
	assert.Equal(t, "text/plain", resp.Artifact.MIMEType)
	assert.Equal(t, "HELLO", resp.Artifact.Text)

	srv.handleWebSocketMessage(ctx, conn, sess, wsMessage(t, WebSocketRequest{Action: "reset"}), &wg)
	resp = conn.last(t)
	assert.Equal(t, workflow.Idle, resp.Session.State)

	srv.handleWebSocketMessage(ctx, conn, sess, wsMessage(t, WebSocketRequest{Action: "state"}), &wg)
	assert.Equal(t, workflow.Idle, conn.last(t).Session.State)
}

func TestHandleWebSocketMessage_Errors(t *testing.T) {
	srv := newTestServer(t, testutil.NewFakeEngine())
	sess, err := srv.Store().Create()
	require.NoError(t, err)

	tests := []struct {
		name    string
		data    []byte
		errType string
	}{
		{"invalid json", []byte("{"), "invalid_request"},
		{"unknown action", []byte(`{"action":"ocr_image"}`), "invalid_request"},
		{"upload without image", []byte(`{"action":"upload"}`), "invalid_request"},
		{"corrupt image", wsMessage(t, WebSocketRequest{Action: "upload", Filename: "x.png", Image: testutil.CorruptPNG()}), "decode_error"},
		{"copy without result", []byte(`{"action":"copy"}`), "no_result"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &mockWebSocketConn{}
			var wg sync.WaitGroup
			srv.handleWebSocketMessage(context.Background(), conn, sess, tt.data, &wg)
			wg.Wait()

			resp := conn.last(t)
			assert.Equal(t, "error", resp.Type)
			assert.Equal(t, tt.errType, resp.ErrorType)
			assert.NotEmpty(t, resp.Error)
		})
	}

	t.Run("extract without image", func(t *testing.T) {
		conn := &mockWebSocketConn{}
		var wg sync.WaitGroup
		srv.handleWebSocketMessage(context.Background(), conn, sess, []byte(`{"action":"extract"}`), &wg)
		wg.Wait()
		assert.Equal(t, "no_image", conn.last(t).ErrorType)
	})
}

func TestHandleWebSocketMessage_BusyDuringExtraction(t *testing.T) {
	eng := testutil.NewFakeEngine("HELLO")
	eng.Gate = make(chan struct{})
	eng.Started = make(chan struct{}, 1)
	srv := newTestServer(t, eng)
	sess, err := srv.Store().Create()
	require.NoError(t, err)

	conn := &mockWebSocketConn{}
	var wg sync.WaitGroup
	ctx := context.Background()

	srv.handleWebSocketMessage(ctx, conn, sess, wsMessage(t, WebSocketRequest{
		Action: "upload", ContentType: "image/png", Image: testutil.HelloPNG(t),
	}), &wg)
	srv.handleWebSocketMessage(ctx, conn, sess, []byte(`{"action":"extract"}`), &wg)
	<-eng.Started

	srv.handleWebSocketMessage(ctx, conn, sess, []byte(`{"action":"reset"}`), &wg)
	resp := conn.last(t)
	assert.Equal(t, "busy", resp.ErrorType)
	assert.Equal(t, workflow.Processing, resp.Session.State)

	close(eng.Gate)
	wg.Wait()
	assert.Equal(t, workflow.ResultReady, conn.last(t).Session.State)
}

func TestSessionWebSocket_EndToEnd(t *testing.T) {
	srv := newTestServer(t, testutil.NewFakeEngine("HELLO", "WORLD"))
	r := mux.NewRouter()
	srv.SetupRoutes(r)
	ts := httptest.NewServer(r)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	read := func() WebSocketResponse {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var resp WebSocketResponse
		require.NoError(t, conn.ReadJSON(&resp))
		return resp
	}

	initial := read()
	assert.Equal(t, "state", initial.Type)
	assert.Equal(t, workflow.Idle, initial.Session.State)
	assert.Equal(t, 1, srv.Store().Len())

	require.NoError(t, conn.WriteJSON(WebSocketRequest{Action: "upload", Filename: "hello.png", Image: testutil.HelloPNG(t)}))
	assert.Equal(t, workflow.ImageLoaded, read().Session.State)

	require.NoError(t, conn.WriteJSON(WebSocketRequest{Action: "extract"}))
	resp := read()
	require.Equal(t, workflow.ResultReady, resp.Session.State)
	assert.Equal(t, "HELLO WORLD", resp.Session.Result.Text)

	require.NoError(t, conn.WriteJSON(WebSocketRequest{Action: "copy"}))
	assert.Equal(t, "HELLO WORLD", read().Artifact.Text)

	require.NoError(t, conn.WriteJSON(WebSocketRequest{Action: "reset"}))
	assert.Equal(t, workflow.Idle, read().Session.State)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = conn.Close()

	assert.Eventually(t, func() bool { return srv.Store().Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSessionWebSocket_LiveConnectionSurvivesTTL(t *testing.T) {
	srv := newTestServer(t, testutil.NewFakeEngine("HELLO"), func(c *Config) {
		c.Session.TTL = 100 * time.Millisecond
		c.Session.JanitorInterval = 10 * time.Millisecond
		c.Session.MaxSessions = 1
	})
	r := mux.NewRouter()
	srv.SetupRoutes(r)
	ts := httptest.NewServer(r)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var initial WebSocketResponse
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&initial))
	id := initial.Session.ID

	time.Sleep(300 * time.Millisecond)

	assert.Equal(t, 1, srv.Store().Len())
	_, err = srv.Store().Get(id)
	require.NoError(t, err)

	rec := doRequest(r, http.MethodPost, "/sessions", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "a live connection holds its slot")

	require.NoError(t, conn.WriteJSON(WebSocketRequest{Action: "state"}))
	var resp WebSocketResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "state", resp.Type)
	assert.Equal(t, id, resp.Session.ID)
}
