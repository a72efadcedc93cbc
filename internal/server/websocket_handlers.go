package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/MeKo-Tech/scanocr/internal/workflow"
	"github.com/gorilla/websocket"
)

const (
	wsPongWait     = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteWait    = 10 * time.Second
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin in development
		// In production, you should check against allowed origins
		return true
	},
}

// WebSocket actions.
const (
	wsActionUpload  = "upload"
	wsActionExtract = "extract"
	wsActionReset   = "reset"
	wsActionCopy    = "copy"
	wsActionState   = "state"
)

// WebSocketRequest is a client action. Image is base64 in JSON.
type WebSocketRequest struct {
	Action      string `json:"action"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Image       []byte `json:"image,omitempty"`
}

// WebSocketArtifact carries the copy result.
type WebSocketArtifact struct {
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	Text     string `json:"text"`
}

// WebSocketResponse is sent for every action: type is "state", "artifact"
// or "error".
type WebSocketResponse struct {
	Type      string             `json:"type"`
	Action    string             `json:"action,omitempty"`
	Session   *workflow.Snapshot `json:"session,omitempty"`
	Artifact  *WebSocketArtifact `json:"artifact,omitempty"`
	Error     string             `json:"error,omitempty"`
	ErrorType string             `json:"error_type,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// lockedWriter serializes writes from the read loop and extraction
// goroutines; gorilla connections allow one concurrent writer.
type lockedWriter struct {
	mu   sync.Mutex
	conn WebSocketConnWriter
}

func (l *lockedWriter) WriteMessage(messageType int, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteMessage(messageType, data)
}

// sessionWebSocketHandler gives each connection its own session, pinned
// against idle eviction and deleted when the connection closes.
func (s *Server) sessionWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Create()
	if err != nil {
		s.writeWorkflowError(w, err, nil)
		return
	}
	defer s.store.Delete(sess.ID())
	if err := s.store.Pin(sess.ID()); err != nil {
		s.writeWorkflowError(w, err, nil)
		return
	}

	// Upgrade HTTP connection to WebSocket
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	s.log.Info("WebSocket connection established", "remote_addr", r.RemoteAddr, "session", sess.ID())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.handleWebSocketConnection(ctx, conn, sess)
}

// handleWebSocketConnection runs the read loop until the client leaves.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn, sess *workflow.Session) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	// base64 inflates uploads by a third
	conn.SetReadLimit(s.maxUploadMB*1024*1024*4/3 + 4096)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	// Send ping messages to keep connection alive
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	writer := &lockedWriter{conn: conn}
	s.sendSnapshot(writer, "", sess.Snapshot())

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Error("WebSocket error", "session", sess.ID(), "error", err)
			}
			return
		}

		websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = s.store.Touch(sess.ID())

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, writer, sess, data, &wg)
		}
	}
}

// handleWebSocketMessage applies one client action. Extraction runs in its
// own goroutine so the loop keeps answering; actions arriving meanwhile see
// the Processing state and are rejected as busy.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, sess *workflow.Session, data []byte, wg *sync.WaitGroup) {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, req.Action, errTypeBadRequest, fmt.Sprintf("Failed to parse request: %v", err), nil)
		return
	}

	switch req.Action {
	case wsActionState:
		s.sendSnapshot(conn, req.Action, sess.Snapshot())

	case wsActionUpload:
		if len(req.Image) == 0 {
			s.sendWebSocketError(conn, req.Action, errTypeBadRequest, "No image data provided", nil)
			return
		}
		uploadSizeBytes.Observe(float64(len(req.Image)))
		snap, err := sess.Upload(req.Image, declaredType(req.Filename, req.ContentType))
		if err != nil {
			_, errType := classifyError(err)
			uploadsTotal.WithLabelValues(errType).Inc()
			s.sendWorkflowError(conn, req.Action, err, &snap)
			return
		}
		uploadsTotal.WithLabelValues("success").Inc()
		s.sendSnapshot(conn, req.Action, snap)

	case wsActionExtract:
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := s.engine.Name()
			start := time.Now()
			snap, err := sess.Extract(ctx)
			if err != nil {
				_, errType := classifyError(err)
				extractionsTotal.WithLabelValues(name, errType).Inc()
				s.sendWorkflowError(conn, req.Action, err, &snap)
				return
			}
			extractionsTotal.WithLabelValues(name, "success").Inc()
			extractionDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
			if snap.Result != nil {
				extractedTextLength.WithLabelValues(name).Observe(float64(len(snap.Result.Text)))
			}
			s.sendSnapshot(conn, req.Action, snap)
		}()

	case wsActionReset:
		snap, err := sess.Reset()
		if err != nil {
			s.sendWorkflowError(conn, req.Action, err, &snap)
			return
		}
		s.sendSnapshot(conn, req.Action, snap)

	case wsActionCopy:
		art, err := sess.Artifact()
		if err != nil {
			snap := sess.Snapshot()
			s.sendWorkflowError(conn, req.Action, err, &snap)
			return
		}
		s.sendWebSocketResponse(conn, WebSocketResponse{
			Type:   "artifact",
			Action: req.Action,
			Artifact: &WebSocketArtifact{
				Filename: art.Filename,
				MIMEType: art.MIMEType,
				Text:     string(art.Body),
			},
		})

	default:
		s.sendWebSocketError(conn, req.Action, errTypeBadRequest, "Unsupported action: "+req.Action, nil)
	}
}

func (s *Server) sendSnapshot(conn WebSocketConnWriter, action string, snap workflow.Snapshot) {
	s.sendWebSocketResponse(conn, WebSocketResponse{Type: "state", Action: action, Session: &snap})
}

func (s *Server) sendWorkflowError(conn WebSocketConnWriter, action string, err error, snap *workflow.Snapshot) {
	_, errType := classifyError(err)
	s.sendWebSocketError(conn, action, errType, err.Error(), snap)
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, action, errorType, message string, snap *workflow.Snapshot) {
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "error",
		Action:    action,
		Error:     message,
		ErrorType: errorType,
		Session:   snap,
	})
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		s.log.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.log.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
