package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/scanocr/internal/imageio"
	"github.com/MeKo-Tech/scanocr/internal/workflow"
	"github.com/gorilla/mux"
)

// lookupSession resolves the {id} route variable, writing a 404 on miss.
func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*workflow.Session, bool) {
	sess, err := s.store.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeWorkflowError(w, err, nil)
		return nil, false
	}
	return sess, true
}

func (s *Server) writeSession(w http.ResponseWriter, status int, snap workflow.Snapshot) {
	s.writeJSON(w, status, SessionResponse{Success: true, Session: snap})
}

// createSessionHandler starts a new Idle session.
func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Create()
	if err != nil {
		s.writeWorkflowError(w, err, nil)
		return
	}
	s.log.Info("Session created", "session", sess.ID(), "remote_addr", getClientIP(r))
	s.writeSession(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	s.writeSession(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.store.Delete(id) {
		s.writeErrorResponse(w, "session not found", errTypeNotFound, http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// uploadImageHandler attaches the multipart "image" part to the session.
func (s *Server) uploadImageHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	// Parse multipart form
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(strings.ToLower(err.Error()), "request body too large") {
			uploadsTotal.WithLabelValues("too_large").Inc()
			s.writeErrorResponse(w, "File too large", errTypeTooLarge, http.StatusRequestEntityTooLarge)
			return
		}
		uploadsTotal.WithLabelValues("invalid_request").Inc()
		s.writeErrorResponse(w, "Failed to parse form data", errTypeBadRequest, http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		uploadsTotal.WithLabelValues("invalid_request").Inc()
		s.writeErrorResponse(w, "No image file provided", errTypeBadRequest, http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		uploadsTotal.WithLabelValues("invalid_request").Inc()
		s.writeErrorResponse(w, "Failed to read image data", errTypeBadRequest, http.StatusBadRequest)
		return
	}
	uploadSizeBytes.Observe(float64(len(data)))

	snap, err := sess.Upload(data, declaredType(header.Filename, header.Header.Get("Content-Type")))
	if err != nil {
		_, errType := classifyError(err)
		uploadsTotal.WithLabelValues(errType).Inc()
		s.writeWorkflowError(w, err, &snap)
		return
	}
	uploadsTotal.WithLabelValues("success").Inc()
	s.writeSession(w, http.StatusOK, snap)
}

// declaredType prefers an image/* part Content-Type over the filename.
// Browsers send application/octet-stream for unknown files, which is
// ignored.
func declaredType(filename, contentType string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(mediaType, "image/") {
		return contentType
	}
	return filename
}

// previewImageHandler renders the current image as a bounded PNG.
func (s *Server) previewImageHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	img := sess.CurrentImage()
	if img == nil {
		s.writeWorkflowError(w, workflow.ErrNoImage, nil)
		return
	}

	size := s.previewSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeErrorResponse(w, "size must be a positive integer", errTypeBadRequest, http.StatusBadRequest)
			return
		}
		size = min(n, s.previewSize)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := imageio.WritePreview(w, img, size); err != nil {
		s.log.Error("Failed to write preview", "session", sess.ID(), "error", err)
	}
}

// extractHandler runs the engine synchronously. The request context bounds
// the call, so a client disconnect ends it with a recognition error.
func (s *Server) extractHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	start := time.Now()
	snap, err := sess.Extract(r.Context())
	duration := time.Since(start)

	name := s.engine.Name()
	if err != nil {
		_, errType := classifyError(err)
		extractionsTotal.WithLabelValues(name, errType).Inc()
		if errType == errTypeRecognition {
			extractionDuration.WithLabelValues(name).Observe(duration.Seconds())
		}
		s.writeWorkflowError(w, err, &snap)
		return
	}

	extractionsTotal.WithLabelValues(name, "success").Inc()
	extractionDuration.WithLabelValues(name).Observe(duration.Seconds())
	if snap.Result != nil {
		extractedTextLength.WithLabelValues(name).Observe(float64(len(snap.Result.Text)))
	}
	s.writeSession(w, http.StatusOK, snap)
}

func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	snap, err := sess.Reset()
	if err != nil {
		s.writeWorkflowError(w, err, &snap)
		return
	}
	s.writeSession(w, http.StatusOK, snap)
}

// textHandler serves the result as an extracted_text.txt download.
func (s *Server) textHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	art, err := sess.Artifact()
	if err != nil {
		snap := sess.Snapshot()
		s.writeWorkflowError(w, err, &snap)
		return
	}

	w.Header().Set("Content-Type", workflow.ArtifactContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(art.Body); err != nil {
		s.log.Error("Failed to write artifact", "session", sess.ID(), "error", err)
	}
}
