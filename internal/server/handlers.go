package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/MeKo-Tech/scanocr/internal/imageio"
	"github.com/MeKo-Tech/scanocr/internal/session"
	"github.com/MeKo-Tech/scanocr/internal/version"
	"github.com/MeKo-Tech/scanocr/internal/workflow"
)

// Error types reported in the error_type field.
const (
	errTypeDecode      = "decode_error"
	errTypeRecognition = "recognition_error"
	errTypeBusy        = "busy"
	errTypeNoImage     = "no_image"
	errTypeNoResult    = "no_result"
	errTypeNotFound    = "not_found"
	errTypeCapacity    = "capacity"
	errTypeTooLarge    = "too_large"
	errTypeBadRequest  = "invalid_request"
	errTypeInternal    = "internal_error"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "healthy",
		Version:  version.Version,
		Time:     time.Now().UTC().Format(time.RFC3339),
		Sessions: s.store.Len(),
	})
}

// engineHandler reports the configured OCR engine.
func (s *Server) engineHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, EngineResponse{
		Name:      s.engine.Name(),
		Languages: s.languages,
	})
}

// classifyError maps workflow and store errors to an HTTP status and an
// error_type.
func classifyError(err error) (int, string) {
	var (
		decErr  *imageio.DecodeError
		recErr  *workflow.RecognitionError
		clipErr *workflow.ClipboardError
	)
	switch {
	case errors.As(err, &decErr):
		return http.StatusBadRequest, errTypeDecode
	case errors.As(err, &recErr):
		return http.StatusBadGateway, errTypeRecognition
	case errors.Is(err, workflow.ErrBusy):
		return http.StatusConflict, errTypeBusy
	case errors.Is(err, workflow.ErrNoImage):
		return http.StatusConflict, errTypeNoImage
	case errors.As(err, &clipErr):
		return http.StatusConflict, errTypeNoResult
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, errTypeNotFound
	case errors.Is(err, session.ErrCapacity):
		return http.StatusServiceUnavailable, errTypeCapacity
	}
	return http.StatusInternalServerError, errTypeInternal
}

// writeWorkflowError writes err using the status mapping of classifyError.
// snap, when non-nil, is attached so clients see the state after the error.
func (s *Server) writeWorkflowError(w http.ResponseWriter, err error, snap *workflow.Snapshot) {
	status, errType := classifyError(err)
	s.writeJSON(w, status, ErrorResponse{
		Success:   false,
		Error:     err.Error(),
		ErrorType: errType,
		Session:   snap,
	})
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message, errType string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{
		Success:   false,
		Error:     message,
		ErrorType: errType,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Log error, but can't send another response
		s.log.Error("Failed to encode response", "error", err)
	}
}
