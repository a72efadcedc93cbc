package workflow

import "time"

// Snapshot is a read-only copy of a session, shaped for JSON responses.
type Snapshot struct {
	ID        string      `json:"id"`
	State     State       `json:"state"`
	Image     *ImageInfo  `json:"image,omitempty"`
	Result    *ResultInfo `json:"result,omitempty"`
	LastError string      `json:"last_error,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ImageInfo describes the current image without its pixels.
type ImageInfo struct {
	DeclaredType string    `json:"declared_type,omitempty"`
	Format       string    `json:"format"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	Size         int       `json:"size"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// ResultInfo describes the current extraction result.
type ResultInfo struct {
	Text        string    `json:"text"`
	Fragments   []string  `json:"fragments"`
	Engine      string    `json:"engine"`
	DurationMs  float64   `json:"duration_ms"`
	CompletedAt time.Time `json:"completed_at"`
}

// Snapshot returns a copy of the session's current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:        s.id,
		State:     s.state,
		LastError: s.lastErr,
		UpdatedAt: s.updatedAt,
	}
	if img := s.image; img != nil {
		snap.Image = &ImageInfo{
			DeclaredType: img.DeclaredType,
			Format:       string(img.Format),
			Width:        img.Width,
			Height:       img.Height,
			Size:         len(img.Data),
			UploadedAt:   img.UploadedAt,
		}
	}
	if r := s.result; r != nil {
		snap.Result = &ResultInfo{
			Text:        r.Text,
			Fragments:   append([]string{}, r.Fragments...),
			Engine:      r.Engine,
			DurationMs:  float64(r.Duration.Microseconds()) / 1000,
			CompletedAt: r.CompletedAt,
		}
	}
	return snap
}
