package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/scanocr/internal/imageio"
)

// Remote delegates recognition to a pogo-compatible OCR server exposing
// POST /ocr/image.
type Remote struct {
	baseURL string
	client  *http.Client
}

// NewRemote builds a client for cfg.URL. A nil httpClient selects a client
// with a conservative timeout.
func NewRemote(cfg RemoteConfig, httpClient *http.Client) (*Remote, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: remote engine needs a url", ErrUnavailable)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Remote{baseURL: strings.TrimRight(cfg.URL, "/"), client: httpClient}, nil
}

func (r *Remote) Name() string { return NameRemote }

type remoteRegion struct {
	Text string `json:"text"`
}

type remoteResponse struct {
	OCR *struct {
		Regions []remoteRegion `json:"regions"`
	} `json:"ocr"`
	Error string `json:"error,omitempty"`
}

// Recognize uploads the image as multipart form data and returns the text
// of each detected region.
func (r *Remote) Recognize(ctx context.Context, img image.Image, languages []string) ([]string, error) {
	data, err := imageio.EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", "upload.png")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if len(languages) > 0 {
		if err := w.WriteField("language", languages[0]); err != nil {
			return nil, err
		}
	}
	if err := w.WriteField("format", "json"); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/ocr/image", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read remote response: %w", err)
	}

	var out remoteResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("remote returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("decode remote response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != "" {
			return nil, fmt.Errorf("remote returned status %d: %s", resp.StatusCode, out.Error)
		}
		return nil, fmt.Errorf("remote returned status %d", resp.StatusCode)
	}
	if out.OCR == nil {
		return nil, errors.New("remote response has no ocr result")
	}

	fragments := make([]string, 0, len(out.OCR.Regions))
	for _, region := range out.OCR.Regions {
		fragments = append(fragments, region.Text)
	}
	return fragments, nil
}
