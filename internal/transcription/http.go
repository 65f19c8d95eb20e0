package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/config"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/types"
)

const (
	defaultWhisperURL     = "http://localhost:8387"
	defaultWhisperTimeout = 120 * time.Second
)

// WhisperHTTP calls a faster-whisper HTTP sidecar.
type WhisperHTTP struct {
	url      string
	model    string
	language string
	device   string
	client   *http.Client
}

// NewWhisperHTTP creates a sidecar recognizer.
func NewWhisperHTTP(cfg config.Recognition) *WhisperHTTP {
	url := cfg.URL
	if url == "" {
		url = defaultWhisperURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultWhisperTimeout
	}
	return &WhisperHTTP{
		url:      url,
		model:    cfg.Model,
		language: cfg.Language,
		device:   cfg.Device,
		client:   &http.Client{Timeout: timeout},
	}
}

// Name returns the engine name.
func (p *WhisperHTTP) Name() string { return EngineWhisperHTTP }

// IsAvailable checks if the sidecar is reachable.
func (p *WhisperHTTP) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Transcribe sends an audio file to the sidecar.
func (p *WhisperHTTP) Transcribe(ctx context.Context, req Request) (*types.Recognition, error) {
	audioData, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read audio file: %v", ErrFailed, err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("audio", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audioData); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}
	if model := firstNonEmpty(req.Model, p.model); model != "" {
		_ = writer.WriteField("model", model)
	}
	if lang := firstNonEmpty(req.Language, p.language); lang != "" {
		_ = writer.WriteField("language", lang)
	}
	if p.device != "" && p.device != "auto" {
		_ = writer.WriteField("device", p.device)
	}
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url+"/transcribe", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: whisper request: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		kind := ErrFailed
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			kind = ErrUnavailable
		}
		return nil, fmt.Errorf("%w: whisper error (status %d): %s", kind, resp.StatusCode, bytes.TrimSpace(body))
	}

	var out whisperOutput
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode whisper response: %v", ErrFailed, err)
	}
	return clean(out.recognition()), nil
}
