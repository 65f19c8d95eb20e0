package diarization

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/types"
)

const (
	// EnginePyannote is the registered name of the pyannote sidecar backend.
	EnginePyannote = "pyannote"

	defaultPyannoteURL     = "http://localhost:8388"
	defaultPyannoteTimeout = 300 * time.Second
)

// Pyannote calls a pyannote.audio HTTP sidecar.
type Pyannote struct {
	baseURL string
	client  *http.Client
}

// NewPyannote creates a pyannote sidecar engine.
func NewPyannote(baseURL string, timeout time.Duration) *Pyannote {
	if baseURL == "" {
		baseURL = defaultPyannoteURL
	}
	if timeout == 0 {
		timeout = defaultPyannoteTimeout
	}
	return &Pyannote{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

// Name returns the engine name.
func (p *Pyannote) Name() string { return EnginePyannote }

// IsAvailable checks if the sidecar is reachable.
func (p *Pyannote) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
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

// Diarize sends audio to the sidecar and returns its speaker turns.
func (p *Pyannote) Diarize(ctx context.Context, req Request) (*Response, error) {
	audioData, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
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
	if req.NumSpeakers > 0 {
		_ = writer.WriteField("num_speakers", strconv.Itoa(req.NumSpeakers))
	}
	if req.MinSpeakers > 0 {
		_ = writer.WriteField("min_speakers", strconv.Itoa(req.MinSpeakers))
	}
	if req.MaxSpeakers > 0 {
		_ = writer.WriteField("max_speakers", strconv.Itoa(req.MaxSpeakers))
	}
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/diarize", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("diarization request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, ErrAuth
	case http.StatusForbidden:
		return nil, ErrGated
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("diarization error (status %d): %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var result pyannoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode diarization response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("diarization error: %s", result.Error)
	}

	turns := make([]types.SpeakerTurn, len(result.Segments))
	for i, seg := range result.Segments {
		turns[i] = types.SpeakerTurn{Start: seg.StartTime, End: seg.EndTime, Speaker: seg.SpeakerID}
	}
	return &Response{Turns: turns, NumSpeakers: result.NumSpeakers}, nil
}

type pyannoteResponse struct {
	Segments    []pyannoteSegment `json:"segments"`
	NumSpeakers int               `json:"num_speakers"`
	Error       string            `json:"error,omitempty"`
}

type pyannoteSegment struct {
	SpeakerID string  `json:"speaker_id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}
