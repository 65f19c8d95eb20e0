package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/config"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/types"
)

// OpenAI transcribes through the OpenAI audio transcription API.
type OpenAI struct {
	client   openai.Client
	model    string
	language string
}

// NewOpenAI creates an OpenAI recognizer. Whisper model sizes configured for
// local engines map to whisper-1. The endpoint follows OPENAI_BASE_URL unless
// an option overrides it.
func NewOpenAI(cfg config.Recognition, opts ...option.RequestOption) *OpenAI {
	base := []option.RequestOption{option.WithMaxRetries(0)}
	if key := firstNonEmpty(cfg.APIKey, os.Getenv("OPENAI_API_KEY")); key != "" {
		base = append(base, option.WithAPIKey(key))
	}
	if cfg.Timeout > 0 {
		base = append(base, option.WithRequestTimeout(cfg.Timeout))
	}

	model := cfg.Model
	if !strings.HasPrefix(model, "whisper-") && !strings.Contains(model, "transcribe") {
		model = openai.AudioModelWhisper1
	}
	return &OpenAI{
		client:   openai.NewClient(append(base, opts...)...),
		model:    model,
		language: cfg.Language,
	}
}

// Name returns the engine name.
func (o *OpenAI) Name() string { return EngineOpenAI }

// Transcribe uploads the audio and requests segment timestamps.
func (o *OpenAI) Transcribe(ctx context.Context, req Request) (*types.Recognition, error) {
	f, err := os.Open(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open audio file: %v", ErrFailed, err)
	}
	defer f.Close()

	params := openai.AudioTranscriptionNewParams{
		File:                   f,
		Model:                  firstNonEmpty(req.Model, o.model),
		ResponseFormat:         openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"segment"},
	}
	if lang := firstNonEmpty(req.Language, o.language); lang != "" {
		params.Language = openai.String(lang)
	}

	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError && apiErr.StatusCode != http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %v", ErrFailed, err)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrFailed, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var out whisperOutput
	if raw := resp.RawJSON(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, fmt.Errorf("%w: decode transcription: %v", ErrFailed, err)
		}
	}
	if out.Text == "" {
		out.Text = resp.Text
	}
	return clean(out.recognition()), nil
}
