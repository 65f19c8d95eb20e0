// Package diarization reports who spoke when. Any failure to diarize,
// including missing credentials, is reported as an unavailable Result
// rather than an error, so transcription can continue without it.
package diarization

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/config"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/types"
)

var (
	// ErrAuth means the engine rejected the access token.
	ErrAuth = errors.New("authentication failed")
	// ErrGated means the token is valid but has not been granted access to the model.
	ErrGated = errors.New("gated model access denied")
)

// Reasons reported for unavailable results.
const (
	ReasonDisabled      = "disabled"
	ReasonNoCredentials = "no credentials"
	ReasonUnreachable   = "engine unreachable"
)

// Request holds parameters for a diarization call.
type Request struct {
	AudioPath   string
	Token       string
	NumSpeakers int
	MinSpeakers int
	MaxSpeakers int
}

// Response is an engine's raw answer.
type Response struct {
	Turns       []types.SpeakerTurn
	NumSpeakers int
}

// Engine is a diarization backend.
type Engine interface {
	Name() string
	Diarize(ctx context.Context, req Request) (*Response, error)
}

// HealthChecker is implemented by engines that expose a health endpoint.
type HealthChecker interface {
	IsAvailable(ctx context.Context) bool
}

// Result is the outcome of a diarization attempt. When Available is false
// Turns is nil and Reason explains why.
type Result struct {
	Turns       []types.SpeakerTurn
	Available   bool
	Reason      string
	Attempted   []string
	NumSpeakers int
}

// Adapter resolves credentials and calls the configured engine.
type Adapter struct {
	enabled   bool
	engine    Engine
	providers []CredentialProvider
	hints     Request
	log       zerolog.Logger
}

// New creates an Adapter from configuration.
func New(cfg config.Diarization, log zerolog.Logger) (*Adapter, error) {
	var engine Engine
	switch cfg.Engine {
	case EnginePyannote, "":
		engine = NewPyannote(cfg.URL, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown diarization engine %q", cfg.Engine)
	}
	return NewAdapter(cfg.Enabled, engine, Providers(cfg), Request{
		NumSpeakers: cfg.NumSpeakers,
		MinSpeakers: cfg.MinSpeakers,
		MaxSpeakers: cfg.MaxSpeakers,
	}, log), nil
}

// NewAdapter creates an Adapter around an engine and an ordered provider list.
// Speaker count hints are taken from hints.
func NewAdapter(enabled bool, engine Engine, providers []CredentialProvider, hints Request, log zerolog.Logger) *Adapter {
	return &Adapter{enabled: enabled, engine: engine, providers: providers, hints: hints, log: log}
}

// Enabled reports whether diarization is switched on.
func (a *Adapter) Enabled() bool { return a != nil && a.enabled }

// Diarize returns the speaker turns for the audio at path, sorted by start
// with empty turns removed.
func (a *Adapter) Diarize(ctx context.Context, path string) Result {
	if !a.Enabled() {
		return Result{Reason: ReasonDisabled}
	}

	token, attempted := ResolveToken(a.providers)
	if token == "" {
		return a.unavailable(ReasonNoCredentials, attempted, nil)
	}

	if hc, ok := a.engine.(HealthChecker); ok && !hc.IsAvailable(ctx) {
		return a.unavailable(ReasonUnreachable, attempted, nil)
	}

	req := a.hints
	req.AudioPath = path
	req.Token = token
	resp, err := a.engine.Diarize(ctx, req)
	switch {
	case errors.Is(err, ErrAuth):
		return a.unavailable(ErrAuth.Error(), attempted, err)
	case errors.Is(err, ErrGated):
		return a.unavailable(ErrGated.Error(), attempted, err)
	case err != nil:
		return a.unavailable("engine error: "+err.Error(), attempted, err)
	}

	turns := make([]types.SpeakerTurn, 0, len(resp.Turns))
	for _, t := range resp.Turns {
		if t.End > t.Start {
			turns = append(turns, t)
		}
	}
	sort.SliceStable(turns, func(i, j int) bool { return turns[i].Start < turns[j].Start })

	speakers := resp.NumSpeakers
	if speakers == 0 {
		seen := make(map[string]bool)
		for _, t := range turns {
			seen[t.Speaker] = true
		}
		speakers = len(seen)
	}
	return Result{Turns: turns, Available: true, Attempted: attempted, NumSpeakers: speakers}
}

func (a *Adapter) unavailable(reason string, attempted []string, err error) Result {
	a.log.Warn().
		Err(err).
		Str("engine", a.engine.Name()).
		Str("reason", reason).
		Strs("attempted", attempted).
		Msg("diarization unavailable, falling back to pause heuristic")
	return Result{Reason: reason, Attempted: attempted}
}
