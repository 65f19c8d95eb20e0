package transcription

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/types"
)

// Retrying retries requests that failed with ErrUnavailable using
// exponential backoff. Other failures are returned immediately.
type Retrying struct {
	next        Recognizer
	maxAttempts int
	initial     time.Duration
	log         zerolog.Logger
}

// NewRetrying wraps next with at most maxAttempts tries per request.
func NewRetrying(next Recognizer, maxAttempts int, log zerolog.Logger) *Retrying {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retrying{next: next, maxAttempts: maxAttempts, initial: 2 * time.Second, log: log}
}

// Name returns the wrapped engine's name.
func (r *Retrying) Name() string { return r.next.Name() }

// IsAvailable reports whether the wrapped engine is reachable.
func (r *Retrying) IsAvailable(ctx context.Context) bool {
	return Available(ctx, r.next)
}

// Transcribe calls the wrapped recognizer until it succeeds, fails
// permanently or runs out of attempts.
func (r *Retrying) Transcribe(ctx context.Context, req Request) (*types.Recognition, error) {
	attempt := 0
	op := func() (*types.Recognition, error) {
		attempt++
		rec, err := r.next.Transcribe(ctx, req)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, ErrUnavailable) {
			return nil, backoff.Permanent(err)
		}
		r.log.Warn().
			Err(err).
			Str("engine", r.next.Name()).
			Int("attempt", attempt).
			Int("max_attempts", r.maxAttempts).
			Msg("recognition engine unavailable")
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initial
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(r.maxAttempts)),
	)
}
