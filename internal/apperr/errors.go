// Package apperr provides the structured error type used across the
// transcription pipeline. Every error names the stage it came from and,
// where relevant, the chunk index.
package apperr

import (
	"errors"
	"fmt"
)

// NoChunk marks errors that are not tied to a specific chunk.
const NoChunk = -1

// Error is the unified pipeline error type.
type Error struct {
	Code      Code
	Stage     Stage
	Chunk     int
	Message   string
	Retryable bool
	Cause     error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	where := string(e.Stage)
	if e.Chunk != NoChunk {
		where = fmt.Sprintf("%s (chunk %d)", e.Stage, e.Chunk)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Code, where, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, where, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *Error) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause and returns the receiver.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithChunk sets the chunk index and returns the receiver.
func (e *Error) WithChunk(index int) *Error {
	e.Chunk = index
	return e
}

// New creates an Error with automatic retryable detection.
func New(code Code, stage Stage, message string) *Error {
	return &Error{
		Code:      code,
		Stage:     stage,
		Chunk:     NoChunk,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// Input creates an INPUT_ERROR for a missing or undecodable asset.
func Input(path string, cause error) *Error {
	return New(CodeInput, StageInput, fmt.Sprintf("cannot read audio %q", path)).WithCause(cause)
}

// Recognition creates a RECOGNITION_FAILED error for a chunk.
func Recognition(chunk int, cause error) *Error {
	return New(CodeRecognition, StageRecognition, "recognition failed").WithChunk(chunk).WithCause(cause)
}

// Format creates a FORMAT_ERROR for a malformed chunk intermediate.
func Format(chunk int, message string) *Error {
	return New(CodeFormat, StageMerge, message).WithChunk(chunk)
}

// Output creates an OUTPUT_FAILED error.
func Output(path string, cause error) *Error {
	return New(CodeOutput, StageOutput, fmt.Sprintf("cannot write %q", path)).WithCause(cause)
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// IsRetryable reports whether err is marked retryable.
func IsRetryable(err error) bool {
	e, ok := As(err)
	return ok && e.Retryable
}
