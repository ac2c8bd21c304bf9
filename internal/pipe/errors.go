package pipe

import (
	"errors"
	"fmt"

	"github.com/samwightt/rubberdux/internal/ir"
)

var (
	// ErrNilStore is returned by New when no store is provided.
	ErrNilStore = errors.New("pipe: store is nil")

	// ErrNilPipe is returned by CreatePipe when the pipe function is nil.
	ErrNilPipe = errors.New("pipe: pipe function is nil")

	// ErrNilStream is reported when a pipe function returns a nil stream.
	ErrNilStream = errors.New("pipe: pipe function returned a nil stream")
)

// PipeErrorCode categorizes pipe failures.
type PipeErrorCode string

const (
	// ErrCodeBuild indicates the pipe function panicked or returned nil.
	ErrCodeBuild PipeErrorCode = "PIPE_BUILD_FAILED"

	// ErrCodeStream indicates the pipe's stream failed after it was created.
	// The pipe is detached; other pipes are unaffected.
	ErrCodeStream PipeErrorCode = "PIPE_STREAM_FAILED"
)

// PipeError reports a failure isolated to one pipe.
type PipeError struct {
	Code   PipeErrorCode
	PipeID string
	Name   string
	Err    error
}

// Error implements the error interface.
func (e *PipeError) Error() string {
	if e.Name != "" && e.Name != e.PipeID {
		return fmt.Sprintf("%s: pipe %s (%s): %v", e.Code, e.Name, e.PipeID, e.Err)
	}
	return fmt.Sprintf("%s: pipe %s: %v", e.Code, e.PipeID, e.Err)
}

// Unwrap returns the underlying error.
func (e *PipeError) Unwrap() error {
	return e.Err
}

// DispatchError reports a store.Dispatch call that panicked.
type DispatchError struct {
	Action ir.Action
	Err    error
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("store dispatch of %q failed: %v", e.Action.Type, e.Err)
}

// Unwrap returns the underlying error.
func (e *DispatchError) Unwrap() error {
	return e.Err
}

// IsPipeError returns true if err wraps a *PipeError.
func IsPipeError(err error) bool {
	var pe *PipeError
	return errors.As(err, &pe)
}

// IsStreamError returns true if err wraps a *PipeError with ErrCodeStream.
func IsStreamError(err error) bool {
	var pe *PipeError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeStream
	}
	return false
}

// IsDispatchError returns true if err wraps a *DispatchError.
func IsDispatchError(err error) bool {
	var de *DispatchError
	return errors.As(err, &de)
}
