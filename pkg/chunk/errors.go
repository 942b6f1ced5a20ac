package chunk

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Common runner construction errors.
var (
	ErrNilJob           = errors.New("chunk job cannot be nil")
	ErrInvalidChunkSize = errors.New("chunk size must be at least 1")
	ErrMissingFunc      = errors.New("chunk funcs missing required callback")
)

// Stage identifies where in a run a run-fatal failure occurred.
type Stage string

const (
	StagePreprocess  Stage = "preprocess"
	StageIDs         Stage = "ids"
	StageBeforeChunk Stage = "before_chunk"
	StageResolve     Stage = "resolve"
	StageMap         Stage = "map"
	StageAfterChunk  Stage = "after_chunk"
	StagePostprocess Stage = "postprocess"
	StageHook        Stage = "hook"
	StageContext     Stage = "context"
)

// StageError is the run-fatal failure reported by Runner.Execute.
type StageError struct {
	// Stage is the step that failed.
	Stage Stage

	// Chunk is the 1-based chunk being processed, or 0 outside the chunk loop.
	Chunk int

	// Err is the error returned by the callback, or the recovered panic.
	Err error
}

func (e *StageError) Error() string {
	if e.Chunk > 0 {
		return fmt.Sprintf("%s failed on chunk %d: %v", e.Stage, e.Chunk, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// panicError converts a recovered value into an error carrying the panicking stack.
func panicError(rec any) error {
	if err, ok := rec.(error); ok {
		return pkgerrors.WithStack(fmt.Errorf("panic: %w", err))
	}
	return pkgerrors.Errorf("panic: %v", rec)
}
