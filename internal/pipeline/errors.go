package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrorKind classifies a stage failure.
type ErrorKind string

const (
	KindServiceError    ErrorKind = "service_error"
	KindTimeout         ErrorKind = "timeout"
	KindMalformedOutput ErrorKind = "malformed_output"
	KindEmptyResult     ErrorKind = "empty_result"
)

// ErrCancelled is returned when the caller aborts a run. No partial result
// accompanies it.
var ErrCancelled = eris.New("pipeline: run cancelled")

// StageError is a recoverable failure of one stage. It never escapes Run;
// the orchestrator records it and applies the stage's degradation policy.
type StageError struct {
	Stage StageName
	Kind  ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Describe is the stage_errors entry for this failure.
func (e *StageError) Describe() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func malformedf(format string, args ...any) error {
	return &StageError{Kind: KindMalformedOutput, Err: fmt.Errorf(format, args...)}
}

func emptyf(format string, args ...any) error {
	return &StageError{Kind: KindEmptyResult, Err: fmt.Errorf(format, args...)}
}

func errFieldWritten(stage StageName) error {
	return malformedf("output of %s already written", stage)
}

// classify turns whatever a stage returned into a StageError. stageCtx is
// the per-stage context so that its deadline maps to KindTimeout.
func classify(stage StageName, stageCtx context.Context, err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		return &StageError{Stage: stage, Kind: se.Kind, Err: se.Err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		return &StageError{Stage: stage, Kind: KindTimeout, Err: err}
	}
	return &StageError{Stage: stage, Kind: KindServiceError, Err: err}
}
