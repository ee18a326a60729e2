package pipeline

import (
	"errors"
	"fmt"
)

// ErrorKind classifies stage failures.
type ErrorKind string

const (
	KindAcquisition ErrorKind = "AcquisitionError"
	KindSynthesis   ErrorKind = "SynthesisError"
	KindAssembly    ErrorKind = "AssemblyError"
	KindPublish     ErrorKind = "PublishError"
	// KindDecoration failures are logged and never fail a job.
	KindDecoration ErrorKind = "NonFatalDecorationError"
)

// ErrInvalidInvocation marks a payload that can never be processed.
var ErrInvalidInvocation = errors.New("invalid invocation")

// StageError is a failure of one pipeline stage.
type StageError struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the failure aborts the job.
func (e *StageError) Fatal() bool {
	return e.Kind != KindDecoration
}

// ProcessingFailure is returned by Run when a job ended in the failed state.
type ProcessingFailure struct {
	JobID   string
	DateKey string
	Cause   *StageError
}

func (f *ProcessingFailure) Error() string {
	return fmt.Sprintf("job %s (%s) failed with %s at %s", f.JobID, f.DateKey, f.Cause.Kind, f.Cause)
}

func (f *ProcessingFailure) Unwrap() error {
	return f.Cause
}

func stageErr(kind ErrorKind, stage string, err error) *StageError {
	return &StageError{Kind: kind, Stage: stage, Err: err}
}
