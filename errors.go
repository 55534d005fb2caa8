package contentgen

import (
	"errors"
	"fmt"
)

// Stage names the pipeline stage that produced a failure.
type Stage string

const (
	StageValidate Stage = "validate"
	StageGenerate Stage = "generate"
	StageReview   Stage = "review"
	StageRefine   Stage = "refine"
)

// Sentinel errors for the three failure kinds. Role implementations wrap
// these so callers can classify failures with errors.Is regardless of the
// underlying cause (backend unreachable, unparsable output, bad input).
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrGeneration     = errors.New("content generation failed")
	ErrReview         = errors.New("content review failed")
)

// StageError tags a pipeline failure with the stage that produced it. The
// orchestrator never retries; every stage failure is terminal and surfaces
// as a StageError alongside whatever partial result was already assembled.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage extracts the stage tag from a pipeline error, or "" when the
// error did not originate from a pipeline stage.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
