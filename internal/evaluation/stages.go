package evaluation

import (
	"context"
	"errors"
	"fmt"
)

// Stage is one named step of the evaluation pipeline's fixed sequence.
type Stage string

const (
	StageStarting             Stage = "starting"
	StageAnalyzingPhotos      Stage = "analyzing_photos"
	StageFetchingComparables  Stage = "fetching_comparables"
	StageProcessingRPData     Stage = "processing_rp_data"
	StageGeneratingEvaluation Stage = "generating_evaluation"
	StageCompleted            Stage = "completed"
	StageFailed               Stage = "failed"
)

// Status values stored on jobs and property records.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

func (s Stage) String() string {
	return string(s)
}

func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// StatusFor maps a stage to the coarse status exposed on property records.
func StatusFor(s Stage) string {
	switch s {
	case StageCompleted:
		return StatusCompleted
	case StageFailed:
		return StatusFailed
	default:
		return StatusInProgress
	}
}

// nextStage computes the successor of the current stage. processing_rp_data is
// skipped entirely when the property carries no market report; analyzing_photos
// is always visited so pollers see a stable sequence.
func nextStage(current Stage, hasReport bool) Stage {
	switch current {
	case StageStarting:
		return StageAnalyzingPhotos
	case StageAnalyzingPhotos:
		return StageFetchingComparables
	case StageFetchingComparables:
		if hasReport {
			return StageProcessingRPData
		}
		return StageGeneratingEvaluation
	case StageProcessingRPData:
		return StageGeneratingEvaluation
	case StageGeneratingEvaluation:
		return StageCompleted
	default:
		return current
	}
}

// stageIndex gives the position of a stage in the fixed order, used to assert
// monotonic progression.
func stageIndex(s Stage) int {
	switch s {
	case StageStarting:
		return 0
	case StageAnalyzingPhotos:
		return 1
	case StageFetchingComparables:
		return 2
	case StageProcessingRPData:
		return 3
	case StageGeneratingEvaluation:
		return 4
	case StageCompleted, StageFailed:
		return 5
	default:
		return -1
	}
}

// StageError records the stage at which the pipeline failed and whether the
// collaborator exceeded its timeout budget.
type StageError struct {
	Stage   Stage
	Err     error
	Timeout bool
}

func (e *StageError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("stage %s: timeout budget exceeded: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func newStageError(stage Stage, err error) *StageError {
	return &StageError{
		Stage:   stage,
		Err:     err,
		Timeout: errors.Is(err, context.DeadlineExceeded),
	}
}
