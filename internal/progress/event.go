// Package progress defines the event structures emitted by a running job.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the lifecycle or progress milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageJobStart             Stage = "JOB_START"
	StageJobDone              Stage = "JOB_DONE"
	StageJobError             Stage = "JOB_ERROR"
	StageStreamStart          Stage = "STREAM_START"
	StageStreamEnd            Stage = "STREAM_END"
	StageRowReceived          Stage = "ROW_RECEIVED"
	StageRowGenerated         Stage = "ROW_GENERATED"
	StageRowGenerationFailed  Stage = "ROW_GENERATION_FAILED"
	StageBatchTransformed     Stage = "BATCH_TRANSFORMED"
	StageBatchTransformFailed Stage = "BATCH_TRANSFORM_FAILED"
	StageBatchLoaded          Stage = "BATCH_LOADED"
	StageBatchLoadFailed      Stage = "BATCH_LOAD_FAILED"
)

// IsDestination reports whether the stage is scoped to a single destination.
func (s Stage) IsDestination() bool {
	switch s {
	case StageRowGenerated, StageRowGenerationFailed,
		StageBatchTransformed, StageBatchTransformFailed,
		StageBatchLoaded, StageBatchLoadFailed:
		return true
	default:
		return false
	}
}

// IsFailure reports whether the stage carries a pipeline-reported failure.
func (s Stage) IsFailure() bool {
	switch s {
	case StageJobError, StageRowGenerationFailed, StageBatchTransformFailed, StageBatchLoadFailed:
		return true
	default:
		return false
	}
}

// Event captures a single milestone of a job run.
type Event struct {
	// Stage denotes which lifecycle or progress milestone occurred.
	Stage Stage
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// RunID optionally correlates events of one job run in diagnostic logs.
	RunID string
	// Destination is the destination index for destination-scoped stages.
	Destination int
	// Payload is the row or batch the event refers to. It is opaque to
	// consumers beyond size measurement and display.
	Payload any
	// Info carries the descriptive values supplied with StageStreamStart.
	Info []any
	// Err describes the failure for failure stages.
	Err error
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageJobStart, StageJobDone, StageJobError, StageStreamStart, StageStreamEnd, StageRowReceived:
	case StageRowGenerated, StageRowGenerationFailed,
		StageBatchTransformed, StageBatchTransformFailed,
		StageBatchLoaded, StageBatchLoadFailed:
		if e.Destination < 0 {
			return fmt.Errorf("%s requires a destination index >= 0", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	return nil
}
