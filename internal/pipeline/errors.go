// Package pipeline holds the error-kind taxonomy used by the coordinator
// and wake protocol, generalized from the teacher's
// HTTP-status-classified custom error into pipeline-stage kinds.
package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline Error by its origin and retry policy.
type Kind string

const (
	KindWorkerUnavailable   Kind = "worker_unavailable"
	KindBatchTransportError Kind = "batch_transport_error"
	KindItemProcessingError Kind = "item_processing_error"
	KindPersistenceConflict Kind = "persistence_conflict"
	KindPersistenceTransient Kind = "persistence_transient"
	KindPromotionInputEmpty Kind = "promotion_input_empty"
	KindCancelledByOperator Kind = "cancelled_by_operator"
)

// Error is a classified pipeline failure. The Kind lets callers decide
// retry/compensation behavior without string-matching messages.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified Error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is a pipeline Error of the given kind.
func Is(err error, kind Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// ErrWorkerUnavailable is returned by the wake protocol when the poll
// window expires without the worker becoming ready.
var ErrWorkerUnavailable = New(KindWorkerUnavailable, "wake", errors.New("worker did not become ready within poll window"))

// ErrPipelineAborted is returned by the Coordinator's Run when the run as a
// whole could not proceed.
var ErrPipelineAborted = errors.New("pipeline aborted")
