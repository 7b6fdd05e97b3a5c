// Package store defines the FlowStore contract: the authoritative state of
// runs, elements, and results. All mutations must be safe under concurrent
// access by the dispatcher, workers, and external readers.
package store

import (
	"errors"
	"time"

	"github.com/flowrun/flowengine/pkg/flow"
)

// ErrRunNotFound is returned by read operations when a run id is unknown.
var ErrRunNotFound = errors.New("flowengine: run not found")

// ErrResultNotFound is returned by GetResult when the run has no recorded
// result (either still running, terminal without a result, or unknown).
var ErrResultNotFound = errors.New("flowengine: result not found")

// FlowStore persists run metadata, ordered elements, and results.
//
// Writes are total and infallible given a consistent store: a run-record
// update against an unknown id is a no-op, not an error. SaveElement does
// not check that its run exists; it appends under el.RunID regardless.
// Reads return ErrRunNotFound /
// ErrResultNotFound rather than a zero value when the id is unknown.
type FlowStore interface {
	// SaveRun inserts a new run. run.ID must be unique; returns the id.
	SaveRun(run *flow.Run) (string, error)

	// GetRun returns the run record or ErrRunNotFound.
	GetRun(id string) (*flow.Run, error)

	// ListRunsForUser returns up to limit runs for userID, most recent first.
	ListRunsForUser(userID string, limit int) ([]*flow.Run, error)

	// UpdateRunStatus atomically transitions a run's status. If the new
	// status is terminal, CompletedAt is also set to now. A run already in
	// a terminal status silently ignores further transitions.
	UpdateRunStatus(id string, status flow.Status, now time.Time) error

	// UpdateRunCompletionTime sets CompletedAt directly.
	UpdateRunCompletionTime(id string, t time.Time) error

	// UpdateRunErrorMessage sets ErrorMessage directly.
	UpdateRunErrorMessage(id string, msg string) error

	// SaveElement appends an element to its run's ordered sequence and
	// returns its id.
	SaveElement(el *flow.Element) (string, error)

	// GetElements returns all elements for runID in CreatedAt ascending
	// order (insertion order as tiebreak). An unknown or empty run yields
	// an empty, non-nil slice.
	GetElements(runID string) ([]*flow.Element, error)

	// SaveResult records the terminal result payload and mirrors it onto
	// the run record.
	SaveResult(runID string, result any) error

	// GetResult returns the recorded result, or ErrResultNotFound.
	GetResult(runID string) (any, error)
}
