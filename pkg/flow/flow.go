// Package flow defines the types a flow author and the executor share:
// the Flow contract itself, the run/element data model, and the lifecycle
// status enumeration observable at the process boundary.
package flow

import (
	"context"
	"sync"
	"time"
)

// Status is the lifecycle state of a FlowRun.
//
// A run's status progresses monotonically: Pending -> Running ->
// {Completed | Failed | Canceled}. Once terminal, it never changes again.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCanceled  Status = "CANCELED"
)

// IsTerminal reports whether s is one of the run's terminal states.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// Run is one submission: a single invocation of a registered Flow with a
// specific input, identified by a unique id and carrying status and
// timestamps.
type Run struct {
	ID           string
	FlowName     string
	UserID       string
	Status       Status
	CreatedAt    time.Time
	CompletedAt  time.Time
	Input        any
	Result       any
	ErrorMessage string
}

// Element is one intermediate value emitted by a Flow during its
// execution. Elements belonging to a run form an ordered sequence by
// CreatedAt, with insertion order as a tiebreak.
type Element struct {
	ID        string
	RunID     string
	CreatedAt time.Time
	Content   any
}

// Flow is a user-registered, named procedure that consumes an opaque input,
// lazily produces a sequence of intermediate elements, and optionally sets
// one terminal result via the RunContext before its element stream ends.
//
// Run must be cooperatively cancellable: implementations should select on
// ctx.Done() at every suspension point (an await, a channel receive, a
// blocking call) and return promptly once it fires.
type Flow interface {
	// Name identifies this flow for registry lookup. It must match the
	// name the flow was registered under.
	Name() string

	// Run executes the flow for one input, returning a channel of Emission
	// values. The channel is closed when the flow's element stream ends,
	// whether normally, by error, or by cancellation. Exactly one of
	// Emission.Err or end-of-channel-without-error marks completion.
	Run(ctx context.Context, input any, rc *RunContext) <-chan Emission
}

// Emission is one value pulled from a Flow's lazy element stream: either an
// element to persist, or a terminal error (including a ctx.Err() when the
// run was cancelled).
type Emission struct {
	Element any
	Err     error
}

// RunContext is the mutable holder passed into Flow.Run. A flow calls
// SetResult at most once before its stream ends; the worker reads Result
// only after the stream has fully drained.
type RunContext struct {
	mu     sync.Mutex
	result any
	set    bool
}

// SetResult records the run's terminal result. Last write wins if called
// more than once.
func (rc *RunContext) SetResult(v any) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.result = v
	rc.set = true
}

// Result returns the result set by the flow, if any. It is intended to be
// called by the worker only after the element stream has ended.
func (rc *RunContext) Result() (any, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.result, rc.set
}
