// Package executor implements the queued executor: a background dispatcher
// that respects a global concurrency limit, and the per-run worker that
// drives a Flow to completion, coupling the flow store, flow queue, and
// flow registry described alongside it.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/flowrun/flowengine/internal/queue"
	"github.com/flowrun/flowengine/internal/registry"
	"github.com/flowrun/flowengine/internal/store"
	"github.com/flowrun/flowengine/pkg/flow"
)

// ErrAlreadyStarted is returned by Start if called more than once without
// an intervening Stop.
var ErrAlreadyStarted = errors.New("flowengine: executor already started")

// ErrNotStarted is returned by Stop if called before Start.
var ErrNotStarted = errors.New("flowengine: executor not started")

// Executor is the queued executor described by the core specification: it
// owns a background dispatcher and a bounded pool of per-run workers that
// couple Store, Queue, and Registry with user Flow code.
type Executor struct {
	store store.FlowStore
	queue queue.FlowQueue
	reg   *registry.Registry
	cfg   Config

	sem *semaphore.Weighted

	cancels sync.Map // run id -> context.CancelFunc

	mu             sync.Mutex
	running        bool
	dispatcherDone chan struct{}
	stopDispatcher context.CancelFunc
	workerWG       sync.WaitGroup
}

// New constructs an Executor over the given store, queue, and registry.
func New(reg *registry.Registry, st store.FlowStore, q queue.FlowQueue, opts ...Option) *Executor {
	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.withDefaults()

	return &Executor{
		store: st,
		queue: q,
		reg:   reg,
		cfg:   cfg,
		sem:   semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

// Start launches the background dispatcher loop. It returns
// ErrAlreadyStarted if the executor is already running.
func (e *Executor) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrAlreadyStarted
	}

	dispatchCtx, cancel := context.WithCancel(ctx)
	e.stopDispatcher = cancel
	e.dispatcherDone = make(chan struct{})
	e.running = true

	go e.dispatchLoop(dispatchCtx)

	return nil
}

// Stop initiates graceful shutdown: it cancels the dispatcher loop and
// awaits its exit, then waits for in-flight workers to drain, honoring ctx
// as a bail-out deadline. Workers themselves are never force-cancelled by
// Stop; they run to completion.
func (e *Executor) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return ErrNotStarted
	}
	cancel := e.stopDispatcher
	done := e.dispatcherDone
	e.running = false
	e.mu.Unlock()

	cancel()
	<-done

	drained := make(chan struct{})
	go func() {
		e.workerWG.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit creates a run record in status Pending, persists it, enqueues its
// id, and returns the new run id. It never blocks on dispatch.
func (e *Executor) Submit(ctx context.Context, flowName string, input any, userID string) (string, error) {
	if _, err := e.reg.Get(flowName); err != nil {
		return "", fmt.Errorf("submit %q: %w", flowName, err)
	}

	run := &flow.Run{
		ID:        uuid.NewString(),
		FlowName:  flowName,
		UserID:    userID,
		Status:    flow.StatusPending,
		CreatedAt: time.Now(),
		Input:     input,
	}

	if _, err := e.store.SaveRun(run); err != nil {
		return "", fmt.Errorf("submit %q: save run: %w", flowName, err)
	}

	e.cfg.Observer.OnSubmit(ctx, run)
	e.queue.PushPending(run.ID)

	return run.ID, nil
}

// GetStatus returns the stored status, or StatusPending if the run is not
// present (this preserves compatibility with legitimate early polling right
// after Submit).
func (e *Executor) GetStatus(ctx context.Context, runID string) (flow.Status, error) {
	run, err := e.store.GetRun(runID)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return flow.StatusPending, nil
		}
		return "", err
	}
	return run.Status, nil
}

// GetRun returns the full run record, or store.ErrRunNotFound.
func (e *Executor) GetRun(ctx context.Context, runID string) (*flow.Run, error) {
	return e.store.GetRun(runID)
}

// GetElements delegates to the store.
func (e *Executor) GetElements(ctx context.Context, runID string) ([]*flow.Element, error) {
	return e.store.GetElements(runID)
}

// GetResult delegates to the store.
func (e *Executor) GetResult(ctx context.Context, runID string) (any, error) {
	return e.store.GetResult(runID)
}

// ListRunsForUser delegates to the store.
func (e *Executor) ListRunsForUser(ctx context.Context, userID string, limit int) ([]*flow.Run, error) {
	return e.store.ListRunsForUser(userID, limit)
}

// Cancel signals a live cancellation handle for runID, persists
// status=Canceled, and returns true. It returns false if there is no live
// handle: the run is pending, already terminal, or unknown. Cancel does
// not remove a pending id from the queue.
func (e *Executor) Cancel(ctx context.Context, runID string) bool {
	v, ok := e.cancels.Load(runID)
	if !ok {
		return false
	}

	cancel := v.(context.CancelFunc)
	cancel()

	_ = e.store.UpdateRunStatus(runID, flow.StatusCanceled, time.Now())

	if run, err := e.store.GetRun(runID); err == nil {
		e.cfg.Observer.OnCancel(ctx, run)
	}

	return true
}
