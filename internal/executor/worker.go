package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowrun/flowengine/pkg/flow"
)

// runWorker drives one flow run to completion. The concurrency slot is
// already acquired by the caller (dispatchOnce); runWorker releases the
// cancellation handle on every exit path, and the queue's in-progress entry
// on every exit path except the preflight one for a run that is no longer
// Pending, which leaves that entry untouched.
//
// The worker's own context is deliberately independent of the dispatcher's
// context: Stop cancels the dispatcher loop but must not force-cancel
// in-flight workers, so runWorker is only ever cancelled by an explicit
// Cancel(runID) call.
func (e *Executor) runWorker(_ context.Context, id string) {
	runCtx, cancel := context.WithCancel(context.Background())

	run, err := e.store.GetRun(id)
	if err != nil {
		e.cfg.Logger.WarnContext(runCtx, "flowengine: worker could not load run", "run_id", id, "error", err)
		e.queue.PopInProgress(id)
		cancel()
		return
	}

	if run.Status != flow.StatusPending {
		// Already Running (another worker owns it), or terminal (e.g.
		// cancelled while pending-and-requeued, or a second dispatch of an
		// already-finished run). Leave the in-progress entry untouched so
		// we never double-remove a concurrently owned entry.
		cancel()
		return
	}

	f, err := e.reg.Get(run.FlowName)
	if err != nil {
		msg := fmt.Sprintf("Flow type '%s' not found", run.FlowName)
		_ = e.store.UpdateRunStatus(id, flow.StatusFailed, time.Now())
		_ = e.store.UpdateRunErrorMessage(id, msg)
		e.queue.PopInProgress(id)
		cancel()
		return
	}

	e.cancels.Store(id, cancel)
	defer func() {
		e.cancels.Delete(id)
		cancel()
	}()

	e.queue.ResetHeartbeat(id)
	_ = e.store.UpdateRunStatus(id, flow.StatusRunning, time.Now())
	e.cfg.Observer.OnDispatch(runCtx, run)

	rc := &flow.RunContext{}
	stream := f.Run(runCtx, run.Input, rc)

	var streamErr error
	for emission := range stream {
		if emission.Err != nil {
			streamErr = emission.Err
			break
		}

		el := &flow.Element{
			ID:        uuid.NewString(),
			RunID:     id,
			CreatedAt: time.Now(),
			Content:   emission.Element,
		}
		if _, err := e.store.SaveElement(el); err != nil {
			streamErr = fmt.Errorf("save element: %w", err)
			break
		}
		e.cfg.Observer.OnElement(runCtx, run, el)
		e.queue.ResetHeartbeat(id)
	}

	// Drain any remaining emissions so the Flow's goroutine (if it uses
	// one) is never left blocked sending into an abandoned channel.
	if streamErr != nil {
		go func() {
			for range stream {
			}
		}()
	}

	e.finishWorker(runCtx, id, run, rc, streamErr)
}

// finishWorker reifies the end of a run's element stream into a terminal
// store write: Completed on a clean end, Canceled if the stream ended via
// ctx.Err(), Failed for any other error.
func (e *Executor) finishWorker(ctx context.Context, id string, run *flow.Run, rc *flow.RunContext, streamErr error) {
	switch {
	case streamErr == nil:
		if result, ok := rc.Result(); ok {
			_ = e.store.SaveResult(id, result)
		}
		_ = e.store.UpdateRunStatus(id, flow.StatusCompleted, time.Now())
		run.Status = flow.StatusCompleted
		e.cfg.Observer.OnComplete(ctx, run)

	case errors.Is(streamErr, context.Canceled):
		_ = e.store.UpdateRunStatus(id, flow.StatusCanceled, time.Now())
		run.Status = flow.StatusCanceled
		e.cfg.Observer.OnCancel(ctx, run)

	default:
		_ = e.store.UpdateRunStatus(id, flow.StatusFailed, time.Now())
		_ = e.store.UpdateRunErrorMessage(id, streamErr.Error())
		run.Status = flow.StatusFailed
		e.cfg.Observer.OnFail(ctx, run, streamErr)
	}

	e.queue.PopInProgress(id)
}
