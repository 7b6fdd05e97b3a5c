package executor

import (
	"context"
	"time"
)

// dispatchLoop is the single logical background task: it requeues expired
// runs, pops a pending run when there is spare concurrency, and spawns an
// independent worker for it. It never dies on a transient error; it logs
// and backs off instead.
func (e *Executor) dispatchLoop(ctx context.Context) {
	defer close(e.dispatcherDone)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := e.dispatchOnce(ctx); err != nil {
			e.cfg.Logger.ErrorContext(ctx, "flowengine: dispatcher error", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.cfg.DispatcherErrorBackoff):
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(e.cfg.DispatcherIdleInterval):
		}
	}
}

// dispatchOnce performs one iteration of the dispatcher's work: requeue
// expired in-progress runs, then pop and dispatch one pending run if there
// is spare concurrency capacity.
func (e *Executor) dispatchOnce(ctx context.Context) error {
	e.queue.RequeueExpired(e.cfg.VisibilityTimeout)

	if !e.sem.TryAcquire(1) {
		return nil
	}

	id, ok := e.queue.PopPending()
	if !ok {
		e.sem.Release(1)
		return nil
	}

	e.workerWG.Add(1)
	go func() {
		defer e.workerWG.Done()
		defer e.sem.Release(1)
		e.runWorker(ctx, id)
	}()

	return nil
}
