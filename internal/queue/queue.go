// Package queue defines the FlowQueue contract: a pending FIFO plus an
// in-progress set with per-entry heartbeats, supporting an atomic
// pop-pending/push-in-progress hand-off and visibility-timeout requeue.
package queue

import "time"

// FlowQueue tracks pending and in-progress flow run ids. All operations are
// fast and non-blocking from the caller's perspective; implementations must
// serialize their own state so PopPending appears atomic to every observer.
type FlowQueue interface {
	// PushPending enqueues id at the tail of the pending FIFO.
	PushPending(id string)

	// PopPending atomically dequeues the head of pending and moves it to
	// in-progress with last_heartbeat = now. Returns ("", false) if
	// pending is empty, without mutating in-progress.
	PopPending() (id string, ok bool)

	// PushInProgress inserts id into in-progress with last_heartbeat = now.
	PushInProgress(id string)

	// PopInProgress removes id from in-progress and forgets its heartbeat.
	// It is idempotent: popping an absent id is a no-op.
	PopInProgress(id string)

	// ResetHeartbeat sets id's last_heartbeat to now if id is in-progress;
	// a no-op otherwise.
	ResetHeartbeat(id string)

	// RequeueExpired moves every in-progress id whose last_heartbeat is
	// older than visibilityTimeout back to the tail of pending. The order
	// of requeues among expired ids is unspecified.
	RequeueExpired(visibilityTimeout time.Duration)
}
