package queue

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemoryQueue_PushAndPopPendingFIFO(t *testing.T) {
	q := NewInMemoryQueue()

	q.PushPending("a")
	q.PushPending("b")

	id, ok := q.PopPending()
	require.True(t, ok)
	require.Equal(t, "a", id)

	id, ok = q.PopPending()
	require.True(t, ok)
	require.Equal(t, "b", id)

	_, ok = q.PopPending()
	require.False(t, ok)
}

func TestInMemoryQueue_PopPendingMovesToInProgress(t *testing.T) {
	q := NewInMemoryQueue()
	q.PushPending("a")

	id, ok := q.PopPending()
	require.True(t, ok)
	require.Equal(t, "a", id)

	q.RequeueExpired(0)
	id, ok = q.PopPending()
	require.True(t, ok, "expired in-progress entry should requeue to pending")
	require.Equal(t, "a", id)
}

func TestInMemoryQueue_PopInProgressIsIdempotent(t *testing.T) {
	q := NewInMemoryQueue()
	q.PushInProgress("a")
	q.PopInProgress("a")
	q.PopInProgress("a")
}

func TestInMemoryQueue_ResetHeartbeatNoopIfAbsent(t *testing.T) {
	q := NewInMemoryQueue()
	q.ResetHeartbeat("missing")
}

func TestInMemoryQueue_RequeueExpiredOnlyMovesStaleEntries(t *testing.T) {
	q := NewInMemoryQueue()
	q.PushInProgress("fresh")
	q.PushInProgress("stale")

	time.Sleep(20 * time.Millisecond)
	q.ResetHeartbeat("fresh")

	q.RequeueExpired(10 * time.Millisecond)

	_, freshStillInProgress := q.inProgress["fresh"]
	require.True(t, freshStillInProgress)

	_, staleStillInProgress := q.inProgress["stale"]
	require.False(t, staleStillInProgress)

	id, ok := q.PopPending()
	require.True(t, ok)
	require.Equal(t, "stale", id)
}

func TestInMemoryQueue_ConcurrentPopPendingNeverDoubleDelivers(t *testing.T) {
	q := NewInMemoryQueue()
	const n = 200
	for i := 0; i < n; i++ {
		q.PushPending(fmt.Sprintf("id-%d", i))
	}

	results := make(chan string, n)
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			for {
				id, ok := q.PopPending()
				if !ok {
					select {
					case done <- struct{}{}:
					default:
					}
					return
				}
				results <- id
			}
		}()
	}

	seen := make(map[string]bool, n)
	count := 0
	for count < n {
		select {
		case id := <-results:
			require.False(t, seen[id], "id %s delivered twice", id)
			seen[id] = true
			count++
		case <-time.After(time.Second):
			t.Fatalf("timed out draining pending: got %d of %d", count, n)
		}
	}

	select {
	case id := <-results:
		t.Fatalf("id %s delivered after all %d ids were already drained", id, n)
	case <-time.After(20 * time.Millisecond):
	}
}
