package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowrun/flowengine/pkg/flow"
)

func TestInMemoryStore_SaveAndGetRun(t *testing.T) {
	s := NewInMemoryStore()

	run := &flow.Run{ID: "r1", FlowName: "echo", UserID: "u1", Status: flow.StatusPending, CreatedAt: time.Now(), Input: "hi"}
	id, err := s.SaveRun(run)
	require.NoError(t, err)
	require.Equal(t, "r1", id)

	got, err := s.GetRun("r1")
	require.NoError(t, err)
	require.Equal(t, "echo", got.FlowName)
	require.Equal(t, "hi", got.Input)
}

func TestInMemoryStore_GetRunNotFound(t *testing.T) {
	s := NewInMemoryStore()

	_, err := s.GetRun("missing")
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestInMemoryStore_SaveRunReturnsIndependentCopy(t *testing.T) {
	s := NewInMemoryStore()

	run := &flow.Run{ID: "r1", Status: flow.StatusPending, CreatedAt: time.Now()}
	_, err := s.SaveRun(run)
	require.NoError(t, err)

	run.Status = flow.StatusFailed

	got, err := s.GetRun("r1")
	require.NoError(t, err)
	require.Equal(t, flow.StatusPending, got.Status, "store must not alias the caller's Run")
}

func TestInMemoryStore_UpdateRunStatusIsIdempotentOnceTerminal(t *testing.T) {
	s := NewInMemoryStore()
	now := time.Now()

	run := &flow.Run{ID: "r1", Status: flow.StatusRunning, CreatedAt: now}
	_, err := s.SaveRun(run)
	require.NoError(t, err)

	require.NoError(t, s.UpdateRunStatus("r1", flow.StatusCompleted, now))
	require.NoError(t, s.UpdateRunStatus("r1", flow.StatusFailed, now.Add(time.Second)))

	got, err := s.GetRun("r1")
	require.NoError(t, err)
	require.Equal(t, flow.StatusCompleted, got.Status, "a terminal status must never be overwritten")
}

func TestInMemoryStore_UpdateRunStatusUnknownIDIsNoop(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.UpdateRunStatus("missing", flow.StatusCompleted, time.Now()))
}

func TestInMemoryStore_ListRunsForUserOrderedMostRecentFirst(t *testing.T) {
	s := NewInMemoryStore()
	base := time.Now()

	for i, id := range []string{"r1", "r2", "r3"} {
		_, err := s.SaveRun(&flow.Run{ID: id, UserID: "u1", CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}
	_, err := s.SaveRun(&flow.Run{ID: "other", UserID: "u2", CreatedAt: base})
	require.NoError(t, err)

	got, err := s.ListRunsForUser("u1", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, []string{"r3", "r2", "r1"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestInMemoryStore_ListRunsForUserRespectsLimit(t *testing.T) {
	s := NewInMemoryStore()
	base := time.Now()

	for i, id := range []string{"r1", "r2", "r3"} {
		_, err := s.SaveRun(&flow.Run{ID: id, UserID: "u1", CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	got, err := s.ListRunsForUser("u1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestInMemoryStore_SaveAndGetElementsInOrder(t *testing.T) {
	s := NewInMemoryStore()
	now := time.Now()

	_, err := s.SaveElement(&flow.Element{ID: "e1", RunID: "r1", CreatedAt: now, Content: "a"})
	require.NoError(t, err)
	_, err = s.SaveElement(&flow.Element{ID: "e2", RunID: "r1", CreatedAt: now, Content: "b"})
	require.NoError(t, err)

	got, err := s.GetElements("r1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].Content)
	require.Equal(t, "b", got[1].Content)
}

func TestInMemoryStore_GetElementsUnknownRunReturnsEmptyNotNil(t *testing.T) {
	s := NewInMemoryStore()

	got, err := s.GetElements("missing")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestInMemoryStore_SaveAndGetResult(t *testing.T) {
	s := NewInMemoryStore()
	_, err := s.SaveRun(&flow.Run{ID: "r1", Status: flow.StatusRunning, CreatedAt: time.Now()})
	require.NoError(t, err)

	require.NoError(t, s.SaveResult("r1", 42))

	got, err := s.GetResult("r1")
	require.NoError(t, err)
	require.Equal(t, 42, got)
}

func TestInMemoryStore_GetResultNotFound(t *testing.T) {
	s := NewInMemoryStore()
	_, err := s.SaveRun(&flow.Run{ID: "r1", Status: flow.StatusRunning, CreatedAt: time.Now()})
	require.NoError(t, err)

	_, err = s.GetResult("r1")
	require.ErrorIs(t, err, ErrResultNotFound)
}
