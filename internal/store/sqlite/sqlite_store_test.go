package sqlite

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/flowrun/flowengine/internal/store"
	"github.com/flowrun/flowengine/pkg/flow"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := New(db)
	require.NoError(t, err)
	return s
}

func TestSQLiteStore_SaveAndGetRun(t *testing.T) {
	s := newTestStore(t)

	run := &flow.Run{ID: "r1", FlowName: "echo", UserID: "u1", Status: flow.StatusPending, CreatedAt: time.Now(), Input: "hi"}
	id, err := s.SaveRun(run)
	require.NoError(t, err)
	require.Equal(t, "r1", id)

	got, err := s.GetRun("r1")
	require.NoError(t, err)
	require.Equal(t, "echo", got.FlowName)
	require.Equal(t, "u1", got.UserID)
	require.Equal(t, "hi", got.Input)
	require.Equal(t, flow.StatusPending, got.Status)
}

func TestSQLiteStore_GetRunNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRun("missing")
	require.ErrorIs(t, err, store.ErrRunNotFound)
}

func TestSQLiteStore_UpdateRunStatusIsIdempotentOnceTerminal(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	_, err := s.SaveRun(&flow.Run{ID: "r1", Status: flow.StatusRunning, CreatedAt: now})
	require.NoError(t, err)

	require.NoError(t, s.UpdateRunStatus("r1", flow.StatusCompleted, now))
	require.NoError(t, s.UpdateRunStatus("r1", flow.StatusFailed, now.Add(time.Second)))

	got, err := s.GetRun("r1")
	require.NoError(t, err)
	require.Equal(t, flow.StatusCompleted, got.Status)
	require.False(t, got.CompletedAt.IsZero())
}

func TestSQLiteStore_UpdateRunErrorMessage(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SaveRun(&flow.Run{ID: "r1", Status: flow.StatusRunning, CreatedAt: time.Now()})
	require.NoError(t, err)

	require.NoError(t, s.UpdateRunErrorMessage("r1", "boom"))

	got, err := s.GetRun("r1")
	require.NoError(t, err)
	require.Equal(t, "boom", got.ErrorMessage)
}

func TestSQLiteStore_ListRunsForUserOrderedMostRecentFirst(t *testing.T) {
	s := newTestStore(t)
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

func TestSQLiteStore_ListRunsForUserRespectsLimit(t *testing.T) {
	s := newTestStore(t)
	base := time.Now()

	for i, id := range []string{"r1", "r2", "r3"} {
		_, err := s.SaveRun(&flow.Run{ID: id, UserID: "u1", CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	got, err := s.ListRunsForUser("u1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestSQLiteStore_SaveAndGetElementsInOrder(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	_, err := s.SaveRun(&flow.Run{ID: "r1", Status: flow.StatusRunning, CreatedAt: now})
	require.NoError(t, err)

	_, err = s.SaveElement(&flow.Element{ID: "e1", RunID: "r1", CreatedAt: now, Content: "a"})
	require.NoError(t, err)
	_, err = s.SaveElement(&flow.Element{ID: "e2", RunID: "r1", CreatedAt: now, Content: "b"})
	require.NoError(t, err)

	got, err := s.GetElements("r1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].Content)
	require.Equal(t, "b", got[1].Content)
}

func TestSQLiteStore_GetElementsUnknownRunReturnsEmptyNotNil(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetElements("missing")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestSQLiteStore_SaveAndGetResult(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SaveRun(&flow.Run{ID: "r1", Status: flow.StatusRunning, CreatedAt: time.Now()})
	require.NoError(t, err)

	require.NoError(t, s.SaveResult("r1", "final-value"))

	got, err := s.GetResult("r1")
	require.NoError(t, err)
	require.Equal(t, "final-value", got)
}

func TestSQLiteStore_GetResultNotFoundBeforeSet(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SaveRun(&flow.Run{ID: "r1", Status: flow.StatusRunning, CreatedAt: time.Now()})
	require.NoError(t, err)

	_, err = s.GetResult("r1")
	require.ErrorIs(t, err, store.ErrResultNotFound)
}

func TestSQLiteStore_SurvivesReopenOnSameDB(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s1, err := New(db)
	require.NoError(t, err)
	_, err = s1.SaveRun(&flow.Run{ID: "r1", FlowName: "echo", CreatedAt: time.Now()})
	require.NoError(t, err)

	s2, err := New(db)
	require.NoError(t, err)

	got, err := s2.GetRun("r1")
	require.NoError(t, err)
	require.Equal(t, "echo", got.FlowName)
}
