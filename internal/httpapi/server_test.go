package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowrun/flowengine"
	"github.com/flowrun/flowengine/pkg/flow"
)

type echoIn struct {
	Message string `json:"message"`
}

// echoFlow implements flow.Flow directly rather than via Typed: a run
// submitted over HTTP decodes its input as map[string]any, not the
// caller's original Go struct, so the flow reads the "message" field by
// hand the way a real JSON-facing flow would.
type echoFlow struct{}

func (echoFlow) Name() string { return "echo" }

func (echoFlow) Run(ctx context.Context, input any, rc *flow.RunContext) <-chan flow.Emission {
	out := make(chan flow.Emission)
	go func() {
		defer close(out)
		out <- flow.Emission{Element: "a"}
		var message string
		if m, ok := input.(map[string]any); ok {
			message, _ = m["message"].(string)
		}
		rc.SetResult(message)
	}()
	return out
}

func newTestServer(t *testing.T) (*Server, *flowengine.Engine) {
	t.Helper()
	eng := flowengine.NewInMemoryEngine(flowengine.WithDispatcherIdleInterval(5 * time.Millisecond))
	eng.RegisterFlow(echoFlow{})

	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(func() { _ = eng.Stop(context.Background()) })

	return New(eng, nil), eng
}

func waitForHTTPTerminal(t *testing.T, eng *flowengine.Engine, runID string) flow.Status {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		status, err := eng.GetStatus(context.Background(), runID)
		require.NoError(t, err)
		if status.IsTerminal() {
			return status
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("run %s did not reach a terminal status", runID)
	return ""
}

func TestServer_SubmitAndGetRun(t *testing.T) {
	s, eng := newTestServer(t)

	body, err := json.Marshal(submitRequest{Input: echoIn{Message: "hi"}, UserID: "u1"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/flows/echo/runs", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var sub submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	require.NotEmpty(t, sub.RunID)

	status := waitForHTTPTerminal(t, eng, sub.RunID)
	require.Equal(t, flow.StatusCompleted, status)

	req = httptest.NewRequest(http.MethodGet, "/runs/"+sub.RunID, nil)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var run flow.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	require.Equal(t, "echo", run.FlowName)
	require.Equal(t, "u1", run.UserID)
}

func TestServer_SubmitUnknownFlowReturns404(t *testing.T) {
	s, _ := newTestServer(t)

	body, _ := json.Marshal(submitRequest{Input: echoIn{}, UserID: "u1"})
	req := httptest.NewRequest(http.MethodPost, "/flows/does-not-exist/runs", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_SubmitBadJSONReturns400(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/flows/echo/runs", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_GetRunUnknownReturns404(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/runs/missing", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_GetElements(t *testing.T) {
	s, eng := newTestServer(t)

	body, _ := json.Marshal(submitRequest{Input: echoIn{Message: "x"}, UserID: "u1"})
	req := httptest.NewRequest(http.MethodPost, "/flows/echo/runs", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var sub submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	waitForHTTPTerminal(t, eng, sub.RunID)

	req = httptest.NewRequest(http.MethodGet, "/runs/"+sub.RunID+"/elements", nil)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var elements []*flow.Element
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &elements))
	require.Len(t, elements, 1)
	require.Equal(t, "a", elements[0].Content)
}

func TestServer_GetResult(t *testing.T) {
	s, eng := newTestServer(t)

	body, _ := json.Marshal(submitRequest{Input: echoIn{Message: "final"}, UserID: "u1"})
	req := httptest.NewRequest(http.MethodPost, "/flows/echo/runs", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var sub submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	waitForHTTPTerminal(t, eng, sub.RunID)

	req = httptest.NewRequest(http.MethodGet, "/runs/"+sub.RunID+"/result", nil)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "final", payload["result"])
}

func TestServer_GetResultUnknownRunReturns404(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/runs/missing/result", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CancelUnknownRunReturnsFalse(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/runs/missing/cancel", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.False(t, payload["canceled"])
}
