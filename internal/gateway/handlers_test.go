package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/agent"
	"parley/internal/elicit"
	"parley/internal/journal"
	"parley/internal/stream"
)

// scriptedRunner emits a fixed sequence of events and ends the stream.
type scriptedRunner struct {
	events []stream.Event
}

func (r *scriptedRunner) Run(ctx context.Context, sessionID string, history []agent.Message, mux *stream.Mux) error {
	for _, ev := range r.events {
		if err := mux.Emit(ev); err != nil {
			return err
		}
	}
	mux.End(nil)
	return nil
}

func newTestServer(t *testing.T, runner agent.Runner, elicits *elicit.Registry) *Server {
	t.Helper()
	j, err := journal.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, j.Migrate())
	t.Cleanup(func() { j.Close() })
	if elicits == nil {
		elicits = elicit.NewRegistry()
	}
	if runner == nil {
		runner = &scriptedRunner{}
	}
	return NewServer(runner, elicits, j, agent.NewToolRegistry())
}

func TestHandleChatStreamsEvents(t *testing.T) {
	runner := &scriptedRunner{events: []stream.Event{
		stream.TextDelta("Hello"),
		stream.ToolStarted("42", "schedule_meeting", json.RawMessage(`{}`)),
	}}
	s := newTestServer(t, runner, nil)

	body := strings.NewReader(`{"session_id":"s1","messages":[{"role":"user","content":"hi"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", body)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	out := rec.Body.String()
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, out, "event: session")
	assert.Contains(t, out, `"session_id":"s1"`)
	assert.Contains(t, out, "event: text_delta")
	assert.Contains(t, out, "event: tool_started")
	assert.Contains(t, out, "event: stream_end")

	// stream_end is the final frame.
	frames := strings.Split(strings.TrimSpace(out), "\n\n")
	assert.Contains(t, frames[len(frames)-1], "event: stream_end")
}

func TestHandleChatRequiresMessages(t *testing.T) {
	s := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"session_id":"s1"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAnswerUnknownID(t *testing.T) {
	s := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/elicitations/nope/answer", strings.NewReader(`{"answer":"x"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleAnswerResumesWaiterAndRejectsDuplicates(t *testing.T) {
	elicits := elicit.NewRegistry()
	s := newTestServer(t, nil, elicits)

	pending, err := elicits.Register("s1", "Attendees?", elicit.KindMultiChoice, []string{"Alice", "Bob", "Carol"}, time.Time{})
	require.NoError(t, err)

	got := make(chan elicit.Answer, 1)
	go func() {
		ans, err := elicits.Await(context.Background(), pending.ID)
		assert.NoError(t, err)
		got <- ans
	}()

	req := httptest.NewRequest(http.MethodPost, "/v1/elicitations/"+pending.ID+"/answer", strings.NewReader(`{"answer":["Bob","Alice"]}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case ans := <-got:
		assert.Equal(t, []string{"Bob", "Alice"}, ans.Selected)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not resumed")
	}

	// A duplicate submission is distinguishable and non-fatal.
	req = httptest.NewRequest(http.MethodPost, "/v1/elicitations/"+pending.ID+"/answer", strings.NewReader(`{"answer":["Bob"]}`))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleAnswerValidatesAgainstKind(t *testing.T) {
	elicits := elicit.NewRegistry()
	s := newTestServer(t, nil, elicits)

	pending, err := elicits.Register("s1", "How many?", elicit.KindNumber, nil, time.Time{})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/elicitations/"+pending.ID+"/answer", strings.NewReader(`{"answer":"not a number"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCancelRunReleasesPending(t *testing.T) {
	elicits := elicit.NewRegistry()
	s := newTestServer(t, nil, elicits)

	pending, err := elicits.Register("s1", "Title?", elicit.KindText, nil, time.Time{})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := elicits.Await(context.Background(), pending.ID)
		errCh <- err
	}()

	req := httptest.NewRequest(http.MethodDelete, "/v1/sessions/s1/run", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, elicit.ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not released")
	}
}

func TestHandleListTools(t *testing.T) {
	s := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/tools", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Tools []toolInfo `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Tools)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
