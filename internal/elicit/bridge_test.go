package elicit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/stream"
)

func TestAskEmitsRequestAndResumesOnAnswer(t *testing.T) {
	r := NewRegistry()
	mux := stream.NewMux(8)
	b := NewBridge("s1", r, mux, 0)

	type result struct {
		ans Answer
		err error
	}
	done := make(chan result, 1)
	go func() {
		ans, err := b.Ask(context.Background(), "Who should attend?", KindMultiChoice, []string{"Alice", "Bob", "Carol"})
		done <- result{ans, err}
	}()

	ev, ok := mux.Next()
	require.True(t, ok)
	assert.Equal(t, stream.EventElicitationRequested, ev.Type)
	assert.Equal(t, "Who should attend?", ev.Prompt)
	assert.Equal(t, "multi_choice", ev.Kind)
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, ev.Choices)
	require.NotEmpty(t, ev.ElicitationID)

	require.NoError(t, r.Resolve(ev.ElicitationID, Answer{Selected: []string{"Carol", "Alice"}}))

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, []string{"Carol", "Alice"}, res.ans.Selected)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge never resumed")
	}
}

func TestAskRejectsChoiceKindsWithoutChoices(t *testing.T) {
	r := NewRegistry()
	b := NewBridge("s1", r, stream.NewMux(8), 0)

	_, err := b.Ask(context.Background(), "Pick one", KindSingleChoice, nil)
	assert.Error(t, err)
	_, err = b.Ask(context.Background(), "Pick some", KindMultiChoice, nil)
	assert.Error(t, err)
	assert.Empty(t, r.Pending("s1"))
}

func TestAskRejectsChoicesOnScalarKinds(t *testing.T) {
	b := NewBridge("s1", NewRegistry(), stream.NewMux(8), 0)
	_, err := b.Ask(context.Background(), "Title?", KindText, []string{"a"})
	assert.Error(t, err)
}

func TestAskTimesOut(t *testing.T) {
	r := NewRegistry()
	mux := stream.NewMux(8)
	b := NewBridge("s1", r, mux, 20*time.Millisecond)

	go func() {
		// Keep the consumer side alive so the emit succeeds.
		for {
			if _, ok := mux.Next(); !ok {
				return
			}
		}
	}()

	_, err := b.Ask(context.Background(), "Title?", KindText, nil)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestAskOnEndedStreamCancelsEntry(t *testing.T) {
	r := NewRegistry()
	mux := stream.NewMux(8)
	mux.End(nil)
	b := NewBridge("s1", r, mux, 0)

	_, err := b.Ask(context.Background(), "Title?", KindText, nil)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Empty(t, r.Pending("s1"))
}
