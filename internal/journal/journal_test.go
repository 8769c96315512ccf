package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/elicit"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, j.Migrate())
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalRoundTrip(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	req := elicit.Request{
		ID:        "s1_abc",
		SessionID: "s1",
		Prompt:    "Who should attend?",
		Kind:      elicit.KindMultiChoice,
		Choices:   []string{"Alice", "Bob"},
		CreatedAt: time.Now(),
	}
	require.NoError(t, j.RequestCreated(ctx, req))

	entries, err := j.BySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "s1_abc", entries[0].ID)
	assert.Equal(t, string(elicit.StatePending), entries[0].State)
	assert.Equal(t, []string{"Alice", "Bob"}, entries[0].Choices)
	assert.Nil(t, entries[0].Answer)

	ans := elicit.Answer{Selected: []string{"Bob", "Alice"}}
	require.NoError(t, j.RequestClosed(ctx, "s1_abc", elicit.StateAnswered, &ans))

	entries, err = j.BySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, string(elicit.StateAnswered), entries[0].State)
	require.NotNil(t, entries[0].Answer)
	assert.Equal(t, []string{"Bob", "Alice"}, entries[0].Answer.Selected)
	assert.NotNil(t, entries[0].ResolvedAt)
}

func TestJournalClosedWithoutAnswer(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	req := elicit.Request{ID: "s2_x", SessionID: "s2", Prompt: "Title?", Kind: elicit.KindText, CreatedAt: time.Now()}
	require.NoError(t, j.RequestCreated(ctx, req))
	require.NoError(t, j.RequestClosed(ctx, "s2_x", elicit.StateCancelled, nil))

	entries, err := j.BySession(ctx, "s2")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, string(elicit.StateCancelled), entries[0].State)
	assert.Nil(t, entries[0].Answer)
}

func TestJournalSessionsAreScoped(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.RequestCreated(ctx, elicit.Request{ID: "a_1", SessionID: "a", Prompt: "p", Kind: elicit.KindText, CreatedAt: time.Now()}))
	require.NoError(t, j.RequestCreated(ctx, elicit.Request{ID: "b_1", SessionID: "b", Prompt: "p", Kind: elicit.KindText, CreatedAt: time.Now()}))

	entries, err := j.BySession(ctx, "a")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a_1", entries[0].ID)
}
