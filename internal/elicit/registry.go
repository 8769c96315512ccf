package elicit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"
)

// entry is a single-resolution slot. Exactly one of resolve, expire or
// cancel transitions it out of pending; the done channel is closed once,
// on that transition, waking the awaiting tool execution.
type entry struct {
	req    Request
	state  State
	answer Answer
	done   chan struct{}
	timer  *time.Timer
}

// Registry is the thread-safe meeting point of the two independent call
// paths: tool executions register and await, the answer intake resolves.
// Entries are scoped to a session; ending the session cancels whatever is
// still pending so no suspended execution outlives its owner.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]map[string]*entry
	index    map[string]*entry
	rec      Recorder
}

type RegistryOption func(*Registry)

// WithRecorder attaches an audit recorder for created and closed requests.
func WithRecorder(rec Recorder) RegistryOption {
	return func(r *Registry) { r.rec = rec }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions: make(map[string]map[string]*entry),
		index:    make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StartSession makes sessionID known to the registry. It is idempotent.
func (r *Registry) StartSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		r.sessions[sessionID] = make(map[string]*entry)
	}
}

// Register creates a pending entry owned by sessionID and returns it. A
// zero deadline means the entry only resolves, cancels, or lives forever.
func (r *Registry) Register(sessionID, prompt string, kind Kind, choices []string, deadline time.Time) (Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		sess = make(map[string]*entry)
		r.sessions[sessionID] = sess
	}

	id := sessionID + "_" + randomToken()
	for r.index[id] != nil {
		id = sessionID + "_" + randomToken()
	}

	e := &entry{
		req: Request{
			ID:        id,
			SessionID: sessionID,
			Prompt:    prompt,
			Kind:      kind,
			Choices:   choices,
			CreatedAt: time.Now(),
			Deadline:  deadline,
		},
		state: StatePending,
		done:  make(chan struct{}),
	}
	sess[id] = e
	r.index[id] = e

	if !deadline.IsZero() {
		e.timer = time.AfterFunc(time.Until(deadline), func() { r.expire(id) })
	}

	slog.Debug("elicitation registered", "id", id, "kind", kind, "prompt", prompt)
	r.record(func(rec Recorder) error { return rec.RequestCreated(context.Background(), e.req) })
	return e.req, nil
}

// Get returns the request metadata for id, pending or terminal.
func (r *Registry) Get(id string) (Request, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.index[id]
	if !ok {
		return Request{}, false
	}
	return e.req, true
}

// Pending lists the still-pending requests owned by sessionID.
func (r *Registry) Pending(sessionID string) []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Request
	for _, e := range r.sessions[sessionID] {
		if e.state == StatePending {
			out = append(out, e.req)
		}
	}
	return out
}

// Resolve atomically transitions pending → answered and wakes the waiter.
// A second resolve returns ErrAlreadyResolved; an unknown, expired or
// cancelled id returns ErrNotFound.
func (r *Registry) Resolve(id string, ans Answer) error {
	r.mu.Lock()
	e, ok := r.index[id]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	switch e.state {
	case StateAnswered:
		r.mu.Unlock()
		return ErrAlreadyResolved
	case StateExpired, StateCancelled:
		r.mu.Unlock()
		return ErrNotFound
	}
	e.answer = ans
	r.closeLocked(e, StateAnswered)
	r.mu.Unlock()

	slog.Debug("elicitation resolved", "id", id)
	r.record(func(rec Recorder) error { return rec.RequestClosed(context.Background(), id, StateAnswered, &ans) })
	return nil
}

// Cancel transitions a single pending entry to cancelled. Losing a race
// against resolve or expiry is a no-op.
func (r *Registry) Cancel(id string) {
	r.mu.Lock()
	e, ok := r.index[id]
	if !ok || e.state != StatePending {
		r.mu.Unlock()
		return
	}
	r.closeLocked(e, StateCancelled)
	r.mu.Unlock()

	r.record(func(rec Recorder) error { return rec.RequestClosed(context.Background(), id, StateCancelled, nil) })
}

// Await suspends the calling goroutine until the entry leaves pending.
// Context cancellation cancels the entry, so a torn-down tool execution
// never stays parked on the channel.
func (r *Registry) Await(ctx context.Context, id string) (Answer, error) {
	r.mu.Lock()
	e, ok := r.index[id]
	r.mu.Unlock()
	if !ok {
		return Answer{}, ErrNotFound
	}

	select {
	case <-e.done:
	case <-ctx.Done():
		r.Cancel(id)
		<-e.done
	}

	r.mu.Lock()
	state, ans := e.state, e.answer
	r.mu.Unlock()

	switch state {
	case StateAnswered:
		return ans, nil
	case StateExpired:
		return Answer{}, ErrExpired
	default:
		return Answer{}, ErrCancelled
	}
}

// EndSession cancels every pending entry owned by sessionID, wakes their
// waiters, and forgets the session. Ending an unknown session is a no-op.
func (r *Registry) EndSession(sessionID string) {
	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return
	}
	var cancelled []string
	for id, e := range sess {
		if e.state == StatePending {
			r.closeLocked(e, StateCancelled)
			cancelled = append(cancelled, id)
		}
		delete(r.index, id)
	}
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	if len(cancelled) > 0 {
		slog.Debug("session elicitations cancelled", "session_id", sessionID, "count", len(cancelled))
	}
	for _, id := range cancelled {
		id := id
		r.record(func(rec Recorder) error { return rec.RequestClosed(context.Background(), id, StateCancelled, nil) })
	}
}

func (r *Registry) expire(id string) {
	r.mu.Lock()
	e, ok := r.index[id]
	if !ok || e.state != StatePending {
		r.mu.Unlock()
		return
	}
	r.closeLocked(e, StateExpired)
	r.mu.Unlock()

	slog.Debug("elicitation expired", "id", id)
	r.record(func(rec Recorder) error { return rec.RequestClosed(context.Background(), id, StateExpired, nil) })
}

// closeLocked performs the single transition out of pending. Callers hold
// the registry lock and have verified state == StatePending.
func (r *Registry) closeLocked(e *entry, to State) {
	e.state = to
	if e.timer != nil {
		e.timer.Stop()
	}
	close(e.done)
}

func (r *Registry) record(fn func(Recorder) error) {
	if r.rec == nil {
		return
	}
	if err := fn(r.rec); err != nil {
		slog.Warn("elicitation recorder failed", "error", err)
	}
}

func randomToken() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
