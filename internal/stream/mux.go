// Package stream serializes events produced by concurrent sources (model
// token streaming, tool lifecycle, elicitation requests) into one ordered
// sequence per session, consumed by a single reader.
package stream

import (
	"errors"
	"sync"
)

var (
	// ErrClosed is returned by Emit after the stream has ended. Producers
	// must treat it as a signal to stop, not swallow it.
	ErrClosed = errors.New("stream: emit on ended stream")

	// ErrOverflow is returned by Emit when the consumer fell too far
	// behind and the buffer filled up. The stream is terminated with an
	// error-marked stream_end rather than growing without bound.
	ErrOverflow = errors.New("stream: buffer overflow, consumer too slow")
)

// Mux is a bounded FIFO of events with a single internal ordering point.
// Any number of producers may Emit; exactly one consumer calls Next until
// it returns false. The final event is always stream_end, exactly once.
type Mux struct {
	mu    sync.Mutex
	cond  *sync.Cond
	buf   []Event
	max   int
	ended bool
}

func NewMux(size int) *Mux {
	if size <= 0 {
		size = 256
	}
	m := &Mux{max: size}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Emit appends ev to the stream in submission order. It never blocks: if
// the buffer is full the stream is terminated with an error marker and
// ErrOverflow is returned.
func (m *Mux) Emit(ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ended {
		return ErrClosed
	}
	if len(m.buf) >= m.max {
		m.endLocked(ErrOverflow)
		return ErrOverflow
	}
	m.buf = append(m.buf, ev)
	m.cond.Signal()
	return nil
}

// End queues the terminal stream_end event, carrying err's message when
// err is non-nil. Calling End more than once is a no-op.
func (m *Mux) End(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ended {
		return
	}
	m.endLocked(err)
}

func (m *Mux) endLocked(err error) {
	ev := Event{Type: EventStreamEnd}
	if err != nil {
		ev.Error = err.Error()
	}
	// The terminal event bypasses the bound so a full buffer still ends
	// with stream_end instead of hanging the consumer.
	m.buf = append(m.buf, ev)
	m.ended = true
	m.cond.Broadcast()
}

// Next blocks until an event is available and returns it in order. It
// returns ok=false once the stream has ended and every event, including
// the terminal stream_end, has been consumed.
func (m *Mux) Next() (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for len(m.buf) == 0 && !m.ended {
		m.cond.Wait()
	}
	if len(m.buf) == 0 {
		return Event{}, false
	}
	ev := m.buf[0]
	m.buf = m.buf[1:]
	return ev, true
}
