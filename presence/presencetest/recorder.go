// Package presencetest provides an in-memory presence.Handle for tests.
package presencetest

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("presencetest: handle closed")

type Event struct {
	Name    string
	Payload any
}

// Recorder is a presence.Handle that keeps every event it is sent.
type Recorder struct {
	id string

	mu     sync.Mutex
	events []Event
	closed bool
}

func NewRecorder(id string) *Recorder {
	return &Recorder{id: id}
}

func (r *Recorder) ID() string { return r.id }

func (r *Recorder) Send(event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.events = append(r.events, Event{Name: event, Payload: payload})
	return nil
}

func (r *Recorder) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Events returns a copy of everything received so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Named returns the payloads of events called name, in arrival order.
func (r *Recorder) Named(name string) []any {
	var out []any
	for _, ev := range r.Events() {
		if ev.Name == name {
			out = append(out, ev.Payload)
		}
	}
	return out
}

// Last returns the most recent payload for name.
func (r *Recorder) Last(name string) (any, bool) {
	payloads := r.Named(name)
	if len(payloads) == 0 {
		return nil, false
	}
	return payloads[len(payloads)-1], true
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
