package testutil

import (
	"sync"
	"time"

	"github.com/cordee/cordee-backend/internal/data/aggregates"
)

type EventKind string

const (
	EventOperation  EventKind = "operation"
	EventConflict   EventKind = "conflict"
	EventRetry      EventKind = "retry"
	EventSideEffect EventKind = "side_effect"
	EventCacheBump  EventKind = "cache_bump"
)

// Event is one hook call. Name holds the operation or effect name, Status is
// set for operations and N for cache bumps.
type Event struct {
	Kind     EventKind
	Name     string
	Status   string
	N        int
	Duration time.Duration
}

// Recorder keeps every hook call of a document engine in call order.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

var _ aggregates.Hooks = (*Recorder)(nil)

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) ObserveOperation(name, status string, dur time.Duration) {
	r.add(Event{Kind: EventOperation, Name: name, Status: status, Duration: dur})
}
func (r *Recorder) IncConflict(name string)            { r.add(Event{Kind: EventConflict, Name: name}) }
func (r *Recorder) IncRetry(name string)               { r.add(Event{Kind: EventRetry, Name: name}) }
func (r *Recorder) IncSideEffectFailure(effect string) { r.add(Event{Kind: EventSideEffect, Name: effect}) }
func (r *Recorder) AddCacheBumps(n int)                { r.add(Event{Kind: EventCacheBump, N: n}) }

// Events returns a copy of the recorded calls, optionally of one kind.
func (r *Recorder) Events(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if kind == "" || e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Names lists the names recorded for kind.
func (r *Recorder) Names(kind EventKind) []string {
	var out []string
	for _, e := range r.Events(kind) {
		out = append(out, e.Name)
	}
	return out
}

// CacheBumps sums every AddCacheBumps call.
func (r *Recorder) CacheBumps() int {
	total := 0
	for _, e := range r.Events(EventCacheBump) {
		total += e.N
	}
	return total
}

// LastStatus is the status of the latest operation, or "".
func (r *Recorder) LastStatus() string {
	ops := r.Events(EventOperation)
	if len(ops) == 0 {
		return ""
	}
	return ops[len(ops)-1].Status
}
