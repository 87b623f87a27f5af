package testutil

import (
	"reflect"
	"testing"
	"time"
)

func TestRecorderKeepsCallOrder(t *testing.T) {
	r := &Recorder{}
	r.IncConflict("Documents.Document.Update")
	r.ObserveOperation("Documents.Document.Update", "conflict", 3*time.Millisecond)
	r.AddCacheBumps(3)
	r.IncSideEffectFailure("image_delete")
	r.AddCacheBumps(2)

	kinds := make([]EventKind, 0, 5)
	for _, e := range r.Events("") {
		kinds = append(kinds, e.Kind)
	}
	want := []EventKind{EventConflict, EventOperation, EventCacheBump, EventSideEffect, EventCacheBump}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("kinds: want=%v got=%v", want, kinds)
	}
	if r.CacheBumps() != 5 {
		t.Fatalf("cache bumps: want=5 got=%d", r.CacheBumps())
	}
	if got := r.Names(EventSideEffect); !reflect.DeepEqual(got, []string{"image_delete"}) {
		t.Fatalf("side effects: got=%v", got)
	}
	if r.LastStatus() != "conflict" {
		t.Fatalf("last status: want=conflict got=%q", r.LastStatus())
	}
	if (&Recorder{}).LastStatus() != "" {
		t.Fatalf("empty recorder should have no status")
	}
}
