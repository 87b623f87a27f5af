package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/cordee/cordee-backend/internal/platform/dbctx"
)

func TestFaultyRunner(t *testing.T) {
	injected := errors.New("database is locked")
	bodyErr := errors.New("missing archive")
	cases := []struct {
		name          string
		stage         Stage
		body          error
		wantErr       error
		wantBodyRan   bool
		wantCommitted int
		wantRolled    int
	}{
		{name: "clean", wantBodyRan: true, wantCommitted: 1},
		{name: "body error", body: bodyErr, wantErr: bodyErr, wantBodyRan: true, wantRolled: 1},
		{name: "commit", stage: StageCommit, wantErr: injected, wantBodyRan: true, wantRolled: 1},
		{name: "begin", stage: StageBegin, wantErr: injected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &FaultyRunner{Stage: tc.stage, Err: injected}
			ran := false
			err := r.InTx(context.Background(), func(_ dbctx.Context) error {
				ran = true
				return tc.body
			})
			if !errors.Is(err, tc.wantErr) || (tc.wantErr == nil && err != nil) {
				t.Fatalf("err: want=%v got=%v", tc.wantErr, err)
			}
			if ran != tc.wantBodyRan {
				t.Fatalf("body ran: want=%v got=%v", tc.wantBodyRan, ran)
			}
			runs, committed, rolled := r.Counts()
			if runs != 1 || committed != tc.wantCommitted || rolled != tc.wantRolled {
				t.Fatalf("counts: want=1/%d/%d got=%d/%d/%d", tc.wantCommitted, tc.wantRolled, runs, committed, rolled)
			}
		})
	}
}

func TestFaultyRunnerCommitFailureReachesInner(t *testing.T) {
	inner := &FaultyRunner{}
	injected := errors.New("commit failed")
	r := &FaultyRunner{Inner: inner, Stage: StageCommit, Err: injected}
	if err := r.InTx(context.Background(), func(_ dbctx.Context) error { return nil }); !errors.Is(err, injected) {
		t.Fatalf("err: want=%v got=%v", injected, err)
	}
	if _, committed, rolled := inner.Counts(); committed != 0 || rolled != 1 {
		t.Fatalf("inner: want committed=0 rolled=1 got %d/%d", committed, rolled)
	}
}
