package testutil

import (
	"context"
	"sync"

	"github.com/cordee/cordee-backend/internal/data/aggregates"
	"github.com/cordee/cordee-backend/internal/platform/dbctx"
)

// Stage is the point of a transaction where FaultyRunner injects Err.
type Stage int

const (
	StageNone Stage = iota
	// StageBegin fails before the body runs and without touching Inner.
	StageBegin
	// StageCommit fails after the body succeeded, so Inner rolls the body back.
	StageCommit
)

// FaultyRunner wraps a real runner and fails one stage of every transaction.
// Without Inner the body runs with no transaction.
type FaultyRunner struct {
	Inner aggregates.TxRunner
	Stage Stage
	Err   error

	mu        sync.Mutex
	runs      int
	committed int
	rolled    int
}

var _ aggregates.TxRunner = (*FaultyRunner)(nil)

func (r *FaultyRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.runs++
	r.mu.Unlock()
	if r.Stage == StageBegin {
		return r.Err
	}

	body := func(dbc dbctx.Context) error {
		if err := fn(dbc); err != nil {
			return err
		}
		if r.Stage == StageCommit {
			return r.Err
		}
		return nil
	}
	var err error
	if r.Inner != nil {
		err = r.Inner.InTx(ctx, body)
	} else {
		err = body(dbctx.Context{Ctx: ctx})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.rolled++
	} else {
		r.committed++
	}
	return err
}

// Counts returns how many transactions started, committed and rolled back.
func (r *FaultyRunner) Counts() (runs, committed, rolledBack int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs, r.committed, r.rolled
}
