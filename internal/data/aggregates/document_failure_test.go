package aggregates_test

import (
	"context"
	"testing"

	"github.com/cordee/cordee-backend/internal/data/aggregates"
	agtest "github.com/cordee/cordee-backend/internal/data/aggregates/testutil"
	"github.com/cordee/cordee-backend/internal/data/repos"
	repotest "github.com/cordee/cordee-backend/internal/data/repos/testutil"
	types "github.com/cordee/cordee-backend/internal/domain"
	domainagg "github.com/cordee/cordee-backend/internal/domain/aggregates"
)

func newFailingEngine(t *testing.T, runner *agtest.FaultyRunner, hooks *agtest.Recorder) (*aggregates.DocumentEngine, func(table string) int64) {
	t.Helper()
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	log := repotest.Logger(t)
	runner.Inner = aggregates.NewGormTxRunner(tx)
	base := aggregates.BaseDeps{
		DB:       tx,
		Log:      log,
		Runner:   runner,
		CASGuard: aggregates.NewCASGuard(tx),
		Hooks:    hooks,
	}
	engine := aggregates.NewDocumentAggregateFromSet(base, repos.NewSet(tx, log), nil, nil, "salt")
	count := func(table string) int64 { return repotest.Count(t, tx, table, "1 = 1") }
	return engine, count
}

func TestCreateRollsBackOnFailedCommit(t *testing.T) {
	runner := &agtest.FaultyRunner{Stage: agtest.StageCommit, Err: aggregates.RetryableError("commit failed: database is locked")}
	hooks := &agtest.Recorder{}
	engine, count := newFailingEngine(t, runner, hooks)

	doc := &types.Document{Type: types.DocumentTypeArticle}
	doc.Locales = []*types.DocumentLocale{{Lang: "fr", Title: "Sécurité en montagne"}}
	_, err := engine.Create(context.Background(), domainagg.CreateDocumentInput{Document: doc, UserID: 7})
	if !domainagg.IsCode(err, domainagg.CodeRetryable) {
		t.Fatalf("Create: want=retryable got=%v", err)
	}
	if _, committed, rolled := runner.Counts(); rolled != 1 || committed != 0 {
		t.Fatalf("runner: want rollback=1 commit=0 got rollback=%d commit=%d", rolled, committed)
	}
	if got := hooks.Names(agtest.EventRetry); len(got) != 1 || got[0] != "Documents.Document.Create" {
		t.Fatalf("retries: got=%v", got)
	}
	if hooks.LastStatus() != string(domainagg.CodeRetryable) {
		t.Fatalf("status: want=%s got=%q", domainagg.CodeRetryable, hooks.LastStatus())
	}
	for _, table := range []string{"documents", "documents_locales", "documents_archives", "documents_versions", "cache_versions", "feed_document_changes"} {
		if n := count(table); n != 0 {
			t.Fatalf("%s: want=0 rows after rollback got=%d", table, n)
		}
	}
}

func TestCreateFailsBeforeWritingWhenBeginFails(t *testing.T) {
	runner := &agtest.FaultyRunner{Stage: agtest.StageBegin, Err: aggregates.ConflictError("could not obtain lock")}
	hooks := &agtest.Recorder{}
	engine, count := newFailingEngine(t, runner, hooks)

	doc := &types.Document{Type: types.DocumentTypeBook}
	doc.Locales = []*types.DocumentLocale{{Lang: "en", Title: "Alpine climbs"}}
	_, err := engine.Create(context.Background(), domainagg.CreateDocumentInput{Document: doc, UserID: 7})
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("Create: want=conflict got=%v", err)
	}
	if len(hooks.Events(agtest.EventConflict)) != 1 || len(hooks.Events(agtest.EventRetry)) != 0 {
		t.Fatalf("hooks: got=%+v", hooks.Events(""))
	}
	if hooks.CacheBumps() != 0 {
		t.Fatalf("cache bumps: want=0 got=%d", hooks.CacheBumps())
	}
	if n := count("documents"); n != 0 {
		t.Fatalf("documents: want=0 got=%d", n)
	}
}
