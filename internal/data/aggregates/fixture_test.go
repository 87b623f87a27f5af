package aggregates

import (
	"context"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"gorm.io/gorm"

	"github.com/cordee/cordee-backend/internal/data/repos"
	repotest "github.com/cordee/cordee-backend/internal/data/repos/testutil"
	types "github.com/cordee/cordee-backend/internal/domain"
	domainagg "github.com/cordee/cordee-backend/internal/domain/aggregates"
	"github.com/cordee/cordee-backend/internal/domain/documents"
	"github.com/cordee/cordee-backend/internal/platform/dbctx"
)

const testUser = int64(7)

type fakeSearch struct {
	calls [][]int64
	err   error
}

func (f *fakeSearch) SyncDocuments(_ context.Context, ids []int64) error {
	f.calls = append(f.calls, append([]int64(nil), ids...))
	return f.err
}

type fakeImages struct {
	deleted []string
	err     error
}

func (f *fakeImages) Delete(_ context.Context, filenames []string) error {
	f.deleted = append(f.deleted, filenames...)
	return f.err
}

type engineFixture struct {
	t      *testing.T
	ctx    context.Context
	tx     *gorm.DB
	engine *DocumentEngine
	hooks  *spyHooks
	search *fakeSearch
	images *fakeImages
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	log := repotest.Logger(t)
	f := &engineFixture{
		t:      t,
		ctx:    context.Background(),
		tx:     tx,
		hooks:  &spyHooks{},
		search: &fakeSearch{},
		images: &fakeImages{},
	}
	base := BaseDeps{
		DB:       tx,
		Log:      log,
		Runner:   NewGormTxRunner(tx),
		CASGuard: NewCASGuard(tx),
		Hooks:    f.hooks,
	}
	f.engine = NewDocumentAggregateFromSet(base, repos.NewSet(tx, log), f.search, f.images, "salt")
	return f
}

func newTestDocument(t *testing.T, typ types.DocumentType, fig documents.Figures, langs ...string) *types.Document {
	t.Helper()
	doc := &types.Document{Type: typ}
	if fig != nil {
		if err := doc.SetFigures(fig); err != nil {
			t.Fatalf("SetFigures: %v", err)
		}
	}
	for _, lang := range langs {
		doc.Locales = append(doc.Locales, &types.DocumentLocale{Lang: lang, Title: string(typ) + " " + lang})
	}
	return doc
}

func withPoint(doc *types.Document, x, y float64) *types.Document {
	p := documents.PointGeoJSON(x, y)
	doc.Geometry = &types.DocumentGeometry{Geom: &p}
	return doc
}

func withSquare(doc *types.Document, min, max float64) *types.Document {
	poly := documents.PolygonGeoJSON(
		orb.Point{min, min}, orb.Point{max, min}, orb.Point{max, max}, orb.Point{min, max},
	)
	doc.Geometry = &types.DocumentGeometry{GeomDetail: &poly}
	return doc
}

func (f *engineFixture) create(doc *types.Document, assocs ...domainagg.AssociationInput) int64 {
	f.t.Helper()
	res, err := f.engine.Create(f.ctx, domainagg.CreateDocumentInput{Document: doc, UserID: testUser, Associations: assocs})
	if err != nil {
		f.t.Fatalf("Create: %v", err)
	}
	return res.DocumentID
}

// current loads the stored document, ready to be edited and passed to Update.
func (f *engineFixture) current(id int64) *types.Document {
	f.t.Helper()
	doc, err := f.engine.GetDocument(f.ctx, id, "")
	if err != nil {
		f.t.Fatalf("GetDocument(%d): %v", id, err)
	}
	return doc
}

func (f *engineFixture) update(doc *types.Document, comment string) domainagg.UpdateDocumentResult {
	f.t.Helper()
	res, err := f.engine.Update(f.ctx, domainagg.UpdateDocumentInput{
		DocumentID: doc.DocumentID,
		Document:   doc,
		UserID:     testUser,
		Comment:    comment,
	})
	if err != nil {
		f.t.Fatalf("Update(%d): %v", doc.DocumentID, err)
	}
	return res
}

func (f *engineFixture) associate(parent, child int64) {
	f.t.Helper()
	if _, err := f.engine.Associate(f.ctx, domainagg.AssociationInput{ParentDocumentID: parent, ChildDocumentID: child, UserID: testUser}); err != nil {
		f.t.Fatalf("Associate(%d, %d): %v", parent, child, err)
	}
}

func (f *engineFixture) count(table, where string, args ...interface{}) int64 {
	f.t.Helper()
	return repotest.Count(f.t, f.tx, table, where, args...)
}

func (f *engineFixture) cacheVersion(id int64) int {
	f.t.Helper()
	cv, err := f.engine.deps.CacheVersions.Get(dbctx.Background(f.ctx), id)
	if err != nil {
		f.t.Fatalf("cache version %d: %v", id, err)
	}
	if cv == nil {
		return 0
	}
	return cv.Version
}

func (f *engineFixture) versions(id int64, lang string) []*types.DocumentVersion {
	f.t.Helper()
	rows, err := f.engine.deps.Versions.ListByDocumentLang(dbctx.Background(f.ctx), id, lang)
	if err != nil {
		f.t.Fatalf("versions %d/%s: %v", id, lang, err)
	}
	return rows
}

func requireCode(t *testing.T, err error, code domainagg.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	var aggErr *domainagg.Error
	if !errors.As(err, &aggErr) || aggErr.Code != code {
		t.Fatalf("error code: want=%s got=%v", code, err)
	}
}

func intp(v int) *int { return &v }
