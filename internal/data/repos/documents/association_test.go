package documents

import (
	"context"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/cordee/cordee-backend/internal/data/repos/testutil"
	types "github.com/cordee/cordee-backend/internal/domain"
	"github.com/cordee/cordee-backend/internal/domain/documents"
	"github.com/cordee/cordee-backend/internal/platform/dbctx"
)

func TestAssociationRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewAssociationRepo(db, testutil.Logger(t))

	w1 := testutil.SeedDocument(t, ctx, tx, types.DocumentTypeWaypoint, "fr")
	w2 := testutil.SeedDocument(t, ctx, tx, types.DocumentTypeWaypoint, "fr")
	r1 := testutil.SeedDocument(t, ctx, tx, types.DocumentTypeRoute, "fr")
	r2 := testutil.SeedDocument(t, ctx, tx, types.DocumentTypeRoute, "fr")

	edges := []*types.Association{
		{ParentDocumentID: w1.DocumentID, ChildDocumentID: r1.DocumentID, ParentDocumentType: w1.Type, ChildDocumentType: r1.Type},
		{ParentDocumentID: w1.DocumentID, ChildDocumentID: r2.DocumentID, ParentDocumentType: w1.Type, ChildDocumentType: r2.Type},
		{ParentDocumentID: w2.DocumentID, ChildDocumentID: r2.DocumentID, ParentDocumentType: w2.Type, ChildDocumentType: r2.Type},
	}
	if n, err := repo.Create(dbc, edges); err != nil || n != 3 {
		t.Fatalf("Create: n=%d err=%v", n, err)
	}
	dup := []*types.Association{{ParentDocumentID: w1.DocumentID, ChildDocumentID: r1.DocumentID, ParentDocumentType: w1.Type, ChildDocumentType: r1.Type}}
	if n, err := repo.Create(dbc, dup); err != nil || n != 0 {
		t.Fatalf("Create duplicate: n=%d err=%v", n, err)
	}

	if parents, err := repo.ListParents(dbc, r2.DocumentID); err != nil || len(parents) != 2 {
		t.Fatalf("ListParents: len=%d err=%v", len(parents), err)
	}
	if children, err := repo.ListChildren(dbc, w1.DocumentID); err != nil || len(children) != 2 {
		t.Fatalf("ListChildren: len=%d err=%v", len(children), err)
	}

	sole, err := repo.ListSoleParentChildIDs(dbc, w1.DocumentID, types.DocumentTypeWaypoint, types.DocumentTypeRoute)
	if err != nil || len(sole) != 1 || sole[0] != r1.DocumentID {
		t.Fatalf("ListSoleParentChildIDs: ids=%v err=%v", sole, err)
	}

	now := time.Now().UTC()
	if err := repo.CreateLogs(dbc, []*types.AssociationLog{documents.NewAssociationLog(edges[0], 3, true, now)}); err != nil {
		t.Fatalf("CreateLogs: %v", err)
	}
	if n := testutil.Count(t, tx, "association_log", "child_document_id = ? AND is_creation = ?", r1.DocumentID, true); n != 1 {
		t.Fatalf("creation logs: want=1 got=%d", n)
	}

	if n, err := repo.Delete(dbc, []types.AssociationKey{edges[2].Key()}); err != nil || n != 1 {
		t.Fatalf("Delete: n=%d err=%v", n, err)
	}
	if err := repo.DeleteByDocumentIDs(dbc, []int64{w1.DocumentID}); err != nil {
		t.Fatalf("DeleteByDocumentIDs: %v", err)
	}
	if err := repo.DeleteLogsByDocumentIDs(dbc, []int64{w1.DocumentID}); err != nil {
		t.Fatalf("DeleteLogsByDocumentIDs: %v", err)
	}
	if all, err := repo.ListByDocumentIDs(dbc, []int64{w1.DocumentID, w2.DocumentID}); err != nil || len(all) != 0 {
		t.Fatalf("ListByDocumentIDs after delete: len=%d err=%v", len(all), err)
	}
}

func TestSpatialRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	docs := NewDocumentRepo(db, testutil.Logger(t))
	repo := NewSpatialRepo(db, testutil.Logger(t))

	detail := documents.PolygonGeoJSON(orb.Point{0, 0}, orb.Point{10, 0}, orb.Point{10, 10}, orb.Point{0, 10})
	areaGeom := &types.DocumentGeometry{GeomDetail: &detail}
	if err := areaGeom.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	area := &types.Document{Type: types.DocumentTypeArea, Geometry: areaGeom}
	if err := docs.Create(dbc, area); err != nil {
		t.Fatalf("Create area: %v", err)
	}

	pt := documents.PointGeoJSON(5, 5)
	wpGeom := &types.DocumentGeometry{Geom: &pt}
	_ = wpGeom.Normalize()
	wp := &types.Document{Type: types.DocumentTypeWaypoint, Geometry: wpGeom}
	if err := docs.Create(dbc, wp); err != nil {
		t.Fatalf("Create waypoint: %v", err)
	}

	containers, err := repo.ListContainersAt(dbc, orb.Point{5, 5}, types.DocumentTypeArea)
	if err != nil || len(containers) != 1 || containers[0].DocumentID != area.DocumentID {
		t.Fatalf("ListContainersAt: %v err=%v", containers, err)
	}
	if outside, err := repo.ListContainersAt(dbc, orb.Point{50, 50}, types.DocumentTypeArea); err != nil || len(outside) != 0 {
		t.Fatalf("ListContainersAt outside: %v err=%v", outside, err)
	}

	contained, err := repo.ListContainedCandidates(dbc, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}})
	if err != nil || len(contained) != 1 || contained[0].DocumentID != wp.DocumentID {
		t.Fatalf("ListContainedCandidates: %v err=%v", contained, err)
	}

	added, removed, err := repo.ReplaceContainersOf(dbc, wp.DocumentID, types.DocumentTypeArea, []int64{area.DocumentID})
	if err != nil || len(added) != 1 || len(removed) != 0 {
		t.Fatalf("ReplaceContainersOf: added=%v removed=%v err=%v", added, removed, err)
	}
	added, removed, err = repo.ReplaceContainedBy(dbc, area.DocumentID, types.DocumentTypeArea, nil)
	if err != nil || len(added) != 0 || len(removed) != 1 || removed[0] != wp.DocumentID {
		t.Fatalf("ReplaceContainedBy: added=%v removed=%v err=%v", added, removed, err)
	}

	if _, _, err := repo.ReplaceContainersOf(dbc, wp.DocumentID, types.DocumentTypeRoute, nil); err == nil {
		t.Fatalf("expected unsupported container error")
	}

	if _, _, err := repo.ReplaceContainersOf(dbc, wp.DocumentID, types.DocumentTypeTopoMap, []int64{area.DocumentID}); err != nil {
		t.Fatalf("ReplaceContainersOf map: %v", err)
	}
	if err := repo.DeleteByDocumentIDs(dbc, []int64{wp.DocumentID}); err != nil {
		t.Fatalf("DeleteByDocumentIDs: %v", err)
	}
	if n := testutil.Count(t, tx, "map_associations", "document_id = ?", wp.DocumentID); n != 0 {
		t.Fatalf("map links after delete: want=0 got=%d", n)
	}
}

func TestCacheVersionAndFeedRepos(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	cache := NewCacheVersionRepo(db, testutil.Logger(t))
	feed := NewFeedRepo(db, testutil.Logger(t))

	a := testutil.SeedDocument(t, ctx, tx, types.DocumentTypeArticle, "fr")
	b := testutil.SeedDocument(t, ctx, tx, types.DocumentTypeArticle, "fr")
	for _, d := range []*types.Document{a, b} {
		if err := cache.Create(dbc, d.DocumentID); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := cache.Create(dbc, a.DocumentID); err != nil {
		t.Fatalf("Create twice: %v", err)
	}
	if n, err := cache.Bump(dbc, []int64{a.DocumentID, b.DocumentID}); err != nil || n != 2 {
		t.Fatalf("Bump: n=%d err=%v", n, err)
	}
	versions, err := cache.GetMany(dbc, []int64{a.DocumentID, b.DocumentID})
	if err != nil || versions[a.DocumentID] != 2 || versions[b.DocumentID] != 2 {
		t.Fatalf("GetMany: %v err=%v", versions, err)
	}

	if err := feed.RecordCreation(dbc, a, 9); err != nil {
		t.Fatalf("RecordCreation: %v", err)
	}
	entries, err := feed.ListByDocumentID(dbc, a.DocumentID)
	if err != nil || len(entries) != 1 || entries[0].Langs != "fr" {
		t.Fatalf("ListByDocumentID: %v err=%v", entries, err)
	}
	if err := feed.RemoveByDocumentIDs(dbc, []int64{a.DocumentID}); err != nil {
		t.Fatalf("RemoveByDocumentIDs: %v", err)
	}
	if n := testutil.Count(t, tx, "feed_document_changes", "document_id = ?", a.DocumentID); n != 0 {
		t.Fatalf("feed after delete: want=0 got=%d", n)
	}
}
