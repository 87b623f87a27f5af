package aggregates

import (
	"errors"
	"reflect"
	"testing"

	"github.com/looplab/fsm"

	types "github.com/cordee/cordee-backend/internal/domain"
	domainagg "github.com/cordee/cordee-backend/internal/domain/aggregates"
	"github.com/cordee/cordee-backend/internal/domain/documents"
	"github.com/cordee/cordee-backend/internal/platform/logger"
)

func TestDeleteMachineIsLinear(t *testing.T) {
	m := newDeleteMachine(logger.NewNop(), 1)
	if m.Current() != deleteStateValidate {
		t.Fatalf("initial state: want=%s got=%s", deleteStateValidate, m.Current())
	}
	err := m.Event(t.Context(), transitionTo(deleteStateFeed))
	var invalid fsm.InvalidEventError
	if !errors.As(err, &invalid) {
		t.Fatalf("skipping a state: want InvalidEventError got=%v", err)
	}
	for _, want := range deletePipeline[1:] {
		if err := advance(t.Context(), m); err != nil {
			t.Fatalf("advance to %s: %v", want, err)
		}
		if m.Current() != want {
			t.Fatalf("state: want=%s got=%s", want, m.Current())
		}
	}
	if err := advance(t.Context(), m); err == nil {
		t.Fatalf("expected an error past the final state")
	}
}

func TestDeleteCascadesEverything(t *testing.T) {
	f := newEngineFixture(t)
	area := f.create(withSquare(newTestDocument(t, types.DocumentTypeArea, nil, "fr"), 0, 10))
	target := f.create(withPoint(newTestDocument(t, types.DocumentTypeWaypoint, &documents.WaypointFigures{Elevation: intp(1200)}, "fr", "en"), 5, 5))
	merged := f.create(newTestDocument(t, types.DocumentTypeWaypoint, nil, "fr"))
	article := f.create(newTestDocument(t, types.DocumentTypeArticle, nil, "fr"))
	f.associate(target, article)

	doc := f.current(target)
	doc.Locale("en").Title = "second"
	f.update(doc, "")

	doc = f.current(merged)
	doc.RedirectsTo = &target
	f.update(doc, "merged")

	articleBefore, areaBefore := f.cacheVersion(article), f.cacheVersion(area)
	res, err := f.engine.Delete(f.ctx, domainagg.DeleteDocumentInput{DocumentID: target, UserID: testUser})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !reflect.DeepEqual(res.DeletedIDs, []int64{target, merged}) {
		t.Fatalf("deleted ids: want=%v got=%v", []int64{target, merged}, res.DeletedIDs)
	}

	checks := []struct {
		table string
		where string
	}{
		{"documents", "document_id IN ?"},
		{"documents_locales", "document_id IN ?"},
		{"documents_geometries", "document_id IN ?"},
		{"documents_archives", "document_id IN ?"},
		{"documents_locales_archives", "document_id IN ?"},
		{"documents_geometries_archives", "document_id IN ?"},
		{"documents_versions", "document_id IN ?"},
		{"feed_document_changes", "document_id IN ?"},
		{"cache_versions", "document_id IN ?"},
		{"area_associations", "document_id IN ?"},
		{"map_associations", "document_id IN ?"},
		{"associations", "parent_document_id IN ? OR child_document_id IN ?"},
		{"association_log", "parent_document_id IN ? OR child_document_id IN ?"},
	}
	ids := []int64{target, merged}
	for _, c := range checks {
		args := []interface{}{ids}
		if c.table == "associations" || c.table == "association_log" {
			args = append(args, ids)
		}
		if got := f.count(c.table, c.where, args...); got != 0 {
			t.Fatalf("%s rows left: %d", c.table, got)
		}
	}
	if got := f.count("history_metadata", ""); got == 0 {
		t.Fatalf("history entries of other documents should survive")
	}

	if got := f.cacheVersion(article); got != articleBefore+1 {
		t.Fatalf("article cache version: want=%d got=%d", articleBefore+1, got)
	}
	if got := f.cacheVersion(area); got != areaBefore+1 {
		t.Fatalf("area cache version: want=%d got=%d", areaBefore+1, got)
	}
	if !reflect.DeepEqual(res.CacheBumpedIDs, []int64{area, article}) {
		t.Fatalf("bumped: want=%v got=%v", []int64{area, article}, res.CacheBumpedIDs)
	}
	last := f.search.calls[len(f.search.calls)-1]
	if !reflect.DeepEqual(last, []int64{target, merged}) {
		t.Fatalf("search sync of deleted ids: got=%v", last)
	}
	if _, err := f.engine.GetDocument(f.ctx, article, ""); err != nil {
		t.Fatalf("neighbour should survive: %v", err)
	}
}

func TestDeletePreconditions(t *testing.T) {
	f := newEngineFixture(t)

	mainWp := f.create(newTestDocument(t, types.DocumentTypeWaypoint, nil, "fr"))
	f.create(newTestDocument(t, types.DocumentTypeRoute, &documents.RouteFigures{MainWaypointID: &mainWp}, "fr"))

	onlyWp := f.create(newTestDocument(t, types.DocumentTypeWaypoint, nil, "fr"))
	f.create(newTestDocument(t, types.DocumentTypeRoute, nil, "fr"), domainagg.AssociationInput{ParentDocumentID: onlyWp})

	onlyRoute := f.create(newTestDocument(t, types.DocumentTypeRoute, nil, "fr"))
	f.create(newTestDocument(t, types.DocumentTypeOuting, nil, "fr"), domainagg.AssociationInput{ParentDocumentID: onlyRoute})

	cases := []struct {
		name    string
		id      int64
		message string
	}{
		{"main waypoint", mainWp, msgMainWaypoint},
		{"only waypoint of a route", onlyWp, msgOnlyWaypoint},
		{"only route of an outing", onlyRoute, msgOnlyRouteOuting},
		{"missing document", onlyRoute + 1000, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.Delete(f.ctx, domainagg.DeleteDocumentInput{DocumentID: tc.id, UserID: testUser})
			requireCode(t, err, domainagg.CodePreconditionFailed)
			if tc.message != "" && domainagg.MessageOf(err) != tc.message {
				t.Fatalf("message: want=%q got=%q", tc.message, domainagg.MessageOf(err))
			}
			if tc.message != "" && f.count("documents", "document_id = ?", tc.id) != 1 {
				t.Fatalf("document %d should survive a rejected delete", tc.id)
			}
		})
	}

	secondWp := f.create(newTestDocument(t, types.DocumentTypeWaypoint, nil, "fr"))
	routes, err := f.engine.ListChildren(f.ctx, onlyWp)
	if err != nil || len(routes) != 1 {
		t.Fatalf("ListChildren: %v %v", routes, err)
	}
	f.associate(secondWp, routes[0].ChildDocumentID)
	if _, err := f.engine.Delete(f.ctx, domainagg.DeleteDocumentInput{DocumentID: onlyWp, UserID: testUser}); err != nil {
		t.Fatalf("waypoint with a sibling should be deletable: %v", err)
	}
}

func TestDeleteImageRemovesEveryFilename(t *testing.T) {
	f := newEngineFixture(t)
	id := f.create(newTestDocument(t, types.DocumentTypeImage, &documents.ImageFigures{Filename: "1.jpg"}, "fr"))
	doc := f.current(id)
	if err := doc.SetFigures(&documents.ImageFigures{Filename: "2.jpg"}); err != nil {
		t.Fatalf("SetFigures: %v", err)
	}
	f.update(doc, "new file")

	f.images.err = errors.New("storage down")
	res, err := f.engine.Delete(f.ctx, domainagg.DeleteDocumentInput{DocumentID: id, UserID: testUser})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !reflect.DeepEqual(f.images.deleted, []string{"1.jpg", "2.jpg"}) {
		t.Fatalf("deleted files: got=%v", f.images.deleted)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("image failures are not surfaced: %v", res.Warnings)
	}
	if !reflect.DeepEqual(f.hooks.SideEffectFailures, []string{"image_delete"}) {
		t.Fatalf("side effect failures: %v", f.hooks.SideEffectFailures)
	}
	if got := f.count("documents", "document_id = ?", id); got != 0 {
		t.Fatalf("image document should be gone")
	}
}

// Mirrors the end-to-end lifecycle: create, edit twice, link, then delete.
func TestDocumentLifecycle(t *testing.T) {
	f := newEngineFixture(t)
	wp := f.create(withPoint(newTestDocument(t, types.DocumentTypeWaypoint, &documents.WaypointFigures{Elevation: intp(4808)}, "fr"), 6.86, 45.83))
	route := f.create(newTestDocument(t, types.DocumentTypeRoute, nil, "fr"), domainagg.AssociationInput{ParentDocumentID: wp})

	doc := f.current(wp)
	doc.Locale("fr").Title = "Mont Blanc"
	f.update(doc, "title")
	doc = f.current(wp)
	doc.Locales = append(doc.Locales, &types.DocumentLocale{Lang: "it", Title: "Monte Bianco"})
	_ = doc.SetFigures(&documents.WaypointFigures{Elevation: intp(4806)})
	res := f.update(doc, "remeasured")
	if res.UpdateType != documents.UpdateFigures|documents.UpdateLang {
		t.Fatalf("classification: %s", res.UpdateType)
	}
	if len(res.VersionIDs) != 2 {
		t.Fatalf("figures change should version both locales: got=%d", len(res.VersionIDs))
	}

	hist, err := f.engine.GetHistory(f.ctx, wp, "fr")
	if err != nil || len(hist.Versions) != 3 {
		t.Fatalf("fr history: %+v %v", hist, err)
	}
	if got := f.cacheVersion(route); got != 3 {
		t.Fatalf("route cache version: want=3 got=%d", got)
	}

	if _, err := f.engine.Delete(f.ctx, domainagg.DeleteDocumentInput{DocumentID: wp, UserID: testUser}); !domainagg.IsCode(err, domainagg.CodePreconditionFailed) {
		t.Fatalf("only waypoint of the route: want precondition_failed got=%v", err)
	}
	if _, err := f.engine.Delete(f.ctx, domainagg.DeleteDocumentInput{DocumentID: route, UserID: testUser}); err != nil {
		t.Fatalf("Delete route: %v", err)
	}
	if _, err := f.engine.Delete(f.ctx, domainagg.DeleteDocumentInput{DocumentID: wp, UserID: testUser}); err != nil {
		t.Fatalf("Delete waypoint: %v", err)
	}
	if got := f.count("documents", ""); got != 0 {
		t.Fatalf("documents left: %d", got)
	}
}
