package search

import (
	"context"
	"errors"
	"os"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cordee/cordee-backend/internal/domain/documents"
	"github.com/cordee/cordee-backend/internal/observability"
	"github.com/cordee/cordee-backend/internal/platform/dbctx"
	"github.com/cordee/cordee-backend/internal/platform/logger"
)

type fakeLoader struct {
	docs map[int64]*documents.Document
}

func (f *fakeLoader) GetByIDs(_ dbctx.Context, ids []int64) ([]*documents.Document, error) {
	var out []*documents.Document
	for _, id := range ids {
		if d := f.docs[id]; d != nil {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeLoader) ListIDs(_ dbctx.Context, afterID int64, limit int) ([]int64, error) {
	var ids []int64
	for id := range f.docs {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

type fakeIndex struct {
	mu       sync.Mutex
	failures int
	upserted map[int64]SearchDocument
	removed  []int64
	calls    int
}

func newFakeIndex(failures int) *fakeIndex {
	return &fakeIndex{failures: failures, upserted: map[int64]SearchDocument{}}
}

func (f *fakeIndex) Upsert(_ context.Context, docs []SearchDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return errors.New("index unavailable")
	}
	for _, d := range docs {
		f.upserted[d.DocumentID] = d
	}
	return nil
}

func (f *fakeIndex) Remove(_ context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, ids...)
	return nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func reportDoc(t *testing.T, id int64) *documents.Document {
	t.Helper()
	n := 3
	doc := &documents.Document{
		DocumentID: id,
		Type:       documents.TypeReport,
		Quality:    "medium",
		Locales: []*documents.DocumentLocale{
			{DocumentID: id, Lang: "fr", Title: "Chute en crevasse", Summary: "résumé"},
			{DocumentID: id, Lang: "en", Title: "Crevasse fall"},
		},
		Geometry: &documents.DocumentGeometry{DocumentID: id, Geom: strp(documents.PointGeoJSON(6.5, 45.9))},
	}
	err := doc.SetFigures(&documents.ReportFigures{
		Kind:           documents.TypeReport,
		Activities:     []string{"skitouring"},
		Date:           "2024-02-11",
		EventType:      []string{"crevasse_fall"},
		NbParticipants: &n,
		Severity:       "severity_no",
	})
	if err != nil {
		t.Fatalf("SetFigures: %v", err)
	}
	return doc
}

func strp(s string) *string { return &s }

func fastConfig(retries int) SyncerConfig {
	return SyncerConfig{MaxRetries: retries, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestToSearchDocumentReport(t *testing.T) {
	sd, err := ToSearchDocument(reportDoc(t, 12))
	if err != nil {
		t.Fatalf("ToSearchDocument: %v", err)
	}
	if want := []string{"en", "fr"}; !reflect.DeepEqual(sd.Langs, want) {
		t.Fatalf("langs: want=%v got=%v", want, sd.Langs)
	}
	if sd.Titles["fr"] != "Chute en crevasse" || sd.Summaries["fr"] != "résumé" {
		t.Fatalf("locales: got titles=%v summaries=%v", sd.Titles, sd.Summaries)
	}
	if _, ok := sd.Summaries["en"]; ok {
		t.Fatalf("empty summary should not be indexed")
	}
	if sd.Lon == nil || *sd.Lon != 6.5 || *sd.Lat != 45.9 {
		t.Fatalf("location: got lon=%v lat=%v", sd.Lon, sd.Lat)
	}
	if sd.Fields["nb_participants"] != 3 || sd.Fields["date"] != "2024-02-11" || sd.Fields["severity"] != "severity_no" {
		t.Fatalf("report fields: got=%v", sd.Fields)
	}
	if _, ok := sd.Fields["nb_impacted"]; ok {
		t.Fatalf("unset fields should be omitted: %v", sd.Fields)
	}

	props := sd.Properties()
	if props["title_en"] != "Crevasse fall" || props["document_type"] != "report" {
		t.Fatalf("properties: got=%v", props)
	}
}

func TestToSearchDocumentRedirectedKeepsBaseFields(t *testing.T) {
	doc := reportDoc(t, 12)
	target := int64(40)
	doc.RedirectsTo = &target

	sd, err := ToSearchDocument(doc)
	if err != nil {
		t.Fatalf("ToSearchDocument: %v", err)
	}
	if sd.Titles != nil || sd.Fields != nil || sd.Lon != nil {
		t.Fatalf("redirected document should only carry base fields: %+v", sd)
	}
	props := sd.Properties()
	if props["redirects_to"] != int64(40) {
		t.Fatalf("redirects_to: want=40 got=%v", props["redirects_to"])
	}
	if _, ok := props["available_langs"]; ok {
		t.Fatalf("redirected document should not list langs")
	}
}

func TestObjectIDIsStable(t *testing.T) {
	if ObjectID(5) != ObjectID(5) {
		t.Fatalf("object id should be deterministic")
	}
	if ObjectID(5) == ObjectID(6) {
		t.Fatalf("object ids should differ per document")
	}
}

func TestClassName(t *testing.T) {
	if got := ClassName("cordee"); got != "CordeeDocument" {
		t.Fatalf("class: want=CordeeDocument got=%s", got)
	}
	if got := ClassName(""); got != "Document" {
		t.Fatalf("class: want=Document got=%s", got)
	}
}

func TestSyncerRetriesThenIndexes(t *testing.T) {
	loader := &fakeLoader{docs: map[int64]*documents.Document{12: reportDoc(t, 12)}}
	index := newFakeIndex(2)
	metrics := observability.NewMetrics()
	s := NewSyncer(testLogger(t), loader, index, nil, metrics, fastConfig(3))

	if err := s.SyncDocuments(t.Context(), []int64{12, 12, 99}); err != nil {
		t.Fatalf("SyncDocuments: %v", err)
	}
	if index.calls != 3 {
		t.Fatalf("upsert calls: want=3 got=%d", index.calls)
	}
	if _, ok := index.upserted[12]; !ok {
		t.Fatalf("document 12 not indexed")
	}
	if !reflect.DeepEqual(index.removed, []int64{99}) {
		t.Fatalf("removed: want=[99] got=%v", index.removed)
	}
}

func TestSyncerQueuesFailedSyncWithoutWaiting(t *testing.T) {
	loader := &fakeLoader{docs: map[int64]*documents.Document{12: reportDoc(t, 12)}}
	index := newFakeIndex(10)
	queue := NewMemoryRetryQueue()
	s := NewSyncer(testLogger(t), loader, index, queue, nil, SyncerConfig{MaxRetries: 5, InitialInterval: time.Hour})

	if err := s.SyncDocuments(t.Context(), []int64{12}); err == nil {
		t.Fatalf("expected sync error")
	}
	if index.calls != 1 {
		t.Fatalf("upsert calls before queueing: want=1 got=%d", index.calls)
	}
	if n, _ := queue.Len(t.Context()); n != 1 {
		t.Fatalf("queue depth: want=1 got=%d", n)
	}

	index.failures = 0
	w := NewRetryWorker(testLogger(t), s, queue, 10, time.Second)
	n, err := w.DrainOnce(t.Context())
	if err != nil || n != 1 {
		t.Fatalf("DrainOnce: want=1,nil got=%d,%v", n, err)
	}
	if depth, _ := queue.Len(t.Context()); depth != 0 {
		t.Fatalf("queue depth after drain: want=0 got=%d", depth)
	}
	if _, ok := index.upserted[12]; !ok {
		t.Fatalf("document 12 not indexed by the worker")
	}
}

func TestRetryWorkerRequeuesFailedBatch(t *testing.T) {
	loader := &fakeLoader{docs: map[int64]*documents.Document{12: reportDoc(t, 12)}}
	queue := NewMemoryRetryQueue()
	_ = queue.Push(t.Context(), []int64{12})
	s := NewSyncer(testLogger(t), loader, newFakeIndex(10), queue, nil, fastConfig(0))

	w := NewRetryWorker(testLogger(t), s, queue, 10, time.Second)
	if _, err := w.DrainOnce(t.Context()); err == nil {
		t.Fatalf("expected drain error")
	}
	if n, _ := queue.Len(t.Context()); n != 1 {
		t.Fatalf("queue depth: want=1 got=%d", n)
	}
}

func TestReindexWalksAllPages(t *testing.T) {
	docs := map[int64]*documents.Document{}
	for id := int64(1); id <= 5; id++ {
		docs[id] = reportDoc(t, id)
	}
	index := newFakeIndex(0)
	s := NewSyncer(testLogger(t), &fakeLoader{docs: docs}, index, nil, nil, fastConfig(0))

	n, err := s.Reindex(t.Context(), 2)
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if n != 5 || len(index.upserted) != 5 || index.calls != 3 {
		t.Fatalf("reindex: want=5 docs in 3 batches got=%d docs, %d indexed, %d calls", n, len(index.upserted), index.calls)
	}
}

func TestMemoryRetryQueueOrderAndDedup(t *testing.T) {
	q := NewMemoryRetryQueue()
	_ = q.Push(t.Context(), []int64{3, 1})
	_ = q.Push(t.Context(), []int64{1, 2})
	got, _ := q.Pop(t.Context(), 2)
	if !reflect.DeepEqual(got, []int64{3, 1}) {
		t.Fatalf("pop: want=[3 1] got=%v", got)
	}
	got, _ = q.Pop(t.Context(), 5)
	if !reflect.DeepEqual(got, []int64{2}) {
		t.Fatalf("pop: want=[2] got=%v", got)
	}
}

func TestRedisRetryQueue(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	key := "cordee:test:retry:" + time.Now().Format("150405.000000")
	t.Cleanup(func() { rdb.Del(context.Background(), key) })

	q := NewRedisRetryQueue(rdb, key)
	if err := q.Push(t.Context(), []int64{7, 8, 7}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if n, _ := q.Len(t.Context()); n != 2 {
		t.Fatalf("len: want=2 got=%d", n)
	}
	got, err := q.Pop(t.Context(), 10)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	if !reflect.DeepEqual(got, []int64{7, 8}) {
		t.Fatalf("pop: want=[7 8] got=%v", got)
	}
}
