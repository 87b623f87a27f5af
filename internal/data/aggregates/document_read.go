package aggregates

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"

	types "github.com/cordee/cordee-backend/internal/domain"
	domainagg "github.com/cordee/cordee-backend/internal/domain/aggregates"
	"github.com/cordee/cordee-backend/internal/domain/documents"
	"github.com/cordee/cordee-backend/internal/platform/dbctx"
)

// executeRead runs fn outside any explicit transaction and maps its error.
func executeRead(ctx context.Context, op string, fn func(dbc dbctx.Context) error) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, op)
	defer span.End()
	if err := fn(dbctx.Background(ctx)); err != nil {
		mapped := MapError(op, err)
		span.RecordError(mapped)
		return mapped
	}
	return nil
}

// GetVersion rebuilds the document as recorded by one ledger row, together
// with the neighbouring ledger ids of the same language.
func (a *DocumentEngine) GetVersion(ctx context.Context, documentID int64, lang string, versionID int64) (domainagg.VersionView, error) {
	const op = "Documents.Document.GetVersion"
	var out domainagg.VersionView
	if err := a.configured(op); err != nil {
		return out, err
	}
	err := executeRead(ctx, op, func(dbc dbctx.Context) error {
		v, err := a.deps.Versions.Get(dbc, versionID, documentID, lang)
		if err != nil {
			return err
		}
		if v == nil {
			return domainagg.NotFound(op, "invalid version")
		}
		docArch, err := a.deps.Archives.GetDocumentArchive(dbc, v.DocumentArchiveID)
		if err != nil {
			return err
		}
		locArch, err := a.deps.Archives.GetLocaleArchive(dbc, v.DocumentLocalesArchiveID)
		if err != nil {
			return err
		}
		if docArch == nil || locArch == nil {
			return InvariantError(fmt.Sprintf("version %d references a missing archive", v.ID))
		}
		var geomArch *types.ArchiveDocumentGeometry
		if v.DocumentGeometryArchiveID != nil {
			geomArch, err = a.deps.Archives.GetGeometryArchive(dbc, *v.DocumentGeometryArchiveID)
			if err != nil {
				return err
			}
		}
		metas, err := a.deps.Versions.GetHistoryMetadata(dbc, []int64{v.HistoryMetadataID})
		if err != nil {
			return err
		}
		meta := metas[v.HistoryMetadataID]
		if meta == nil {
			return InvariantError(fmt.Sprintf("version %d references a missing history entry", v.ID))
		}
		prev, next, err := a.deps.Versions.NeighbourIDs(dbc, v.ID, documentID, lang)
		if err != nil {
			return err
		}
		out = domainagg.VersionView{
			Document:          documents.Snapshot(docArch, locArch, geomArch),
			Version:           versionMeta(v, meta),
			PreviousVersionID: prev,
			NextVersionID:     next,
		}
		return nil
	})
	if err != nil {
		return domainagg.VersionView{}, err
	}
	return out, nil
}

// GetHistory lists the ledger rows of one language, oldest first, with the
// current title of that locale.
func (a *DocumentEngine) GetHistory(ctx context.Context, documentID int64, lang string) (domainagg.HistoryView, error) {
	const op = "Documents.Document.GetHistory"
	out := domainagg.HistoryView{DocumentID: documentID, Lang: lang}
	if err := a.configured(op); err != nil {
		return out, err
	}
	err := executeRead(ctx, op, func(dbc dbctx.Context) error {
		loc, err := a.deps.Documents.GetLocale(dbc, documentID, lang)
		if err != nil {
			return err
		}
		if loc == nil {
			return domainagg.NotFound(op, "no locale document for %s", lang)
		}
		out.Title = loc.Title
		rows, err := a.deps.Versions.ListByDocumentLang(dbc, documentID, lang)
		if err != nil {
			return err
		}
		metaIDs := make([]int64, 0, len(rows))
		for _, r := range rows {
			metaIDs = append(metaIDs, r.HistoryMetadataID)
		}
		metas, err := a.deps.Versions.GetHistoryMetadata(dbc, uniqueIDs(metaIDs))
		if err != nil {
			return err
		}
		out.Versions = make([]domainagg.VersionMeta, 0, len(rows))
		for _, r := range rows {
			out.Versions = append(out.Versions, versionMeta(r, metas[r.HistoryMetadataID]))
		}
		return nil
	})
	return out, err
}

// GetCacheKey returns "<document_id>-<lang>-<cache_version>-<salt>".
func (a *DocumentEngine) GetCacheKey(ctx context.Context, documentID int64, lang string) (string, error) {
	const op = "Documents.Document.GetCacheKey"
	if err := a.configured(op); err != nil {
		return "", err
	}
	var key string
	err := executeRead(ctx, op, func(dbc dbctx.Context) error {
		cv, err := a.deps.CacheVersions.Get(dbc, documentID)
		if err != nil {
			return err
		}
		if cv == nil {
			return domainagg.NotFound(op, "document not found")
		}
		key = fmt.Sprintf("%d-%s-%d-%s", documentID, lang, cv.Version, a.deps.CacheKeySalt)
		return nil
	})
	return key, err
}

// GetDocument returns the current state of a document. With lang set only
// that locale is kept; a document lacking it is returned without locales.
func (a *DocumentEngine) GetDocument(ctx context.Context, documentID int64, lang string) (*types.Document, error) {
	const op = "Documents.Document.Get"
	if err := a.configured(op); err != nil {
		return nil, err
	}
	var doc *types.Document
	err := executeRead(ctx, op, func(dbc dbctx.Context) error {
		var err error
		doc, err = a.deps.Documents.GetByID(dbc, documentID)
		if err != nil {
			return err
		}
		if doc == nil {
			return domainagg.NotFound(op, "document not found")
		}
		if lang != "" {
			if loc := doc.Locale(lang); loc != nil {
				doc.Locales = []*types.DocumentLocale{loc}
			} else {
				doc.Locales = []*types.DocumentLocale{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (a *DocumentEngine) ListParents(ctx context.Context, documentID int64) ([]*types.Association, error) {
	const op = "Documents.Association.ListParents"
	if err := a.configured(op); err != nil {
		return nil, err
	}
	var out []*types.Association
	err := executeRead(ctx, op, func(dbc dbctx.Context) error {
		edges, err := a.deps.Associations.ListParents(dbc, documentID)
		if err != nil {
			return err
		}
		out, err = a.withoutRedirected(dbc, edges, func(e *types.Association) int64 { return e.ParentDocumentID })
		return err
	})
	return out, err
}

func (a *DocumentEngine) ListChildren(ctx context.Context, documentID int64) ([]*types.Association, error) {
	const op = "Documents.Association.ListChildren"
	if err := a.configured(op); err != nil {
		return nil, err
	}
	var out []*types.Association
	err := executeRead(ctx, op, func(dbc dbctx.Context) error {
		edges, err := a.deps.Associations.ListChildren(dbc, documentID)
		if err != nil {
			return err
		}
		out, err = a.withoutRedirected(dbc, edges, func(e *types.Association) int64 { return e.ChildDocumentID })
		return err
	})
	return out, err
}

func (a *DocumentEngine) withoutRedirected(dbc dbctx.Context, edges []*types.Association, other func(*types.Association) int64) ([]*types.Association, error) {
	if len(edges) == 0 {
		return edges, nil
	}
	ids := make([]int64, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, other(e))
	}
	docs, err := a.deps.Documents.GetByIDs(dbc, uniqueIDs(ids))
	if err != nil {
		return nil, err
	}
	live := make(map[int64]bool, len(docs))
	for _, d := range docs {
		if !d.IsRedirected() {
			live[d.DocumentID] = true
		}
	}
	out := make([]*types.Association, 0, len(edges))
	for _, e := range edges {
		if live[other(e)] {
			out = append(out, e)
		}
	}
	return out, nil
}

func versionMeta(v *types.DocumentVersion, meta *types.HistoryMetaData) domainagg.VersionMeta {
	out := domainagg.VersionMeta{VersionID: v.ID}
	if meta != nil {
		out.UserID = meta.UserID
		out.Comment = meta.Comment
		out.WrittenAt = meta.WrittenAt
	}
	return out
}
