package aggregates

import (
	"context"
	"fmt"

	"github.com/cordee/cordee-backend/internal/data/repos"
	types "github.com/cordee/cordee-backend/internal/domain"
	domainagg "github.com/cordee/cordee-backend/internal/domain/aggregates"
	"github.com/cordee/cordee-backend/internal/domain/documents"
	"github.com/cordee/cordee-backend/internal/platform/dbctx"
)

// SearchSync pushes the current state of documents to the search index. A
// document that no longer exists is removed from the index.
type SearchSync interface {
	SyncDocuments(ctx context.Context, documentIDs []int64) error
}

// ImageFileStore deletes stored image files.
type ImageFileStore interface {
	Delete(ctx context.Context, filenames []string) error
}

type DocumentAggregateDeps struct {
	Base BaseDeps

	Documents     repos.DocumentRepo
	Archives      repos.ArchiveRepo
	Versions      repos.VersionRepo
	Associations  repos.AssociationRepo
	Spatial       repos.SpatialRepo
	CacheVersions repos.CacheVersionRepo
	Feed          repos.FeedRepo

	// Optional post-commit collaborators.
	Search SearchSync
	Images ImageFileStore

	CacheKeySalt string
}

// DocumentEngine implements the document aggregate and its ledger reads.
type DocumentEngine struct {
	deps DocumentAggregateDeps
}

var (
	_ domainagg.DocumentAggregate = (*DocumentEngine)(nil)
	_ domainagg.DocumentReader    = (*DocumentEngine)(nil)
)

func NewDocumentAggregate(deps DocumentAggregateDeps) *DocumentEngine {
	deps.Base = deps.Base.withDefaults()
	deps.Base.Log = deps.Base.Log.With("aggregate", "DocumentAggregate")
	return &DocumentEngine{deps: deps}
}

// NewDocumentAggregateFromSet wires every repo of set.
func NewDocumentAggregateFromSet(base BaseDeps, set repos.Set, search SearchSync, images ImageFileStore, salt string) *DocumentEngine {
	return NewDocumentAggregate(DocumentAggregateDeps{
		Base:          base,
		Documents:     set.Documents,
		Archives:      set.Archives,
		Versions:      set.Versions,
		Associations:  set.Associations,
		Spatial:       set.Spatial,
		CacheVersions: set.CacheVersion,
		Feed:          set.Feed,
		Search:        search,
		Images:        images,
		CacheKeySalt:  salt,
	})
}

func (a *DocumentEngine) Contract() domainagg.Contract {
	return domainagg.DocumentAggregateContract
}

func (a *DocumentEngine) configured(op string) error {
	d := a.deps
	if d.Documents == nil || d.Archives == nil || d.Versions == nil || d.Associations == nil ||
		d.Spatial == nil || d.CacheVersions == nil || d.Feed == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "document aggregate repos not configured", nil)
	}
	return nil
}

func (a *DocumentEngine) Create(ctx context.Context, in domainagg.CreateDocumentInput) (domainagg.CreateDocumentResult, error) {
	const op = "Documents.Document.Create"
	var out domainagg.CreateDocumentResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	if in.UserID <= 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id", nil)
	}
	doc := in.Document
	if doc == nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing document", nil)
	}
	if !doc.Type.Valid() {
		return out, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("invalid document type %q", doc.Type), nil)
	}
	if len(doc.Locales) == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "at least one locale is required", nil)
	}
	if err := validateLocales(doc.Locales); err != nil {
		return out, MapError(op, err)
	}
	if err := normalizeFigures(doc); err != nil {
		return out, MapError(op, err)
	}
	if err := normalizeGeometry(doc); err != nil {
		return out, MapError(op, err)
	}
	for _, as := range in.Associations {
		if (as.ParentDocumentID == 0) == (as.ChildDocumentID == 0) {
			return out, domainagg.NewError(domainagg.CodeValidation, op, "an association of a new document must leave exactly one side empty", nil)
		}
	}

	doc.DocumentID = 0
	doc.Version = 1
	doc.RedirectsTo = nil
	for _, l := range doc.Locales {
		l.ID = 0
		l.Version = 1
	}
	if doc.Geometry != nil {
		doc.Geometry.Version = 1
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if err := a.checkMainWaypoint(dbc, doc); err != nil {
			return err
		}
		if err := a.deps.Documents.Create(dbc, doc); err != nil {
			return err
		}
		rows, err := a.CreateNewVersion(dbc, doc, in.UserID)
		if err != nil {
			return err
		}
		out.DocumentID = doc.DocumentID
		out.VersionIDs = versionIDs(rows)

		if err := a.deps.CacheVersions.Create(dbc, doc.DocumentID); err != nil {
			return err
		}

		bumps := newCacheBumpSet()
		bumps.exclude(doc.DocumentID)

		if len(in.Associations) > 0 {
			keys := make([]types.AssociationKey, 0, len(in.Associations))
			for _, as := range in.Associations {
				k := types.AssociationKey{Parent: as.ParentDocumentID, Child: as.ChildDocumentID}
				if k.Parent == 0 {
					k.Parent = doc.DocumentID
				} else {
					k.Child = doc.DocumentID
				}
				keys = append(keys, k)
			}
			if _, err := a.addAssociations(dbc, dedupKeys(keys), in.UserID, bumps); err != nil {
				return err
			}
		}

		if err := a.refreshSpatialLinks(dbc, doc, bumps); err != nil {
			return err
		}
		if err := a.deps.Feed.RecordCreation(dbc, doc, in.UserID); err != nil {
			return err
		}
		_, err = a.flushCacheBumps(dbc, bumps)
		return err
	})
	if err != nil {
		return domainagg.CreateDocumentResult{}, err
	}

	out.Warnings = afterCommit(ctx, a.deps.Base, op, []sideEffect{
		a.searchSyncEffect([]int64{out.DocumentID}),
	})
	return out, nil
}

func (a *DocumentEngine) Update(ctx context.Context, in domainagg.UpdateDocumentInput) (domainagg.UpdateDocumentResult, error) {
	const op = "Documents.Document.Update"
	out := domainagg.UpdateDocumentResult{DocumentID: in.DocumentID}
	if err := a.configured(op); err != nil {
		return out, err
	}
	if in.UserID <= 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id", nil)
	}
	incoming := in.Document
	if incoming == nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing document", nil)
	}
	if in.DocumentID <= 0 || (incoming.DocumentID != 0 && incoming.DocumentID != in.DocumentID) {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "id in the url does not match document_id in request body", nil)
	}
	if err := validateLocales(incoming.Locales); err != nil {
		return out, MapError(op, err)
	}
	if err := normalizeGeometry(incoming); err != nil {
		return out, MapError(op, err)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		stored, err := a.deps.Documents.GetByID(dbc, in.DocumentID)
		if err != nil {
			return err
		}
		if stored == nil || (incoming.Type != "" && incoming.Type != stored.Type) {
			return domainagg.NotFound(op, "document not found")
		}
		incoming.DocumentID = stored.DocumentID
		incoming.Type = stored.Type
		if err := normalizeFigures(incoming); err != nil {
			return err
		}
		if err := checkVersions(stored, incoming); err != nil {
			return err
		}
		if err := a.checkMainWaypoint(dbc, incoming); err != nil {
			return err
		}

		before := stored.Versions()
		if err := a.applyUpdate(dbc, stored, incoming); err != nil {
			return err
		}
		ut, changedLangs := documents.ClassifyUpdate(before, stored.Versions())
		out.UpdateType = ut
		out.ChangedLangs = changedLangs

		bumps := newCacheBumpSet()
		if ut != 0 {
			rows, err := a.updateVersion(dbc, stored, in.UserID, in.Comment, ut, changedLangs)
			if err != nil {
				return err
			}
			out.VersionIDs = versionIDs(rows)
			if ut.Has(documents.UpdateGeom) {
				if err := a.refreshSpatialLinks(dbc, stored, bumps); err != nil {
					return err
				}
			}
		}

		edgesChanged := false
		if in.Associations != nil {
			edgesChanged, err = a.replaceAssociations(dbc, stored, *in.Associations, in.UserID, bumps)
			if err != nil {
				return err
			}
		}
		if ut == 0 && !edgesChanged {
			return nil
		}
		if err := a.collectNeighbours(dbc, stored, bumps); err != nil {
			return err
		}
		_, err = a.flushCacheBumps(dbc, bumps)
		return err
	})
	if err != nil {
		return domainagg.UpdateDocumentResult{DocumentID: in.DocumentID}, err
	}

	if out.UpdateType != 0 {
		out.Warnings = afterCommit(ctx, a.deps.Base, op, []sideEffect{
			a.searchSyncEffect([]int64{in.DocumentID}),
		})
	}
	return out, nil
}

// checkVersions compares the versions the caller observed with the stored
// ones before anything is written.
func checkVersions(stored, incoming *types.Document) error {
	if err := expectVersion(documentRow(stored.DocumentID, stored.Version), incoming.Version); err != nil {
		return err
	}
	for _, loc := range incoming.Locales {
		if cur := stored.Locale(loc.Lang); cur != nil {
			if err := expectVersion(localeRow(cur.ID, cur.Lang, cur.Version), loc.Version); err != nil {
				return err
			}
		}
	}
	if stored.Geometry != nil && incoming.Geometry != nil {
		if err := expectVersion(geometryRow(stored.DocumentID, stored.Geometry.Version), incoming.Geometry.Version); err != nil {
			return err
		}
	}
	return nil
}

// applyUpdate writes the parts of incoming that differ from stored, each with
// a version-guarded update, and mirrors the new state onto stored.
func (a *DocumentEngine) applyUpdate(dbc dbctx.Context, stored, incoming *types.Document) error {
	guard := a.deps.Base.CASGuard
	now := a.deps.Base.Now()

	if !stored.SameFigures(incoming) {
		err := guard.Bump(dbc, documentRow(stored.DocumentID, stored.Version), map[string]any{
			"figures":          incoming.Figures,
			"quality":          incoming.Quality,
			"protected":        incoming.Protected,
			"redirects_to":     incoming.RedirectsTo,
			"main_waypoint_id": incoming.MainWaypointID,
			"filename":         incoming.Filename,
			"updated_at":       now,
		})
		if err != nil {
			return err
		}
		stored.Version++
		stored.Figures = incoming.Figures
		stored.Quality = incoming.Quality
		stored.Protected = incoming.Protected
		stored.RedirectsTo = incoming.RedirectsTo
		stored.MainWaypointID = incoming.MainWaypointID
		stored.Filename = incoming.Filename
	}

	for _, loc := range incoming.Locales {
		cur := stored.Locale(loc.Lang)
		if cur == nil {
			created := &types.DocumentLocale{
				DocumentID:  stored.DocumentID,
				Lang:        loc.Lang,
				Version:     1,
				Title:       loc.Title,
				Summary:     loc.Summary,
				Description: loc.Description,
				Extra:       loc.Extra,
			}
			if err := a.deps.Documents.CreateLocale(dbc, created); err != nil {
				return err
			}
			stored.Locales = append(stored.Locales, created)
			continue
		}
		if cur.SameContent(loc) {
			continue
		}
		err := guard.Bump(dbc, localeRow(cur.ID, cur.Lang, cur.Version), map[string]any{
			"title":       loc.Title,
			"summary":     loc.Summary,
			"description": loc.Description,
			"extra":       loc.Extra,
		})
		if err != nil {
			return err
		}
		cur.Version++
		cur.Title = loc.Title
		cur.Summary = loc.Summary
		cur.Description = loc.Description
		cur.Extra = loc.Extra
	}

	g := incoming.Geometry
	if !g.HasPayload() {
		return nil
	}
	if stored.Geometry == nil {
		created := &types.DocumentGeometry{
			DocumentID: stored.DocumentID,
			Version:    1,
			Geom:       g.Geom,
			GeomDetail: g.GeomDetail,
			MinX:       g.MinX,
			MinY:       g.MinY,
			MaxX:       g.MaxX,
			MaxY:       g.MaxY,
		}
		if err := a.deps.Documents.CreateGeometry(dbc, created); err != nil {
			return err
		}
		stored.Geometry = created
		return nil
	}
	if stored.Geometry.SameContent(g) {
		return nil
	}
	err := guard.Bump(dbc, geometryRow(stored.DocumentID, stored.Geometry.Version), map[string]any{
		"geom":        g.Geom,
		"geom_detail": g.GeomDetail,
		"min_x":       g.MinX,
		"min_y":       g.MinY,
		"max_x":       g.MaxX,
		"max_y":       g.MaxY,
	})
	if err != nil {
		return err
	}
	sg := stored.Geometry
	sg.Version++
	sg.Geom, sg.GeomDetail = g.Geom, g.GeomDetail
	sg.MinX, sg.MinY, sg.MaxX, sg.MaxY = g.MinX, g.MinY, g.MaxX, g.MaxY
	return nil
}

// checkMainWaypoint requires the main waypoint of a route to be an existing
// waypoint.
func (a *DocumentEngine) checkMainWaypoint(dbc dbctx.Context, doc *types.Document) error {
	if doc.Type != types.DocumentTypeRoute || doc.MainWaypointID == nil {
		return nil
	}
	kinds, err := a.deps.Documents.GetTypes(dbc, []int64{*doc.MainWaypointID})
	if err != nil {
		return err
	}
	if kinds[*doc.MainWaypointID] != types.DocumentTypeWaypoint {
		return ValidationError(fmt.Sprintf("main waypoint %d is not a waypoint", *doc.MainWaypointID))
	}
	return nil
}

func validateLocales(locales []*types.DocumentLocale) error {
	seen := make(map[string]bool, len(locales))
	for _, l := range locales {
		if l == nil {
			return ValidationError("empty locale")
		}
		if !documents.ValidLang(l.Lang) {
			return ValidationError(fmt.Sprintf("invalid lang '%s'", l.Lang))
		}
		if seen[l.Lang] {
			return ValidationError(fmt.Sprintf("lang '%s' is given twice", l.Lang))
		}
		seen[l.Lang] = true
	}
	return nil
}

// normalizeFigures decodes the figures payload for the document type and
// stores it back in canonical form. Empty figures become the zero figures.
func normalizeFigures(doc *types.Document) error {
	f, err := documents.DecodeFigures(doc.Type, doc.Figures)
	if err != nil {
		return ValidationError(err.Error())
	}
	if err := doc.SetFigures(f); err != nil {
		return ValidationError(err.Error())
	}
	return nil
}

func normalizeGeometry(doc *types.Document) error {
	if doc.Geometry == nil {
		return nil
	}
	if err := doc.Geometry.Normalize(); err != nil {
		return ValidationError(err.Error())
	}
	if !doc.Geometry.HasPayload() {
		doc.Geometry = nil
	}
	return nil
}

func (a *DocumentEngine) searchSyncEffect(ids []int64) sideEffect {
	eff := sideEffect{name: domainagg.EffectSearchSync, warn: true}
	if a.deps.Search == nil || len(ids) == 0 {
		return eff
	}
	eff.run = func(ctx context.Context) error {
		return a.deps.Search.SyncDocuments(ctx, ids)
	}
	return eff
}

func versionIDs(rows []*types.DocumentVersion) []int64 {
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}
