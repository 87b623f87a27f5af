package aggregates

import (
	"fmt"

	types "github.com/cordee/cordee-backend/internal/domain"
	"github.com/cordee/cordee-backend/internal/domain/documents"
	"github.com/cordee/cordee-backend/internal/platform/dbctx"
)

const creationComment = "creation"

// CreateNewVersion archives a freshly inserted document: one figures archive,
// one geometry archive when present, one archive per locale, and one ledger
// row per locale sharing a single history entry.
func (a *DocumentEngine) CreateNewVersion(dbc dbctx.Context, doc *types.Document, userID int64) ([]*types.DocumentVersion, error) {
	if userID <= 0 {
		return nil, ValidationError("missing user_id")
	}
	if doc == nil || doc.DocumentID <= 0 {
		return nil, ValidationError("document must be persisted before it is versioned")
	}

	docArchive, err := a.documentArchive(dbc, doc, true)
	if err != nil {
		return nil, err
	}
	geomArchiveID, err := a.geometryArchive(dbc, doc, true)
	if err != nil {
		return nil, err
	}
	meta := &types.HistoryMetaData{UserID: userID, Comment: creationComment, WrittenAt: a.deps.Base.Now()}
	if err := a.deps.Versions.CreateHistoryMetadata(dbc, meta); err != nil {
		return nil, err
	}

	rows := make([]*types.DocumentVersion, 0, len(doc.Locales))
	for _, loc := range doc.Locales {
		locArchive, err := a.localeArchive(dbc, loc, true)
		if err != nil {
			return nil, err
		}
		rows = append(rows, &types.DocumentVersion{
			DocumentID:                doc.DocumentID,
			Lang:                      loc.Lang,
			DocumentArchiveID:         docArchive,
			DocumentLocalesArchiveID:  locArchive,
			DocumentGeometryArchiveID: geomArchiveID,
			HistoryMetadataID:         meta.ID,
		})
	}
	if err := a.deps.Versions.Create(dbc, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// updateVersion writes the ledger rows of one save. Only the parts flagged in
// ut get new archives; the others reuse the archive of their current version.
func (a *DocumentEngine) updateVersion(dbc dbctx.Context, doc *types.Document, userID int64, comment string, ut types.UpdateType, changedLangs []string) ([]*types.DocumentVersion, error) {
	if ut == 0 {
		return nil, nil
	}
	docArchive, err := a.documentArchive(dbc, doc, ut.Has(documents.UpdateFigures))
	if err != nil {
		return nil, err
	}
	geomArchiveID, err := a.geometryArchive(dbc, doc, ut.Has(documents.UpdateGeom))
	if err != nil {
		return nil, err
	}

	changed := make(map[string]bool, len(changedLangs))
	for _, l := range changedLangs {
		changed[l] = true
	}
	langs := langsToUpdate(doc, ut, changedLangs)
	if len(langs) == 0 {
		return nil, nil
	}

	meta := &types.HistoryMetaData{UserID: userID, Comment: comment, WrittenAt: a.deps.Base.Now()}
	if err := a.deps.Versions.CreateHistoryMetadata(dbc, meta); err != nil {
		return nil, err
	}
	rows := make([]*types.DocumentVersion, 0, len(langs))
	for _, lang := range langs {
		loc := doc.Locale(lang)
		if loc == nil {
			return nil, InvariantError(fmt.Sprintf("document %d has no locale '%s'", doc.DocumentID, lang))
		}
		locArchive, err := a.localeArchive(dbc, loc, changed[lang])
		if err != nil {
			return nil, err
		}
		rows = append(rows, &types.DocumentVersion{
			DocumentID:                doc.DocumentID,
			Lang:                      lang,
			DocumentArchiveID:         docArchive,
			DocumentLocalesArchiveID:  locArchive,
			DocumentGeometryArchiveID: geomArchiveID,
			HistoryMetadataID:         meta.ID,
		})
	}
	if err := a.deps.Versions.Create(dbc, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// langsToUpdate lists the languages that get a ledger row. A figures or
// geometry change reissues every language since the shared archive pointers
// moved; a text-only change touches the changed languages alone.
func langsToUpdate(doc *types.Document, ut types.UpdateType, changedLangs []string) []string {
	if ut.Has(documents.UpdateFigures) || ut.Has(documents.UpdateGeom) {
		out := make([]string, 0, len(doc.Locales))
		for _, l := range doc.Locales {
			out = append(out, l.Lang)
		}
		return out
	}
	return changedLangs
}

func (a *DocumentEngine) documentArchive(dbc dbctx.Context, doc *types.Document, create bool) (int64, error) {
	if create {
		row := documents.NewArchiveDocument(doc)
		if err := a.deps.Archives.CreateDocumentArchive(dbc, row); err != nil {
			return 0, err
		}
		return row.ID, nil
	}
	row, err := a.deps.Archives.FindDocumentArchive(dbc, doc.DocumentID, doc.Version)
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, InvariantError(fmt.Sprintf("missing figures archive for document %d version %d", doc.DocumentID, doc.Version))
	}
	return row.ID, nil
}

func (a *DocumentEngine) geometryArchive(dbc dbctx.Context, doc *types.Document, create bool) (*int64, error) {
	g := doc.Geometry
	if g == nil {
		return nil, nil
	}
	if create {
		row := documents.NewArchiveDocumentGeometry(g)
		if err := a.deps.Archives.CreateGeometryArchive(dbc, row); err != nil {
			return nil, err
		}
		return &row.ID, nil
	}
	row, err := a.deps.Archives.FindGeometryArchive(dbc, doc.DocumentID, g.Version)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, InvariantError(fmt.Sprintf("missing geometry archive for document %d version %d", doc.DocumentID, g.Version))
	}
	return &row.ID, nil
}

func (a *DocumentEngine) localeArchive(dbc dbctx.Context, loc *types.DocumentLocale, create bool) (int64, error) {
	if create {
		row := documents.NewArchiveDocumentLocale(loc)
		if err := a.deps.Archives.CreateLocaleArchive(dbc, row); err != nil {
			return 0, err
		}
		return row.ID, nil
	}
	row, err := a.deps.Archives.FindLocaleArchive(dbc, loc.DocumentID, loc.Lang, loc.Version)
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, InvariantError(fmt.Sprintf("missing locale archive for document %d lang '%s' version %d", loc.DocumentID, loc.Lang, loc.Version))
	}
	return row.ID, nil
}
