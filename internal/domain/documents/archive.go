package documents

import (
	"time"

	"gorm.io/datatypes"
)

// ArchiveDocument is an immutable snapshot of the figure-level fields at one
// document version. It is shared by every ledger row written while that
// version was current.
type ArchiveDocument struct {
	ID          int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	DocumentID  int64          `gorm:"column:document_id;not null;uniqueIndex:idx_archive_documents_doc_version,priority:1" json:"document_id"`
	Version     int            `gorm:"column:version;not null;uniqueIndex:idx_archive_documents_doc_version,priority:2" json:"version"`
	Type        Type           `gorm:"column:type;not null" json:"type"`
	Quality     string         `gorm:"column:quality" json:"quality,omitempty"`
	Protected   bool           `gorm:"column:protected;not null;default:false" json:"protected"`
	RedirectsTo *int64         `gorm:"column:redirects_to" json:"redirects_to,omitempty"`
	Figures     datatypes.JSON `gorm:"column:figures" json:"figures,omitempty"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (ArchiveDocument) TableName() string { return "documents_archives" }

func NewArchiveDocument(d *Document) *ArchiveDocument {
	return &ArchiveDocument{
		DocumentID:  d.DocumentID,
		Version:     d.Version,
		Type:        d.Type,
		Quality:     d.Quality,
		Protected:   d.Protected,
		RedirectsTo: d.RedirectsTo,
		Figures:     cloneJSON(d.Figures),
	}
}

// ArchiveDocumentLocale is an immutable snapshot of one locale version.
type ArchiveDocumentLocale struct {
	ID          int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	DocumentID  int64          `gorm:"column:document_id;not null;uniqueIndex:idx_archive_locales_doc_lang_version,priority:1" json:"document_id"`
	Lang        string         `gorm:"column:lang;not null;uniqueIndex:idx_archive_locales_doc_lang_version,priority:2" json:"lang"`
	Version     int            `gorm:"column:version;not null;uniqueIndex:idx_archive_locales_doc_lang_version,priority:3" json:"version"`
	Title       string         `gorm:"column:title" json:"title"`
	Summary     string         `gorm:"column:summary;type:text" json:"summary,omitempty"`
	Description string         `gorm:"column:description;type:text" json:"description,omitempty"`
	Extra       datatypes.JSON `gorm:"column:extra" json:"extra,omitempty"`
}

func (ArchiveDocumentLocale) TableName() string { return "documents_locales_archives" }

func NewArchiveDocumentLocale(l *DocumentLocale) *ArchiveDocumentLocale {
	return &ArchiveDocumentLocale{
		DocumentID:  l.DocumentID,
		Lang:        l.Lang,
		Version:     l.Version,
		Title:       l.Title,
		Summary:     l.Summary,
		Description: l.Description,
		Extra:       cloneJSON(l.Extra),
	}
}

// ArchiveDocumentGeometry is an immutable snapshot of one geometry version.
type ArchiveDocumentGeometry struct {
	ID         int64   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	DocumentID int64   `gorm:"column:document_id;not null;uniqueIndex:idx_archive_geometries_doc_version,priority:1" json:"document_id"`
	Version    int     `gorm:"column:version;not null;uniqueIndex:idx_archive_geometries_doc_version,priority:2" json:"version"`
	Geom       *string `gorm:"column:geom;type:text" json:"geom,omitempty"`
	GeomDetail *string `gorm:"column:geom_detail;type:text" json:"geom_detail,omitempty"`
}

func (ArchiveDocumentGeometry) TableName() string { return "documents_geometries_archives" }

func NewArchiveDocumentGeometry(g *DocumentGeometry) *ArchiveDocumentGeometry {
	return &ArchiveDocumentGeometry{
		DocumentID: g.DocumentID,
		Version:    g.Version,
		Geom:       cloneStr(g.Geom),
		GeomDetail: cloneStr(g.GeomDetail),
	}
}

// Snapshot rebuilds a read-only document from archive rows. loc and geom may be nil.
func Snapshot(doc *ArchiveDocument, loc *ArchiveDocumentLocale, geom *ArchiveDocumentGeometry) *Document {
	if doc == nil {
		return nil
	}
	out := &Document{
		DocumentID:  doc.DocumentID,
		Type:        doc.Type,
		Version:     doc.Version,
		Quality:     doc.Quality,
		Protected:   doc.Protected,
		RedirectsTo: doc.RedirectsTo,
		Figures:     cloneJSON(doc.Figures),
	}
	if loc != nil {
		out.Locales = []*DocumentLocale{{
			DocumentID:  loc.DocumentID,
			Lang:        loc.Lang,
			Version:     loc.Version,
			Title:       loc.Title,
			Summary:     loc.Summary,
			Description: loc.Description,
			Extra:       cloneJSON(loc.Extra),
		}}
	}
	if geom != nil {
		out.Geometry = &DocumentGeometry{
			DocumentID: geom.DocumentID,
			Version:    geom.Version,
			Geom:       cloneStr(geom.Geom),
			GeomDetail: cloneStr(geom.GeomDetail),
		}
	}
	return out
}

func cloneJSON(in datatypes.JSON) datatypes.JSON {
	if in == nil {
		return nil
	}
	out := make(datatypes.JSON, len(in))
	copy(out, in)
	return out
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
