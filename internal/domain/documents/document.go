package documents

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Document is the current-state base row shared by every document type.
// Locales and Geometry are loaded and written explicitly by the repos.
type Document struct {
	DocumentID  int64          `gorm:"column:document_id;primaryKey;autoIncrement" json:"document_id"`
	Type        Type           `gorm:"column:type;not null;index" json:"type"`
	Version     int            `gorm:"column:version;not null;default:1" json:"version"`
	Quality     string         `gorm:"column:quality" json:"quality,omitempty"`
	Protected   bool           `gorm:"column:protected;not null;default:false" json:"protected"`
	RedirectsTo *int64         `gorm:"column:redirects_to;index" json:"redirects_to,omitempty"`
	Figures     datatypes.JSON `gorm:"column:figures" json:"figures,omitempty"`

	// Projections of figures used for reverse lookups.
	MainWaypointID *int64  `gorm:"column:main_waypoint_id;index" json:"-"`
	Filename       *string `gorm:"column:filename;uniqueIndex:idx_documents_filename" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Locales  []*DocumentLocale `gorm:"-" json:"locales,omitempty"`
	Geometry *DocumentGeometry `gorm:"-" json:"geometry,omitempty"`
}

func (Document) TableName() string { return "documents" }

// IsRedirected reports whether the document was merged into another one.
func (d *Document) IsRedirected() bool { return d != nil && d.RedirectsTo != nil }

// DecodeFigures returns the typed figures of the document.
func (d *Document) DecodeFigures() (Figures, error) {
	return DecodeFigures(d.Type, d.Figures)
}

// SetFigures stores f in canonical form and refreshes the projected columns.
func (d *Document) SetFigures(f Figures) error {
	if !figuresMatchType(f, d.Type) {
		return fmt.Errorf("figures of type %s do not match document type %s", f.DocumentType(), d.Type)
	}
	raw, err := EncodeFigures(f)
	if err != nil {
		return err
	}
	d.Figures = raw
	d.MainWaypointID = nil
	d.Filename = nil
	switch v := f.(type) {
	case *RouteFigures:
		d.MainWaypointID = v.MainWaypointID
	case *ImageFigures:
		if v.Filename != "" {
			name := v.Filename
			d.Filename = &name
		}
	}
	return nil
}

// SameFigures compares the figure-level fields: figures payload, quality,
// protection and redirection.
func (d *Document) SameFigures(other *Document) bool {
	if d == nil || other == nil {
		return d == nil && other == nil
	}
	return bytes.Equal(canonicalJSON(d.Figures), canonicalJSON(other.Figures)) &&
		d.Quality == other.Quality &&
		d.Protected == other.Protected &&
		int64PtrEq(d.RedirectsTo, other.RedirectsTo)
}

// Locale returns the locale for lang, or nil.
func (d *Document) Locale(lang string) *DocumentLocale {
	for _, l := range d.Locales {
		if l != nil && l.Lang == lang {
			return l
		}
	}
	return nil
}

// DocumentLocale holds one language's text for a document.
type DocumentLocale struct {
	ID          int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	DocumentID  int64          `gorm:"column:document_id;not null;uniqueIndex:idx_documents_locales_doc_lang,priority:1" json:"document_id"`
	Lang        string         `gorm:"column:lang;not null;uniqueIndex:idx_documents_locales_doc_lang,priority:2" json:"lang"`
	Version     int            `gorm:"column:version;not null;default:1" json:"version"`
	Title       string         `gorm:"column:title" json:"title"`
	Summary     string         `gorm:"column:summary;type:text" json:"summary,omitempty"`
	Description string         `gorm:"column:description;type:text" json:"description,omitempty"`
	Extra       datatypes.JSON `gorm:"column:extra" json:"extra,omitempty"`
}

func (DocumentLocale) TableName() string { return "documents_locales" }

// SameContent compares the text fields only.
func (l *DocumentLocale) SameContent(other *DocumentLocale) bool {
	if l == nil || other == nil {
		return l == nil && other == nil
	}
	return l.Title == other.Title &&
		l.Summary == other.Summary &&
		l.Description == other.Description &&
		bytes.Equal(canonicalJSON(l.Extra), canonicalJSON(other.Extra))
}

// canonicalJSON re-encodes raw with sorted keys so payloads read back from a
// jsonb column compare equal to freshly encoded ones.
func canonicalJSON(raw []byte) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	// numbers stay literal; float64 would merge integers above 2^53
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil || dec.More() {
		return trimmed
	}
	if v == nil {
		return nil
	}
	if m, ok := v.(map[string]interface{}); ok && len(m) == 0 {
		return nil
	}
	out, err := json.Marshal(v)
	if err != nil {
		return trimmed
	}
	return out
}

func int64PtrEq(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
