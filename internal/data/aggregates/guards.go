package aggregates

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/cordee/cordee-backend/internal/platform/dbctx"
)

// VersionedRow addresses one row of a versioned part of a document: the
// document row, one locale or the geometry. Version is the value the writer
// last read.
type VersionedRow struct {
	Part    string
	Table   string
	Key     string
	ID      int64
	Version int
}

func documentRow(id int64, version int) VersionedRow {
	return VersionedRow{Part: "document", Table: "documents", Key: "document_id", ID: id, Version: version}
}

func localeRow(id int64, lang string, version int) VersionedRow {
	return VersionedRow{Part: fmt.Sprintf("locale '%s'", lang), Table: "documents_locales", Key: "id", ID: id, Version: version}
}

func geometryRow(documentID int64, version int) VersionedRow {
	return VersionedRow{Part: "geometry", Table: "documents_geometries", Key: "document_id", ID: documentID, Version: version}
}

// CASGuard performs the version-guarded writes that serialize concurrent
// edits of a document.
type CASGuard struct {
	db *gorm.DB
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

// Bump writes updates to row and advances its version by one, provided the
// stored version is still row.Version. A lost race is a conflict.
func (g CASGuard) Bump(dbc dbctx.Context, row VersionedRow, updates map[string]any) error {
	if dbc.Tx == nil && g.db == nil {
		return ValidationError("missing db transaction context")
	}
	if row.Table == "" || row.Key == "" || row.ID <= 0 {
		return ValidationError("versioned row needs a table, a key column and an id")
	}
	if row.Version < 1 {
		return ValidationError(fmt.Sprintf("version of %s must be >= 1", row.Part))
	}
	set := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		set[k] = v
	}
	set["version"] = row.Version + 1
	res := dbc.Conn(g.db).Table(row.Table).
		Where(fmt.Sprintf("%s = ? AND version = ?", row.Key), row.ID, row.Version).
		Updates(set)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ConflictError(fmt.Sprintf("concurrent modification of %s", row.Part))
	}
	return nil
}

// expectVersion rejects an edit based on a stale read of row.
func expectVersion(row VersionedRow, seen int) error {
	if row.Version != seen {
		return ConflictError(fmt.Sprintf("version of %s has changed", row.Part))
	}
	return nil
}
