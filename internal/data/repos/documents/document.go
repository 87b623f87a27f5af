package documents

import (
	"errors"

	"gorm.io/gorm"

	types "github.com/cordee/cordee-backend/internal/domain"
	"github.com/cordee/cordee-backend/internal/platform/dbctx"
	"github.com/cordee/cordee-backend/internal/platform/logger"
)

type DocumentRepo interface {
	Create(dbc dbctx.Context, doc *types.Document) error
	CreateLocale(dbc dbctx.Context, loc *types.DocumentLocale) error
	CreateGeometry(dbc dbctx.Context, geom *types.DocumentGeometry) error

	GetByID(dbc dbctx.Context, id int64) (*types.Document, error)
	GetByIDs(dbc dbctx.Context, ids []int64) ([]*types.Document, error)
	GetLocale(dbc dbctx.Context, id int64, lang string) (*types.DocumentLocale, error)
	GetTypes(dbc dbctx.Context, ids []int64) (map[int64]types.DocumentType, error)

	ListIDsRedirectingTo(dbc dbctx.Context, id int64) ([]int64, error)
	ListRouteIDsByMainWaypoint(dbc dbctx.Context, waypointID int64) ([]int64, error)
	ListIDs(dbc dbctx.Context, afterID int64, limit int) ([]int64, error)

	DeleteByIDs(dbc dbctx.Context, ids []int64) error
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return &documentRepo{db: db, log: baseLog.With("repo", "DocumentRepo")}
}

// Create inserts the document row, then its locales and geometry, assigning
// the new document id to the children.
func (r *documentRepo) Create(dbc dbctx.Context, doc *types.Document) error {
	t := dbc.Conn(r.db)
	if doc.Version == 0 {
		doc.Version = 1
	}
	if err := t.Create(doc).Error; err != nil {
		return err
	}
	for _, loc := range doc.Locales {
		loc.DocumentID = doc.DocumentID
		if loc.Version == 0 {
			loc.Version = 1
		}
		if err := t.Create(loc).Error; err != nil {
			return err
		}
	}
	if doc.Geometry != nil {
		doc.Geometry.DocumentID = doc.DocumentID
		if doc.Geometry.Version == 0 {
			doc.Geometry.Version = 1
		}
		if err := t.Create(doc.Geometry).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *documentRepo) CreateLocale(dbc dbctx.Context, loc *types.DocumentLocale) error {
	if loc.Version == 0 {
		loc.Version = 1
	}
	return dbc.Conn(r.db).Create(loc).Error
}

func (r *documentRepo) CreateGeometry(dbc dbctx.Context, geom *types.DocumentGeometry) error {
	if geom.Version == 0 {
		geom.Version = 1
	}
	return dbc.Conn(r.db).Create(geom).Error
}

// GetByID loads a document with its locales (insertion order) and geometry.
// It returns nil, nil when the document does not exist.
func (r *documentRepo) GetByID(dbc dbctx.Context, id int64) (*types.Document, error) {
	if id <= 0 {
		return nil, nil
	}
	rows, err := r.GetByIDs(dbc, []int64{id})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *documentRepo) GetByIDs(dbc dbctx.Context, ids []int64) ([]*types.Document, error) {
	t := dbc.Conn(r.db)
	var out []*types.Document
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.Where("document_id IN ?", ids).Order("document_id").Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}
	byID := make(map[int64]*types.Document, len(out))
	for _, d := range out {
		byID[d.DocumentID] = d
	}

	var locales []*types.DocumentLocale
	if err := t.Where("document_id IN ?", ids).Order("id").Find(&locales).Error; err != nil {
		return nil, err
	}
	for _, l := range locales {
		if d := byID[l.DocumentID]; d != nil {
			d.Locales = append(d.Locales, l)
		}
	}

	var geoms []*types.DocumentGeometry
	if err := t.Where("document_id IN ?", ids).Find(&geoms).Error; err != nil {
		return nil, err
	}
	for _, g := range geoms {
		if d := byID[g.DocumentID]; d != nil {
			d.Geometry = g
		}
	}
	return out, nil
}

func (r *documentRepo) GetLocale(dbc dbctx.Context, id int64, lang string) (*types.DocumentLocale, error) {
	var loc types.DocumentLocale
	err := dbc.Conn(r.db).Where("document_id = ? AND lang = ?", id, lang).Take(&loc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (r *documentRepo) GetTypes(dbc dbctx.Context, ids []int64) (map[int64]types.DocumentType, error) {
	out := make(map[int64]types.DocumentType, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		DocumentID int64
		Type       types.DocumentType
	}
	if err := dbc.Conn(r.db).Model(&types.Document{}).
		Select("document_id, type").
		Where("document_id IN ?", ids).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.DocumentID] = row.Type
	}
	return out, nil
}

func (r *documentRepo) ListIDsRedirectingTo(dbc dbctx.Context, id int64) ([]int64, error) {
	var ids []int64
	err := dbc.Conn(r.db).Model(&types.Document{}).
		Where("redirects_to = ?", id).
		Order("document_id").
		Pluck("document_id", &ids).Error
	return ids, err
}

func (r *documentRepo) ListRouteIDsByMainWaypoint(dbc dbctx.Context, waypointID int64) ([]int64, error) {
	var ids []int64
	err := dbc.Conn(r.db).Model(&types.Document{}).
		Where("type = ? AND main_waypoint_id = ?", types.DocumentTypeRoute, waypointID).
		Order("document_id").
		Pluck("document_id", &ids).Error
	return ids, err
}

// ListIDs pages through document ids in ascending order.
func (r *documentRepo) ListIDs(dbc dbctx.Context, afterID int64, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 500
	}
	var ids []int64
	err := dbc.Conn(r.db).Model(&types.Document{}).
		Where("document_id > ?", afterID).
		Order("document_id").
		Limit(limit).
		Pluck("document_id", &ids).Error
	return ids, err
}

// DeleteByIDs removes current-state rows: locales, geometry, then the document.
func (r *documentRepo) DeleteByIDs(dbc dbctx.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	t := dbc.Conn(r.db)
	if err := t.Where("document_id IN ?", ids).Delete(&types.DocumentLocale{}).Error; err != nil {
		return err
	}
	if err := t.Where("document_id IN ?", ids).Delete(&types.DocumentGeometry{}).Error; err != nil {
		return err
	}
	return t.Where("document_id IN ?", ids).Delete(&types.Document{}).Error
}
