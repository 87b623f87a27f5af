package documents

import (
	"gorm.io/gorm"

	types "github.com/cordee/cordee-backend/internal/domain"
	"github.com/cordee/cordee-backend/internal/platform/dbctx"
	"github.com/cordee/cordee-backend/internal/platform/logger"
)

// VersionRepo manages the append-only ledger and its save-event metadata.
type VersionRepo interface {
	CreateHistoryMetadata(dbc dbctx.Context, m *types.HistoryMetaData) error
	Create(dbc dbctx.Context, rows []*types.DocumentVersion) error

	Get(dbc dbctx.Context, versionID, documentID int64, lang string) (*types.DocumentVersion, error)
	GetHistoryMetadata(dbc dbctx.Context, ids []int64) (map[int64]*types.HistoryMetaData, error)
	NeighbourIDs(dbc dbctx.Context, versionID, documentID int64, lang string) (previous, next *int64, err error)
	ListByDocumentLang(dbc dbctx.Context, documentID int64, lang string) ([]*types.DocumentVersion, error)

	DeleteByDocumentIDs(dbc dbctx.Context, documentIDs []int64) error
}

type versionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVersionRepo(db *gorm.DB, baseLog *logger.Logger) VersionRepo {
	return &versionRepo{db: db, log: baseLog.With("repo", "VersionRepo")}
}

func (r *versionRepo) CreateHistoryMetadata(dbc dbctx.Context, m *types.HistoryMetaData) error {
	return dbc.Conn(r.db).Create(m).Error
}

func (r *versionRepo) Create(dbc dbctx.Context, rows []*types.DocumentVersion) error {
	if len(rows) == 0 {
		return nil
	}
	// one insert per row keeps ids in slice order on every driver.
	t := dbc.Conn(r.db)
	for _, row := range rows {
		if err := t.Create(row).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *versionRepo) Get(dbc dbctx.Context, versionID, documentID int64, lang string) (*types.DocumentVersion, error) {
	var out types.DocumentVersion
	err := dbc.Conn(r.db).
		Where("id = ? AND document_id = ? AND lang = ?", versionID, documentID, lang).
		Take(&out).Error
	return takeResult(&out, err)
}

func (r *versionRepo) GetHistoryMetadata(dbc dbctx.Context, ids []int64) (map[int64]*types.HistoryMetaData, error) {
	out := make(map[int64]*types.HistoryMetaData, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []*types.HistoryMetaData
	if err := dbc.Conn(r.db).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, m := range rows {
		out[m.ID] = m
	}
	return out, nil
}

// NeighbourIDs returns the closest ledger ids below and above versionID for
// the same document and language. Either may be nil at the ends of history.
func (r *versionRepo) NeighbourIDs(dbc dbctx.Context, versionID, documentID int64, lang string) (*int64, *int64, error) {
	t := dbc.Conn(r.db)
	var prev, next []int64
	if err := t.Model(&types.DocumentVersion{}).
		Where("document_id = ? AND lang = ? AND id < ?", documentID, lang, versionID).
		Order("id DESC").
		Limit(1).
		Pluck("id", &prev).Error; err != nil {
		return nil, nil, err
	}
	if err := t.Model(&types.DocumentVersion{}).
		Where("document_id = ? AND lang = ? AND id > ?", documentID, lang, versionID).
		Order("id ASC").
		Limit(1).
		Pluck("id", &next).Error; err != nil {
		return nil, nil, err
	}
	var prevID, nextID *int64
	if len(prev) > 0 {
		prevID = &prev[0]
	}
	if len(next) > 0 {
		nextID = &next[0]
	}
	return prevID, nextID, nil
}

func (r *versionRepo) ListByDocumentLang(dbc dbctx.Context, documentID int64, lang string) ([]*types.DocumentVersion, error) {
	var out []*types.DocumentVersion
	err := dbc.Conn(r.db).
		Where("document_id = ? AND lang = ?", documentID, lang).
		Order("id").
		Find(&out).Error
	return out, err
}

// DeleteByDocumentIDs removes ledger rows and the save-event metadata they
// referenced. A save event only ever covers one document.
func (r *versionRepo) DeleteByDocumentIDs(dbc dbctx.Context, documentIDs []int64) error {
	if len(documentIDs) == 0 {
		return nil
	}
	t := dbc.Conn(r.db)
	var metaIDs []int64
	if err := t.Model(&types.DocumentVersion{}).
		Distinct("history_metadata_id").
		Where("document_id IN ?", documentIDs).
		Pluck("history_metadata_id", &metaIDs).Error; err != nil {
		return err
	}
	if err := t.Where("document_id IN ?", documentIDs).Delete(&types.DocumentVersion{}).Error; err != nil {
		return err
	}
	if len(metaIDs) == 0 {
		return nil
	}
	return t.Where("id IN ?", metaIDs).Delete(&types.HistoryMetaData{}).Error
}
