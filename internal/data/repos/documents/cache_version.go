package documents

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/cordee/cordee-backend/internal/domain"
	"github.com/cordee/cordee-backend/internal/platform/dbctx"
	"github.com/cordee/cordee-backend/internal/platform/logger"
)

type CacheVersionRepo interface {
	Create(dbc dbctx.Context, documentID int64) error
	Bump(dbc dbctx.Context, documentIDs []int64) (int64, error)
	Get(dbc dbctx.Context, documentID int64) (*types.CacheVersion, error)
	GetMany(dbc dbctx.Context, documentIDs []int64) (map[int64]int, error)
	DeleteByDocumentIDs(dbc dbctx.Context, documentIDs []int64) error
}

type cacheVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCacheVersionRepo(db *gorm.DB, baseLog *logger.Logger) CacheVersionRepo {
	return &cacheVersionRepo{db: db, log: baseLog.With("repo", "CacheVersionRepo")}
}

// Create starts the counter at 1; an existing row is left untouched.
func (r *cacheVersionRepo) Create(dbc dbctx.Context, documentID int64) error {
	row := &types.CacheVersion{DocumentID: documentID, Version: 1, LastUpdated: time.Now().UTC()}
	return dbc.Conn(r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
}

// Bump increments each listed counter by exactly one. Callers deduplicate.
func (r *cacheVersionRepo) Bump(dbc dbctx.Context, documentIDs []int64) (int64, error) {
	if len(documentIDs) == 0 {
		return 0, nil
	}
	res := dbc.Conn(r.db).Model(&types.CacheVersion{}).
		Where("document_id IN ?", documentIDs).
		Updates(map[string]interface{}{
			"version":      gorm.Expr("version + 1"),
			"last_updated": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *cacheVersionRepo) Get(dbc dbctx.Context, documentID int64) (*types.CacheVersion, error) {
	var out types.CacheVersion
	err := dbc.Conn(r.db).Where("document_id = ?", documentID).Take(&out).Error
	return takeResult(&out, err)
}

func (r *cacheVersionRepo) GetMany(dbc dbctx.Context, documentIDs []int64) (map[int64]int, error) {
	out := make(map[int64]int, len(documentIDs))
	if len(documentIDs) == 0 {
		return out, nil
	}
	var rows []*types.CacheVersion
	if err := dbc.Conn(r.db).Where("document_id IN ?", documentIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.DocumentID] = row.Version
	}
	return out, nil
}

func (r *cacheVersionRepo) DeleteByDocumentIDs(dbc dbctx.Context, documentIDs []int64) error {
	if len(documentIDs) == 0 {
		return nil
	}
	return dbc.Conn(r.db).Where("document_id IN ?", documentIDs).Delete(&types.CacheVersion{}).Error
}
