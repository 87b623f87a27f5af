package documents

import (
	"errors"

	"gorm.io/gorm"

	types "github.com/cordee/cordee-backend/internal/domain"
	"github.com/cordee/cordee-backend/internal/platform/dbctx"
	"github.com/cordee/cordee-backend/internal/platform/logger"
)

// ArchiveRepo manages the three immutable archive families. Find* lookups
// return nil, nil on a miss so callers decide whether a miss is fatal.
type ArchiveRepo interface {
	CreateDocumentArchive(dbc dbctx.Context, a *types.ArchiveDocument) error
	CreateLocaleArchive(dbc dbctx.Context, a *types.ArchiveDocumentLocale) error
	CreateGeometryArchive(dbc dbctx.Context, a *types.ArchiveDocumentGeometry) error

	FindDocumentArchive(dbc dbctx.Context, documentID int64, version int) (*types.ArchiveDocument, error)
	FindLocaleArchive(dbc dbctx.Context, documentID int64, lang string, version int) (*types.ArchiveDocumentLocale, error)
	FindGeometryArchive(dbc dbctx.Context, documentID int64, version int) (*types.ArchiveDocumentGeometry, error)

	GetDocumentArchive(dbc dbctx.Context, id int64) (*types.ArchiveDocument, error)
	GetLocaleArchive(dbc dbctx.Context, id int64) (*types.ArchiveDocumentLocale, error)
	GetGeometryArchive(dbc dbctx.Context, id int64) (*types.ArchiveDocumentGeometry, error)

	ListDocumentArchives(dbc dbctx.Context, documentIDs []int64) ([]*types.ArchiveDocument, error)

	DeleteByDocumentIDs(dbc dbctx.Context, documentIDs []int64) error
}

type archiveRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArchiveRepo(db *gorm.DB, baseLog *logger.Logger) ArchiveRepo {
	return &archiveRepo{db: db, log: baseLog.With("repo", "ArchiveRepo")}
}

func (r *archiveRepo) CreateDocumentArchive(dbc dbctx.Context, a *types.ArchiveDocument) error {
	return dbc.Conn(r.db).Create(a).Error
}

func (r *archiveRepo) CreateLocaleArchive(dbc dbctx.Context, a *types.ArchiveDocumentLocale) error {
	return dbc.Conn(r.db).Create(a).Error
}

func (r *archiveRepo) CreateGeometryArchive(dbc dbctx.Context, a *types.ArchiveDocumentGeometry) error {
	return dbc.Conn(r.db).Create(a).Error
}

func (r *archiveRepo) FindDocumentArchive(dbc dbctx.Context, documentID int64, version int) (*types.ArchiveDocument, error) {
	var out types.ArchiveDocument
	err := dbc.Conn(r.db).Where("document_id = ? AND version = ?", documentID, version).Take(&out).Error
	return takeResult(&out, err)
}

func (r *archiveRepo) FindLocaleArchive(dbc dbctx.Context, documentID int64, lang string, version int) (*types.ArchiveDocumentLocale, error) {
	var out types.ArchiveDocumentLocale
	err := dbc.Conn(r.db).Where("document_id = ? AND lang = ? AND version = ?", documentID, lang, version).Take(&out).Error
	return takeResult(&out, err)
}

func (r *archiveRepo) FindGeometryArchive(dbc dbctx.Context, documentID int64, version int) (*types.ArchiveDocumentGeometry, error) {
	var out types.ArchiveDocumentGeometry
	err := dbc.Conn(r.db).Where("document_id = ? AND version = ?", documentID, version).Take(&out).Error
	return takeResult(&out, err)
}

func (r *archiveRepo) GetDocumentArchive(dbc dbctx.Context, id int64) (*types.ArchiveDocument, error) {
	var out types.ArchiveDocument
	err := dbc.Conn(r.db).Where("id = ?", id).Take(&out).Error
	return takeResult(&out, err)
}

func (r *archiveRepo) GetLocaleArchive(dbc dbctx.Context, id int64) (*types.ArchiveDocumentLocale, error) {
	var out types.ArchiveDocumentLocale
	err := dbc.Conn(r.db).Where("id = ?", id).Take(&out).Error
	return takeResult(&out, err)
}

func (r *archiveRepo) GetGeometryArchive(dbc dbctx.Context, id int64) (*types.ArchiveDocumentGeometry, error) {
	var out types.ArchiveDocumentGeometry
	err := dbc.Conn(r.db).Where("id = ?", id).Take(&out).Error
	return takeResult(&out, err)
}

func (r *archiveRepo) ListDocumentArchives(dbc dbctx.Context, documentIDs []int64) ([]*types.ArchiveDocument, error) {
	var out []*types.ArchiveDocument
	if len(documentIDs) == 0 {
		return out, nil
	}
	err := dbc.Conn(r.db).Where("document_id IN ?", documentIDs).Order("id").Find(&out).Error
	return out, err
}

func (r *archiveRepo) DeleteByDocumentIDs(dbc dbctx.Context, documentIDs []int64) error {
	if len(documentIDs) == 0 {
		return nil
	}
	t := dbc.Conn(r.db)
	if err := t.Where("document_id IN ?", documentIDs).Delete(&types.ArchiveDocumentLocale{}).Error; err != nil {
		return err
	}
	if err := t.Where("document_id IN ?", documentIDs).Delete(&types.ArchiveDocumentGeometry{}).Error; err != nil {
		return err
	}
	return t.Where("document_id IN ?", documentIDs).Delete(&types.ArchiveDocument{}).Error
}

func takeResult[T any](row *T, err error) (*T, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}
