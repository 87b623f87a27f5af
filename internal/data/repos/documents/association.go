package documents

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/cordee/cordee-backend/internal/domain"
	"github.com/cordee/cordee-backend/internal/platform/dbctx"
	"github.com/cordee/cordee-backend/internal/platform/logger"
)

// AssociationRepo stores directed edges and their audit log. Both traversal
// directions are explicit queries.
type AssociationRepo interface {
	Create(dbc dbctx.Context, rows []*types.Association) (int, error)
	Delete(dbc dbctx.Context, keys []types.AssociationKey) (int64, error)
	Get(dbc dbctx.Context, parentID, childID int64) (*types.Association, error)

	ListParents(dbc dbctx.Context, documentID int64) ([]*types.Association, error)
	ListChildren(dbc dbctx.Context, documentID int64) ([]*types.Association, error)
	ListByDocumentIDs(dbc dbctx.Context, documentIDs []int64) ([]*types.Association, error)
	ListSoleParentChildIDs(dbc dbctx.Context, parentID int64, parentType, childType types.DocumentType) ([]int64, error)

	CreateLogs(dbc dbctx.Context, logs []*types.AssociationLog) error

	DeleteByDocumentIDs(dbc dbctx.Context, documentIDs []int64) error
	DeleteLogsByDocumentIDs(dbc dbctx.Context, documentIDs []int64) error
}

type associationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssociationRepo(db *gorm.DB, baseLog *logger.Logger) AssociationRepo {
	return &associationRepo{db: db, log: baseLog.With("repo", "AssociationRepo")}
}

// Create inserts edges, ignoring ones that already exist. It returns the
// number of edges actually inserted.
func (r *associationRepo) Create(dbc dbctx.Context, rows []*types.Association) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	res := dbc.Conn(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "parent_document_id"}, {Name: "child_document_id"}},
			DoNothing: true,
		}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

func (r *associationRepo) Delete(dbc dbctx.Context, keys []types.AssociationKey) (int64, error) {
	t := dbc.Conn(r.db)
	var n int64
	for _, k := range keys {
		res := t.Where("parent_document_id = ? AND child_document_id = ?", k.Parent, k.Child).
			Delete(&types.Association{})
		if res.Error != nil {
			return n, res.Error
		}
		n += res.RowsAffected
	}
	return n, nil
}

func (r *associationRepo) Get(dbc dbctx.Context, parentID, childID int64) (*types.Association, error) {
	var out types.Association
	err := dbc.Conn(r.db).
		Where("parent_document_id = ? AND child_document_id = ?", parentID, childID).
		Take(&out).Error
	return takeResult(&out, err)
}

func (r *associationRepo) ListParents(dbc dbctx.Context, documentID int64) ([]*types.Association, error) {
	var out []*types.Association
	err := dbc.Conn(r.db).
		Where("child_document_id = ?", documentID).
		Order("parent_document_id").
		Find(&out).Error
	return out, err
}

func (r *associationRepo) ListChildren(dbc dbctx.Context, documentID int64) ([]*types.Association, error) {
	var out []*types.Association
	err := dbc.Conn(r.db).
		Where("parent_document_id = ?", documentID).
		Order("child_document_id").
		Find(&out).Error
	return out, err
}

func (r *associationRepo) ListByDocumentIDs(dbc dbctx.Context, documentIDs []int64) ([]*types.Association, error) {
	var out []*types.Association
	if len(documentIDs) == 0 {
		return out, nil
	}
	err := dbc.Conn(r.db).
		Where("parent_document_id IN ? OR child_document_id IN ?", documentIDs, documentIDs).
		Order("parent_document_id, child_document_id").
		Find(&out).Error
	return out, err
}

// ListSoleParentChildIDs returns the children of parentID (of childType) for
// which parentID is the only parent of parentType. Used to refuse deletions
// that would orphan a route or an outing.
func (r *associationRepo) ListSoleParentChildIDs(dbc dbctx.Context, parentID int64, parentType, childType types.DocumentType) ([]int64, error) {
	var ids []int64
	err := dbc.Conn(r.db).
		Table("associations AS a").
		Where("a.parent_document_id = ? AND a.parent_document_type = ? AND a.child_document_type = ?", parentID, parentType, childType).
		Where("(SELECT COUNT(*) FROM associations b WHERE b.child_document_id = a.child_document_id AND b.parent_document_type = ?) = 1", parentType).
		Order("a.child_document_id").
		Pluck("a.child_document_id", &ids).Error
	return ids, err
}

func (r *associationRepo) CreateLogs(dbc dbctx.Context, logs []*types.AssociationLog) error {
	if len(logs) == 0 {
		return nil
	}
	return dbc.Conn(r.db).Create(&logs).Error
}

func (r *associationRepo) DeleteByDocumentIDs(dbc dbctx.Context, documentIDs []int64) error {
	if len(documentIDs) == 0 {
		return nil
	}
	return dbc.Conn(r.db).
		Where("parent_document_id IN ? OR child_document_id IN ?", documentIDs, documentIDs).
		Delete(&types.Association{}).Error
}

func (r *associationRepo) DeleteLogsByDocumentIDs(dbc dbctx.Context, documentIDs []int64) error {
	if len(documentIDs) == 0 {
		return nil
	}
	return dbc.Conn(r.db).
		Where("parent_document_id IN ? OR child_document_id IN ?", documentIDs, documentIDs).
		Delete(&types.AssociationLog{}).Error
}
