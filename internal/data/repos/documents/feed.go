package documents

import (
	"strings"
	"time"

	"gorm.io/gorm"

	types "github.com/cordee/cordee-backend/internal/domain"
	"github.com/cordee/cordee-backend/internal/platform/dbctx"
	"github.com/cordee/cordee-backend/internal/platform/logger"
)

// FeedRepo is the activity stream: one entry per created document.
type FeedRepo interface {
	RecordCreation(dbc dbctx.Context, doc *types.Document, userID int64) error
	ListByDocumentID(dbc dbctx.Context, documentID int64) ([]*types.DocumentChange, error)
	RemoveByDocumentIDs(dbc dbctx.Context, documentIDs []int64) error
}

type feedRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFeedRepo(db *gorm.DB, baseLog *logger.Logger) FeedRepo {
	return &feedRepo{db: db, log: baseLog.With("repo", "FeedRepo")}
}

func (r *feedRepo) RecordCreation(dbc dbctx.Context, doc *types.Document, userID int64) error {
	langs := make([]string, 0, len(doc.Locales))
	for _, l := range doc.Locales {
		langs = append(langs, l.Lang)
	}
	row := &types.DocumentChange{
		DocumentID:   doc.DocumentID,
		DocumentType: doc.Type,
		UserID:       userID,
		ChangeType:   types.DocumentChangeCreated,
		Langs:        strings.Join(langs, ","),
		Time:         time.Now().UTC(),
	}
	return dbc.Conn(r.db).Create(row).Error
}

func (r *feedRepo) ListByDocumentID(dbc dbctx.Context, documentID int64) ([]*types.DocumentChange, error) {
	var out []*types.DocumentChange
	err := dbc.Conn(r.db).Where("document_id = ?", documentID).Order("change_id").Find(&out).Error
	return out, err
}

func (r *feedRepo) RemoveByDocumentIDs(dbc dbctx.Context, documentIDs []int64) error {
	if len(documentIDs) == 0 {
		return nil
	}
	return dbc.Conn(r.db).Where("document_id IN ?", documentIDs).Delete(&types.DocumentChange{}).Error
}
