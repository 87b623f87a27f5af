package aggregates

import (
	"context"
	"time"

	"github.com/cordee/cordee-backend/internal/domain/documents"
)

var DocumentAggregateContract = Contract{
	Name: "Documents.DocumentAggregate",
	Operations: []Operation{
		{Name: "Documents.Document.Create", Kind: OpWrite, SideEffects: []string{EffectSearchSync}},
		{Name: "Documents.Document.Update", Kind: OpWrite, SideEffects: []string{EffectSearchSync}},
		{Name: "Documents.Document.Delete", Kind: OpWrite, SideEffects: []string{EffectSearchSync, EffectImageDelete}},
		{Name: "Documents.Association.Create", Kind: OpWrite},
		{Name: "Documents.Association.Delete", Kind: OpWrite},
		{Name: "Documents.Document.Get", Kind: OpRead},
		{Name: "Documents.Document.GetVersion", Kind: OpRead},
		{Name: "Documents.Document.GetHistory", Kind: OpRead},
		{Name: "Documents.Document.GetCacheKey", Kind: OpRead},
		{Name: "Documents.Association.ListParents", Kind: OpRead},
		{Name: "Documents.Association.ListChildren", Kind: OpRead},
	},
}

// DocumentAggregate owns document versioning invariants.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeInvariantViolation,
// CodePreconditionFailed, CodeRetryable, CodeInternal.
type DocumentAggregate interface {
	Aggregate

	// Create persists a new document with its locales and geometry, its first
	// archives and ledger rows, its cache version and its associations.
	Create(ctx context.Context, in CreateDocumentInput) (CreateDocumentResult, error)

	// Update applies a new state of a document after checking the versions the
	// caller observed, archiving only the parts that changed.
	Update(ctx context.Context, in UpdateDocumentInput) (UpdateDocumentResult, error)

	// Delete removes a document, every document redirecting to it, and all rows
	// referencing them.
	Delete(ctx context.Context, in DeleteDocumentInput) (DeleteDocumentResult, error)

	// Associate creates one user edge and logs it.
	Associate(ctx context.Context, in AssociationInput) (AssociationResult, error)

	// Dissociate removes one user edge and logs the removal.
	Dissociate(ctx context.Context, in AssociationInput) (AssociationResult, error)
}

// DocumentReader exposes the version ledger and cache-key reads.
type DocumentReader interface {
	GetVersion(ctx context.Context, documentID int64, lang string, versionID int64) (VersionView, error)
	GetHistory(ctx context.Context, documentID int64, lang string) (HistoryView, error)
	GetCacheKey(ctx context.Context, documentID int64, lang string) (string, error)
	GetDocument(ctx context.Context, documentID int64, lang string) (*documents.Document, error)
	ListParents(ctx context.Context, documentID int64) ([]*documents.Association, error)
	ListChildren(ctx context.Context, documentID int64) ([]*documents.Association, error)
}

type AssociationInput struct {
	ParentDocumentID int64
	ChildDocumentID  int64
	UserID           int64
}

type CreateDocumentInput struct {
	Document     *documents.Document
	UserID       int64
	Associations []AssociationInput
}

type CreateDocumentResult struct {
	DocumentID int64
	VersionIDs []int64
	Warnings   []string
}

// UpdateDocumentInput carries the full new state of a document. The entity
// versions on Document, its locales and its geometry are the ones the caller
// last observed. A nil Associations leaves the edge set untouched.
type UpdateDocumentInput struct {
	DocumentID   int64
	Document     *documents.Document
	UserID       int64
	Comment      string
	Associations *[]AssociationInput
}

type UpdateDocumentResult struct {
	DocumentID   int64
	UpdateType   documents.UpdateType
	ChangedLangs []string
	VersionIDs   []int64
	Warnings     []string
}

type DeleteDocumentInput struct {
	DocumentID int64
	UserID     int64
}

type DeleteDocumentResult struct {
	DeletedIDs     []int64
	CacheBumpedIDs []int64
	Warnings       []string
}

type AssociationResult struct {
	Changed  bool
	Warnings []string
}

// VersionMeta describes one ledger row.
type VersionMeta struct {
	VersionID int64     `json:"version_id"`
	UserID    int64     `json:"user_id"`
	Comment   string    `json:"comment,omitempty"`
	WrittenAt time.Time `json:"written_at"`
}

// VersionView is a document rebuilt from the archives of one ledger row.
type VersionView struct {
	Document          *documents.Document `json:"document"`
	Version           VersionMeta         `json:"version"`
	PreviousVersionID *int64              `json:"previous_version_id"`
	NextVersionID     *int64              `json:"next_version_id"`
}

// HistoryView lists the ledger rows of one language, oldest first.
type HistoryView struct {
	DocumentID int64         `json:"document_id"`
	Lang       string        `json:"lang"`
	Title      string        `json:"title"`
	Versions   []VersionMeta `json:"versions"`
}
