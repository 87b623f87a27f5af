package domain

import (
	"github.com/cordee/cordee-backend/internal/domain/documents"
)

type DocumentType = documents.Type

const (
	DocumentTypeWaypoint = documents.TypeWaypoint
	DocumentTypeRoute    = documents.TypeRoute
	DocumentTypeOuting   = documents.TypeOuting
	DocumentTypeArticle  = documents.TypeArticle
	DocumentTypeBook     = documents.TypeBook
	DocumentTypeImage    = documents.TypeImage
	DocumentTypeReport   = documents.TypeReport
	DocumentTypeXReport  = documents.TypeXReport
	DocumentTypeArea     = documents.TypeArea
	DocumentTypeTopoMap  = documents.TypeTopoMap
)

type Document = documents.Document
type DocumentLocale = documents.DocumentLocale
type DocumentGeometry = documents.DocumentGeometry

type ArchiveDocument = documents.ArchiveDocument
type ArchiveDocumentLocale = documents.ArchiveDocumentLocale
type ArchiveDocumentGeometry = documents.ArchiveDocumentGeometry

type DocumentVersion = documents.DocumentVersion
type HistoryMetaData = documents.HistoryMetaData

type Association = documents.Association
type AssociationKey = documents.AssociationKey
type AssociationLog = documents.AssociationLog
type AreaAssociation = documents.AreaAssociation
type TopoMapAssociation = documents.TopoMapAssociation

type CacheVersion = documents.CacheVersion
type DocumentChange = documents.DocumentChange

const DocumentChangeCreated = documents.ChangeCreated

type Figures = documents.Figures
type UpdateType = documents.UpdateType
type VersionSet = documents.VersionSet

// Models lists every persisted entity in migration order.
func Models() []interface{} {
	return []interface{}{
		&Document{},
		&DocumentLocale{},
		&DocumentGeometry{},
		&ArchiveDocument{},
		&ArchiveDocumentLocale{},
		&ArchiveDocumentGeometry{},
		&HistoryMetaData{},
		&DocumentVersion{},
		&Association{},
		&AssociationLog{},
		&AreaAssociation{},
		&TopoMapAssociation{},
		&CacheVersion{},
		&DocumentChange{},
	}
}
