package repos

import (
	"github.com/cordee/cordee-backend/internal/data/repos/documents"
	"github.com/cordee/cordee-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type DocumentRepo = documents.DocumentRepo
type ArchiveRepo = documents.ArchiveRepo
type VersionRepo = documents.VersionRepo
type AssociationRepo = documents.AssociationRepo
type SpatialRepo = documents.SpatialRepo
type CacheVersionRepo = documents.CacheVersionRepo
type FeedRepo = documents.FeedRepo

type SpatialCandidate = documents.SpatialCandidate

func NewDocumentRepo(db *gorm.DB, log *logger.Logger) DocumentRepo {
	return documents.NewDocumentRepo(db, log)
}

func NewArchiveRepo(db *gorm.DB, log *logger.Logger) ArchiveRepo {
	return documents.NewArchiveRepo(db, log)
}

func NewVersionRepo(db *gorm.DB, log *logger.Logger) VersionRepo {
	return documents.NewVersionRepo(db, log)
}

func NewAssociationRepo(db *gorm.DB, log *logger.Logger) AssociationRepo {
	return documents.NewAssociationRepo(db, log)
}

func NewSpatialRepo(db *gorm.DB, log *logger.Logger) SpatialRepo {
	return documents.NewSpatialRepo(db, log)
}

func NewCacheVersionRepo(db *gorm.DB, log *logger.Logger) CacheVersionRepo {
	return documents.NewCacheVersionRepo(db, log)
}

func NewFeedRepo(db *gorm.DB, log *logger.Logger) FeedRepo {
	return documents.NewFeedRepo(db, log)
}

// Set bundles every document repo over one connection.
type Set struct {
	Documents    DocumentRepo
	Archives     ArchiveRepo
	Versions     VersionRepo
	Associations AssociationRepo
	Spatial      SpatialRepo
	CacheVersion CacheVersionRepo
	Feed         FeedRepo
}

func NewSet(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		Documents:    NewDocumentRepo(db, log),
		Archives:     NewArchiveRepo(db, log),
		Versions:     NewVersionRepo(db, log),
		Associations: NewAssociationRepo(db, log),
		Spatial:      NewSpatialRepo(db, log),
		CacheVersion: NewCacheVersionRepo(db, log),
		Feed:         NewFeedRepo(db, log),
	}
}
