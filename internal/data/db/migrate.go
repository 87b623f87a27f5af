package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/cordee/cordee-backend/internal/domain"
)

// index is a lookup struct tags cannot express. Postgres-only entries are
// skipped on sqlite.
type index struct {
	name         string
	table        string
	columns      string
	where        string
	postgresOnly bool
}

var documentIndexes = []index{
	// history listing and version lookups
	{name: "idx_documents_versions_doc_lang_id", table: "documents_versions", columns: "document_id, lang, id"},
	// association feed, newest first
	{name: "idx_association_log_written_at", table: "association_log", columns: "written_at"},
	// parent lookups filtered by type when bumping caches
	{name: "idx_associations_child_type", table: "associations", columns: "child_document_id, parent_document_type"},
	// reindex pages through live documents only
	{name: "idx_documents_live_type", table: "documents", columns: "type, document_id", where: "redirects_to IS NULL"},
	{name: "idx_feed_document_changes_time", table: "feed_document_changes", columns: "time DESC", postgresOnly: true},
}

// AutoMigrateAll creates or updates every table, then the extra indexes.
func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.Models()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return EnsureDocumentIndexes(db)
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Running auto migration", "tables", len(types.Models()), "indexes", len(documentIndexes))
	return AutoMigrateAll(s.db)
}

func EnsureDocumentIndexes(db *gorm.DB) error {
	postgres := db.Dialector.Name() == DriverPostgres
	for _, ix := range documentIndexes {
		if ix.postgresOnly && !postgres {
			continue
		}
		if err := db.Exec(ix.statement()).Error; err != nil {
			return fmt.Errorf("create %s: %w", ix.name, err)
		}
	}
	return nil
}

func (ix index) statement() string {
	stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)", ix.name, ix.table, ix.columns)
	if ix.where != "" {
		stmt += " WHERE " + ix.where
	}
	return stmt
}
