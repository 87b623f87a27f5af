package documents

import "time"

// HistoryMetaData describes one save event; every ledger row written by that
// event points at it.
type HistoryMetaData struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"column:user_id;not null;index" json:"user_id"`
	Comment   string    `gorm:"column:comment;type:text" json:"comment,omitempty"`
	WrittenAt time.Time `gorm:"column:written_at;not null" json:"written_at"`
}

func (HistoryMetaData) TableName() string { return "history_metadata" }

// DocumentVersion is one append-only ledger row tying a language to the three
// archive snapshots active after a save.
type DocumentVersion struct {
	ID                        int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	DocumentID                int64  `gorm:"column:document_id;not null;index:idx_documents_versions_doc_lang,priority:1" json:"document_id"`
	Lang                      string `gorm:"column:lang;not null;index:idx_documents_versions_doc_lang,priority:2" json:"lang"`
	DocumentArchiveID         int64  `gorm:"column:document_archive_id;not null;index" json:"document_archive_id"`
	DocumentLocalesArchiveID  int64  `gorm:"column:document_locales_archive_id;not null;index" json:"document_locales_archive_id"`
	DocumentGeometryArchiveID *int64 `gorm:"column:document_geometry_archive_id;index" json:"document_geometry_archive_id,omitempty"`
	HistoryMetadataID         int64  `gorm:"column:history_metadata_id;not null;index" json:"history_metadata_id"`
}

func (DocumentVersion) TableName() string { return "documents_versions" }

// CacheVersion is the invalidation counter behind cache keys. It starts at 1
// and is independent of the content versions.
type CacheVersion struct {
	DocumentID  int64     `gorm:"column:document_id;primaryKey;autoIncrement:false" json:"document_id"`
	Version     int       `gorm:"column:version;not null;default:1" json:"version"`
	LastUpdated time.Time `gorm:"column:last_updated;not null" json:"last_updated"`
}

func (CacheVersion) TableName() string { return "cache_versions" }

// ChangeCreated is the feed change type written on document creation.
const ChangeCreated = "created"

// DocumentChange is one activity-feed entry.
type DocumentChange struct {
	ChangeID     int64     `gorm:"column:change_id;primaryKey;autoIncrement" json:"change_id"`
	DocumentID   int64     `gorm:"column:document_id;not null;index" json:"document_id"`
	DocumentType Type      `gorm:"column:document_type;not null" json:"document_type"`
	UserID       int64     `gorm:"column:user_id;not null" json:"user_id"`
	ChangeType   string    `gorm:"column:change_type;not null" json:"change_type"`
	Langs        string    `gorm:"column:langs" json:"langs,omitempty"`
	Time         time.Time `gorm:"column:time;not null;index" json:"time"`
}

func (DocumentChange) TableName() string { return "feed_document_changes" }
