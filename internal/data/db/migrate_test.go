package db

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func TestIndexStatement(t *testing.T) {
	ix := index{name: "idx_x", table: "documents", columns: "type, document_id", where: "redirects_to IS NULL"}
	want := "CREATE INDEX IF NOT EXISTS idx_x ON documents(type, document_id) WHERE redirects_to IS NULL"
	if got := ix.statement(); got != want {
		t.Fatalf("statement:\nwant=%s\n got=%s", want, got)
	}
}

func TestAutoMigrateAllOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:cordee_migrate_test?mode=memory&cache=shared"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := conn.DB()
	defer sqlDB.Close()

	// twice: the migration must be idempotent
	for i := 0; i < 2; i++ {
		if err := AutoMigrateAll(conn); err != nil {
			t.Fatalf("AutoMigrateAll #%d: %v", i+1, err)
		}
	}
	for _, ix := range documentIndexes {
		var n int64
		conn.Raw("SELECT count(*) FROM sqlite_master WHERE type = 'index' AND name = ?", ix.name).Scan(&n)
		want := int64(1)
		if ix.postgresOnly {
			want = 0
		}
		if n != want {
			t.Fatalf("index %s: want=%d got=%d", ix.name, want, n)
		}
	}
}
