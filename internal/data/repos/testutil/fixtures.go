package testutil

import (
	"context"
	"testing"

	"github.com/cordee/cordee-backend/internal/domain/documents"
	"gorm.io/gorm"
)

// SeedDocument inserts current-state rows only (no archives, no ledger).
func SeedDocument(tb testing.TB, ctx context.Context, tx *gorm.DB, typ documents.Type, langs ...string) *documents.Document {
	tb.Helper()
	doc := &documents.Document{Type: typ, Version: 1}
	f, err := documents.NewFigures(typ)
	if err != nil {
		tb.Fatalf("figures: %v", err)
	}
	if err := doc.SetFigures(f); err != nil {
		tb.Fatalf("set figures: %v", err)
	}
	if err := tx.WithContext(ctx).Create(doc).Error; err != nil {
		tb.Fatalf("seed document: %v", err)
	}
	for _, lang := range langs {
		loc := &documents.DocumentLocale{DocumentID: doc.DocumentID, Lang: lang, Version: 1, Title: string(typ) + " " + lang}
		if err := tx.WithContext(ctx).Create(loc).Error; err != nil {
			tb.Fatalf("seed locale: %v", err)
		}
		doc.Locales = append(doc.Locales, loc)
	}
	return doc
}

// SeedAssociation inserts an edge without a log row.
func SeedAssociation(tb testing.TB, ctx context.Context, tx *gorm.DB, parent, child *documents.Document) *documents.Association {
	tb.Helper()
	a := &documents.Association{
		ParentDocumentID:   parent.DocumentID,
		ChildDocumentID:    child.DocumentID,
		ParentDocumentType: parent.Type,
		ChildDocumentType:  child.Type,
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed association: %v", err)
	}
	return a
}
