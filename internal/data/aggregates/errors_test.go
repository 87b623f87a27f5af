package aggregates

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domainagg "github.com/cordee/cordee-backend/internal/domain/aggregates"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want domainagg.ErrorCode
	}{
		{"validation", ValidationError("lang 'fr' is given twice"), domainagg.CodeValidation},
		{"conflict", ConflictError("concurrent modification of document"), domainagg.CodeConflict},
		{"wrapped conflict", fmt.Errorf("update locale: %w", ConflictError("version of locale 'de' has changed")), domainagg.CodeConflict},
		{"invariant", InvariantError("missing archive"), domainagg.CodeInvariantViolation},
		{"not found", gorm.ErrRecordNotFound, domainagg.CodeNotFound},
		{"canceled", context.Canceled, domainagg.CodeRetryable},
		{"pg unique", &pgconn.PgError{Code: "23505"}, domainagg.CodeConflict},
		{"pg fk", &pgconn.PgError{Code: "23503"}, domainagg.CodePreconditionFailed},
		{"pg deadlock", &pgconn.PgError{Code: "40P01"}, domainagg.CodeRetryable},
		{"pg other", &pgconn.PgError{Code: "42P01"}, domainagg.CodeInternal},
		{"sqlite unique", errors.New("UNIQUE constraint failed: documents_archives.document_id"), domainagg.CodeConflict},
		{"sqlite fk", errors.New("FOREIGN KEY constraint failed"), domainagg.CodePreconditionFailed},
		{"sqlite locked", errors.New("database is locked"), domainagg.CodeRetryable},
		{"other", errors.New("boom"), domainagg.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := domainagg.CodeOf(MapError("op", tc.in)); got != tc.want {
				t.Fatalf("code: want=%s got=%s", tc.want, got)
			}
		})
	}
}

func TestEngineErrorsMatchSentinels(t *testing.T) {
	err := fmt.Errorf("archive: %w", InvariantError("missing archive"))
	if !errors.Is(err, ErrInvariant) || errors.Is(err, ErrConflict) {
		t.Fatalf("sentinel matching broken for %v", err)
	}
	if got := domainagg.MessageOf(MapError("op", ValidationError(" invalid lang 'xx' "))); got != "invalid lang 'xx'" {
		t.Fatalf("message: got=%q", got)
	}
}

func TestMapError_PassthroughAggregateError(t *testing.T) {
	in := domainagg.NewError(domainagg.CodeRetryable, "op", "retry", errors.New("boom"))
	if out := MapError("other", in); out != in {
		t.Fatalf("expected passthrough aggregate error")
	}
	if MapError("op", nil) != nil {
		t.Fatalf("nil should stay nil")
	}
}
