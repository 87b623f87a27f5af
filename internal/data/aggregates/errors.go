package aggregates

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domainagg "github.com/cordee/cordee-backend/internal/domain/aggregates"
)

// Sentinels matched by errors.Is against the errors raised inside a write.
var (
	ErrValidation = errors.New("aggregate validation")
	ErrInvariant  = errors.New("aggregate invariant violation")
	ErrConflict   = errors.New("aggregate conflict")
	ErrRetryable  = errors.New("aggregate retryable")
)

// engineError is raised inside a transaction body and turned into a
// *domainagg.Error once the transaction is over.
type engineError struct {
	code     domainagg.ErrorCode
	sentinel error
	msg      string
}

func (e *engineError) Error() string        { return e.msg }
func (e *engineError) Is(target error) bool { return target == e.sentinel }

func ValidationError(msg string) error {
	return &engineError{code: domainagg.CodeValidation, sentinel: ErrValidation, msg: strings.TrimSpace(msg)}
}

// InvariantError reports stored data that breaks the versioning model, such as
// a current-state row without its archive.
func InvariantError(msg string) error {
	return &engineError{code: domainagg.CodeInvariantViolation, sentinel: ErrInvariant, msg: strings.TrimSpace(msg)}
}

func ConflictError(msg string) error {
	return &engineError{code: domainagg.CodeConflict, sentinel: ErrConflict, msg: strings.TrimSpace(msg)}
}

func RetryableError(msg string) error {
	return &engineError{code: domainagg.CodeRetryable, sentinel: ErrRetryable, msg: strings.TrimSpace(msg)}
}

// pgCodes maps postgres SQLSTATEs to engine codes.
var pgCodes = map[string]domainagg.ErrorCode{
	"23505": domainagg.CodeConflict,           // unique_violation
	"23503": domainagg.CodePreconditionFailed, // foreign_key_violation
	"40001": domainagg.CodeRetryable,          // serialization_failure
	"40P01": domainagg.CodeRetryable,          // deadlock_detected
	"55P03": domainagg.CodeRetryable,          // lock_not_available
	"57014": domainagg.CodeRetryable,          // query_canceled
}

// textHints classifies driver errors that carry no code, mostly sqlite.
var textHints = []struct {
	needle string
	code   domainagg.ErrorCode
}{
	{"unique constraint failed", domainagg.CodeConflict},
	{"duplicate key", domainagg.CodeConflict},
	{"already exists", domainagg.CodeConflict},
	{"foreign key constraint failed", domainagg.CodePreconditionFailed},
	{"database is locked", domainagg.CodeRetryable},
	{"deadlock", domainagg.CodeRetryable},
	{"serialization", domainagg.CodeRetryable},
	{"timeout", domainagg.CodeRetryable},
}

// MapError turns any failure of op into a *domainagg.Error. Errors that
// already carry a code pass through unchanged.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var aggErr *domainagg.Error
	if errors.As(err, &aggErr) {
		return aggErr
	}
	var ee *engineError
	if errors.As(err, &ee) {
		return domainagg.NewError(ee.code, op, ee.msg, err)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domainagg.Wrap(domainagg.CodeNotFound, op, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domainagg.Wrap(domainagg.CodeRetryable, op, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if code, ok := pgCodes[pgErr.Code]; ok {
			return domainagg.Wrap(code, op, err)
		}
	}
	msg := strings.ToLower(err.Error())
	for _, h := range textHints {
		if strings.Contains(msg, h.needle) {
			return domainagg.Wrap(h.code, op, err)
		}
	}
	return domainagg.Wrap(domainagg.CodeInternal, op, err)
}
