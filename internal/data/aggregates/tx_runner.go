package aggregates

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domainagg "github.com/cordee/cordee-backend/internal/domain/aggregates"
	"github.com/cordee/cordee-backend/internal/platform/dbctx"
)

// TxRunner opens the transaction a document write runs in.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

// TxOptions tunes GormTxRunner. Zero values keep the database defaults and a
// single attempt.
type TxOptions struct {
	Isolation sql.IsolationLevel
	// Attempts bounds how often a top-level transaction is replayed after a
	// serialization failure or deadlock.
	Attempts     int
	RetryBackoff time.Duration
}

type GormTxRunner struct {
	db   *gorm.DB
	opts TxOptions
}

// NewGormTxRunner runs writes in GORM transactions. Given a transaction it
// nests through savepoints and never replays.
func NewGormTxRunner(db *gorm.DB) *GormTxRunner {
	return NewGormTxRunnerWithOptions(db, TxOptions{})
}

func NewGormTxRunnerWithOptions(db *gorm.DB, opts TxOptions) *GormTxRunner {
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 20 * time.Millisecond
	}
	return &GormTxRunner{db: db, opts: opts}
}

func (r *GormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return domainagg.NewError(domainagg.CodeInternal, "aggregate.tx", "transaction runner has nil db", nil)
	}
	var txOpts []*sql.TxOptions
	if r.opts.Isolation != sql.LevelDefault {
		txOpts = append(txOpts, &sql.TxOptions{Isolation: r.opts.Isolation})
	}
	run := func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(dbctx.Context{Ctx: ctx, Tx: tx})
		}, txOpts...)
	}
	if r.opts.Attempts == 1 || r.nested() {
		return run()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.RetryBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.opts.Attempts-1)), ctx)
	return backoff.Retry(func() error {
		err := run()
		if err != nil && !replayable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

// nested reports whether the runner sits on an open transaction, where only
// the outer owner may replay.
func (r *GormTxRunner) nested() bool {
	_, ok := r.db.Statement.ConnPool.(gorm.TxCommitter)
	return ok
}

// replayable matches postgres serialization_failure and deadlock_detected.
func replayable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
