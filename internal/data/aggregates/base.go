package aggregates

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	domainagg "github.com/cordee/cordee-backend/internal/domain/aggregates"
	"github.com/cordee/cordee-backend/internal/platform/dbctx"
	"github.com/cordee/cordee-backend/internal/platform/logger"
)

const tracerName = "github.com/cordee/cordee-backend/internal/data/aggregates"

type BaseDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Runner   TxRunner
	Hooks    Hooks
	CASGuard CASGuard
	Now      func() time.Time
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Runner == nil {
		d.Runner = NewGormTxRunner(d.DB)
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.CASGuard.db == nil {
		d.CASGuard = NewCASGuard(d.DB)
	}
	if d.Log == nil {
		d.Log = logger.NewNop()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}

// executeWrite runs fn in one transaction under a span named op, maps the
// error to an aggregate code and reports the outcome to the hooks.
func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	start := time.Now()
	deps = deps.withDefaults()
	op = strings.TrimSpace(op)
	if op == "" {
		op = "aggregate.write"
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, op)
	defer span.End()

	err := deps.Runner.InTx(ctx, fn)
	mapped := MapError(op, err)

	status := "success"
	if mapped != nil {
		status = aggregateErrorStatus(mapped)
		if domainagg.IsCode(mapped, domainagg.CodeConflict) {
			deps.Hooks.IncConflict(op)
		}
		if domainagg.IsCode(mapped, domainagg.CodeRetryable) {
			deps.Hooks.IncRetry(op)
		}
		span.SetStatus(codes.Error, status)
		span.RecordError(mapped)
	}
	span.SetAttributes(attribute.String("aggregate.status", status))
	deps.Hooks.ObserveOperation(op, status, time.Since(start))
	return mapped
}

func aggregateErrorStatus(err error) string {
	if err == nil {
		return "success"
	}
	code := string(domainagg.CodeOf(err))
	if code == "" {
		code = string(domainagg.CodeOf(MapError("aggregate.status", err)))
	}
	if code == "" {
		return "failure"
	}
	return code
}

// sideEffect is an external call run only after the transaction committed.
type sideEffect struct {
	name string
	// warn surfaces a failure to the caller as a warning.
	warn bool
	run  func(ctx context.Context) error
}

// afterCommit runs every effect in order. Failures never propagate: they are
// logged, counted and, for warn effects, returned as warnings.
func afterCommit(ctx context.Context, deps BaseDeps, op string, effects []sideEffect) []string {
	deps = deps.withDefaults()
	var warnings []string
	for _, eff := range effects {
		if eff.run == nil {
			continue
		}
		if err := eff.run(ctx); err != nil {
			deps.Hooks.IncSideEffectFailure(eff.name)
			deps.Log.Warn("post-commit side effect failed",
				"op", op,
				"effect", eff.name,
				"error", err,
			)
			if eff.warn {
				warnings = append(warnings, eff.name+": "+err.Error())
			}
		}
	}
	return warnings
}
