package aggregates

import (
	"strings"
	"time"

	domainagg "github.com/cordee/cordee-backend/internal/domain/aggregates"
	"github.com/cordee/cordee-backend/internal/observability"
	"github.com/cordee/cordee-backend/internal/platform/logger"
)

// Hooks receives the outcome of every document write. Names are operation
// names such as "Documents.Document.Update".
type Hooks interface {
	ObserveOperation(name, status string, dur time.Duration)
	IncConflict(name string)
	IncRetry(name string)
	IncSideEffectFailure(effect string)
	AddCacheBumps(n int)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConflict(string)                             {}
func (noopHooks) IncRetry(string)                                {}
func (noopHooks) IncSideEffectFailure(string)                    {}
func (noopHooks) AddCacheBumps(int)                              {}

// metricHooks feeds the prometheus collectors.
type metricHooks struct {
	m *observability.Metrics
}

func NewObservabilityHooks(metrics *observability.Metrics) Hooks {
	if metrics == nil {
		return noopHooks{}
	}
	return metricHooks{m: metrics}
}

func (h metricHooks) ObserveOperation(name, status string, dur time.Duration) {
	h.m.ObserveAggregateOperation(opLabel(name), status, dur)
}
func (h metricHooks) IncConflict(name string)            { h.m.IncAggregateConflict(opLabel(name)) }
func (h metricHooks) IncRetry(name string)               { h.m.IncAggregateRetry(opLabel(name)) }
func (h metricHooks) IncSideEffectFailure(effect string) { h.m.IncSideEffectFailure(effect) }
func (h metricHooks) AddCacheBumps(n int)                { h.m.AddCacheBumps(n) }

// opLabel keeps metric labels bounded to the operations of the contract.
func opLabel(name string) string {
	name = strings.TrimSpace(name)
	if _, ok := domainagg.DocumentAggregateContract.Operation(name); !ok {
		return "other"
	}
	return name
}

// logHooks reports slow writes and edit conflicts.
type logHooks struct {
	log  *logger.Logger
	slow time.Duration
}

// NewLoggingHooks warns when a write takes longer than slow. A zero slow
// disables that warning.
func NewLoggingHooks(log *logger.Logger, slow time.Duration) Hooks {
	if log == nil {
		return noopHooks{}
	}
	return logHooks{log: log, slow: slow}
}

func (h logHooks) ObserveOperation(name, status string, dur time.Duration) {
	if h.slow > 0 && dur >= h.slow {
		h.log.Warn("Slow document write", "op", name, "status", status, "duration", dur)
	}
}

func (h logHooks) IncConflict(name string) {
	h.log.Info("Document write lost a version race", "op", name)
}

func (h logHooks) IncRetry(name string) {
	h.log.Debug("Document write hit a transient failure", "op", name)
}

func (logHooks) IncSideEffectFailure(string) {}
func (logHooks) AddCacheBumps(int)           {}

type multiHooks []Hooks

// MultiHooks fans every event out to each non-nil hook in order.
func MultiHooks(hooks ...Hooks) Hooks {
	var out multiHooks
	for _, h := range hooks {
		switch h.(type) {
		case nil, noopHooks:
			continue
		}
		out = append(out, h)
	}
	switch len(out) {
	case 0:
		return noopHooks{}
	case 1:
		return out[0]
	}
	return out
}

func (m multiHooks) ObserveOperation(name, status string, dur time.Duration) {
	for _, h := range m {
		h.ObserveOperation(name, status, dur)
	}
}

func (m multiHooks) IncConflict(name string) {
	for _, h := range m {
		h.IncConflict(name)
	}
}

func (m multiHooks) IncRetry(name string) {
	for _, h := range m {
		h.IncRetry(name)
	}
}

func (m multiHooks) IncSideEffectFailure(effect string) {
	for _, h := range m {
		h.IncSideEffectFailure(effect)
	}
}

func (m multiHooks) AddCacheBumps(n int) {
	for _, h := range m {
		h.AddCacheBumps(n)
	}
}
