package aggregates

import "sort"

// OpKind separates writes, which own a transaction, from ledger reads.
type OpKind string

const (
	OpWrite OpKind = "write"
	OpRead  OpKind = "read"
)

// Post-commit effects a write may trigger. Their failures never undo the
// write.
const (
	EffectSearchSync  = "search_sync"
	EffectImageDelete = "image_delete"
)

// Operation describes one engine entry point as reported to spans, metrics
// and hooks.
type Operation struct {
	Name        string
	Kind        OpKind
	SideEffects []string
}

// Contract lists the operations an aggregate exposes.
type Contract struct {
	Name       string
	Operations []Operation
}

// Aggregate is implemented by every engine that publishes its contract.
type Aggregate interface {
	Contract() Contract
}

// Operation looks an operation up by name.
func (c Contract) Operation(name string) (Operation, bool) {
	for _, op := range c.Operations {
		if op.Name == name {
			return op, true
		}
	}
	return Operation{}, false
}

// Names returns the sorted names of the operations of kind, or of every
// operation when kind is empty.
func (c Contract) Names(kind OpKind) []string {
	var out []string
	for _, op := range c.Operations {
		if kind == "" || op.Kind == kind {
			out = append(out, op.Name)
		}
	}
	sort.Strings(out)
	return out
}

// Triggers reports whether the named operation may run effect after commit.
func (c Contract) Triggers(name, effect string) bool {
	op, ok := c.Operation(name)
	if !ok {
		return false
	}
	for _, e := range op.SideEffects {
		if e == effect {
			return true
		}
	}
	return false
}
