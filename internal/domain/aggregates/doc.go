// Package aggregates defines the document engine contract: its inputs,
// results, read views and error codes.
//
// Implementations live in internal/data/aggregates and own the transaction
// boundary of every write.
package aggregates
