// Package aggregates implements the document engine on top of the table repos
// in internal/data/repos.
//
// Every write owns one transaction. Archives and ledger rows are written in
// the same transaction as the current-state rows; search sync and image file
// deletion run only after commit.
package aggregates
