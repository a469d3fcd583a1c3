// Package integrity implements the relation enforcer from spec §4.6:
// referential-integrity checks run by internal/txn immediately before a
// record delete is applied.
//
// The only policy is RESTRICT: deleting a record that some other
// record's relation field still points at fails with a
// RelationViolationError and the enclosing transaction rolls back.
//
// Enforcer keeps a per-relation auxiliary index (a set of referenced
// values built from one pass over the source table) rather than
// rescanning on every check. The index is cached only for a published
// (immutable) buffer and rebuilt whenever the source table's buffer
// identity changes. When the transaction has already touched the source
// table, the enforcer is queried against that transaction's in-progress
// working copy (see internal/txn), which changes in place, so the index
// for it is rebuilt on every check.
package integrity
