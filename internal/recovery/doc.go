// Package recovery implements startup recovery: loading a snapshot file
// (if one exists), validating it, and constructing a live catalog with
// every table's buffer published and ready for the transaction engine.
//
// Recovery is all-or-nothing: any validation failure anywhere in the
// snapshot aborts recovery entirely and returns a *errs.RecoveryFailedError
// rather than publishing a partially reconstructed catalog. An absent
// snapshot path is not itself a failure — it yields a fresh empty
// catalog, the same state a brand-new instance starts in.
package recovery
