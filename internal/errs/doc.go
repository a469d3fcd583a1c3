// Package errs defines the exhaustive error taxonomy shared by every
// rodengine component: SchemaError, DataError, ConcurrencyError,
// SnapshotError, and InternalError kinds.
//
// # Design
//
// No-payload kinds are package-level sentinel errors, checked with
// errors.Is. Payload-carrying kinds (OutOfBoundsError, TypeMismatchError,
// RelationViolationError, RecoveryFailedError, PanicError) are struct types
// implementing error, checked with errors.As. Wrapping uses fmt.Errorf's
// %w verb throughout; nothing here depends on a third-party error library.
//
// Callers should never need to inspect error strings: every condition a
// caller might branch on has a sentinel or a typed struct.
package errs
