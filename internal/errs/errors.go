package errs

import "fmt"

// Schema errors. These surface from internal/typesys and internal/schema
// during catalog mutation; none of them leave published state changed.
var (
	ErrDuplicateName         = fmt.Errorf("schema: duplicate name")
	ErrUnknownType           = fmt.Errorf("schema: unknown type")
	ErrUnknownTable          = fmt.Errorf("schema: unknown table")
	ErrUnknownField          = fmt.Errorf("schema: unknown field")
	ErrInvalidName           = fmt.Errorf("schema: invalid name")
	ErrFieldReferencedByRel  = fmt.Errorf("schema: field referenced by relation")
	ErrTableNotEmpty         = fmt.Errorf("schema: table not empty")
	ErrSizeOverflow          = fmt.Errorf("schema: size overflow")
	ErrCyclicType            = fmt.Errorf("schema: cyclic type definition")
	ErrUnknownRelation       = fmt.Errorf("schema: unknown relation")
	ErrRelationTypeMismatch  = fmt.Errorf("schema: relation source/destination type mismatch")
	ErrDuplicateRelation     = fmt.Errorf("schema: duplicate relation")
)

// Concurrency errors, surfaced by the write queue (internal/txn).
var (
	ErrTimeout              = fmt.Errorf("concurrency: submission timed out")
	ErrWriterShutdown       = fmt.Errorf("concurrency: writer shut down")
	ErrSubmissionQueueClosed = fmt.Errorf("concurrency: submission queue closed")
)

// Handler registry errors, surfaced by internal/handlers.
var (
	ErrReservedName  = fmt.Errorf("handlers: reserved name")
	ErrUnknownHandler = fmt.Errorf("handlers: unknown handler id")
)

// Snapshot errors, surfaced by internal/snapshot and internal/recovery.
var (
	ErrBadMagic          = fmt.Errorf("snapshot: bad magic")
	ErrUnsupportedVersion = fmt.Errorf("snapshot: unsupported format version")
	ErrTruncated         = fmt.Errorf("snapshot: truncated payload")
	ErrChecksumMismatch  = fmt.Errorf("snapshot: checksum mismatch")
	ErrMalformedPayload  = fmt.Errorf("snapshot: malformed payload")
)

// OutOfBoundsError reports a record or field index outside its valid
// range. Both DataError.OutOfBounds (record indices) and SchemaError's
// field-index boundary case use this type; Len is the exclusive bound that
// was exceeded.
type OutOfBoundsError struct {
	Index int
	Len   int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("index %d out of bounds for length %d", e.Index, e.Len)
}

// TypeMismatchError reports that a supplied value's type does not match
// the field's declared TypeId.
type TypeMismatchError struct {
	Expected string
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// ErrInvalidBool reports a boolean field write or read that could not be
// canonicalized. In practice this should never fire under the spec's rule
// that any non-zero byte reads back as true; it exists for accessor paths
// that validate an explicit bool conversion from a caller-supplied value.
var ErrInvalidBool = fmt.Errorf("data: invalid bool value")

// RelationViolationError reports that a delete was rejected under a
// RESTRICT relation: referring_record_index still references the record
// being deleted. RelationID is the relation's uuid.UUID handle, rendered
// as a string to keep this package free of a google/uuid dependency.
type RelationViolationError struct {
	RelationID     string
	ReferringIndex int
}

func (e *RelationViolationError) Error() string {
	return fmt.Sprintf("relation %s violated by referring record %d", e.RelationID, e.ReferringIndex)
}

// IOError wraps an underlying I/O failure (disk full, permission denied,
// etc.) encountered while writing or reading a snapshot file.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// RecoveryFailedError reports why startup recovery from a snapshot could
// not complete. Kind names the recovery step that failed ("stat", "read",
// "schema", "table-record-size") and Err holds the underlying error, e.g.
// a SnapshotError. An absent snapshot path is not a failure and never
// produces this type.
type RecoveryFailedError struct {
	Kind string
	Err  error
}

func (e *RecoveryFailedError) Error() string {
	return fmt.Sprintf("recovery failed (%s): %v", e.Kind, e.Err)
}

func (e *RecoveryFailedError) Unwrap() error { return e.Err }

// PanicError wraps a recovered panic from inside a transaction body or a
// registered procedure, translating it into InternalError::Panic per §7.
type PanicError struct {
	Msg   string
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("transaction aborted: panic: %s", e.Msg)
}
