// Package rodb exposes the storage engine as a single typed surface:
// schema mutation, CRUD, and procedure operations
// over the lower-level internal/schema, internal/txn, and
// internal/handlers packages, following the teacher's practice of thin,
// well-documented wrapper functions over lower-level state (compare
// internal/coordinator's Coordinator type wrapping ShardRegistry).
//
// Tables are accepted as names or as uuid.UUID handles at the caller's
// choice through TableRef. Fields are addressed by name only, relations
// are deleted by uuid.UUID handle only, and procedures are invoked by
// handle or by name but unregistered by handle only.
package rodb
