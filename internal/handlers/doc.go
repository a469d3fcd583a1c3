// Package handlers implements the core-facing handler registry: a set of
// named procedure callbacks the external tick runtime invokes. The
// registry itself never schedules anything — it only stores callbacks and
// runs one inside a fresh transaction on demand.
//
// Re-entrant registration (registering a new handler from within a
// running callback) is supported by design: invoke captures the registry
// snapshot before running the callback (an internal/swapcell.Cell load),
// so a registration made during that callback is only visible to the
// next invoke call, mirroring the teacher's ShardRegistry "return copies,
// mutate only under the write lock" discipline.
package handlers
