// Package txn implements the transaction engine of spec §4.5: a single
// writer goroutine that serializes Begin/Apply/Commit/Rollback over the
// schema catalog's tables, producing copy-on-write working buffers and
// publishing them through each table's swapcell.Cell on commit.
//
// Submission is single-writer, multi-caller (MPSC): any number of
// goroutines call Engine.Submit concurrently; a golang.org/x/sync/
// semaphore.Weighted bounds how many submissions may be in flight at
// once, and a buffered channel hands accepted submissions to the one
// worker goroutine that actually runs them, modeled on the teacher's
// context-cancellation + WaitGroup shutdown pattern
// (internal/coordinator/health_monitor.go's Start/Stop).
//
// A transaction body that panics is recovered at the worker boundary and
// resurfaced to the caller as *errs.PanicError; the working buffers it
// built are simply discarded, since nothing was published yet (§4.5
// "rollback before publish is an O(1) discard").
package txn
