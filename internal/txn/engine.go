package txn

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rodd-oss/rodengine/internal/errs"
	"github.com/rodd-oss/rodengine/internal/integrity"
	"github.com/rodd-oss/rodengine/internal/metrics"
	"github.com/rodd-oss/rodengine/internal/rlog"
	"github.com/rodd-oss/rodengine/internal/schema"
)

// DefaultSubmitTimeout is the deadline applied to a Submit call whose
// context carries no deadline of its own (spec §4.5 "default 5s").
const DefaultSubmitTimeout = 5 * time.Second

// defaultQueueCapacity bounds the buffered channel between Submit
// callers and the worker goroutine; defaultMaxInFlight bounds how many
// submissions may be waiting (queued or executing) at once, enforced by
// the semaphore so Submit callers block (respecting their own deadline)
// rather than pile up unboundedly.
const (
	defaultQueueCapacity = 64
	defaultMaxInFlight   = 256
)

type submission struct {
	ctx      context.Context
	fn       func(*Transaction) error
	resultCh chan error
}

// Health reports the write queue's current liveness, exposed so an
// external tick-driven runtime can poll it without this package knowing
// anything about schedulers (spec's excluded "tick-driven handler
// runtime" collaborator).
type Health struct {
	QueueDepth int
	LastCommit time.Time
	Running    bool
}

// Engine is the transaction engine: a single writer goroutine consuming
// submissions from a buffered channel, modeled on the teacher's
// context-cancellation + WaitGroup shutdown pattern
// (internal/coordinator/health_monitor.go's Start/Stop).
type Engine struct {
	catalog  *schema.Catalog
	enforcer *integrity.Enforcer

	submissions chan *submission
	sem         *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	queueDepth atomic.Int64
	lastCommit atomic.Int64 // unix nanos
	running    atomic.Bool
}

// NewEngine returns an Engine that will serialize transactions against
// cat, checked by enf on every delete.
func NewEngine(cat *schema.Catalog, enf *integrity.Enforcer) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		catalog:     cat,
		enforcer:    enf,
		submissions: make(chan *submission, defaultQueueCapacity),
		sem:         semaphore.NewWeighted(defaultMaxInFlight),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the worker goroutine. Calling it more than once without
// an intervening Stop is a programming error.
func (e *Engine) Start() {
	e.running.Store(true)
	e.wg.Add(1)
	go e.run()
}

func (e *Engine) run() {
	defer e.wg.Done()
	for {
		select {
		case sub := <-e.submissions:
			depth := e.queueDepth.Add(-1)
			metrics.WriteQueueDepth.Set(float64(depth))
			e.process(sub)
		case <-e.ctx.Done():
			return
		}
	}
}

// Stop cancels the worker goroutine and waits for it to exit. Any
// submission still queued is drained and rejected with
// errs.ErrWriterShutdown.
func (e *Engine) Stop() {
	e.cancel()
	e.wg.Wait()
	e.running.Store(false)
	for {
		select {
		case sub := <-e.submissions:
			sub.resultCh <- errs.ErrWriterShutdown
		default:
			return
		}
	}
}

// Healthy reports the engine's current liveness.
func (e *Engine) Healthy() Health {
	nanos := e.lastCommit.Load()
	var last time.Time
	if nanos != 0 {
		last = time.Unix(0, nanos)
	}
	return Health{
		QueueDepth: int(e.queueDepth.Load()),
		LastCommit: last,
		Running:    e.running.Load(),
	}
}

// Submit runs fn as a single transaction, blocking the caller until it
// completes, the engine shuts down, or ctx's deadline (or the default
// DefaultSubmitTimeout, if ctx carries none) elapses.
func (e *Engine) Submit(ctx context.Context, fn func(tx *Transaction) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if e.ctx.Err() != nil {
		return errs.ErrWriterShutdown
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultSubmitTimeout)
		defer cancel()
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrTimeout, err)
	}
	defer e.sem.Release(1)

	resultCh := make(chan error, 1)
	sub := &submission{ctx: ctx, fn: fn, resultCh: resultCh}

	select {
	case e.submissions <- sub:
		depth := e.queueDepth.Add(1)
		metrics.WriteQueueDepth.Set(float64(depth))
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", errs.ErrTimeout, ctx.Err())
	case <-e.ctx.Done():
		return errs.ErrWriterShutdown
	}

	select {
	case err := <-resultCh:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", errs.ErrTimeout, ctx.Err())
	}
}

// process runs one submission's transaction body to completion: Begin
// is implicit in newTransaction, Apply is the body itself, and Commit or
// Rollback follows depending on the outcome.
func (e *Engine) process(sub *submission) {
	tx := newTransaction(e.catalog, e.enforcer)

	err := e.runBody(tx, sub.fn)
	switch {
	case err != nil:
		tx.discard()
		var panicErr *errs.PanicError
		if errors.As(err, &panicErr) {
			metrics.TransactionsTotal.WithLabelValues("panic").Inc()
		} else {
			metrics.TransactionsTotal.WithLabelValues("rollback").Inc()
		}
		rlog.Logger.Warn().Err(err).Msg("transaction rolled back")
	default:
		if cerr := tx.commit(); cerr != nil {
			tx.discard()
			err = cerr
			metrics.TransactionsTotal.WithLabelValues("rollback").Inc()
		} else {
			e.lastCommit.Store(time.Now().UnixNano())
			metrics.TransactionsTotal.WithLabelValues("commit").Inc()
		}
	}

	sub.resultCh <- err
}

// runBody invokes fn, recovering any panic and translating it into
// *errs.PanicError per spec §4.5 and §7.
func (e *Engine) runBody(tx *Transaction, fn func(*Transaction) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &errs.PanicError{Msg: fmt.Sprint(r), Stack: string(debug.Stack())}
		}
	}()
	return fn(tx)
}
