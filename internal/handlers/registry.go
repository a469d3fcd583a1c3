package handlers

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/rodd-oss/rodengine/internal/errs"
	"github.com/rodd-oss/rodengine/internal/swapcell"
	"github.com/rodd-oss/rodengine/internal/txn"
)

// Func is a registered procedure callback. It runs inside a fresh
// transaction; a panic inside it is recovered by the engine and
// translated to a rolled-back *errs.PanicError, same as any other
// transaction body.
type Func func(tx *txn.Transaction) error

// Info describes one registered handler, as returned by List.
type Info struct {
	ID   uuid.UUID
	Name string
}

type entry struct {
	id   uuid.UUID
	name string
	fn   Func
}

type registrySnapshot struct {
	byID   map[uuid.UUID]*entry
	order  []uuid.UUID
}

func emptyRegistrySnapshot() *registrySnapshot {
	return &registrySnapshot{byID: make(map[uuid.UUID]*entry)}
}

func (s *registrySnapshot) clone() *registrySnapshot {
	n := &registrySnapshot{
		byID:  make(map[uuid.UUID]*entry, len(s.byID)),
		order: append([]uuid.UUID(nil), s.order...),
	}
	for id, e := range s.byID {
		n.byID[id] = e
	}
	return n
}

func (s *registrySnapshot) findByName(name string) *entry {
	for _, id := range s.order {
		if e := s.byID[id]; e.name == name {
			return e
		}
	}
	return nil
}

// reservedNames cannot be used as a handler name; they are set aside for
// future facade-level built-in procedures.
var reservedNames = map[string]bool{
	"": true,
}

// Registry stores registered procedures and invokes them against an
// engine. Like internal/schema.Catalog, writes are serialized under a
// mutex while reads (List, the snapshot Invoke captures) go through a
// swapcell.Cell and never block on the mutex.
type Registry struct {
	mu     sync.Mutex
	cell   swapcell.Cell[registrySnapshot]
	engine *txn.Engine
}

// NewRegistry returns an empty Registry whose Invoke submits callbacks to
// eng.
func NewRegistry(eng *txn.Engine) *Registry {
	r := &Registry{engine: eng}
	r.cell.Store(emptyRegistrySnapshot())
	return r
}

func validateHandlerName(name string) error {
	if name == "" {
		return errs.ErrInvalidName
	}
	if reservedNames[name] {
		return errs.ErrReservedName
	}
	return nil
}

// Register adds a new handler under name, returning its id. Re-entrant
// calls (from inside a running Invoke) are safe: the new entry becomes
// visible to the next Invoke, not the one in progress.
func (r *Registry) Register(name string, fn Func) (uuid.UUID, error) {
	if err := validateHandlerName(name); err != nil {
		return uuid.Nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.cell.Load().clone()
	if snap.findByName(name) != nil {
		return uuid.Nil, errs.ErrDuplicateName
	}

	id := uuid.New()
	e := &entry{id: id, name: name, fn: fn}
	snap.byID[id] = e
	snap.order = append(snap.order, id)
	r.cell.Store(snap)
	return id, nil
}

// Unregister removes a handler by id.
func (r *Registry) Unregister(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.cell.Load()
	if _, ok := snap.byID[id]; !ok {
		return errs.ErrUnknownHandler
	}

	next := snap.clone()
	delete(next.byID, id)
	for i, oid := range next.order {
		if oid == id {
			next.order = append(next.order[:i], next.order[i+1:]...)
			break
		}
	}
	r.cell.Store(next)
	return nil
}

// IDForName returns the id currently registered under name, if any.
func (r *Registry) IDForName(name string) (uuid.UUID, bool) {
	snap := r.cell.Load()
	if e := snap.findByName(name); e != nil {
		return e.id, true
	}
	return uuid.Nil, false
}

// List returns every registered handler in registration order.
func (r *Registry) List() []Info {
	snap := r.cell.Load()
	out := make([]Info, 0, len(snap.order))
	for _, id := range snap.order {
		e := snap.byID[id]
		out = append(out, Info{ID: e.id, Name: e.name})
	}
	return out
}

// Invoke runs the handler identified by id inside a fresh transaction
// submitted to the engine. The registry snapshot is captured once, at
// the start of Invoke, before the callback runs.
func (r *Registry) Invoke(ctx context.Context, id uuid.UUID) error {
	snap := r.cell.Load()
	e, ok := snap.byID[id]
	if !ok {
		return errs.ErrUnknownHandler
	}
	return r.engine.Submit(ctx, func(tx *txn.Transaction) error {
		return e.fn(tx)
	})
}
