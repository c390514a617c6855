// Package pool implements a bounded pool of database connections. Handles
// are created lazily up to a fixed cap, reused most-recently-returned first,
// and discarded when they come back broken.
package pool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

var (
	// ErrExhausted is returned by Acquire when every connection slot is in
	// use and none are idle. The caller decides whether to retry or fail.
	ErrExhausted = errors.New("pgwrap: connection pool exhausted")

	// ErrClosed is returned by Acquire after the pool has been closed.
	ErrClosed = errors.New("pgwrap: connection pool is closed")
)

// Conn is the handle type a Pool manages. IsClosed must not perform I/O and
// must be safe to call on a nil receiver, so returned handles can be
// liveness-checked without touching the server.
type Conn interface {
	IsClosed() bool
	Close(ctx context.Context) error
}

// DialFunc opens one new connection. The pool calls it while holding its
// lock, so concurrent Acquire and Release calls wait behind an in-flight
// connection establishment. Dials are expected to carry their own timeout
// via ctx.
type DialFunc[C Conn] func(ctx context.Context) (C, error)

// Option configures a Pool.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for connection lifecycle events.
// By default the pool logs nothing.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Pool hands out exclusive connection handles to concurrent callers.
//
// A handle is in exactly one of three states: idle in the pool, checked out
// by a caller, or closed. Acquire transfers ownership to the caller; the
// pool does not touch a checked-out handle until Release hands it back.
// At every instant 0 <= idle <= live <= max, where live counts idle plus
// checked-out handles. Every state transition happens under one mutex.
type Pool[C Conn] struct {
	dial   DialFunc[C]
	max    int
	logger *slog.Logger

	mu     sync.Mutex
	idle   []C // LIFO: most recently returned is reused first
	live   int
	closed bool
}

// New creates an empty pool. No connections are opened until the first
// Acquire. maxConns must be positive and dial non-nil.
func New[C Conn](dial DialFunc[C], maxConns int, opts ...Option) (*Pool[C], error) {
	if dial == nil {
		return nil, errors.New("pgwrap: pool dial func is required")
	}
	if maxConns <= 0 {
		return nil, fmt.Errorf("pgwrap: invalid max connections: %d", maxConns)
	}

	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	return &Pool[C]{
		dial:   dial,
		max:    maxConns,
		logger: o.logger,
		idle:   make([]C, 0, maxConns),
	}, nil
}

// Acquire returns an exclusive connection handle. It reuses the most
// recently returned idle handle if one exists, otherwise opens a new
// connection if the pool is below capacity. When all slots are checked out
// it fails immediately with ErrExhausted rather than blocking.
//
// The returned handle must be handed back with Release exactly once.
func (p *Pool[C]) Acquire(ctx context.Context) (C, error) {
	var zero C
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return zero, ErrClosed
	}

	if n := len(p.idle); n > 0 {
		c := p.idle[n-1]
		p.idle[n-1] = zero
		p.idle = p.idle[:n-1]
		return c, nil
	}

	if p.live < p.max {
		p.live++
		c, err := p.dial(ctx)
		if err != nil {
			// The slot must be handed back so a later Acquire can retry.
			p.decLive()
			p.logger.Debug("pool: open connection failed", "error", err)
			return zero, fmt.Errorf("pgwrap: open connection: %w", err)
		}
		p.logger.Debug("pool: opened connection", "live", p.live, "max", p.max)
		return c, nil
	}

	return zero, ErrExhausted
}

// Release hands a checked-out handle back to the pool. Broken or nil
// handles are discarded so they never re-enter circulation; healthy ones
// are pushed onto the idle stack for reuse. Release never fails from the
// caller's point of view.
//
// After Release the caller must not use the handle again, and must not
// release the same handle twice.
func (p *Pool[C]) Release(c C) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if isNil(c) || c.IsClosed() {
		p.decLive()
		p.logger.Debug("pool: discarded broken connection", "live", p.live)
		return
	}

	if !p.closed && len(p.idle) < p.max {
		p.idle = append(p.idle, c)
		return
	}

	// Pool closed, or idle already at capacity: destroy the handle.
	_ = c.Close(context.Background())
	p.decLive()
}

// With acquires a handle, runs fn with it, and guarantees the handle is
// released on every exit path, including a panic inside fn.
func (p *Pool[C]) With(ctx context.Context, fn func(C) error) error {
	c, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(c)
	return fn(c)
}

// Close tears the pool down: every idle handle is closed and further
// Acquire calls fail with ErrClosed. Handles currently checked out remain
// the caller's responsibility; releasing them afterwards closes them.
// Close is idempotent.
func (p *Pool[C]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	for i, c := range p.idle {
		_ = c.Close(context.Background())
		p.decLive()
		var zero C
		p.idle[i] = zero
	}
	p.idle = nil
	p.logger.Debug("pool: closed")
}

// Stats is a snapshot of the pool's bookkeeping.
type Stats struct {
	Open  int // connections that exist: idle + in use
	Idle  int // connections sitting in the pool
	InUse int // connections checked out by callers
}

// Stats reports current connection counts.
func (p *Pool[C]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Open:  p.live,
		Idle:  len(p.idle),
		InUse: p.live - len(p.idle),
	}
}

// MaxConns returns the pool's connection cap.
func (p *Pool[C]) MaxConns() int {
	return p.max
}

// decLive must be called with the lock held. Going negative means a handle
// was released more times than it was acquired, which is a bug in the pool
// or its caller, not a runtime condition.
func (p *Pool[C]) decLive() {
	p.live--
	if p.live < 0 {
		panic("pgwrap: pool connection accounting underflow")
	}
}

// isNil reports whether a typed-nil handle was passed in. C is always a
// pointer or interface type in practice, so comparing through any works for
// the interface case and falls back to IsClosed for typed nils.
func isNil[C Conn](c C) bool {
	return any(c) == nil
}
