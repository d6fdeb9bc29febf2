package sftpconn

import (
	"context"
	"errors"
	"io"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrPoolClosed is returned by Acquire once the pool has been closed.
var ErrPoolClosed = errors.New("sftpconn: pool is closed")

// Pool hands out a fixed number of SFTP channels built lazily from a single
// SSH session. Channels are checked out through Acquire, which returns a
// Guard; the caller must call Guard.Release when done. This mirrors the
// bounded checkout/return discipline of a Rust RAII guard without relying on
// a destructor, since Go has none.
//
// Pool is generic over the channel type C so tests can exercise checkout
// logic against a fake that implements io.Closer, without dialing a real
// SSH session.
type Pool[C io.Closer] struct {
	factory      func() (C, error)
	toCapability func(C) Capability

	mu     sync.Mutex
	free   []C
	slots  int
	closed bool
	sem    *semaphore.Weighted
}

// NewPool creates a pool that allows up to maxChannels concurrently
// checked-out channels, built by factory and exposed via toCapability. A
// maxChannels value below 1 is treated as 1.
func NewPool[C io.Closer](factory func() (C, error), toCapability func(C) Capability, maxChannels int) *Pool[C] {
	if maxChannels < 1 {
		maxChannels = 1
	}

	return &Pool[C]{
		factory:      factory,
		toCapability: toCapability,
		slots:        maxChannels,
		sem:          semaphore.NewWeighted(int64(maxChannels)),
	}
}

// Capacity returns the maximum number of channels the pool will maintain.
func (p *Pool[C]) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.slots
}

// Guard is a checked-out channel. Callers must call Release exactly once,
// typically via defer.
type Guard[C io.Closer] struct {
	pool    *Pool[C]
	client  C
	adapter Capability
	fresh   bool
	poison  bool
}

// Adapter exposes the checked-out channel as a Capability.
func (g *Guard[C]) Adapter() Capability {
	return g.adapter
}

// Client exposes the raw channel value, for callers that need it directly
// (e.g. kr/fs walking over a *sftp.Client).
func (g *Guard[C]) Client() C {
	return g.client
}

// WasFresh reports whether acquiring this guard required building a new
// channel rather than reusing a pooled one.
func (g *Guard[C]) WasFresh() bool {
	return g.fresh
}

// Poison marks the channel as unusable; Release will close it instead of
// returning it to the pool. Call this when an operation on the channel
// failed in a way that leaves the channel's state unknown.
func (g *Guard[C]) Poison() {
	g.poison = true
}

// Release returns the channel to the pool, or closes it if it was poisoned
// or the pool has since been closed.
func (g *Guard[C]) Release() {
	g.pool.release(g)
}

// Acquire checks out a channel, blocking until one is free or ctx is
// cancelled. It builds a fresh channel lazily the first time each slot is
// used.
func (p *Pool[C]) Acquire(ctx context.Context) (*Guard[C], error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.sem.Release(1)

		return nil, ErrPoolClosed
	}

	if n := len(p.free); n > 0 {
		client := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()

		return &Guard[C]{pool: p, client: client, adapter: p.toCapability(client), fresh: false}, nil
	}

	p.mu.Unlock()

	client, err := p.factory()
	if err != nil {
		p.sem.Release(1)

		return nil, err
	}

	return &Guard[C]{pool: p, client: client, adapter: p.toCapability(client), fresh: true}, nil
}

func (p *Pool[C]) release(g *Guard[C]) {
	p.mu.Lock()

	switch {
	case p.closed || g.poison:
		p.mu.Unlock()
		_ = g.client.Close()
	default:
		p.free = append(p.free, g.client)
		p.mu.Unlock()
	}

	p.sem.Release(1)
}

// Reset closes every idle channel currently held by the pool so future
// Acquire calls build fresh ones. Channels already checked out are
// unaffected; they will be closed when released if the caller poisons them.
func (p *Pool[C]) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range p.free {
		_ = c.Close()
	}

	p.free = nil
}

// Close closes every idle channel and marks the pool closed. Channels
// currently checked out are closed as they're released.
func (p *Pool[C]) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true

	var firstErr error

	for _, c := range p.free {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	p.free = nil

	return firstErr
}
