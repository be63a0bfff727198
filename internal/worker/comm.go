// Package worker provides the rank-based parallel execution model shared by
// the pipeline stages: a fixed communicator of W goroutine ranks coordinated
// by golang.org/x/sync/errgroup (cooperative, context-cancelling abort),
// plus cyclic-barrier, scatter/gather, reduction, broadcast, and
// shared-file-append collectives.
package worker

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Comm is a fixed-size communicator of W ranks, one goroutine per rank.
type Comm struct {
	Size int
}

// New creates a communicator of the given size. Size must be >= 1.
func New(size int) *Comm {
	if size < 1 {
		size = 1
	}
	return &Comm{Size: size}
}

// Run launches fn once per rank in [0, Size) and waits for all of them to
// return. If any invocation returns a non-nil error, the shared context is
// cancelled, unwinding every other rank, and Run returns the first such
// error.
func (c *Comm) Run(ctx context.Context, fn func(ctx context.Context, rank int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for r := 0; r < c.Size; r++ {
		rank := r
		g.Go(func() error {
			return fn(gctx, rank)
		})
	}
	return g.Wait()
}

// Barrier is a reusable (cyclic) rendezvous point for a fixed number of
// goroutine ranks, used between lock-step pipeline steps (e.g. between
// de-dispersion trials).
type Barrier struct {
	n          int
	mu         sync.Mutex
	count      int
	generation int
	cond       *sync.Cond
}

// NewBarrier creates a barrier for n participants.
func NewBarrier(n int) *Barrier {
	b := &Barrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until all n participants have called Wait for the current
// generation, then releases them all together.
func (b *Barrier) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()
	gen := b.generation
	b.count++
	if b.count == b.n {
		b.count = 0
		b.generation++
		b.cond.Broadcast()
		return
	}
	for gen == b.generation {
		b.cond.Wait()
	}
}
