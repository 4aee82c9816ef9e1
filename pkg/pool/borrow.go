package pool

import (
	"sync/atomic"

	"github.com/redispoolmgr/poolmgr/pkg/redisclient"
)

// Borrow is a scoped, counted reservation of capacity on a Pool. It is
// the only sanctioned path to a Connection's client handle; the
// borrower never sees the Pool object directly. Release must run
// exactly once per Borrow, on every exit path of the borrowing scope;
// calling it more than once is a no-op.
type Borrow struct {
	entry *nodeEntry
	pool  *Pool

	// generation is the Pool's generation at acquire time. It is kept
	// for diagnostics and is not compared against the Pool's current
	// generation at Release/Client time: see DESIGN.md, "generation
	// field", for why that comparison would always be a no-op.
	generation uint64
	released   int32
}

// Client returns the underlying client handle acquired at borrow time.
func (b *Borrow) Client() (redisclient.Client, error) {
	return b.pool.client()
}

// Release returns the borrow's reservation to its Pool and broadcasts
// on the owning node's condition variable, waking every waiter. Safe to call more
// than once or concurrently; only the first call has effect.
func (b *Borrow) Release() {
	if !atomic.CompareAndSwapInt32(&b.released, 0, 1) {
		return
	}
	b.entry.mu.Lock()
	b.pool.release()
	b.entry.cond.Broadcast()
	b.entry.mu.Unlock()
}
