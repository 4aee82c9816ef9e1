package pool

import (
	"sync"
	"time"

	"github.com/redispoolmgr/poolmgr/pkg/redisclient"
)

// nodeEntry maps one node URL to its ordered list of Pools. The
// Registry exclusively owns nodeEntries; each nodeEntry exclusively
// owns its Pools (spec §3 Ownership). mu is the exclusive lock for
// structural mutation; cond is attached to mu and is broadcast on
// release, on pool addition, and on a pool's healthy flag flipping
// true, so a waiting Dispatcher call always gets a chance to retry.
type nodeEntry struct {
	url  string
	mode redisclient.Mode
	seeds []string
	dial DialFunc

	mu      sync.Mutex
	cond    *sync.Cond
	pools   []*Pool
	closing bool
}

func newNodeEntry(url string, mode redisclient.Mode, seeds []string, dial DialFunc) *nodeEntry {
	e := &nodeEntry{
		url:   url,
		mode:  mode,
		seeds: seeds,
		dial:  dial,
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// candidate is the outcome of scanning pools for a usable one: the
// pool itself plus the index it was found at. The stable tie-break
// of spec §4.4 step 2 comes from scan order in selectPool; idx only
// records the winner's position.
type candidate struct {
	pool *Pool
	idx  int
}

// selectPool scans pools (caller holds mu) for the first pool with
// healthy == true && in_flight < capacity, tie-broken by lowest
// in_flight then by position. Returns ok=false if none qualifies.
func (e *nodeEntry) selectPool() (candidate, bool) {
	var best candidate
	found := false
	for i, p := range e.pools {
		if p.closed || !p.healthy || p.inFlight >= p.capacity {
			continue
		}
		if !found || p.inFlight < best.pool.inFlight {
			best = candidate{pool: p, idx: i}
			found = true
		}
	}
	return best, found
}

// waitForSignal blocks on cond until broadcast or deadline, whichever
// comes first. Caller must hold mu. Returns once woken; the caller is
// responsible for checking time.Now() against deadline to know whether
// the wake was a real signal or a timeout-forced one.
func (e *nodeEntry) waitForSignal(deadline time.Time) {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return
	}

	timer := time.NewTimer(remaining)
	stop := make(chan struct{})
	go func() {
		select {
		case <-timer.C:
			e.mu.Lock()
			e.cond.Broadcast()
			e.mu.Unlock()
		case <-stop:
			timer.Stop()
		}
	}()

	e.cond.Wait()
	close(stop)
}
