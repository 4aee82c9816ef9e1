package pool

import (
	"context"
	"errors"
	"time"

	"github.com/redispoolmgr/poolmgr/pkg/redisclient"
)

var errConnNil = errors.New("pool: connection not initialized")

// Pool is a fixed-capacity bag of borrows backed by one Connection.
// Every method here except attemptRepair and healthCheck is invoked
// while the owning nodeEntry's mutex is held (spec §4.2); those two do
// network I/O and are called without it. Pool itself carries no lock
// of its own.
type Pool struct {
	url      string
	capacity int
	mode     redisclient.Mode
	seeds    []string
	dial     DialFunc

	conn     *Connection
	inFlight int
	lastUsed time.Time
	healthy  bool
	closed   bool

	// generation increments on every successful repair (finishRepair).
	// tryAcquire stamps it onto the Borrow it hands out; Borrow never
	// compares it back against genCount(), and that is provably safe
	// rather than an oversight: canRepair requires in_flight == 0, and
	// a live Borrow holds in_flight >= 1 for its entire lifetime, so no
	// repair can run — and generation cannot change — while any Borrow
	// derived from it still exists. See DESIGN.md, "generation field".
	generation uint64

	// probing is true for the span between HealthLoop snapshotting this
	// pool and applying the probe's outcome, i.e. exactly while its
	// Connection may be probed without the nodeEntry mutex held. The
	// CleanupLoop must not treat a probing pool as closable even when
	// in_flight == 0, so that no Connection is ever concurrently probed
	// and closed (spec §8 invariant).
	probing bool
}

// newPool constructs a Pool around an already-ready Connection. It is
// the caller's responsibility (NodeRegistry.AddNode or the Dispatcher's
// on-demand creation) to have run WaitForReady first.
func newPool(conn *Connection, url string, capacity int, mode redisclient.Mode, seeds []string, dial DialFunc) *Pool {
	return &Pool{
		url:      url,
		capacity: capacity,
		mode:     mode,
		seeds:    seeds,
		dial:     dial,
		conn:     conn,
		lastUsed: time.Now(),
		healthy:  true,
	}
}

// tryAcquire returns a generation-stamped claim if the pool is healthy
// and has spare capacity, or ok=false otherwise. It does not construct
// a Borrow; the caller (Dispatcher) wraps the claim once it has
// decided which pool wins the scan.
func (p *Pool) tryAcquire() (generation uint64, ok bool) {
	if p.closed || !p.healthy || p.inFlight >= p.capacity {
		return 0, false
	}
	p.inFlight++
	p.lastUsed = time.Now()
	return p.generation, true
}

// release decrements in_flight. Precondition: in_flight > 0 (the
// caller discipline in Borrow.Release guarantees this).
func (p *Pool) release() {
	if p.inFlight <= 0 {
		return
	}
	p.inFlight--
	p.lastUsed = time.Now()
}

// markUnhealthy flips healthy to false; called by HealthLoop after a
// failed probe.
func (p *Pool) markUnhealthy() {
	p.healthy = false
}

// canRepair reports whether repair's precondition holds: unhealthy and
// idle. Callers must hold the owning nodeEntry's mutex when checking
// this and when calling repair, so the check and the repair itself are
// atomic with respect to concurrent borrows.
func (p *Pool) canRepair() bool {
	return !p.closed && !p.healthy && p.inFlight == 0
}

// beginProbe marks the pool as under an unlocked probe; see probing.
// Must be called under the nodeEntry mutex.
func (p *Pool) beginProbe() { p.probing = true }

// endProbe clears the probing mark. Must be called under the
// nodeEntry mutex.
func (p *Pool) endProbe() { p.probing = false }

// closableForCleanup reports whether CleanupLoop may remove this pool:
// idle, not mid-probe, and not already closed.
func (p *Pool) closableForCleanup(now time.Time, maxIdle time.Duration) bool {
	return !p.closed && !p.probing && p.inFlight == 0 && now.Sub(p.lastUsed) > maxIdle
}

// attemptRepair performs the network side of repair: it does NOT touch
// Pool state and must be called WITHOUT the owning nodeEntry mutex
// held, since WaitForReady may block on the network (spec §5: no lock
// held across a suspension that performs I/O). Call finishRepair
// afterward, under the mutex, to apply the outcome.
func (p *Pool) attemptRepair(ctx context.Context, timeout, step time.Duration, maxRetries int) (*Connection, error) {
	conn := newConnection(p.url, p.capacity, p.mode, p.seeds, p.dial)
	if _, err := conn.WaitForReady(ctx, timeout, step, maxRetries); err != nil {
		return nil, err
	}
	return conn, nil
}

// finishRepair applies the outcome of attemptRepair under the owning
// nodeEntry mutex. If the pool is no longer eligible for repair (it
// was closed, or regained in-flight borrows, or a concurrent repair
// already succeeded) the freshly-dialed connection is closed instead
// of installed, so nothing leaks and nothing clobbers newer state.
// On success it swaps in the new Connection, sets healthy=true, and
// bumps generation. No Borrow of this pool exists at that point, since
// canRepair requires in_flight == 0.
func (p *Pool) finishRepair(conn *Connection, dialErr error) {
	if dialErr != nil {
		return
	}
	if !p.canRepair() {
		conn.Close()
		return
	}
	if p.conn != nil {
		p.conn.Close()
	}
	p.conn = conn
	p.healthy = true
	p.generation++
}

// close tears the pool down. Precondition: in_flight == 0 (caller
// responsibility, enforced by CleanupLoop/CloseNode before removal).
func (p *Pool) close() error {
	p.closed = true
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

// healthCheck runs the connection's single-shot probe. Must be called
// without the nodeEntry mutex held (spec §4.5 step 2); the caller
// reacquires the mutex before applying the returned outcome to the
// pool's healthy flag.
func (p *Pool) healthCheck(ctx context.Context) error {
	if p.conn == nil {
		return errConnNil
	}
	return p.conn.HealthCheck(ctx)
}

// client returns the live client handle for an acquired borrow.
func (p *Pool) client() (redisclient.Client, error) {
	return p.conn.GetClient()
}

func (p *Pool) isHealthy() bool                     { return p.healthy }
func (p *Pool) isIdle() bool                         { return p.inFlight == 0 }
func (p *Pool) idleFor(now time.Time) time.Duration  { return now.Sub(p.lastUsed) }
func (p *Pool) inFlightCount() int                   { return p.inFlight }
func (p *Pool) genCount() uint64                     { return p.generation }
