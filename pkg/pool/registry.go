package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/redispoolmgr/poolmgr/pkg/poolconfig"
	"github.com/redispoolmgr/poolmgr/pkg/poolerrors"
	"github.com/redispoolmgr/poolmgr/pkg/poolmetrics"
	"github.com/redispoolmgr/poolmgr/pkg/redisclient"
)

// Registry maps each node URL to a nodeEntry and owns the scheduling
// configuration and the maintenance loops (spec §3 Registry). It is
// the library's entry point.
type Registry struct {
	cfg     poolconfig.Config
	logger  *logrus.Logger
	metrics poolmetrics.Sink

	// dialerFor builds a DialFunc for a node; overridable by tests to
	// avoid dialing a real Redis server.
	dialerFor func(url string, capacity int, mode redisclient.Mode, seeds []string, opts redisclient.Options) DialFunc

	mu    sync.Mutex
	nodes map[string]*nodeEntry

	loopsOnce   sync.Once
	loopsCancel context.CancelFunc
	loopsWG     sync.WaitGroup
	closeOnce   sync.Once
}

// NewRegistry constructs an empty Registry. metrics may be nil, in
// which case a Noop sink is used (spec §6: the observability sink is
// an optional collaborator).
func NewRegistry(cfg poolconfig.Config, logger *logrus.Logger, metrics poolmetrics.Sink) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	if metrics == nil {
		metrics = poolmetrics.Noop{}
	}
	return &Registry{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		nodes:   make(map[string]*nodeEntry),
		dialerFor: func(url string, capacity int, mode redisclient.Mode, seeds []string, opts redisclient.Options) DialFunc {
			return newDialer(url, capacity, opts, mode, seeds)
		},
	}
}

func (r *Registry) poolArgs() redisclient.Options {
	return redisclient.FromPoolArgs(r.cfg.PoolArgs)
}

// modeAndSeeds resolves the dial mode/seeds for url per the Registry's
// cluster configuration: in cluster mode every node dials through the
// configured startup seeds regardless of its own URL (GLOSSARY:
// "in cluster mode, the cluster is addressed through any of its seed
// nodes"); otherwise the node dials itself directly.
func (r *Registry) modeAndSeeds(url string) (redisclient.Mode, []string) {
	if r.cfg.UseCluster {
		return redisclient.ModeCluster, r.cfg.StartupNodes
	}
	return redisclient.ModeSingle, nil
}

// AddNode registers url, no-op if already present. It constructs
// initial_pools_per_node Pools, running WaitForReady on each; at least
// one must become ready within timeout or AddNode fails with
// AddNodeTimeout and rolls back every partial pool it created.
func (r *Registry) AddNode(ctx context.Context, url string) error {
	r.mu.Lock()
	if _, exists := r.nodes[url]; exists {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	mode, seeds := r.modeAndSeeds(url)
	dial := r.dialerFor(url, r.cfg.MaxConnectionSize, mode, seeds, r.poolArgs())
	entry := newNodeEntry(url, mode, seeds, dial)

	deadline := time.Now().Add(r.cfg.ReadinessTimeout)
	type result struct {
		pool *Pool
		err  error
	}
	results := make([]result, r.cfg.InitialPoolsPerNode)
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.InitialPoolsPerNode; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := newConnection(url, r.cfg.MaxConnectionSize, mode, seeds, dial)
			_, err := conn.WaitForReady(ctx, time.Until(deadline), r.cfg.ReadinessStep, r.cfg.ReadinessMaxRetries)
			if err != nil {
				results[i] = result{err: err}
				return
			}
			results[i] = result{pool: newPool(conn, url, r.cfg.MaxConnectionSize, mode, seeds, dial)}
		}(i)
	}
	wg.Wait()

	var ready []*Pool
	var failures int
	for _, res := range results {
		if res.err != nil {
			failures++
			continue
		}
		ready = append(ready, res.pool)
	}

	if len(ready) == 0 {
		for _, res := range results {
			if res.pool != nil {
				res.pool.close()
			}
		}
		return poolerrors.New(poolerrors.AddNodeTimeout, "add_node").WithURL(url)
	}

	entry.pools = ready

	r.mu.Lock()
	if _, exists := r.nodes[url]; exists {
		r.mu.Unlock()
		for _, p := range ready {
			p.close()
		}
		return nil
	}
	r.nodes[url] = entry
	r.mu.Unlock()

	if failures > 0 {
		r.logger.WithFields(logrus.Fields{"url": url, "failed": failures, "ready": len(ready)}).
			Warn("add_node: some initial pools deferred to health loop")
	}

	return nil
}

// GetClient implements the Dispatcher contract (spec §4.4): resolve
// the node, select a qualifying pool (expanding or waiting as needed),
// and hand back a scoped Borrow whose Release runs exactly once.
func (r *Registry) GetClient(ctx context.Context, url string, timeout time.Duration) (*Borrow, error) {
	start := time.Now()
	deadline := start.Add(timeout)

	r.mu.Lock()
	entry, ok := r.nodes[url]
	r.mu.Unlock()
	if !ok {
		return nil, poolerrors.New(poolerrors.UnknownNode, "get_client").WithURL(url)
	}

	borrow, err := r.dispatch(ctx, entry, deadline)
	r.metrics.ObserveConnectionLatency(url, time.Since(start))
	return borrow, err
}

func (r *Registry) dispatch(ctx context.Context, entry *nodeEntry, deadline time.Time) (*Borrow, error) {
	for {
		entry.mu.Lock()

		if entry.closing {
			entry.mu.Unlock()
			return nil, poolerrors.New(poolerrors.NodeClosing, "get_client").WithURL(entry.url)
		}

		if cand, ok := entry.selectPool(); ok {
			gen, _ := cand.pool.tryAcquire()
			entry.mu.Unlock()
			return &Borrow{entry: entry, pool: cand.pool, generation: gen}, nil
		}

		canExpand := len(entry.pools) < r.cfg.MaxPoolsPerNode
		entry.mu.Unlock()

		if canExpand {
			remaining := time.Until(deadline)
			if remaining > 0 {
				conn := newConnection(entry.url, r.cfg.MaxConnectionSize, entry.mode, entry.seeds, entry.dial)
				if _, err := conn.WaitForReady(ctx, remaining, r.cfg.ReadinessStep, r.cfg.ReadinessMaxRetries); err == nil {
					newP := newPool(conn, entry.url, r.cfg.MaxConnectionSize, entry.mode, entry.seeds, entry.dial)

					entry.mu.Lock()
					if entry.closing {
						entry.mu.Unlock()
						newP.close()
						return nil, poolerrors.New(poolerrors.NodeClosing, "get_client").WithURL(entry.url)
					}
					if len(entry.pools) >= r.cfg.MaxPoolsPerNode {
						entry.mu.Unlock()
						newP.close()
						// Lost the race to another expansion; fall through to scan/wait.
					} else {
						entry.pools = append(entry.pools, newP)
						gen, _ := newP.tryAcquire()
						entry.cond.Broadcast()
						entry.mu.Unlock()
						return &Borrow{entry: entry, pool: newP, generation: gen}, nil
					}
				}
			}
		}

		if !time.Now().Before(deadline) {
			return nil, poolerrors.New(poolerrors.NoHealthyPools, "get_client").WithURL(entry.url)
		}

		entry.mu.Lock()
		entry.waitForSignal(deadline)
		entry.mu.Unlock()

		if !time.Now().Before(deadline) {
			entry.mu.Lock()
			_, ok := entry.selectPool()
			entry.mu.Unlock()
			if !ok {
				return nil, poolerrors.New(poolerrors.NoHealthyPools, "get_client").WithURL(entry.url)
			}
		}

		select {
		case <-ctx.Done():
			return nil, poolerrors.Wrap(poolerrors.NoHealthyPools, "get_client", ctx.Err()).WithURL(entry.url)
		default:
		}
	}
}

// poolStatus is one node's snapshot within a Report.
type poolStatus struct {
	URL          string
	TotalPools   int
	HealthyPools int
	InFlight     int
	Capacity     int
	IdlePools    int
}

// Report is the snapshot returned by FetchPoolStatus.
type Report struct {
	Nodes map[string]poolStatus
}

// FetchPoolStatus snapshots per-node totals. Each node's snapshot takes
// at most one mutex acquisition, so this never blocks borrows for
// longer than that.
func (r *Registry) FetchPoolStatus() Report {
	r.mu.Lock()
	entries := make([]*nodeEntry, 0, len(r.nodes))
	for _, e := range r.nodes {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	report := Report{Nodes: make(map[string]poolStatus, len(entries))}
	for _, e := range entries {
		e.mu.Lock()
		st := poolStatus{URL: e.url, TotalPools: len(e.pools)}
		for _, p := range e.pools {
			st.Capacity += p.capacity
			st.InFlight += p.inFlight
			if p.healthy {
				st.HealthyPools++
			}
			if p.isIdle() {
				st.IdlePools++
			}
		}
		e.mu.Unlock()

		report.Nodes[e.url] = st
		r.metrics.SetPoolSize(e.url, st.TotalPools)
		r.metrics.SetActiveConnections(e.url, st.InFlight)
		r.metrics.SetIdlePools(e.url, st.IdlePools)
		r.metrics.SetUnhealthyPools(e.url, st.TotalPools-st.HealthyPools)
	}
	return report
}

// CloseNode marks url closing, drains it (waits for every pool's
// in_flight to reach zero), closes every pool, and removes the entry.
// New acquisitions against a closing node fail with NodeClosing. The
// entry is kept in r.nodes until draining and pool-closing are done —
// removing it up front would make a concurrent GetClient's r.nodes
// lookup miss entirely and fail with UnknownNode instead of reaching
// the entry.closing check, which must win during the draining window
// (spec.md §4.3/§7, end-to-end scenario 6). Safe to call on an unknown
// URL (no-op) or more than once.
func (r *Registry) CloseNode(url string) error {
	r.mu.Lock()
	entry, ok := r.nodes[url]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	entry.mu.Lock()
	entry.closing = true
	entry.cond.Broadcast()
	for {
		drained := true
		for _, p := range entry.pools {
			if p.inFlight > 0 {
				drained = false
				break
			}
		}
		if drained {
			break
		}
		entry.cond.Wait()
	}
	pools := entry.pools
	entry.pools = nil
	entry.mu.Unlock()

	var firstErr error
	for _, p := range pools {
		if err := p.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	r.mu.Lock()
	delete(r.nodes, url)
	r.mu.Unlock()

	return firstErr
}

// CloseAll closes every registered node. Safe to call more than once.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	urls := make([]string, 0, len(r.nodes))
	for url := range r.nodes {
		urls = append(urls, url)
	}
	r.mu.Unlock()

	var firstErr error
	for _, url := range urls {
		if err := r.CloseNode(url); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close stops the maintenance loops (if started) and closes every
// node. Safe to call more than once.
func (r *Registry) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.StopLoops()
		err = r.CloseAll()
	})
	return err
}

func (r *Registry) String() string {
	return fmt.Sprintf("Registry(nodes=%d)", len(r.nodes))
}
