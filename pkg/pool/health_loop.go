package pool

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// runHealthLoop ticks every HealthCheckInterval, probing every pool on
// every node and repairing the ones eligible for it (spec §4.5). Each
// tick: snapshot pools under the node's lock, release the lock, probe
// outside it, reacquire to apply outcomes, then repair eligible pools
// the same unlocked-I/O-then-locked-apply way (Pool.attemptRepair /
// Pool.finishRepair), matching the teacher's snapshot-then-unlock
// pattern in performHealthCheck.
func (r *Registry) runHealthLoop(ctx context.Context) {
	defer r.loopsWG.Done()

	ticker := time.NewTicker(r.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.healthTick(ctx)
		}
	}
}

func (r *Registry) healthTick(ctx context.Context) {
	r.mu.Lock()
	entries := make([]*nodeEntry, 0, len(r.nodes))
	for _, e := range r.nodes {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	for _, entry := range entries {
		r.healthTickNode(ctx, entry)
	}
}

func (r *Registry) healthTickNode(ctx context.Context, entry *nodeEntry) {
	entry.mu.Lock()
	if entry.closing {
		entry.mu.Unlock()
		return
	}
	snapshot := make([]*Pool, len(entry.pools))
	copy(snapshot, entry.pools)
	for _, p := range snapshot {
		p.beginProbe()
	}
	entry.mu.Unlock()

	outcomes := make([]error, len(snapshot))
	for i, p := range snapshot {
		outcomes[i] = p.healthCheck(ctx)
	}

	var toRepair []*Pool
	entry.mu.Lock()
	anyTransition := false
	for i, p := range snapshot {
		p.endProbe()
		wasHealthy := p.healthy
		if outcomes[i] != nil {
			p.markUnhealthy()
			if p.canRepair() {
				toRepair = append(toRepair, p)
			}
		} else if !wasHealthy {
			p.healthy = true
			anyTransition = true
		}
	}
	if anyTransition {
		entry.cond.Broadcast()
	}
	entry.mu.Unlock()

	if len(toRepair) == 0 {
		return
	}

	type repaired struct {
		pool *Pool
		conn *Connection
		err  error
	}
	results := make([]repaired, len(toRepair))
	for i, p := range toRepair {
		conn, err := p.attemptRepair(ctx, r.cfg.ReadinessTimeout, r.cfg.ReadinessStep, r.cfg.ReadinessMaxRetries)
		results[i] = repaired{pool: p, conn: conn, err: err}
	}

	entry.mu.Lock()
	repairedAny := false
	for _, res := range results {
		before := res.pool.healthy
		res.pool.finishRepair(res.conn, res.err)
		if !before && res.pool.healthy {
			repairedAny = true
		}
	}
	if repairedAny {
		entry.cond.Broadcast()
	}
	entry.mu.Unlock()

	if r.logger != nil {
		for _, res := range results {
			if res.err != nil {
				r.logger.WithFields(logrus.Fields{"url": entry.url}).
					WithError(res.err).Debug("health_loop: repair attempt failed")
			}
		}
	}
}
