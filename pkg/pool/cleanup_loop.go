package pool

import (
	"context"
	"time"
)

// runCleanupLoop ticks every CleanupInterval, closing pools that have
// sat idle past MaxIdleTime, never shrinking a node below
// MinPoolsPerNode (spec §4.6). Candidate selection happens under the
// node's lock; the actual Close (which may block on network I/O) runs
// outside it, mirroring the teacher's performCleanup split between
// selecting removals and closing connections.
func (r *Registry) runCleanupLoop(ctx context.Context) {
	defer r.loopsWG.Done()

	ticker := time.NewTicker(r.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.cleanupTick()
		}
	}
}

func (r *Registry) cleanupTick() {
	r.mu.Lock()
	entries := make([]*nodeEntry, 0, len(r.nodes))
	for _, e := range r.nodes {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	for _, entry := range entries {
		r.cleanupTickNode(entry)
	}
}

func (r *Registry) cleanupTickNode(entry *nodeEntry) {
	now := time.Now()

	entry.mu.Lock()
	if entry.closing {
		entry.mu.Unlock()
		return
	}

	var kept []*Pool
	var doomed []*Pool
	floor := r.cfg.MinPoolsPerNode
	for _, p := range entry.pools {
		remainingCapacity := len(entry.pools) - len(doomed)
		if remainingCapacity > floor && p.closableForCleanup(now, r.cfg.MaxIdleTime) {
			doomed = append(doomed, p)
			continue
		}
		kept = append(kept, p)
	}
	entry.pools = kept
	entry.mu.Unlock()

	for _, p := range doomed {
		p.close()
	}

	if len(doomed) > 0 {
		entry.mu.Lock()
		entry.cond.Broadcast()
		entry.mu.Unlock()
	}
}

// StartLoops launches HealthLoop and CleanupLoop. Calling it more than
// once has no additional effect; the loops run until StopLoops or
// Close.
func (r *Registry) StartLoops() {
	r.loopsOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		r.loopsCancel = cancel
		r.loopsWG.Add(2)
		go r.runHealthLoop(ctx)
		go r.runCleanupLoop(ctx)
	})
}

// StopLoops signals both maintenance loops to exit and waits for them,
// leaving no goroutine behind (matching the teacher's ctx+WaitGroup
// shutdown discipline in pool_manager.go). Safe to call when the loops
// were never started.
func (r *Registry) StopLoops() {
	if r.loopsCancel != nil {
		r.loopsCancel()
	}
	r.loopsWG.Wait()
}
