// Package redisclient is the thin underlying-client-library boundary
// the pool core delegates to (spec §6): construct a client for a node
// URL, ping it, close it. It never parses server responses or exposes
// data-type operations — that is explicitly out of the core's scope.
package redisclient

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Mode selects between a single-node and a cluster-aware client,
// re-architected from the source's dynamic dispatch into a tagged
// constructor argument (spec §9 Design Notes).
type Mode int

const (
	// ModeSingle builds a *redis.Client against one node URL.
	ModeSingle Mode = iota
	// ModeCluster builds a *redis.ClusterClient seeded from a list of
	// node URLs; go-redis performs its own topology discovery from there.
	ModeCluster
)

// Client is the liveness/lifecycle surface the pool core needs. Both
// *redis.Client and *redis.ClusterClient satisfy it without an adapter.
type Client interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Options carries the pass-through settings forwarded from the
// Registry's opaque pool_args mapping (spec §6), plus the fields every
// construction needs regardless of mode.
type Options struct {
	Username string
	Password string
	DB       int

	DialTimeout  stringOrDuration
	ReadTimeout  stringOrDuration
	WriteTimeout stringOrDuration
}

// stringOrDuration lets pool_args supply either a time.Duration string
// ("250ms") or be left zero; see FromPoolArgs.
type stringOrDuration struct {
	set   bool
	value string
}

// FromPoolArgs decodes the opaque pool_args mapping (spec §6) into
// Options. Unknown keys are ignored, matching the source's forward-
// compatible pass-through intent; this is the one place the module
// reaches into a generic map rather than a typed struct, and it is
// documented here rather than hidden behind reflection/mapstructure.
func FromPoolArgs(args map[string]interface{}) Options {
	var opts Options
	if args == nil {
		return opts
	}
	if v, ok := args["username"].(string); ok {
		opts.Username = v
	}
	if v, ok := args["password"].(string); ok {
		opts.Password = v
	}
	if v, ok := args["db"].(int); ok {
		opts.DB = v
	}
	if v, ok := args["dial_timeout"].(string); ok {
		opts.DialTimeout = stringOrDuration{set: true, value: v}
	}
	if v, ok := args["read_timeout"].(string); ok {
		opts.ReadTimeout = stringOrDuration{set: true, value: v}
	}
	if v, ok := args["write_timeout"].(string); ok {
		opts.WriteTimeout = stringOrDuration{set: true, value: v}
	}
	return opts
}

// New constructs a Client for url with the given per-connection
// capacity (PoolSize), in the requested Mode. In ModeCluster, seeds
// takes precedence over url as the cluster's initial contact points;
// url is still required for single-node addressing.
func New(url string, capacity int, opts Options, mode Mode, seeds []string) (Client, error) {
	switch mode {
	case ModeCluster:
		return newCluster(seeds, capacity, opts)
	default:
		return newSingle(url, capacity, opts)
	}
}

func newSingle(url string, capacity int, opts Options) (Client, error) {
	parsed, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url %q: %w", url, err)
	}
	parsed.PoolSize = capacity
	applyOptions(parsed, opts)
	return redis.NewClient(parsed), nil
}

func newCluster(seeds []string, capacity int, opts Options) (Client, error) {
	if len(seeds) == 0 {
		return nil, fmt.Errorf("cluster mode requires at least one seed node")
	}
	clusterOpts := &redis.ClusterOptions{
		Addrs:    seeds,
		PoolSize: capacity,
	}
	if opts.Username != "" {
		clusterOpts.Username = opts.Username
	}
	if opts.Password != "" {
		clusterOpts.Password = opts.Password
	}
	if d, ok := parseDuration(opts.DialTimeout); ok {
		clusterOpts.DialTimeout = d
	}
	if d, ok := parseDuration(opts.ReadTimeout); ok {
		clusterOpts.ReadTimeout = d
	}
	if d, ok := parseDuration(opts.WriteTimeout); ok {
		clusterOpts.WriteTimeout = d
	}
	return redis.NewClusterClient(clusterOpts), nil
}

func applyOptions(o *redis.Options, opts Options) {
	if opts.Username != "" {
		o.Username = opts.Username
	}
	if opts.Password != "" {
		o.Password = opts.Password
	}
	if opts.DB != 0 {
		o.DB = opts.DB
	}
	if d, ok := parseDuration(opts.DialTimeout); ok {
		o.DialTimeout = d
	}
	if d, ok := parseDuration(opts.ReadTimeout); ok {
		o.ReadTimeout = d
	}
	if d, ok := parseDuration(opts.WriteTimeout); ok {
		o.WriteTimeout = d
	}
}
