// Package poolerrors defines the typed error taxonomy surfaced by the
// connection pool manager: which failures are transient and recovered
// internally, and which are handed back to the caller.
package poolerrors

import "fmt"

// Kind identifies a class of pool-manager failure. Errors are matched
// by Kind through errors.Is against another *Error (see the Err*
// sentinels below).
type Kind string

const (
	// NotReady means a Connection could not be brought up within its
	// readiness budget (wait_for_ready exhausted timeout/max_retries).
	NotReady Kind = "not_ready"

	// Unhealthy means a single liveness probe failed. Consumed
	// internally by the Pool; it never reaches a Dispatcher caller.
	Unhealthy Kind = "unhealthy"

	// NoHealthyPools means GetClient could not obtain a borrow within
	// its timeout.
	NoHealthyPools Kind = "no_healthy_pools"

	// UnknownNode means the requested URL has no NodeEntry.
	UnknownNode Kind = "unknown_node"

	// NodeClosing means an acquisition was attempted on a node that is
	// being torn down by CloseNode/CloseAll.
	NodeClosing Kind = "node_closing"

	// AddNodeTimeout means AddNode could not bring up the minimum
	// required pool within its timeout; rollback has already run.
	AddNodeTimeout Kind = "add_node_timeout"
)

// Error is the concrete error type for every failure kind above. It
// wraps an optional cause and carries enough context (kind,
// operation, node URL) to log usefully without a stack trace.
type Error struct {
	Kind Kind
	Op   string
	URL  string
	Err  error
}

func (e *Error) Error() string {
	if e.URL != "" {
		if e.Err != nil {
			return fmt.Sprintf("pool: %s: %s (url=%s): %v", e.Op, e.Kind, e.URL, e.Err)
		}
		return fmt.Sprintf("pool: %s: %s (url=%s)", e.Op, e.Kind, e.URL)
	}
	if e.Err != nil {
		return fmt.Sprintf("pool: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("pool: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, poolerrors.ErrNoHealthyPools) style
// comparisons: any *Error target matches when its Kind equals e's,
// regardless of Op, URL or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an Error of the given kind for op, with no cause.
func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// Wrap constructs an Error of the given kind for op, wrapping cause.
func Wrap(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// WithURL returns a copy of e annotated with the node URL.
func (e *Error) WithURL(url string) *Error {
	cp := *e
	cp.URL = url
	return &cp
}

// Sentinels usable directly with errors.Is, e.g.
// errors.Is(err, poolerrors.ErrNoHealthyPools).
var (
	ErrNotReady       = &Error{Kind: NotReady}
	ErrUnhealthy      = &Error{Kind: Unhealthy}
	ErrNoHealthyPools = &Error{Kind: NoHealthyPools}
	ErrUnknownNode    = &Error{Kind: UnknownNode}
	ErrNodeClosing    = &Error{Kind: NodeClosing}
	ErrAddNodeTimeout = &Error{Kind: AddNodeTimeout}
)
