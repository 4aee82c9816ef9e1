package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/redispoolmgr/poolmgr/pkg/redisclient"
)

// fakeClient is a minimal redisclient.Client double: it answers Ping
// with a programmable error and counts Close calls, with no network
// access, modeled on the pack's DialFunc test-injection seam.
type fakeClient struct {
	mu       sync.Mutex
	pingErr  error
	closeErr error
	closed   bool
}

func (f *fakeClient) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	f.mu.Lock()
	err := f.pingErr
	f.mu.Unlock()
	if err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal("PONG")
	}
	return cmd
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return f.closeErr
}

func (f *fakeClient) setPingErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingErr = err
}

func (f *fakeClient) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeDialer is a DialFunc factory whose dial attempts can be scripted:
// the first failCount calls to dial fail with dialErr, after which every
// call succeeds and hands back a fresh, healthy fakeClient. Every client
// it ever produced is retained for post-hoc assertions (e.g. that a
// replaced Connection's old client was Closed).
type fakeDialer struct {
	mu        sync.Mutex
	failCount int32
	dialErr   error
	produced  []*fakeClient
	calls     int32
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dialErr: fmt.Errorf("fake dial error")}
}

func (d *fakeDialer) dial(ctx context.Context) (redisclient.Client, error) {
	n := atomic.AddInt32(&d.calls, 1)
	if n <= atomic.LoadInt32(&d.failCount) {
		return nil, d.dialErr
	}
	c := &fakeClient{}
	d.mu.Lock()
	d.produced = append(d.produced, c)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) asDialFunc() DialFunc {
	return d.dial
}

func (d *fakeDialer) setFailCount(n int32) {
	atomic.StoreInt32(&d.failCount, n)
}

func (d *fakeDialer) callCount() int {
	return int(atomic.LoadInt32(&d.calls))
}

func (d *fakeDialer) last() *fakeClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.produced) == 0 {
		return nil
	}
	return d.produced[len(d.produced)-1]
}
