package workerpool_test

import (
	"context"
	"sync"

	"github.com/nitronplus/ts/internal/workerpool"
	"github.com/nitronplus/ts/pkg/sftpconn"
)

// fakeCheckout wraps a single shared FakeCapability; Poison only records that
// it was called and drops no channel, since tests don't need channel-drop
// semantics to exercise worker logic.
type fakeCheckout struct {
	cap      *sftpconn.FakeCapability
	poisoned *bool
}

func (f fakeCheckout) Adapter() sftpconn.Capability { return f.cap }
func (f fakeCheckout) Poison()                      { *f.poisoned = true }
func (f fakeCheckout) Release()                     {}

// fakeChannelPool doubles as a workerpool.Session and a workerpool.
// SessionFactory (NewSession returns itself): every worker in a test shares
// the one FakeCapability backing it, since tests exercise entry-processing
// logic rather than session-isolation behavior.
type fakeChannelPool struct {
	mu       sync.Mutex
	cap      *sftpconn.FakeCapability
	poisoned bool
	acquires int
	failN    int // Acquire fails for the first failN calls
	failErr  error
}

func newFakeChannelPool(cap *sftpconn.FakeCapability) *fakeChannelPool {
	return &fakeChannelPool{cap: cap}
}

func (f *fakeChannelPool) NewSession(int) workerpool.Session { return f }

func (f *fakeChannelPool) Acquire(_ context.Context) (workerpool.Checkout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.acquires++

	if f.acquires <= f.failN {
		return nil, f.failErr
	}

	return fakeCheckout{cap: f.cap, poisoned: &f.poisoned}, nil
}

func (f *fakeChannelPool) PoisonSession() {}
func (f *fakeChannelPool) Close()         {}

func (f *fakeChannelPool) Rebuilds() (int, int) { return 0, 0 }
