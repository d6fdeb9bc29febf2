package sftpconn

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// HandshakeLimiter bounds how many SSH handshakes may be in flight across
// every worker at once, independent of how many live sessions exist
// afterward or how much SFTP traffic is in progress. A caller holds the
// token only for the span of dialing and authenticating a new session,
// releasing it immediately once that succeeds or fails; steady-state
// transfer traffic is never gated by it.
type HandshakeLimiter struct {
	sem *semaphore.Weighted
}

// NewHandshakeLimiter returns a limiter allowing up to capacity concurrent
// handshakes. A capacity below 1 is treated as 1.
func NewHandshakeLimiter(capacity int) *HandshakeLimiter {
	if capacity < 1 {
		capacity = 1
	}

	return &HandshakeLimiter{sem: semaphore.NewWeighted(int64(capacity))}
}

// Acquire blocks until a handshake token is free or ctx is cancelled.
func (h *HandshakeLimiter) Acquire(ctx context.Context) error {
	return h.sem.Acquire(ctx, 1)
}

// Release returns the token. Callers must call this immediately once a
// dial-and-authenticate attempt completes, whether it succeeded or failed.
func (h *HandshakeLimiter) Release() {
	h.sem.Release(1)
}
