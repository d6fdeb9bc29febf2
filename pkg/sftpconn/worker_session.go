package sftpconn

import (
	"context"

	"github.com/pkg/sftp"
)

// WorkerSession is one worker's independently-owned SSH session and SFTP
// channel. No WorkerSession is ever shared across workers: each dials and
// authenticates its own connection, gated only by a shared HandshakeLimiter,
// and rebuilds lazily after a poisoned channel or a dropped session.
type WorkerSession struct {
	host string
	port int
	user string

	limiter *HandshakeLimiter

	conn     *Conn
	channels *Pool[*sftp.Client]

	SessionRebuilds int
	SFTPRebuilds    int
}

// NewWorkerSession returns a session builder for one worker. No network
// activity happens until Ensure is first called.
func NewWorkerSession(host string, port int, user string, limiter *HandshakeLimiter) *WorkerSession {
	return &WorkerSession{host: host, port: port, user: user, limiter: limiter}
}

// Ensure returns a checked-out SFTP channel, dialing and authenticating a
// fresh session first if none is live. The handshake token is held only
// across dial and authentication, never while the channel is checked out.
func (w *WorkerSession) Ensure(ctx context.Context) (*Guard[*sftp.Client], error) {
	if w.conn == nil {
		if err := w.limiter.Acquire(ctx); err != nil {
			return nil, err
		}

		conn, err := Connect(ctx, w.host, w.port, w.user)
		w.limiter.Release()

		if err != nil {
			return nil, err
		}

		w.conn = conn
		w.channels = NewSFTPPool(conn.SSH, 1)
		w.SessionRebuilds++
	}

	guard, err := w.channels.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	if guard.WasFresh() {
		w.SFTPRebuilds++
	}

	return guard, nil
}

// PoisonSession drops the underlying SSH session entirely, forcing the next
// Ensure to dial and authenticate a brand new one. Call this when a channel
// failure suggests the session itself is no longer usable.
func (w *WorkerSession) PoisonSession() {
	if w.channels != nil {
		_ = w.channels.Close()
	}

	if w.conn != nil {
		_ = w.conn.Close()
	}

	w.conn = nil
	w.channels = nil
}

// Close releases every resource the worker holds, for use at worker exit.
func (w *WorkerSession) Close() {
	w.PoisonSession()
}
