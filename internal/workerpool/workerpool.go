// Package workerpool drives the fixed-size worker goroutines that actually
// move bytes, one per planner.Plan.Workers, each pulling enumerate.Entry
// values off a shared channel. Every worker builds and owns its own SSH
// session and SFTP channel (see pkg/sftpconn.WorkerSession) — no worker ever
// shares either with another — rebuilding lazily on failure, and retrying
// failed entries through pkg/retry before reporting them to the failure
// sink.
package workerpool

import (
	"context"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/sftp"

	"github.com/nitronplus/ts/internal/enumerate"
	"github.com/nitronplus/ts/internal/failures"
	"github.com/nitronplus/ts/internal/planner"
	"github.com/nitronplus/ts/internal/progress"
	"github.com/nitronplus/ts/pkg/sftpconn"
	"github.com/nitronplus/ts/pkg/xferrors"
)

// Checkout is a checked-out SFTP channel, satisfied directly by
// *sftpconn.Guard[*sftp.Client]. It is narrowed to a non-generic interface
// here so tests can supply a fake channel without a live SSH stack.
type Checkout interface {
	Adapter() sftpconn.Capability
	Poison()
	Release()
}

// Session is the narrow interface a worker uses for its own private SSH
// session and SFTP channel, satisfied by *sftpconn.WorkerSession in
// production (via NewSessionFactory) and by a fake in tests. No Session is
// ever shared between workers.
type Session interface {
	// Acquire returns a checked-out SFTP channel, dialing and
	// authenticating a fresh SSH session first if none is live yet.
	Acquire(ctx context.Context) (Checkout, error)
	// PoisonSession drops the underlying SSH session, forcing the next
	// Acquire to dial and authenticate again.
	PoisonSession()
	// Close releases every resource the worker holds, at worker exit.
	Close()
	// Rebuilds reports the worker's lifetime session- and channel-rebuild
	// counts, read once after the worker has finished.
	Rebuilds() (sessionRebuilds, sftpRebuilds int)
}

// SessionFactory builds one worker's independent Session. Implemented by
// realSessionFactory in production and a fake in tests.
type SessionFactory interface {
	NewSession(workerID int) Session
}

type realSession struct {
	ws *sftpconn.WorkerSession
}

func (r realSession) Acquire(ctx context.Context) (Checkout, error) {
	guard, err := r.ws.Ensure(ctx)
	if err != nil {
		return nil, err
	}

	return guard, nil
}

func (r realSession) PoisonSession() { r.ws.PoisonSession() }
func (r realSession) Close()         { r.ws.Close() }

func (r realSession) Rebuilds() (int, int) {
	return r.ws.SessionRebuilds, r.ws.SFTPRebuilds
}

type realSessionFactory struct {
	host, user string
	port       int
	limiter    *sftpconn.HandshakeLimiter
}

// NewSessionFactory returns a SessionFactory that dials host:port as user
// independently for each worker, bounding concurrent handshakes across all
// of them through limiter.
func NewSessionFactory(host string, port int, user string, limiter *sftpconn.HandshakeLimiter) SessionFactory {
	return realSessionFactory{host: host, port: port, user: user, limiter: limiter}
}

func (f realSessionFactory) NewSession(int) Session {
	return realSession{ws: sftpconn.NewWorkerSession(f.host, f.port, f.user, f.limiter)}
}

// WorkerMetrics reports one worker's lifetime counters, collected once the
// worker has finished draining entries.
type WorkerMetrics struct {
	WorkerID         int
	BytesTransferred uint64
	SessionRebuilds  int
	SFTPRebuilds     int
	Duration         time.Duration
}

// Deps bundles what every worker needs to process one direction of a
// transfer. Sessions hands out one independent Session per worker; entries
// is shared and closed by the enumerator once every source has been walked.
type Deps struct {
	Plan     *planner.Plan
	Sessions SessionFactory
	Sink     *failures.Sink
	Agg      *progress.Aggregate
	Log      hclog.Logger
}

// remoteJoinDir joins base and rel with "/", the SFTP wire path separator.
func remoteJoinDir(base, rel string) string {
	return strings.TrimSuffix(base, "/") + "/" + rel
}

// run starts n workers pulling from entries, each owning an independent
// Session built via deps.Sessions, invoking process for each entry, and
// returns one WorkerMetrics per worker once every worker has finished.
func run(ctx context.Context, deps Deps, entries <-chan enumerate.Entry, process func(ctx context.Context, workerID int, e enumerate.Entry, session Session, metrics *WorkerMetrics)) []WorkerMetrics {
	log := deps.Log
	if log == nil {
		log = hclog.NewNullLogger()
	}

	n := deps.Plan.Workers

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		all = make([]WorkerMetrics, 0, n)
	)

	for id := 0; id < n; id++ {
		wg.Add(1)

		go func(workerID int) {
			defer wg.Done()

			session := deps.Sessions.NewSession(workerID)
			defer session.Close()

			metrics := WorkerMetrics{WorkerID: workerID}
			start := time.Now()

		drain:
			for {
				select {
				case <-ctx.Done():
					break drain
				case e, ok := <-entries:
					if !ok {
						break drain
					}

					process(ctx, workerID, e, session, &metrics)
				}
			}

			metrics.Duration = time.Since(start)
			metrics.SessionRebuilds, metrics.SFTPRebuilds = session.Rebuilds()

			logWorkerShutdown(log, metrics)

			mu.Lock()
			all = append(all, metrics)
			mu.Unlock()
		}(id)
	}

	wg.Wait()

	return all
}

func logWorkerShutdown(log hclog.Logger, m WorkerMetrics) {
	var avgMBPerSec float64

	if m.Duration > 0 {
		avgMBPerSec = (float64(m.BytesTransferred) / (1 << 20)) / m.Duration.Seconds()
	}

	log.Info("worker shutdown",
		"worker", m.WorkerID,
		"bytes_transferred", m.BytesTransferred,
		"avg_mb_s", avgMBPerSec,
		"session_rebuilds", m.SessionRebuilds,
		"sftp_rebuilds", m.SFTPRebuilds,
	)
}

func isNotExist(err error) bool {
	if err == nil {
		return false
	}

	return sftp.IsNotExist(err) || strings.Contains(err.Error(), "no such file") || strings.Contains(err.Error(), "file does not exist")
}

func remoteParent(p string) string {
	return path.Dir(p)
}

func reportFailure(ctx context.Context, sink *failures.Sink, agg *progress.Aggregate, source, target string, err error) {
	agg.MarkFileFailed()

	kind := xferrors.KindOperationFailed
	reason := err.Error()

	if xerr, ok := err.(*xferrors.Error); ok {
		kind = xerr.Kind
		reason = xerr.Error()
	}

	sink.Report(ctx, failures.Record{Source: source, Target: target, Kind: kind, Reason: reason})
}

func retryAttempts(plan *planner.Plan) int {
	if plan.MaxRetries < 1 {
		return 1
	}

	return plan.MaxRetries
}

// HandshakeCapacity is the handshake-token semaphore capacity for a plan
// with the given worker count: min(workers, 4), per spec. A worker count
// below 1 is treated as 1.
func HandshakeCapacity(workers int) int {
	if workers < 1 {
		return 1
	}

	if workers > 4 {
		return 4
	}

	return workers
}
