// Package transfer wires the planner, enumerator, worker pools, progress
// aggregate, and failure sink into the single Transfer entry point external
// callers (cmd/ts, or any other embedder) use.
package transfer

import (
	"context"
	"io"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/nitronplus/ts/internal/enumerate"
	"github.com/nitronplus/ts/internal/failures"
	"github.com/nitronplus/ts/internal/planner"
	"github.com/nitronplus/ts/internal/progress"
	"github.com/nitronplus/ts/internal/workerpool"
	"github.com/nitronplus/ts/pkg/pathutil"
	"github.com/nitronplus/ts/pkg/retry"
	"github.com/nitronplus/ts/pkg/sftpconn"
)

// entryChannelDepth bounds the enumerator's lead over the worker pool.
const entryChannelDepth = 256

// Request carries the user-facing inputs to Transfer. Zero-valued optional
// fields take their documented defaults (see internal/planner.Request).
type Request struct {
	Sources        []string
	Target         string
	Resolver       planner.AliasResolver
	Concurrency    int
	Retry          int
	RetryBackoffMS int64
	BufMiB         int
	OutputFailures io.Writer
	Log            hclog.Logger
}

// Result is the outcome of a single Transfer call.
type Result struct {
	Plan             *planner.Plan
	BytesTransferred uint64
	FilesSucceeded   int
	FilesFailed      int
	Failures         []failures.Record
	Metrics          []workerpool.WorkerMetrics
	Duration         time.Duration
}

// Transfer validates req, builds a plan, and streams every source entry
// through a fixed-size worker pool, returning once every entry has either
// succeeded or exhausted its retries.
func Transfer(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	log := req.Log
	if log == nil {
		log = hclog.NewNullLogger()
	}

	if req.RetryBackoffMS > 0 {
		retry.SetBackoffBaseMS(req.RetryBackoffMS)
	}

	plan, conn, err := planner.Build(ctx, planner.Request{
		Sources:     req.Sources,
		Target:      req.Target,
		Concurrency: req.Concurrency,
		Retry:       req.Retry,
		BufMiB:      req.BufMiB,
	}, req.Resolver, sftpconn.SessionBuilder{})
	if conn != nil {
		defer conn.Close()
	}

	if err != nil {
		return Result{}, err
	}

	handshakeCap := workerpool.HandshakeCapacity(plan.Workers)
	log.Info("plan built", "direction", plan.Direction.String(), "workers", plan.Workers, "buf_bytes", plan.BufSize, "handshake_capacity", handshakeCap)

	limiter := sftpconn.NewHandshakeLimiter(handshakeCap)
	sessions := workerpool.NewSessionFactory(plan.Server.Host, plan.Server.Port, plan.Server.User, limiter)

	sink := failures.NewSink(req.OutputFailures, log)
	var agg progress.Aggregate

	deps := workerpool.Deps{
		Plan:     plan,
		Sessions: sessions,
		Sink:     sink,
		Agg:      &agg,
		Log:      log,
	}

	entries := make(chan enumerate.Entry, entryChannelDepth)

	done := make(chan struct{})

	var metrics []workerpool.WorkerMetrics

	go func() {
		defer close(done)

		if plan.Direction == planner.Upload {
			metrics = workerpool.RunUpload(ctx, entries, deps)
		} else {
			metrics = workerpool.RunDownload(ctx, entries, deps)
		}
	}()

	enumErr := enumerateInto(ctx, plan, conn, entries, &agg)
	close(entries)
	<-done

	records := sink.Close()

	result := Result{
		Plan:             plan,
		BytesTransferred: agg.Transferred(),
		FilesSucceeded:   agg.FilesSucceeded(),
		FilesFailed:      agg.FilesFailed(),
		Failures:         records,
		Metrics:          metrics,
		Duration:         time.Since(start),
	}

	if enumErr != nil {
		return result, enumErr
	}

	return result, nil
}

func enumerateInto(ctx context.Context, plan *planner.Plan, conn *sftpconn.Conn, entries chan<- enumerate.Entry, agg *progress.Aggregate) error {
	push := func(e enumerate.Entry) error {
		select {
		case entries <- e:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if plan.Direction == planner.Upload {
		total, err := enumerate.Local(plan.Sources, push)
		agg.SetTotalBytes(total)

		return err
	}

	root := plan.ExpandedRemoteBase
	hasGlob := pathutil.HasGlob(root)

	return enumerate.Remote(conn.SFTP, root, hasGlob, plan.RemoteSourceEndsSlash, push)
}
