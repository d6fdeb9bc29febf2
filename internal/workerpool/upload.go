package workerpool

import (
	"context"
	"io"
	"os"

	"github.com/nitronplus/ts/internal/enumerate"
	"github.com/nitronplus/ts/internal/progress"
	"github.com/nitronplus/ts/pkg/retry"
	"github.com/nitronplus/ts/pkg/sftpconn"
	"github.com/nitronplus/ts/pkg/xferrors"
)

// RunUpload drains entries, writing each local file (or creating each
// remote directory) under deps.Plan.ExpandedRemoteBase. It returns once
// entries is closed and every worker has finished, or ctx is cancelled, and
// reports each worker's lifetime counters.
func RunUpload(ctx context.Context, entries <-chan enumerate.Entry, deps Deps) []WorkerMetrics {
	return run(ctx, deps, entries, func(ctx context.Context, workerID int, e enumerate.Entry, session Session, metrics *WorkerMetrics) {
		uploadOne(ctx, e, deps, session, metrics)
	})
}

func uploadRemotePath(base string, targetIsDir bool, rel string) string {
	if targetIsDir {
		return remoteJoinDir(base, rel)
	}

	return base
}

func uploadOne(ctx context.Context, e enumerate.Entry, deps Deps, session Session, metrics *WorkerMetrics) {
	base := deps.Plan.ExpandedRemoteBase
	remotePath := uploadRemotePath(base, deps.Plan.TargetIsDirFinal, e.Rel)

	_, err := retry.Do(ctx, retryAttempts(deps.Plan), func(attempt int) (struct{}, error) {
		checkout, gerr := session.Acquire(ctx)
		if gerr != nil {
			session.PoisonSession()

			return struct{}{}, xferrors.Wrap(xferrors.KindWorkerNoSFTP, remotePath, gerr)
		}
		defer checkout.Release()

		adapter := checkout.Adapter()

		if e.Kind == enumerate.Dir {
			if uerr := uploadEnsureRemoteDir(adapter, remotePath); uerr != nil {
				checkout.Poison()

				return struct{}{}, uerr
			}

			return struct{}{}, nil
		}

		if uerr := uploadEnsureRemoteParent(adapter, remotePath); uerr != nil {
			checkout.Poison()

			return struct{}{}, uerr
		}

		n, uerr := uploadFile(adapter, e, remotePath, deps)
		metrics.BytesTransferred += n

		if uerr != nil {
			checkout.Poison()

			return struct{}{}, uerr
		}

		return struct{}{}, nil
	})

	if err != nil {
		reportFailure(ctx, deps.Sink, deps.Agg, e.LocalFull, remotePath, err)

		return
	}

	if e.Kind == enumerate.File {
		deps.Agg.MarkFileSucceeded()
	}
}

func uploadEnsureRemoteDir(adapter sftpconn.Capability, remotePath string) error {
	isFile, err := adapter.StatIsFile(remotePath)

	switch {
	case err == nil && isFile:
		return xferrors.Newf(xferrors.KindExistsAsFile, remotePath)
	case err == nil:
		return nil
	case !isNotExist(err):
		return xferrors.Wrap(xferrors.KindOperationFailed, remotePath, err)
	}

	parent := remoteParent(remotePath)

	parentIsFile, perr := adapter.StatIsFile(parent)
	if perr != nil || parentIsFile {
		return xferrors.Newf(xferrors.KindRemoteTargetParentMissing, remotePath)
	}

	if merr := adapter.Mkdir(remotePath, 0o755); merr != nil {
		return xferrors.Wrap(xferrors.KindCreateRemoteDirFailed, remotePath, merr)
	}

	return nil
}

func uploadEnsureRemoteParent(adapter sftpconn.Capability, remotePath string) error {
	parent := remoteParent(remotePath)

	_, err := adapter.StatIsFile(parent)
	if err == nil {
		return nil
	}

	if !isNotExist(err) {
		return xferrors.Wrap(xferrors.KindOperationFailed, parent, err)
	}

	grandparent := remoteParent(parent)

	gpIsFile, gerr := adapter.StatIsFile(grandparent)
	if gerr != nil || gpIsFile {
		return xferrors.Newf(xferrors.KindRemoteTargetParentMissing, parent)
	}

	if merr := adapter.Mkdir(parent, 0o755); merr != nil {
		return xferrors.Wrap(xferrors.KindCreateRemoteDirFailed, parent, merr)
	}

	return nil
}

func uploadFile(adapter sftpconn.Capability, e enumerate.Entry, remotePath string, deps Deps) (uint64, error) {
	local, err := os.Open(e.LocalFull)
	if err != nil {
		return 0, xferrors.Wrap(xferrors.KindOperationFailed, e.LocalFull, err)
	}
	defer local.Close()

	remote, err := adapter.CreateWrite(remotePath)
	if err != nil {
		return 0, xferrors.Wrap(xferrors.KindOperationFailed, remotePath, err)
	}
	defer remote.Close()

	return streamCopy(local, remote, deps.Plan.BufSize, deps.Agg)
}

func streamCopy(src io.Reader, dst io.Writer, bufSize int, agg *progress.Aggregate) (uint64, error) {
	buf := make([]byte, bufSize)
	th := progress.NewThrottler()

	var total uint64

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return total, xferrors.Wrap(xferrors.KindWorkerIO, "", werr)
			}

			total += uint64(n)

			if th.Add(uint64(n)) {
				agg.AddTransferred(th.Flush())
			}
		}

		if rerr == io.EOF {
			agg.AddTransferred(th.Flush())

			return total, nil
		}

		if rerr != nil {
			return total, xferrors.Wrap(xferrors.KindWorkerIO, "", rerr)
		}
	}
}
