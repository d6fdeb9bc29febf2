package workerpool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nitronplus/ts/internal/enumerate"
	"github.com/nitronplus/ts/pkg/retry"
	"github.com/nitronplus/ts/pkg/sftpconn"
	"github.com/nitronplus/ts/pkg/xferrors"
)

const renameRetryAttempts = 2

// RunDownload drains entries, placing each into deps.Plan.TargetLocal (or a
// subdirectory of it, when the target is directory-final). It returns once
// entries is closed and every worker has finished, or ctx is cancelled, and
// reports each worker's lifetime counters.
func RunDownload(ctx context.Context, entries <-chan enumerate.Entry, deps Deps) []WorkerMetrics {
	return run(ctx, deps, entries, func(ctx context.Context, workerID int, e enumerate.Entry, session Session, metrics *WorkerMetrics) {
		downloadOne(ctx, e, deps, session, metrics)
	})
}

func downloadLocalPath(target string, targetIsDir bool, rel string) string {
	if targetIsDir {
		return filepath.Join(target, filepath.FromSlash(rel))
	}

	return target
}

// downloadOne mirrors uploadOne's shape: the whole per-entry loop, including
// local directory/parent creation, runs inside retry(max_retries).
func downloadOne(ctx context.Context, e enumerate.Entry, deps Deps, session Session, metrics *WorkerMetrics) {
	localPath := downloadLocalPath(deps.Plan.TargetLocal, deps.Plan.TargetIsDirFinal, e.Rel)

	_, err := retry.Do(ctx, retryAttempts(deps.Plan), func(attempt int) (struct{}, error) {
		checkout, gerr := session.Acquire(ctx)
		if gerr != nil {
			session.PoisonSession()

			return struct{}{}, xferrors.Wrap(xferrors.KindWorkerNoSFTP, e.RemoteFull, gerr)
		}
		defer checkout.Release()

		if e.Kind == enumerate.Dir {
			if derr := downloadEnsureLocalDir(localPath); derr != nil {
				return struct{}{}, derr
			}

			return struct{}{}, nil
		}

		if derr := downloadEnsureLocalParent(localPath); derr != nil {
			return struct{}{}, derr
		}

		n, derr := downloadFile(checkout.Adapter(), e, localPath, deps)
		metrics.BytesTransferred += n

		if derr != nil {
			checkout.Poison()

			return struct{}{}, derr
		}

		return struct{}{}, nil
	})

	if err != nil {
		reportFailure(ctx, deps.Sink, deps.Agg, e.RemoteFull, localPath, err)

		return
	}

	if e.Kind == enumerate.File {
		deps.Agg.MarkFileSucceeded()
	}
}

func downloadEnsureLocalDir(localPath string) error {
	info, err := os.Stat(localPath)

	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		return xferrors.Newf(xferrors.KindExistsAsFile, localPath)
	case !os.IsNotExist(err):
		return xferrors.Wrap(xferrors.KindOperationFailed, localPath, err)
	}

	parent := filepath.Dir(localPath)

	parentInfo, perr := os.Stat(parent)
	if perr != nil || !parentInfo.IsDir() {
		return xferrors.Newf(xferrors.KindLocalTargetParentMissing, localPath)
	}

	if merr := os.Mkdir(localPath, 0o755); merr != nil {
		return xferrors.Wrap(xferrors.KindCreateLocalDirFailed, localPath, merr)
	}

	return nil
}

func downloadEnsureLocalParent(localPath string) error {
	parent := filepath.Dir(localPath)

	if info, err := os.Stat(parent); err == nil && info.IsDir() {
		return nil
	}

	grandparent := filepath.Dir(parent)

	gpInfo, gerr := os.Stat(grandparent)
	if gerr != nil || !gpInfo.IsDir() {
		return xferrors.Newf(xferrors.KindLocalTargetParentMissing, parent)
	}

	if merr := os.Mkdir(parent, 0o755); merr != nil {
		return xferrors.Wrap(xferrors.KindCreateLocalDirFailed, parent, merr)
	}

	return nil
}

func downloadFile(adapter sftpconn.Capability, e enumerate.Entry, localPath string, deps Deps) (uint64, error) {
	remote, err := adapter.OpenRead(e.RemoteFull)
	if err != nil {
		return 0, xferrors.Wrap(xferrors.KindOperationFailed, e.RemoteFull, err)
	}
	defer remote.Close()

	tmpPath := partPath(localPath)

	local, err := os.Create(tmpPath)
	if err != nil {
		return 0, xferrors.Wrap(xferrors.KindOperationFailed, tmpPath, err)
	}

	n, cerr := streamCopy(remote, local, deps.Plan.BufSize, deps.Agg)
	if cerr != nil {
		local.Close()
		os.Remove(tmpPath)

		return n, cerr
	}

	if serr := local.Sync(); serr != nil {
		local.Close()
		os.Remove(tmpPath)

		return n, xferrors.Wrap(xferrors.KindWorkerIO, tmpPath, serr)
	}

	if cerr := local.Close(); cerr != nil {
		os.Remove(tmpPath)

		return n, xferrors.Wrap(xferrors.KindWorkerIO, tmpPath, cerr)
	}

	if rerr := renameWithRetry(tmpPath, localPath); rerr != nil {
		os.Remove(tmpPath)

		return n, rerr
	}

	return n, nil
}

func partPath(localPath string) string {
	dir := filepath.Dir(localPath)
	name := filepath.Base(localPath)

	return filepath.Join(dir, fmt.Sprintf("%s.hp.part.%d", name, os.Getpid()))
}

func renameWithRetry(tmpPath, localPath string) error {
	var lastErr error

	for attempt := 0; attempt <= renameRetryAttempts; attempt++ {
		err := os.Rename(tmpPath, localPath)
		if err == nil {
			return nil
		}

		lastErr = err

		if attempt < renameRetryAttempts && isRenameRetriable(err) {
			os.Remove(localPath)
			time.Sleep(50 * time.Millisecond)

			continue
		}

		break
	}

	return xferrors.Wrap(xferrors.KindWorkerIO, localPath, lastErr)
}

func isRenameRetriable(err error) bool {
	return errors.Is(err, os.ErrExist) || errors.Is(err, os.ErrPermission)
}
