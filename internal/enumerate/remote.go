package enumerate

import (
	"os"
	"path"
	"strings"

	"github.com/kr/fs"

	"github.com/nitronplus/ts/pkg/pathutil"
	"github.com/nitronplus/ts/pkg/xferrors"
)

// RemoteFS is the subset of *sftp.Client enumeration needs: stat, directory
// listing, and a kr/fs-style progressive walker. *sftp.Client satisfies this
// directly; tests supply a fake.
type RemoteFS interface {
	Stat(p string) (os.FileInfo, error)
	ReadDir(p string) ([]os.FileInfo, error)
	Walk(root string) *fs.Walker
}

// Remote expands a single remote source into a stream of entries. root must
// already have had "~" expanded by the caller. explicitDirSuffix records
// whether the original source ended in "/"; hasGlob records whether root's
// basename carries a wildcard.
func Remote(client RemoteFS, root string, hasGlob, explicitDirSuffix bool, push func(Entry) error) error {
	switch {
	case hasGlob:
		return remoteGlob(client, root, push)
	case explicitDirSuffix:
		info, err := client.Stat(root)
		if err != nil {
			return xferrors.Wrap(xferrors.KindOperationFailed, root, err)
		}

		if !info.IsDir() {
			return xferrors.Newf(xferrors.KindRemoteTargetMustBeDir, root)
		}

		return remoteWalk(client, root, push)
	default:
		info, err := client.Stat(root)
		if err != nil {
			return xferrors.Wrap(xferrors.KindOperationFailed, root, err)
		}

		if !info.IsDir() {
			size := uint64(info.Size())

			return push(Entry{
				RemoteFull: root,
				Rel:        path.Base(root),
				Size:       sizePtr(size),
				Kind:       File,
			})
		}

		return remoteWalk(client, root, push)
	}
}

func remoteGlob(client RemoteFS, root string, push func(Entry) error) error {
	parent := path.Dir(root)
	pattern := path.Base(root)

	entries, err := client.ReadDir(parent)
	if err != nil {
		return xferrors.Wrap(xferrors.KindOperationFailed, parent, err)
	}

	matched := 0

	for _, e := range entries {
		name := e.Name()
		if name == "." || name == ".." {
			continue
		}

		if !pathutil.MatchSegment(pattern, name) {
			continue
		}

		matched++

		full := strings.TrimSuffix(parent, "/") + "/" + name

		if e.IsDir() {
			if err := push(Entry{RemoteFull: full, Rel: name, Kind: Dir}); err != nil {
				return err
			}

			continue
		}

		size := uint64(e.Size())
		if err := push(Entry{RemoteFull: full, Rel: name, Size: sizePtr(size), Kind: File}); err != nil {
			return err
		}
	}

	if matched == 0 {
		return xferrors.Newf(xferrors.KindGlobNoMatches, root)
	}

	return nil
}

// remoteWalk performs a progressive walk over root using the kr/fs Walker,
// skipping the root itself, exactly mirroring the local filepath.Walk idiom.
func remoteWalk(client RemoteFS, root string, push func(Entry) error) error {
	walker := client.Walk(root)

	for walker.Step() {
		if err := walker.Err(); err != nil {
			return xferrors.Wrap(xferrors.KindOperationFailed, walker.Path(), err)
		}

		full := walker.Path()
		if full == root {
			continue
		}

		rel, err := relativeTo(root, full)
		if err != nil {
			return xferrors.Wrap(xferrors.KindOperationFailed, full, err)
		}

		stat := walker.Stat()

		if stat.IsDir() {
			if err := push(Entry{RemoteFull: full, Rel: rel, Kind: Dir}); err != nil {
				return err
			}

			continue
		}

		size := uint64(stat.Size())
		if err := push(Entry{RemoteFull: full, Rel: rel, Size: sizePtr(size), Kind: File}); err != nil {
			return err
		}
	}

	return nil
}

func relativeTo(root, target string) (string, error) {
	root = path.Clean(root)
	target = path.Clean(target)

	if root != "/" {
		root += "/"
	}

	if !strings.HasPrefix(target, root) {
		return "", xferrors.Newf(xferrors.KindOperationFailed, target)
	}

	return strings.TrimPrefix(target, root), nil
}
