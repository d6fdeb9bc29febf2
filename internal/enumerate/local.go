package enumerate

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/nitronplus/ts/pkg/pathutil"
	"github.com/nitronplus/ts/pkg/xferrors"
)

// Local expands local source paths into a stream of entries, pushed to push
// as they're discovered so a concurrent worker pool can start draining
// before enumeration finishes. It returns the total byte count of every
// File entry pushed.
func Local(sources []string, push func(Entry) error) (uint64, error) {
	var total uint64

	for _, src := range sources {
		norm := pathutil.Normalize(src, false)
		hasGlob := pathutil.HasGlob(norm)
		endsSlash := strings.HasSuffix(pathutil.Normalize(src, true), "/")

		switch {
		case hasGlob:
			n, err := localGlob(src, norm, push)
			if err != nil {
				return total, err
			}

			total += n
		case endsSlash:
			info, err := os.Stat(norm)
			if err != nil || !info.IsDir() {
				return total, xferrors.Newf(xferrors.KindMissingLocalSource, src)
			}

			n, err := localWalkDir(norm, push)
			if err != nil {
				return total, err
			}

			total += n
		default:
			info, err := os.Stat(norm)
			if err != nil {
				return total, xferrors.Newf(xferrors.KindMissingLocalSource, src)
			}

			if info.IsDir() {
				n, err := localWalkDir(norm, push)
				if err != nil {
					return total, err
				}

				total += n

				continue
			}

			size := uint64(info.Size())
			if err := push(Entry{
				LocalFull: norm,
				Rel:       filepath.Base(norm),
				Size:      sizePtr(size),
				Kind:      File,
			}); err != nil {
				return total, err
			}

			total += size
		}
	}

	return total, nil
}

func localGlob(original, norm string, push func(Entry) error) (uint64, error) {
	parent := filepath.Dir(norm)
	pattern := filepath.Base(norm)

	entries, err := os.ReadDir(parent)
	if err != nil {
		return 0, xferrors.Wrap(xferrors.KindMissingLocalSource, original, err)
	}

	var (
		total   uint64
		matched int
	)

	for _, e := range entries {
		if !pathutil.MatchSegment(pattern, e.Name()) {
			continue
		}

		matched++

		full := filepath.Join(parent, e.Name())

		info, err := os.Stat(full)
		if err != nil {
			return total, xferrors.Wrap(xferrors.KindOperationFailed, full, err)
		}

		if info.IsDir() {
			if err := push(Entry{LocalFull: full, Rel: e.Name(), Kind: Dir}); err != nil {
				return total, err
			}

			continue
		}

		size := uint64(info.Size())
		if err := push(Entry{LocalFull: full, Rel: e.Name(), Size: sizePtr(size), Kind: File}); err != nil {
			return total, err
		}

		total += size
	}

	if matched == 0 {
		return total, xferrors.Newf(xferrors.KindGlobNoMatches, original)
	}

	return total, nil
}

func localWalkDir(root string, push func(Entry) error) (uint64, error) {
	var total uint64

	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return xferrors.Wrap(xferrors.KindOperationFailed, p, err)
		}

		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return xferrors.Wrap(xferrors.KindOperationFailed, p, err)
		}

		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			return push(Entry{LocalFull: p, Rel: rel, Kind: Dir})
		}

		size := uint64(info.Size())
		if err := push(Entry{LocalFull: p, Rel: rel, Size: sizePtr(size), Kind: File}); err != nil {
			return err
		}

		total += size

		return nil
	})
	if err != nil {
		return total, err
	}

	return total, nil
}
