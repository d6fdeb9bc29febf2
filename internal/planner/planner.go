// Package planner classifies a transfer direction, validates target shape,
// and produces an immutable TransferPlan consumed by the worker pools.
package planner

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/nitronplus/ts/pkg/pathutil"
	"github.com/nitronplus/ts/pkg/sftpconn"
	"github.com/nitronplus/ts/pkg/xferrors"
)

// ServerRecord is the connection information an alias resolves to. It is
// owned by the external server-alias store; the planner only reads it.
type ServerRecord struct {
	User string
	Host string
	Port int
}

// AliasResolver is the narrow interface the planner consumes from the
// external server-alias store.
type AliasResolver interface {
	Resolve(alias string) (ServerRecord, bool)
}

// Direction is the classified transfer direction.
type Direction int

const (
	// Upload transfers local sources to a remote target.
	Upload Direction = iota
	// Download transfers a single remote source to a local target.
	Download
)

func (d Direction) String() string {
	if d == Download {
		return "download"
	}

	return "upload"
}

const (
	minWorkers     = 1
	maxWorkers     = 32
	minBufMiB      = 1
	maxBufMiB      = 8
	bufUnit        = 1 << 20
	defaultRetries = 3
)

// Plan is the validated, immutable output of Build.
type Plan struct {
	Direction          Direction
	Server             ServerRecord
	Alias              string
	ExpandedRemoteBase string
	TargetIsDirFinal   bool
	TargetLocal        string
	Sources            []string
	Workers            int
	BufSize            int
	MaxRetries         int
	// RemoteSourceEndsSlash records whether the download source ended in
	// "/", for enumerate.Remote's explicitDirSuffix parameter.
	RemoteSourceEndsSlash bool
}

// Request carries the user-facing inputs to Build. Zero-valued optional
// fields take their documented defaults.
type Request struct {
	Sources     []string
	Target      string
	Concurrency int // 0 means "use default"
	Retry       int // 0 means "use default" (3)
	BufMiB      int // 0 means "use default" (1)
}

// Endpoint describes one side of a transfer once remoteness has been
// classified.
type Endpoint struct {
	Remote bool
	Alias  string
	Path   string
}

// classifyEndpoint splits "alias:/path" into its alias and path, or
// reports a bare local path.
func classifyEndpoint(raw string) Endpoint {
	if !pathutil.IsRemote(raw) {
		return Endpoint{Remote: false, Path: raw}
	}

	idx := strings.IndexByte(raw, ':')

	return Endpoint{Remote: true, Alias: raw[:idx], Path: raw[idx+1:]}
}

// SessionBuilder builds and tilde-expands a remote session exactly once per
// invocation, so Build can validate remote target shape.
type SessionBuilder interface {
	Connect(ctx context.Context, host string, port int, user string) (*sftpconn.Conn, error)
	ExpandTilde(conn *sftpconn.Conn, path string) string
	// StatRemote reports whether path exists and, if so, whether it is a
	// directory. exists is false with a nil error when the path is simply
	// absent.
	StatRemote(conn *sftpconn.Conn, path string) (exists, isDir bool, err error)
}

// Build validates req against resolver and sb, returning a Plan ready for
// the worker pools, or a classified *xferrors.Error.
func Build(ctx context.Context, req Request, resolver AliasResolver, sb SessionBuilder) (*Plan, *sftpconn.Conn, error) {
	if len(req.Sources) == 0 {
		return nil, nil, xferrors.New(xferrors.KindMissingLocalSource)
	}

	targetEP := classifyEndpoint(req.Target)
	firstSrcEP := classifyEndpoint(req.Sources[0])

	if targetEP.Remote == firstSrcEP.Remote {
		return nil, nil, xferrors.New(xferrors.KindInvalidDirection)
	}

	for _, s := range req.Sources {
		if pathutil.IsDisallowedGlob(s) {
			return nil, nil, xferrors.Newf(xferrors.KindUnsupportedGlobUsage, s)
		}
	}

	if pathutil.IsDisallowedGlob(req.Target) {
		return nil, nil, xferrors.Newf(xferrors.KindUnsupportedGlobUsage, req.Target)
	}

	direction := Upload
	remoteEP := targetEP
	alias := targetEP.Alias

	if firstSrcEP.Remote {
		direction = Download
		remoteEP = firstSrcEP
		alias = firstSrcEP.Alias

		if len(req.Sources) != 1 {
			return nil, nil, xferrors.Newf(xferrors.KindDownloadMultipleRemoteSources, req.Target)
		}
	}

	server, ok := resolver.Resolve(alias)
	if !ok {
		return nil, nil, xferrors.Newf(xferrors.KindAliasNotFound, alias)
	}

	conn, err := sb.Connect(ctx, server.Host, server.Port, server.User)
	if err != nil {
		return nil, nil, err
	}

	expandedBase := sb.ExpandTilde(conn, pathutil.Normalize(remoteEP.Path, false))

	plan := &Plan{
		Direction:  direction,
		Server:     server,
		Alias:      alias,
		Sources:    req.Sources,
		Workers:    clamp(req.Concurrency, minWorkers, maxWorkers, 4),
		BufSize:    clamp(req.BufMiB, minBufMiB, maxBufMiB, 1) * bufUnit,
		MaxRetries: defaultRetriesOr(req.Retry),
	}

	if direction == Upload {
		if err := validateUploadTarget(plan, sb, conn, expandedBase, req.Sources); err != nil {
			return nil, conn, err
		}
	} else {
		if err := validateDownloadTarget(plan, req.Target, remoteEP.Path); err != nil {
			return nil, conn, err
		}
	}

	plan.ExpandedRemoteBase = expandedBase

	return plan, conn, nil
}

func defaultRetriesOr(retry int) int {
	if retry <= 0 {
		return defaultRetries
	}

	return retry
}

func clamp(v, lo, hi, def int) int {
	if v <= 0 {
		v = def
	}

	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

// validateUploadTarget implements spec §4.6 step 5 (upload branch): an
// existing remote target must be a directory unless exactly one local
// source is a single file mapping onto a non-directory remote basename. An
// absent remote target is accepted when its parent exists; it is not created
// here, and ts never creates more than one level of remote directory.
func validateUploadTarget(plan *Plan, sb SessionBuilder, conn *sftpconn.Conn, expandedBase string, sources []string) error {
	multiSource := len(sources) > 1

	singleIsDirOrGlob := false
	if !multiSource {
		info, err := os.Stat(sources[0])
		if err == nil && info.IsDir() {
			singleIsDirOrGlob = true
		}

		if pathutil.HasGlob(pathutil.Normalize(sources[0], false)) {
			singleIsDirOrGlob = true
		}

		if strings.HasSuffix(pathutil.Normalize(sources[0], true), "/") {
			singleIsDirOrGlob = true
		}
	}

	needsDirTarget := multiSource || singleIsDirOrGlob
	plan.TargetIsDirFinal = needsDirTarget

	exists, isDir, err := sb.StatRemote(conn, expandedBase)
	if err != nil {
		return xferrors.Wrap(xferrors.KindOperationFailed, expandedBase, err)
	}

	if exists {
		if needsDirTarget && !isDir {
			return xferrors.Newf(xferrors.KindRemoteTargetMustBeDir, expandedBase)
		}

		if !needsDirTarget && isDir {
			plan.TargetIsDirFinal = true
		}

		return nil
	}

	parent := path.Dir(expandedBase)

	parentExists, parentIsDir, err := sb.StatRemote(conn, parent)
	if err != nil {
		return xferrors.Wrap(xferrors.KindOperationFailed, parent, err)
	}

	if !parentExists || !parentIsDir {
		return xferrors.Newf(xferrors.KindRemoteTargetParentMissing, expandedBase)
	}

	return nil
}

// validateDownloadTarget implements spec §4.6 step 5 (download branch). The
// remote source's own shape (trailing slash, or a glob that can match more
// than one name) is a second trigger for directory-mode, mirroring the
// upload branch's symmetric treatment of its local source. Since the
// source's directory-vs-file nature cannot be known for certain without a
// remote stat (deferred to enumeration in this streaming design), a
// single-file download that turns out to enumerate multiple entries is
// promoted to directory mode by the worker pool on the first Dir entry.
func validateDownloadTarget(plan *Plan, target, remoteSourcePath string) error {
	remoteNorm := pathutil.Normalize(remoteSourcePath, true)
	remoteEndsSlash := strings.HasSuffix(remoteNorm, "/")
	srcShapedAsDir := remoteEndsSlash || pathutil.HasGlob(remoteNorm)

	plan.RemoteSourceEndsSlash = remoteEndsSlash

	endsSlash := strings.HasSuffix(filepath.ToSlash(target), "/")

	info, statErr := os.Stat(target)

	switch {
	case statErr == nil && info.IsDir():
		plan.TargetIsDirFinal = true
		plan.TargetLocal = target
	case statErr == nil && !info.IsDir():
		if endsSlash || srcShapedAsDir {
			return xferrors.Newf(xferrors.KindLocalTargetMustBeDir, target)
		}

		plan.TargetIsDirFinal = false
		plan.TargetLocal = target
	default:
		parent := filepath.Dir(target)

		parentInfo, err := os.Stat(parent)
		if err != nil || !parentInfo.IsDir() {
			return xferrors.Newf(xferrors.KindLocalTargetParentMissing, target)
		}

		plan.TargetIsDirFinal = endsSlash || srcShapedAsDir
		plan.TargetLocal = target
	}

	return nil
}
