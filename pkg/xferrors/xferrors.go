// Package xferrors defines the structured error taxonomy shared by the
// planner and worker pools, along with phase-dependent retriability rules.
package xferrors

import "fmt"

// Kind identifies the category of a transfer error. Unlike a plain wrapped
// error, Kind lets callers decide retriability without string matching.
type Kind int

const (
	// KindInvalidDirection: neither or both endpoints are remote.
	KindInvalidDirection Kind = iota
	// KindUnsupportedGlobUsage: a glob character appeared outside the final
	// path segment, or "**" was used anywhere.
	KindUnsupportedGlobUsage
	// KindAliasNotFound: the alias named in a remote spec is not registered.
	KindAliasNotFound
	// KindRemoteTargetMustBeDir: an existing remote target is not a directory.
	KindRemoteTargetMustBeDir
	// KindRemoteTargetParentMissing: the remote target's parent directory
	// does not exist; ts never creates more than one level.
	KindRemoteTargetParentMissing
	// KindCreateRemoteDirFailed: mkdir on the remote side failed.
	KindCreateRemoteDirFailed
	// KindLocalTargetMustBeDir: an existing local target is not a directory.
	KindLocalTargetMustBeDir
	// KindLocalTargetParentMissing: the local target's parent directory does
	// not exist.
	KindLocalTargetParentMissing
	// KindCreateLocalDirFailed: mkdir on the local side failed.
	KindCreateLocalDirFailed
	// KindGlobNoMatches: a glob source pattern matched nothing.
	KindGlobNoMatches
	// KindWorkerNoSession: a worker could not obtain an SSH session.
	KindWorkerNoSession
	// KindWorkerNoSFTP: a worker could not obtain an SFTP subsystem.
	KindWorkerNoSFTP
	// KindSFTPCreateFailed: sftp.NewClient (or equivalent) failed.
	KindSFTPCreateFailed
	// KindSSHNoAddress: the alias resolved to no usable host:port.
	KindSSHNoAddress
	// KindSSHSessionCreateFailed: ssh.Dial succeeded but session creation
	// failed.
	KindSSHSessionCreateFailed
	// KindSSHHandshakeFailed: the SSH handshake itself failed.
	KindSSHHandshakeFailed
	// KindSSHAuthFailed: authentication was rejected by the remote host.
	KindSSHAuthFailed
	// KindWorkerBuildSessionFailed: the per-worker lazy session/SFTP rebuild
	// failed after a previous one was dropped.
	KindWorkerBuildSessionFailed
	// KindMissingLocalSource: a local source path does not exist.
	KindMissingLocalSource
	// KindDownloadMultipleRemoteSources: a download request named more than
	// one remote source; only one is supported.
	KindDownloadMultipleRemoteSources
	// KindOperationFailed: a catch-all for command-level failures that do
	// not fit a more specific kind.
	KindOperationFailed
	// KindWorkerIO: an I/O error occurred while streaming file contents.
	KindWorkerIO
	// KindExistsAsFile: mkdir found an existing file where a directory was
	// expected.
	KindExistsAsFile
)

var kindNames = map[Kind]string{
	KindInvalidDirection:              "invalid_direction",
	KindUnsupportedGlobUsage:          "unsupported_glob_usage",
	KindAliasNotFound:                 "alias_not_found",
	KindRemoteTargetMustBeDir:         "remote_target_must_be_dir",
	KindRemoteTargetParentMissing:     "remote_target_parent_missing",
	KindCreateRemoteDirFailed:         "create_remote_dir_failed",
	KindLocalTargetMustBeDir:          "local_target_must_be_dir",
	KindLocalTargetParentMissing:      "local_target_parent_missing",
	KindCreateLocalDirFailed:          "create_local_dir_failed",
	KindGlobNoMatches:                 "glob_no_matches",
	KindWorkerNoSession:               "worker_no_session",
	KindWorkerNoSFTP:                  "worker_no_sftp",
	KindSFTPCreateFailed:              "sftp_create_failed",
	KindSSHNoAddress:                  "ssh_no_address",
	KindSSHSessionCreateFailed:        "ssh_session_create_failed",
	KindSSHHandshakeFailed:            "ssh_handshake_failed",
	KindSSHAuthFailed:                 "ssh_auth_failed",
	KindWorkerBuildSessionFailed:      "worker_build_session_failed",
	KindMissingLocalSource:            "missing_local_source",
	KindDownloadMultipleRemoteSources: "download_multiple_remote_sources",
	KindOperationFailed:               "operation_failed",
	KindWorkerIO:                      "worker_io",
	KindExistsAsFile:                  "exists_as_file",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}

	return "unknown"
}

// Error is the structured error type produced by the planner and worker
// pools. Subject carries the path, alias, or address the error concerns;
// Cause carries the underlying error, if any.
type Error struct {
	Kind    Kind
	Subject string
	Cause   error
}

// New builds an Error with no subject or cause.
func New(kind Kind) *Error {
	return &Error{Kind: kind}
}

// Newf builds an Error carrying a subject.
func Newf(kind Kind, subject string) *Error {
	return &Error{Kind: kind, Subject: subject}
}

// Wrap builds an Error carrying a subject and an underlying cause.
func Wrap(kind Kind, subject string, cause error) *Error {
	return &Error{Kind: kind, Subject: subject, Cause: cause}
}

func (e *Error) Error() string {
	switch {
	case e.Subject == "" && e.Cause == nil:
		return e.Kind.String()
	case e.Cause == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Subject)
	case e.Subject == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Subject, e.Cause)
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetriablePreTransfer reports whether kind is worth retrying when it
// occurs before any bytes have moved (session build, mkdir checks, glob
// validation). Transient connection failures are retriable; validation,
// authorization, and usage errors are not.
func (k Kind) IsRetriablePreTransfer() bool {
	switch k {
	case KindSSHSessionCreateFailed,
		KindSSHHandshakeFailed,
		KindWorkerBuildSessionFailed,
		KindSFTPCreateFailed,
		KindWorkerNoSession,
		KindWorkerNoSFTP:
		return true
	default:
		return false
	}
}

// IsRetriablePreTransfer reports the same as Kind.IsRetriablePreTransfer for
// the error's kind.
func (e *Error) IsRetriablePreTransfer() bool {
	return e.Kind.IsRetriablePreTransfer()
}

// IsRetriableDuringTransfer reports whether kind is worth retrying once an
// active data transfer (read/write/rename) has started. IO and transient
// SFTP failures are retriable; logical and validation failures are not.
func (k Kind) IsRetriableDuringTransfer() bool {
	switch k {
	case KindWorkerIO,
		KindSFTPCreateFailed,
		KindWorkerNoSFTP,
		KindWorkerNoSession:
		return true
	default:
		return false
	}
}

// IsRetriableDuringTransfer reports the same as Kind.IsRetriableDuringTransfer
// for the error's kind.
func (e *Error) IsRetriableDuringTransfer() bool {
	return e.Kind.IsRetriableDuringTransfer()
}
