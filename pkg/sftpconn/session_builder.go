package sftpconn

import (
	"context"
	"os"
)

// SessionBuilder implements planner.SessionBuilder against a live SSH/SFTP
// stack, so it's declared here rather than in internal/planner to avoid that
// package importing golang.org/x/crypto/ssh directly.
type SessionBuilder struct{}

// Connect dials host:port as user and opens an SFTP subsystem.
func (SessionBuilder) Connect(ctx context.Context, host string, port int, user string) (*Conn, error) {
	return Connect(ctx, host, port, user)
}

// ExpandTilde resolves a leading "~" in path against conn's remote home.
func (SessionBuilder) ExpandTilde(conn *Conn, path string) string {
	return ExpandTilde(conn.SSH, path)
}

// StatRemote reports whether path exists on conn's remote side and, if so,
// whether it is a directory.
func (SessionBuilder) StatRemote(conn *Conn, path string) (exists, isDir bool, err error) {
	info, statErr := conn.SFTP.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return false, false, nil
		}

		return false, false, statErr
	}

	return true, info.IsDir(), nil
}
