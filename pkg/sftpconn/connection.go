// Package sftpconn builds SSH/SFTP sessions for transfer workers. Each
// worker owns its session independently (see WorkerSession) and pools its
// own SFTP channel for lazy rebuild on failure; no session or channel is
// ever shared between workers.
package sftpconn

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/nitronplus/ts/pkg/xferrors"
)

// DialTimeout is the TCP connect timeout applied to every connection
// attempt; the SSH handshake that follows is not bounded by it.
const DialTimeout = 10 * time.Second

// SSHClientCloser is the subset of *ssh.Client used by Conn, separated out
// so tests can inject a mock.
type SSHClientCloser interface {
	Close() error
}

// SSHDialer establishes an SSH connection. Production code uses the real
// golang.org/x/crypto/ssh.Dial; tests inject a fake that never touches the
// network.
type SSHDialer interface {
	Dial(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error)
}

var defaultSSHDialer SSHDialer = realSSHDialer{}

type realSSHDialer struct{}

func (realSSHDialer) Dial(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	return ssh.Dial(network, addr, config)
}

// SetSSHDialerForTesting swaps in a fake dialer and returns a function that
// restores the original. Only meant for use in tests.
func SetSSHDialerForTesting(dialer SSHDialer) func() {
	old := defaultSSHDialer
	defaultSSHDialer = dialer

	return func() { defaultSSHDialer = old }
}

// Conn bundles a live SSH client with its SFTP subsystem.
type Conn struct {
	SSH  *ssh.Client
	SFTP *sftp.Client
}

// Close tears down the SFTP subsystem and the SSH connection, returning the
// first error encountered.
func (c *Conn) Close() error {
	var firstErr error

	if c.SFTP != nil {
		if err := c.SFTP.Close(); err != nil {
			firstErr = err
		}
	}

	if c.SSH != nil {
		if err := c.SSH.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Connect dials host:port over SSH as user, authenticating via the SSH
// agent (if available) and the default key files in ~/.ssh, then opens an
// SFTP subsystem with concurrent writes enabled.
func Connect(ctx context.Context, host string, port int, user string) (*Conn, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	authMethods := sshAuthMethods()
	if len(authMethods) == 0 {
		return nil, xferrors.Newf(xferrors.KindSSHAuthFailed, addr)
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         DialTimeout,
	}

	type dialResult struct {
		client *ssh.Client
		err    error
	}

	resultCh := make(chan dialResult, 1)

	go func() {
		client, err := defaultSSHDialer.Dial("tcp", addr, config)
		resultCh <- dialResult{client, err}
	}()

	var sshClient *ssh.Client

	select {
	case <-ctx.Done():
		return nil, xferrors.Wrap(xferrors.KindSSHSessionCreateFailed, addr, ctx.Err())
	case res := <-resultCh:
		if res.err != nil {
			if strings.Contains(res.err.Error(), "unable to authenticate") {
				return nil, xferrors.Wrap(xferrors.KindSSHAuthFailed, addr, res.err)
			}

			return nil, xferrors.Wrap(xferrors.KindSSHHandshakeFailed, addr, res.err)
		}

		sshClient = res.client
	}

	sftpClient, err := sftp.NewClient(sshClient, sftp.UseConcurrentWrites(true))
	if err != nil {
		_ = sshClient.Close()

		return nil, xferrors.Wrap(xferrors.KindSFTPCreateFailed, addr, err)
	}

	return &Conn{SSH: sshClient, SFTP: sftpClient}, nil
}

// NewSFTPPool builds a Pool of *sftp.Client channels multiplexed over conn's
// SSH session. Each channel is opened with concurrent writes enabled, same
// as the connection's primary SFTP subsystem.
func NewSFTPPool(sshClient *ssh.Client, maxChannels int) *Pool[*sftp.Client] {
	factory := func() (*sftp.Client, error) {
		return sftp.NewClient(sshClient, sftp.UseConcurrentWrites(true))
	}

	toCapability := func(c *sftp.Client) Capability {
		return NewClientAdapter(c)
	}

	return NewPool(factory, toCapability, maxChannels)
}

// ExpandTilde resolves a leading "~" in path to the session's remote home
// directory, determined by printing "$HOME" in a fresh SSH session. If the
// lookup fails, the input path is returned unchanged.
func ExpandTilde(sshClient *ssh.Client, path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	home, err := remoteHome(sshClient)
	if err != nil || home == "" {
		return path
	}

	tail := strings.TrimPrefix(path, "~")
	tail = strings.TrimPrefix(tail, "/")

	if tail == "" {
		return home
	}

	return strings.TrimSuffix(home, "/") + "/" + tail
}

func remoteHome(sshClient *ssh.Client) (string, error) {
	session, err := sshClient.NewSession()
	if err != nil {
		return "", err
	}
	defer session.Close()

	out, err := session.Output(`printf '%s' "$HOME" || echo '~'`)
	if err != nil {
		return "", err
	}

	lines := strings.SplitN(string(out), "\n", 2)

	return strings.TrimSpace(lines[0]), nil
}

func sshAuthMethods() []ssh.AuthMethod {
	var methods []ssh.AuthMethod

	if a := sshAgentAuth(); a != nil {
		methods = append(methods, a)
	}

	if keys := defaultKeyAuths(); len(keys) > 0 {
		methods = append(methods, keys...)
	}

	return methods
}

func defaultKeyAuths() []ssh.AuthMethod {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	sshDir := filepath.Join(home, ".ssh")
	keyFiles := []string{
		filepath.Join(sshDir, "id_ed25519"),
		filepath.Join(sshDir, "id_rsa"),
		filepath.Join(sshDir, "id_ecdsa"),
	}

	var methods []ssh.AuthMethod

	for _, keyPath := range keyFiles {
		if _, err := os.Stat(keyPath); err != nil {
			continue
		}

		keyData, err := os.ReadFile(keyPath)
		if err != nil {
			continue
		}

		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			continue
		}

		methods = append(methods, ssh.PublicKeys(signer))
	}

	return methods
}

func sshAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil
	}

	client := agent.NewClient(conn)

	signers, err := client.Signers()
	if err != nil || len(signers) == 0 {
		return nil
	}

	return ssh.PublicKeysCallback(client.Signers)
}
