package sftpconn_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"
	"golang.org/x/crypto/ssh"

	"github.com/nitronplus/ts/pkg/sftpconn"
)

// writeTestKey drops an OpenSSH-format ed25519 private key under
// <homeDir>/.ssh/id_ed25519 so defaultKeyAuths finds a usable key without
// touching the caller's real SSH configuration.
func writeTestKey(t *testing.T, homeDir string) {
	t.Helper()

	g := NewWithT(t)

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	g.Expect(err).NotTo(HaveOccurred())

	block, err := ssh.MarshalPrivateKey(priv, "")
	g.Expect(err).NotTo(HaveOccurred())

	sshDir := filepath.Join(homeDir, ".ssh")
	g.Expect(os.MkdirAll(sshDir, 0o700)).To(Succeed())
	g.Expect(os.WriteFile(filepath.Join(sshDir, "id_ed25519"), pem.EncodeToMemory(block), 0o600)).To(Succeed())
}

// funcDialer adapts a plain function to sftpconn.SSHDialer, standing in for
// the real network dialer in tests.
type funcDialer func(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error)

func (f funcDialer) Dial(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	return f(network, addr, config)
}

func TestConnectReturnsSSHHandshakeErrorOnDialFailure(t *testing.T) {
	g := NewWithT(t)

	dialErr := errors.New("dial tcp 192.0.2.1:22: i/o timeout")
	dialer := funcDialer(func(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
		g.Expect(network).To(Equal("tcp"))
		g.Expect(addr).To(Equal("192.0.2.1:22"))
		g.Expect(config.User).To(Equal("user"))

		return nil, dialErr
	})

	cleanup := sftpconn.SetSSHDialerForTesting(dialer)
	t.Cleanup(cleanup)

	t.Setenv("SSH_AUTH_SOCK", "")
	t.Setenv("HOME", t.TempDir())
	writeTestKey(t, os.Getenv("HOME"))

	conn, err := sftpconn.Connect(context.Background(), "192.0.2.1", 22, "user")

	g.Expect(conn).To(BeNil())
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("ssh_handshake_failed"))
}

func TestExpandTildeWithoutPrefixIsUnchanged(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	g.Expect(sftpconn.ExpandTilde(nil, "/var/log")).To(Equal("/var/log"))
}
