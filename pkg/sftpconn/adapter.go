package sftpconn

import (
	"io"
	"os"

	"github.com/pkg/sftp"
)

// Capability abstracts the SFTP operations used by the worker pools, so
// tests can supply an in-memory fake instead of a live SFTP subsystem.
type Capability interface {
	StatIsFile(path string) (bool, error)
	Mkdir(path string, mode os.FileMode) error
	OpenRead(path string) (io.ReadCloser, error)
	CreateWrite(path string) (io.WriteCloser, error)
}

// ClientAdapter wraps a *sftp.Client to satisfy Capability.
type ClientAdapter struct {
	client *sftp.Client
}

// NewClientAdapter wraps client as a Capability.
func NewClientAdapter(client *sftp.Client) *ClientAdapter {
	return &ClientAdapter{client: client}
}

func (a *ClientAdapter) StatIsFile(path string) (bool, error) {
	info, err := a.client.Stat(path)
	if err != nil {
		return false, err
	}

	return !info.IsDir(), nil
}

func (a *ClientAdapter) Mkdir(path string, mode os.FileMode) error {
	if err := a.client.Mkdir(path); err != nil {
		return err
	}

	return a.client.Chmod(path, mode)
}

func (a *ClientAdapter) OpenRead(path string) (io.ReadCloser, error) {
	return a.client.Open(path)
}

func (a *ClientAdapter) CreateWrite(path string) (io.WriteCloser, error) {
	return a.client.Create(path)
}
