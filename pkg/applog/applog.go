// Package applog wires a single process-wide logger used by the engine and
// its worker pools, in the remote-SSH-client idiom of logging connection and
// transfer lifecycle events through a structured leveled logger rather than
// with fmt.Printf.
package applog

import (
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
)

// New builds the process logger. verbose lowers the level to Debug; json
// selects hclog's structured JSON sink instead of its human-readable one.
func New(verbose, json bool) hclog.Logger {
	level := hclog.Info
	if verbose {
		level = hclog.Debug
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       "ts",
		Level:      level,
		Output:     io.Writer(os.Stderr),
		JSONFormat: json,
	})
}

// Noop returns a logger that discards everything, for tests that don't care
// about log output but need to satisfy a component's constructor.
func Noop() hclog.Logger {
	return hclog.NewNullLogger()
}
