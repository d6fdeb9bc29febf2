// Package config parses the ts command-line flag set into a transfer
// request.
package config

import (
	"fmt"
	"os"

	"github.com/alexflint/go-arg"
)

// Config holds the parsed command-line flags for the ts binary.
type Config struct {
	Sources        []string `arg:"positional,required" help:"one or more source paths (local, or alias:/path for the remote side)"`
	Target         string   `arg:"positional,required" help:"destination path (local, or alias:/path for the remote side)"`
	Concurrency    int      `arg:"-c,--concurrency" help:"number of worker goroutines (0 = default)"`
	Retry          int      `arg:"--retry" help:"max attempts per entry (0 = default)"`
	RetryBackoffMS int64    `arg:"--retry-backoff-ms" help:"base linear retry backoff in milliseconds (0 = default)"`
	BufMiB         int      `arg:"--buf-mib" help:"per-worker copy buffer size in MiB (0 = default)"`
	Verbose        bool     `arg:"-v,--verbose" help:"enable debug-level logging"`
	JSON           bool     `arg:"--json" help:"emit logs as JSON instead of human-readable text"`
	OutputFailures string   `arg:"--output-failures" help:"append JSON-line failure records to this file"`
}

// Description returns the program description for go-arg.
func (Config) Description() string {
	return "ts copies files to or from a remote host over SSH/SFTP with multiple concurrent workers."
}

// Version returns the version string for go-arg.
func (Config) Version() string {
	return "ts 0.1.0"
}

// Parse parses os.Args into a Config, exiting the process on --help/--version
// or a usage error, matching go-arg's standard MustParse behavior.
func Parse() *Config {
	cfg := &Config{}
	arg.MustParse(cfg)

	return cfg
}

// Validate checks field-level constraints go-arg's tags cannot express.
func (c Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("config: at least one source path is required")
	}

	if c.Target == "" {
		return fmt.Errorf("config: a target path is required")
	}

	return nil
}

// OpenOutputFailures opens the configured failure file for append, or
// returns (nil, nil) if none was requested.
func (c Config) OpenOutputFailures() (*os.File, error) {
	if c.OutputFailures == "" {
		return nil, nil
	}

	return os.OpenFile(c.OutputFailures, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
