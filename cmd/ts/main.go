// Package main is the entry point for the ts command-line transfer tool.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/nitronplus/ts/internal/aliasstore"
	"github.com/nitronplus/ts/internal/config"
	"github.com/nitronplus/ts/internal/failures"
	"github.com/nitronplus/ts/internal/transfer"
	"github.com/nitronplus/ts/pkg/applog"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		return 1
	}

	log := applog.New(cfg.Verbose, cfg.JSON)

	failureFile, err := cfg.OpenOutputFailures()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ts: opening failure file: %v\n", err)

		return 1
	}

	var outputFailures io.Writer

	if failureFile != nil {
		defer failureFile.Close()

		outputFailures = failureFile
	}

	aliasPath, err := aliasstore.DefaultPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ts: locating alias store: %v\n", err)

		return 1
	}

	store, err := aliasstore.Open(aliasPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ts: loading alias store: %v\n", err)

		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := transfer.Transfer(ctx, transfer.Request{
		Sources:        cfg.Sources,
		Target:         cfg.Target,
		Resolver:       store,
		Concurrency:    cfg.Concurrency,
		Retry:          cfg.Retry,
		RetryBackoffMS: cfg.RetryBackoffMS,
		BufMiB:         cfg.BufMiB,
		OutputFailures: outputFailures,
		Log:            log,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ts: %v\n", err)

		return 1
	}

	failures.Summarize(os.Stderr, result.Failures)

	log.Info("transfer complete",
		"bytes_transferred", result.BytesTransferred,
		"files_succeeded", result.FilesSucceeded,
		"files_failed", result.FilesFailed,
		"duration", result.Duration.String(),
	)

	if result.FilesFailed > 0 {
		return 1
	}

	return 0
}
