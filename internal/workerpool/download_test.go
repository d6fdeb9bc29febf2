package workerpool_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/nitronplus/ts/internal/enumerate"
	"github.com/nitronplus/ts/internal/failures"
	"github.com/nitronplus/ts/internal/planner"
	"github.com/nitronplus/ts/internal/progress"
	"github.com/nitronplus/ts/internal/workerpool"
	"github.com/nitronplus/ts/pkg/sftpconn"
)

func TestRunDownloadSingleFileSucceeds(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	fake := sftpconn.NewFakeCapability()
	fake.SeedFile("/home/u/src/a.txt", []byte("payload"))

	pool := newFakeChannelPool(fake)
	sink := failures.NewSink(nil, nil)
	var agg progress.Aggregate

	target := t.TempDir()

	plan := &planner.Plan{
		Direction:        planner.Download,
		TargetLocal:      target,
		TargetIsDirFinal: true,
		Workers:          2,
		BufSize:          4,
		MaxRetries:       2,
	}

	size := uint64(7)
	entries := make(chan enumerate.Entry, 1)
	entries <- enumerate.Entry{RemoteFull: "/home/u/src/a.txt", Rel: "a.txt", Kind: enumerate.File, Size: &size}
	close(entries)

	workerpool.RunDownload(context.Background(), entries, workerpool.Deps{
		Plan: plan, Sessions: pool, Sink: sink, Agg: &agg,
	})

	g.Expect(sink.Close()).To(BeEmpty())
	g.Expect(agg.FilesSucceeded()).To(Equal(1))

	content, err := os.ReadFile(filepath.Join(target, "a.txt"))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(string(content)).To(Equal("payload"))

	leftovers, _ := filepath.Glob(filepath.Join(target, "*.hp.part.*"))
	g.Expect(leftovers).To(BeEmpty())
}

func TestRunDownloadCreatesLocalDirEntry(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	fake := sftpconn.NewFakeCapability()
	pool := newFakeChannelPool(fake)
	sink := failures.NewSink(nil, nil)
	var agg progress.Aggregate

	target := t.TempDir()

	plan := &planner.Plan{
		TargetLocal:      target,
		TargetIsDirFinal: true,
		Workers:          1,
		BufSize:          4096,
		MaxRetries:       1,
	}

	entries := make(chan enumerate.Entry, 1)
	entries <- enumerate.Entry{Rel: "nested", Kind: enumerate.Dir}
	close(entries)

	workerpool.RunDownload(context.Background(), entries, workerpool.Deps{
		Plan: plan, Sessions: pool, Sink: sink, Agg: &agg,
	})

	g.Expect(sink.Close()).To(BeEmpty())

	info, err := os.Stat(filepath.Join(target, "nested"))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(info.IsDir()).To(BeTrue())
}

func TestRunDownloadRemoteOpenFailureReported(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	fake := sftpconn.NewFakeCapability()
	pool := newFakeChannelPool(fake)
	sink := failures.NewSink(nil, nil)
	var agg progress.Aggregate

	target := t.TempDir()

	plan := &planner.Plan{
		TargetLocal:      target,
		TargetIsDirFinal: true,
		Workers:          1,
		BufSize:          4096,
		MaxRetries:       1,
	}

	entries := make(chan enumerate.Entry, 1)
	entries <- enumerate.Entry{RemoteFull: "/home/u/src/missing.txt", Rel: "missing.txt", Kind: enumerate.File}
	close(entries)

	workerpool.RunDownload(context.Background(), entries, workerpool.Deps{
		Plan: plan, Sessions: pool, Sink: sink, Agg: &agg,
	})

	records := sink.Close()
	g.Expect(records).To(HaveLen(1))
	g.Expect(agg.FilesFailed()).To(Equal(1))
}
