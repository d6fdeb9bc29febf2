// Package failures collects per-entry failure records from the worker pools
// and drains them to an optional JSON-lines file plus a final stderr
// summary, mirroring the teacher's activity-log accumulation without any
// terminal-rendering concerns.
package failures

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/nitronplus/ts/pkg/xferrors"
)

// Record describes one failed transfer entry after retries are exhausted.
type Record struct {
	Source string        `json:"source"`
	Target string        `json:"target"`
	Kind   xferrors.Kind `json:"-"`
	Reason string        `json:"reason"`
}

// MarshalJSON renders Kind as its string name alongside the other fields.
func (r Record) MarshalJSON() ([]byte, error) {
	type alias Record

	return json.Marshal(struct {
		alias
		Kind string `json:"kind"`
	}{alias: alias(r), Kind: r.Kind.String()})
}

// Sink receives Records from workers over a channel and drains them to an
// optional JSON-lines writer, accumulating a final in-memory list for the
// closing summary.
type Sink struct {
	ch       chan Record
	out      io.Writer
	log      hclog.Logger
	wg       sync.WaitGroup
	mu       sync.Mutex
	received []Record
}

// NewSink starts the drain goroutine. out may be nil to skip JSON-lines
// persistence and only accumulate the in-memory summary.
func NewSink(out io.Writer, log hclog.Logger) *Sink {
	s := &Sink{
		ch:  make(chan Record, 64),
		out: out,
		log: log,
	}

	s.wg.Add(1)

	go s.drain()

	return s
}

func (s *Sink) drain() {
	defer s.wg.Done()

	var bw *bufio.Writer
	if s.out != nil {
		bw = bufio.NewWriter(s.out)
		defer bw.Flush()
	}

	for rec := range s.ch {
		s.mu.Lock()
		s.received = append(s.received, rec)
		s.mu.Unlock()

		if s.log != nil {
			s.log.Warn("transfer failed", "source", rec.Source, "target", rec.Target, "kind", rec.Kind.String(), "reason", rec.Reason)
		}

		if bw == nil {
			continue
		}

		line, err := json.Marshal(rec)
		if err != nil {
			continue
		}

		bw.Write(line)
		bw.WriteByte('\n')
	}
}

// Report enqueues a failure. Safe to call from any worker goroutine; blocks
// only if the channel buffer is full, applying natural backpressure.
func (s *Sink) Report(ctx context.Context, rec Record) {
	select {
	case s.ch <- rec:
	case <-ctx.Done():
	}
}

// Close stops accepting new records, waits for the drain goroutine to flush,
// and returns the accumulated records in arrival order.
func (s *Sink) Close() []Record {
	close(s.ch)
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.received
}

// Summarize writes a short human-readable tail to w, one line per failure
// plus a trailing count, for the process's final stderr report.
func Summarize(w io.Writer, records []Record) {
	if len(records) == 0 {
		return
	}

	for _, r := range records {
		fmt.Fprintf(w, "FAILED %s -> %s: %s (%s)\n", r.Source, r.Target, r.Reason, r.Kind.String())
	}

	fmt.Fprintf(w, "%d transfer(s) failed\n", len(records))
}
