package progress_test

import (
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/nitronplus/ts/internal/progress"
)

func TestAggregateTransferredAndTotals(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	var agg progress.Aggregate

	agg.SetTotalBytes(100)
	agg.AddTransferred(30)
	agg.AddTransferred(20)
	agg.MarkFileSucceeded()
	agg.MarkFileFailed()

	g.Expect(agg.TotalBytes()).To(Equal(uint64(100)))
	g.Expect(agg.Transferred()).To(Equal(uint64(50)))
	g.Expect(agg.FilesSucceeded()).To(Equal(1))
	g.Expect(agg.FilesFailed()).To(Equal(1))
}

func TestThrottlerFlushesAtByteThreshold(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	th := progress.NewThrottler()

	flush := th.Add(progress.FlushByteThreshold - 1)
	g.Expect(flush).To(BeFalse())

	flush = th.Add(1)
	g.Expect(flush).To(BeTrue())

	g.Expect(th.Flush()).To(Equal(uint64(progress.FlushByteThreshold)))
}

func TestThrottlerFlushesAtElapsedInterval(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	th := progress.NewThrottler()

	clock := time.Now()
	th.SetClockForTesting(func() time.Time { return clock })

	flush := th.Add(10)
	g.Expect(flush).To(BeFalse())

	clock = clock.Add(progress.FlushInterval)

	flush = th.Add(5)
	g.Expect(flush).To(BeTrue())
	g.Expect(th.Flush()).To(Equal(uint64(15)))
}

func TestThrottlerFlushResetsPending(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	th := progress.NewThrottler()
	th.Add(10)

	g.Expect(th.Flush()).To(Equal(uint64(10)))
	g.Expect(th.Flush()).To(Equal(uint64(0)))
}
