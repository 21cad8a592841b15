package imaging

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

type atomicCounter = atomic.Int64

// countingWriter adds every written byte to n
type countingWriter struct {
	w io.Writer
	n *atomicCounter
}

func (c countingWriter) Write(p []byte) (int, error) {
	written, err := c.w.Write(p)
	c.n.Add(int64(written))
	return written, err
}

// scaled maps done out of total onto the percentage range [lo, hi]
func scaled(done, total int64, lo, hi int) int {
	if total <= 0 {
		return lo
	}
	if done > total {
		done = total
	}
	if done < 0 {
		done = 0
	}
	return lo + int(done*int64(hi-lo)/total)
}

// pump publishes the counter as progress every interval until the returned stop is called.
// stop waits for the sampling goroutine and publishes one last sample.
func pump(job *WriteJob, interval time.Duration, counter *atomicCounter, total int64, lo, hi int, status string) (stop func()) {
	sample := func() {
		p := min(scaled(counter.Load(), total, lo, hi), 99)
		job.report(p, fmt.Sprintf("%s (%d%%)", status, p))
	}
	quit := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sample()
			case <-quit:
				return
			}
		}
	}()
	return func() {
		close(quit)
		<-exited
		sample()
	}
}
