package core

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// progressCounter is a write sink that reports humanized byte counts on a
// ticker and once more on Close. Writes may come from several goroutines.
type progressCounter struct {
	written    atomic.Int64
	total      string
	onProgress func(written, total string)
	printTimer *time.Ticker
	done       chan struct{}
	once       sync.Once
}

func newProgressCounter(size int64, interval time.Duration, onProgress func(written, total string)) io.WriteCloser {
	this := &progressCounter{total: humanSize(size), onProgress: onProgress}
	this.printTimer = time.NewTicker(interval)
	this.done = make(chan struct{})
	go func() {
		for {
			select {
			case <-this.printTimer.C:
				this.reportProgress()
			case <-this.done:
				return
			}
		}
	}()
	return this
}

func (this *progressCounter) Write(p []byte) (int, error) {
	this.written.Add(int64(len(p)))
	return len(p), nil
}

func (this *progressCounter) Close() error {
	this.once.Do(func() {
		this.printTimer.Stop()
		close(this.done)
		this.reportProgress()
	})
	return nil
}

func (this *progressCounter) reportProgress() {
	this.onProgress(humanize.Bytes(uint64(this.written.Load())), this.total)
}

func humanSize(size int64) string {
	if size <= 0 {
		return "unknown"
	}
	return humanize.Bytes(uint64(size))
}
