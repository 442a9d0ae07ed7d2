package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// sinkQueue hands formatted lines to a single drain goroutine, so handlers in
// the middle of an update never block on file I/O. The drain goroutine owns
// the sinks exclusively.
type sinkQueue struct {
	jobs chan sinkJob
	done chan struct{}

	closeOnce sync.Once

	errMu    sync.Mutex
	firstErr error

	outs []*bufio.Writer
}

type sinkJob struct {
	line []byte
	// ack marks a flush barrier: the drain goroutine replies once every
	// line queued before the barrier has reached the sinks.
	ack chan error
}

func newSinkQueue(writers []io.Writer, depth int) *sinkQueue {
	if depth <= 0 {
		depth = 512
	}
	outs := make([]*bufio.Writer, 0, len(writers))
	for _, w := range writers {
		if w == nil {
			continue
		}
		outs = append(outs, bufio.NewWriterSize(w, 32*1024))
	}
	q := &sinkQueue{
		jobs: make(chan sinkJob, depth),
		done: make(chan struct{}),
		outs: outs,
	}
	go q.drain()
	return q
}

// Write queues one line. The payload is copied; slog handlers reuse their
// buffers after Handle returns.
func (q *sinkQueue) Write(p []byte) error {
	if err := q.failure(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	q.jobs <- sinkJob{line: append([]byte(nil), p...)}
	return nil
}

// Flush pushes a barrier through the queue and waits for it.
func (q *sinkQueue) Flush() error {
	if err := q.failure(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	q.jobs <- sinkJob{ack: ack}
	return <-ack
}

// Close drains the remaining backlog and stops the goroutine. Safe to call
// more than once.
func (q *sinkQueue) Close() error {
	q.closeOnce.Do(func() { close(q.jobs) })
	<-q.done
	return q.failure()
}

func (q *sinkQueue) drain() {
	defer close(q.done)
	for job := range q.jobs {
		if job.ack != nil {
			job.ack <- q.flushOuts()
			continue
		}
		q.recordFailure(q.emit(job.line))
		// During a burst of updates the backlog is written buffered and
		// flushed once the queue goes idle.
		if len(q.jobs) == 0 {
			q.recordFailure(q.flushOuts())
		}
	}
	q.recordFailure(q.flushOuts())
}

func (q *sinkQueue) emit(line []byte) error {
	var firstErr error
	for _, out := range q.outs {
		if _, err := out.Write(line); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (q *sinkQueue) flushOuts() error {
	var errs []error
	for _, out := range q.outs {
		if err := out.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (q *sinkQueue) failure() error {
	q.errMu.Lock()
	defer q.errMu.Unlock()
	return q.firstErr
}

func (q *sinkQueue) recordFailure(err error) {
	if err == nil {
		return
	}
	q.errMu.Lock()
	defer q.errMu.Unlock()
	if q.firstErr == nil {
		q.firstErr = err
	}
}
