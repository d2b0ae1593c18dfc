// Package auditlog is a write-behind, line-oriented text log. Callers enqueue
// without blocking; a single worker batches lines to the file.
package auditlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrClosed       = errors.New("audit log closed")
	ErrCloseTimeout = errors.New("audit log close timed out")
)

// Writer queues lines in memory and writes them from one goroutine.
//
// The queue is unbounded: Log never blocks and never drops while the writer
// is open. Queued lines are written when BatchSize is reached or FlushInterval
// elapses, whichever comes first.
type Writer struct {
	cfg  Config
	sink io.WriteCloser
	buf  *bufio.Writer

	mu      sync.Mutex
	queue   []string
	closed  bool
	dropped uint64

	wake chan struct{}
	stop chan struct{}
	done chan struct{}

	stopOnce sync.Once
	err      atomic.Value
	written  atomic.Uint64
}

// Open creates the parent directory, opens Path for appending and starts the worker.
func Open(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit log dir: %w", err)
		}
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return newWriter(cfg, f), nil
}

func newWriter(cfg Config, sink io.WriteCloser) *Writer {
	w := &Writer{
		cfg:  cfg,
		sink: sink,
		buf:  bufio.NewWriterSize(sink, cfg.BufferSize),
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go w.run()
	return w
}

// Path returns the file being written.
func (w *Writer) Path() string {
	return w.cfg.Path
}

// Log enqueues one line, ignoring rejection. Use Append to observe it.
func (w *Writer) Log(line string) {
	_ = w.Append(line)
}

// Append enqueues one line. A trailing newline is added on write.
// Lines appended after Close are counted as dropped and return ErrClosed.
func (w *Writer) Append(line string) error {
	w.mu.Lock()
	if w.closed {
		w.dropped++
		w.mu.Unlock()
		return ErrClosed
	}
	w.queue = append(w.queue, line)
	full := len(w.queue) >= w.cfg.BatchSize
	w.mu.Unlock()

	if full {
		select {
		case w.wake <- struct{}{}:
		default:
		}
	}
	return nil
}

// Err returns the first error observed by the worker, if any.
func (w *Writer) Err() error {
	if v := w.err.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// Written returns how many lines reached the file buffer.
func (w *Writer) Written() uint64 {
	return w.written.Load()
}

// Dropped returns how many lines were rejected after Close.
func (w *Writer) Dropped() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

// Close stops accepting lines, lets the worker drain and flush the queue,
// then waits up to CloseTimeout for it to finish. A timeout returns
// ErrCloseTimeout since queued lines may be lost; otherwise the first
// worker error is returned.
func (w *Writer) Close() error {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		close(w.stop)
	})

	timer := time.NewTimer(w.cfg.CloseTimeout)
	defer timer.Stop()

	select {
	case <-w.done:
		return w.Err()
	case <-timer.C:
		return fmt.Errorf("%w after %s: %d lines pending", ErrCloseTimeout, w.cfg.CloseTimeout, w.pending())
	}
}

func (w *Writer) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			w.writePending()
			if err := w.sink.Close(); err != nil {
				w.setErr(fmt.Errorf("close audit log: %w", err))
			}
			return
		case <-w.wake:
			if w.pending() >= w.cfg.BatchSize {
				w.writePending()
			}
		case <-ticker.C:
			w.writePending()
		}
	}
}

// writePending moves the queue to the file and flushes the buffer.
// After the first error lines are discarded; the caller sees it through Err.
func (w *Writer) writePending() {
	w.mu.Lock()
	lines := w.queue
	w.queue = nil
	w.mu.Unlock()

	if len(lines) == 0 || w.Err() != nil {
		return
	}
	for _, line := range lines {
		if _, err := w.buf.WriteString(line); err != nil {
			w.setErr(fmt.Errorf("write audit log: %w", err))
			return
		}
		if err := w.buf.WriteByte('\n'); err != nil {
			w.setErr(fmt.Errorf("write audit log: %w", err))
			return
		}
		w.written.Add(1)
	}
	if err := w.buf.Flush(); err != nil {
		w.setErr(fmt.Errorf("flush audit log: %w", err))
	}
}

func (w *Writer) pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

func (w *Writer) setErr(err error) {
	if w.Err() == nil {
		w.err.Store(err)
	}
}
