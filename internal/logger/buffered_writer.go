package logger

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/tphakala/trailcam-go/internal/errors"
)

const (
	fileBufferSize    = 32 * 1024
	fileFlushInterval = 5 * time.Second
)

// BufferedFileWriter appends to a log file through a buffer that is flushed
// every few seconds and on Close. It is safe for concurrent use.
type BufferedFileWriter struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer

	stop      chan struct{}
	flusher   sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// NewBufferedFileWriter opens path for appending, creating it if needed.
func NewBufferedFileWriter(path string) (*BufferedFileWriter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, LogFilePermissions) //nolint:gosec // path comes from config
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	w := &BufferedFileWriter{
		file: file,
		buf:  bufio.NewWriterSize(file, fileBufferSize),
		stop: make(chan struct{}),
	}
	w.flusher.Go(w.flushLoop)
	return w, nil
}

func (w *BufferedFileWriter) flushLoop() {
	ticker := time.NewTicker(fileFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			_ = w.Flush()
		}
	}
}

func (w *BufferedFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf == nil {
		return 0, fmt.Errorf("log file writer is closed")
	}
	return w.buf.Write(p)
}

// Flush hands buffered lines to the OS without fsync.
func (w *BufferedFileWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf == nil {
		return nil
	}
	return w.buf.Flush()
}

// Close flushes, syncs and closes the file. Later calls return the first result.
func (w *BufferedFileWriter) Close() error {
	w.closeOnce.Do(func() {
		close(w.stop)
		w.flusher.Wait()

		w.mu.Lock()
		defer w.mu.Unlock()

		w.closeErr = errors.Join(w.buf.Flush(), w.file.Sync(), w.file.Close())
		w.buf = nil
	})
	return w.closeErr
}
