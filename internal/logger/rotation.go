package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RotatingWriter is a writer that rotates the log file when it exceeds
// a size limit. Rotated files are renamed with a timestamp suffix.
type RotatingWriter struct {
	mu          sync.Mutex
	filename    string
	maxSize     int64 // bytes, 0 disables rotation
	currentFile *os.File
	currentSize int64
}

// NewRotatingWriter creates a new rotating writer
func NewRotatingWriter(filename string, maxSizeMB int) (*RotatingWriter, error) {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	return &RotatingWriter{
		filename:    filename,
		maxSize:     int64(maxSizeMB) * 1024 * 1024,
		currentFile: file,
		currentSize: info.Size(),
	}, nil
}

// Write writes to the current log file, rotating first if needed
func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.maxSize > 0 && rw.currentSize+int64(len(p)) > rw.maxSize {
		if err := rw.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := rw.currentFile.Write(p)
	rw.currentSize += int64(n)
	return n, err
}

// Close closes the current log file
func (rw *RotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.currentFile.Close()
}

func (rw *RotatingWriter) rotate() error {
	if err := rw.currentFile.Close(); err != nil {
		return fmt.Errorf("failed to close log file for rotation: %w", err)
	}

	rotated := fmt.Sprintf("%s.%s", rw.filename, time.Now().Format("20060102-150405"))
	if err := os.Rename(rw.filename, rotated); err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}

	file, err := os.OpenFile(rw.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to reopen log file: %w", err)
	}

	rw.currentFile = file
	rw.currentSize = 0
	return nil
}
