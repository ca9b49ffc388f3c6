package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileExtension is the suffix softap-setup and softap-log expect on capture
// files.
const FileExtension = ".aplog"

// FileLogger appends events to a capture file. Reopening an existing file
// continues the sequence.
type FileLogger struct {
	path string

	mu      sync.Mutex
	file    *os.File // nil once closed
	enc     *cbor.Encoder
	written int
}

// NewFileLogger opens path for appending, creating it and any missing
// parent directories.
func NewFileLogger(path string) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("capture directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	return &FileLogger{path: path, file: f, enc: NewEncoder(f)}, nil
}

// Log encodes event. A failed write is dropped and not counted.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	if l.enc.Encode(event) == nil {
		l.written++
	}
}

func (l *FileLogger) Path() string { return l.path }

// Count is the number of events written by this logger, not the number
// already in the file when it was opened.
func (l *FileLogger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written
}

// Close is idempotent. Events logged afterwards are discarded.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
