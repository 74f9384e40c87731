// Package runlog keeps the append-only log file that every sync or release run
// mirrors its log records into.
package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultFile is the run log name used when none is configured.
const DefaultFile = "repo-sync.log"

const headerLayout = "2006-01-02 15:04:05"

// Log is an open run log. It is safe for concurrent writes.
type Log struct {
	path string

	mu   sync.Mutex
	file *os.File
}

// Open appends a run header stamped with now (in UTC) to the file at path,
// creating the file and its directory when needed.
func Open(path string, now time.Time) (*Log, error) {
	if path == "" {
		path = DefaultFile
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create run log directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}

	header := fmt.Sprintf("\n=== repo-sync run @ %s UTC ===\n", now.UTC().Format(headerLayout))
	if _, err := file.WriteString(header); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("write run log header: %w", err)
	}

	return &Log{path: path, file: file}, nil
}

// Path returns the file the log appends to.
func (l *Log) Path() string {
	return l.path
}

func (l *Log) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return 0, os.ErrClosed
	}
	return l.file.Write(p)
}

// Close flushes and closes the file. Closing twice is a no-op.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Sync()
	if closeErr := l.file.Close(); err == nil {
		err = closeErr
	}
	l.file = nil
	return err
}
