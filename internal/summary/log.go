// internal/summary/log.go
package summary

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileName is the summary log's name inside the project root.
const FileName = "summary.log"

// TimeFormat stamps every log line.
const TimeFormat = "2006-01-02 15:04:05"

// Log is an append-only, human-readable record. Every Append opens the file
// in append mode, writes one line, syncs and closes it, so a crash loses at
// most the line being written and earlier lines are never rewritten.
type Log struct {
	Path string
	Now  func() time.Time

	mu sync.Mutex
}

// OpenLog returns the log at root/summary.log. The file is created lazily.
func OpenLog(root string) *Log {
	return &Log{Path: filepath.Join(root, FileName), Now: time.Now}
}

// Append writes "[timestamp] message" as one line.
func (l *Log) Append(format string, a ...any) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	line := fmt.Sprintf("[%s] %s\n", now().Format(TimeFormat), fmt.Sprintf(format, a...))

	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return err
	}
	fh, err := os.OpenFile(l.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open summary log: %w", err)
	}
	if _, err := fh.WriteString(line); err != nil {
		_ = fh.Close()
		return fmt.Errorf("append summary log: %w", err)
	}
	if err := fh.Sync(); err != nil {
		_ = fh.Close()
		return err
	}
	return fh.Close()
}
