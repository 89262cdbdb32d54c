package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// RotatingWriter appends to one log file per day and removes files older
// than the retention period. Rotation happens lazily on write, so an idle
// process never touches the disk.
type RotatingWriter struct {
	logDir     string
	retention  time.Duration
	mu         sync.Mutex
	current    *os.File
	currentDay string
}

// NewRotatingWriter creates a writer rotating daily with the given
// retention in days.
func NewRotatingWriter(logDir string, retentionDays int) *RotatingWriter {
	return &RotatingWriter{
		logDir:    logDir,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
	}
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// Write appends p to the current day's log file, rotating first if the
// day changed since the last write.
func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	day := dayKey(time.Now())
	if rw.current == nil || rw.currentDay != day {
		if err := rw.rotate(day); err != nil {
			return 0, err
		}
	}

	return rw.current.Write(p)
}

// rotate opens the file for day and prunes expired files. Caller holds the lock.
func (rw *RotatingWriter) rotate(day string) error {
	if rw.current != nil {
		if err := rw.current.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
		}
		rw.current = nil
	}

	if err := os.MkdirAll(rw.logDir, 0750); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(rw.logDir, "app-"+day+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	rw.current = file
	rw.currentDay = day

	rw.cleanup()
	return nil
}

// cleanup removes log files older than the retention period. Errors are
// ignored: losing an expired log file is not worth failing a write over.
func (rw *RotatingWriter) cleanup() {
	entries, err := os.ReadDir(rw.logDir)
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-rw.retention)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "app-") || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(rw.logDir, name))
		}
	}
}

// Close closes the current log file.
func (rw *RotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.current != nil {
		err := rw.current.Close()
		rw.current = nil
		return err
	}
	return nil
}
