package progress

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrorLogName is the per-run failure log written into the output root.
const ErrorLogName = "errors.log"

// ErrorEntry is one failed file.
type ErrorEntry struct {
	File      string
	Error     string
	Timestamp time.Time
}

// ErrorLogger appends one line per failed file to a log file and keeps the
// entries of the current run for the summary.
type ErrorLogger struct {
	mu      sync.Mutex
	logFile string
	errors  []ErrorEntry
	file    *os.File
}

// NewErrorLogger opens logFile for appending. An empty path keeps entries
// in memory only.
func NewErrorLogger(logFile string) (*ErrorLogger, error) {
	logger := &ErrorLogger{logFile: logFile}

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return nil, fmt.Errorf("could not create log directory: %w", err)
		}
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("could not open log file: %w", err)
		}
		logger.file = file
	}

	return logger, nil
}

// Log records the failure of filePath.
func (l *ErrorLogger) Log(filePath string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := ErrorEntry{
		File:      filePath,
		Error:     err.Error(),
		Timestamp: time.Now(),
	}
	l.errors = append(l.errors, entry)

	if l.file != nil {
		fmt.Fprintf(l.file, "%s | %s | %s\n",
			entry.Timestamp.Format(time.RFC3339), entry.File, entry.Error)
	}
}

// Entries returns a copy of the failures logged in this run.
func (l *ErrorLogger) Entries() []ErrorEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ErrorEntry(nil), l.errors...)
}

// Summary returns a one-line summary of logged errors.
func (l *ErrorLogger) Summary() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.errors) == 0 {
		return "No errors"
	}
	if l.logFile == "" {
		return fmt.Sprintf("%d errors", len(l.errors))
	}
	return fmt.Sprintf("%d errors logged to %s", len(l.errors), l.logFile)
}

// ErrorCount returns the number of logged errors.
func (l *ErrorLogger) ErrorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}

// Close closes the log file.
func (l *ErrorLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
