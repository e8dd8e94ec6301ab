// Package audit appends identifier-mapping records to the shared lookup
// table. Several processes may write the same table, so every append runs
// under an exclusive file lock with a bounded wait; when the wait runs out
// the record goes to a uniquely named fallback table instead.
package audit

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DefaultLockTimeout bounds the wait for the table lock.
const DefaultLockTimeout = 200 * time.Second

// DefaultTableName is the lookup table created in the output root.
const DefaultTableName = "idLookup.csv"

// Header is written once at the top of a new table.
var Header = []string{"Image", "AccessionNumber", "InputDir", "DummyID"}

// ErrLockTimeout reports that the table lock was not acquired in time.
var ErrLockTimeout = errors.New("timed out waiting for audit table lock")

// Record links one input image to its pseudonym.
type Record struct {
	Image           string
	AccessionNumber string
	InputDir        string
	DummyID         string
}

func (r Record) row() []string {
	return []string{r.Image, r.AccessionNumber, r.InputDir, r.DummyID}
}

// Writer appends records to one table. It is safe for concurrent use by
// goroutines and by other processes using the same lock file.
type Writer struct {
	path        string
	lockPath    string
	timeout     time.Duration
	pollEvery   time.Duration
	logger      *slog.Logger
	fallbackTag func() string
}

// NewWriter creates a writer for the table at path. A zero timeout selects
// DefaultLockTimeout.
func NewWriter(path string, timeout time.Duration, logger *slog.Logger) *Writer {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		path:        path,
		lockPath:    path + ".lock",
		timeout:     timeout,
		pollEvery:   50 * time.Millisecond,
		logger:      logger,
		fallbackTag: uniqueName,
	}
}

// Path returns the table path.
func (w *Writer) Path() string {
	return w.path
}

// Append writes rec to the table, or to a fallback table when the lock
// cannot be acquired within the timeout. It returns the file written.
func (w *Writer) Append(rec Record) (string, error) {
	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return "", fmt.Errorf("could not create audit directory: %w", err)
	}

	unlock, err := acquire(w.lockPath, w.timeout, w.pollEvery)
	if errors.Is(err, ErrLockTimeout) {
		fallback := w.path + "_" + w.fallbackTag()
		w.logger.Warn("lock timeout, logging the entry to fallback table", "table", w.path, "fallback", fallback)
		if err := appendRow(fallback, rec, true); err != nil {
			return "", fmt.Errorf("could not write fallback audit table: %w", err)
		}
		return fallback, nil
	}
	if err != nil {
		return "", err
	}
	defer unlock()

	_, statErr := os.Stat(w.path)
	if err := appendRow(w.path, rec, os.IsNotExist(statErr)); err != nil {
		return "", fmt.Errorf("could not write audit table: %w", err)
	}
	return w.path, nil
}

func appendRow(path string, rec Record, withHeader bool) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if withHeader {
		if err := writer.Write(Header); err != nil {
			return err
		}
	}
	if err := writer.Write(rec.row()); err != nil {
		return err
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return file.Close()
}

// uniqueName returns "<host>-<pid>-<uuid>" for fallback tables.
func uniqueName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.New().String())
}

// acquire polls for the lock until timeout.
func acquire(lockPath string, timeout, pollEvery time.Duration) (func(), error) {
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("could not open audit lock: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		ok, err := tryLock(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("could not lock audit table: %w", err)
		}
		if ok {
			return func() {
				unlock(file)
				file.Close()
			}, nil
		}
		if time.Now().After(deadline) {
			file.Close()
			return nil, ErrLockTimeout
		}
		time.Sleep(pollEvery)
	}
}
