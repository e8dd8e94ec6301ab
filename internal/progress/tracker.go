// Package progress persists per-file outcomes of a batch so an interrupted
// run can be resumed, and keeps a plain-text log of per-file failures.
package progress

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileName is the tracker file written into the output root.
const FileName = ".progress.json"

// FileStatus represents the processing status of a file
type FileStatus string

const (
	StatusSuccess FileStatus = "success"
	StatusSkipped FileStatus = "skipped"
	StatusError   FileStatus = "error"
)

// FileEntry represents a processed file entry
type FileEntry struct {
	Status    FileStatus `json:"status"`
	Hash      string     `json:"hash"`
	Pseudonym string     `json:"pseudonym,omitempty"`
	Placement string     `json:"placement,omitempty"`
	Degraded  []string   `json:"degraded,omitempty"`
	Error     string     `json:"error,omitempty"`
	Timestamp string     `json:"timestamp"`
}

// TrackerData is the JSON structure for persistence
type TrackerData struct {
	Files   map[string]*FileEntry `json:"files"`
	Updated string                `json:"updated"`
	Summary struct {
		Success int `json:"success"`
		Skipped int `json:"skipped"`
		Error   int `json:"error"`
		Total   int `json:"total"`
	} `json:"summary"`
}

// Tracker records per-file outcomes. It is safe for concurrent use.
type Tracker struct {
	mu           sync.Mutex
	progressFile string
	processed    map[string]*FileEntry
	logger       *slog.Logger
}

// NewTracker loads progressFile if it exists. An empty path keeps the
// tracker in memory only.
func NewTracker(progressFile string, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		progressFile: progressFile,
		processed:    make(map[string]*FileEntry),
		logger:       logger,
	}

	if progressFile != "" {
		t.load()
	}

	return t
}

func (t *Tracker) load() {
	data, err := os.ReadFile(t.progressFile)
	if err != nil {
		return // start fresh
	}

	var trackerData TrackerData
	if err := json.Unmarshal(data, &trackerData); err != nil {
		t.logger.Warn("could not load progress file", "file", t.progressFile, "error", err)
		return
	}

	if trackerData.Files != nil {
		t.processed = trackerData.Files
	}
	t.logger.Info("loaded progress",
		"succeeded", t.countStatus(StatusSuccess),
		"failed", t.countStatus(StatusError))
}

func (t *Tracker) save() {
	if t.progressFile == "" {
		return
	}

	trackerData := TrackerData{
		Files:   t.processed,
		Updated: time.Now().Format(time.RFC3339),
	}
	trackerData.Summary.Success = t.countStatus(StatusSuccess)
	trackerData.Summary.Skipped = t.countStatus(StatusSkipped)
	trackerData.Summary.Error = t.countStatus(StatusError)
	trackerData.Summary.Total = len(t.processed)

	data, err := json.MarshalIndent(trackerData, "", "  ")
	if err != nil {
		t.logger.Warn("could not marshal progress data", "error", err)
		return
	}

	if err := os.MkdirAll(filepath.Dir(t.progressFile), 0755); err != nil {
		t.logger.Warn("could not save progress", "error", err)
		return
	}
	tmp := t.progressFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		t.logger.Warn("could not save progress", "error", err)
		return
	}
	if err := os.Rename(tmp, t.progressFile); err != nil {
		t.logger.Warn("could not save progress", "error", err)
	}
}

func (t *Tracker) countStatus(status FileStatus) int {
	count := 0
	for _, entry := range t.processed {
		if entry.Status == status {
			count++
		}
	}
	return count
}

// fileHash creates a quick hash based on file size and modification time
func fileHash(filePath string) string {
	info, err := os.Stat(filePath)
	if err != nil {
		return ""
	}
	hashInput := fmt.Sprintf("%d_%d", info.Size(), info.ModTime().Unix())
	hash := md5.Sum([]byte(hashInput))
	return fmt.Sprintf("%x", hash[:4])
}

// IsDone reports whether filePath already succeeded or was skipped in an
// earlier run and has not changed since.
func (t *Tracker) IsDone(filePath string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.processed[filePath]
	if !ok || entry.Status == StatusError {
		return false
	}
	return entry.Hash == fileHash(filePath)
}

// MarkSuccess records a processed file and where it was placed.
func (t *Tracker) MarkSuccess(filePath, pseudonym, placement string, degraded []string) {
	t.mark(filePath, &FileEntry{
		Status:    StatusSuccess,
		Pseudonym: pseudonym,
		Placement: placement,
		Degraded:  degraded,
	})
}

// MarkSkipped records a file that needed no processing.
func (t *Tracker) MarkSkipped(filePath string) {
	t.mark(filePath, &FileEntry{Status: StatusSkipped})
}

// MarkError marks a file as failed.
func (t *Tracker) MarkError(filePath, errorMsg string) {
	t.mark(filePath, &FileEntry{Status: StatusError, Error: errorMsg})
}

func (t *Tracker) mark(filePath string, entry *FileEntry) {
	entry.Hash = fileHash(filePath)
	entry.Timestamp = time.Now().Format(time.RFC3339)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.processed[filePath] = entry
	t.save()
}

// Entry returns the recorded entry for filePath, if any.
func (t *Tracker) Entry(filePath string) (FileEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.processed[filePath]
	if !ok {
		return FileEntry{}, false
	}
	return *entry, true
}

// GetStats returns success and error counts.
func (t *Tracker) GetStats() (success, errors int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.countStatus(StatusSuccess), t.countStatus(StatusError)
}
