package audit

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func readTable(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestAppendCreatesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", DefaultTableName)
	w := NewWriter(path, time.Second, quiet)

	written, err := w.Append(Record{Image: "/in/exam01/a.dcm", AccessionNumber: "12345678", InputDir: "exam01", DummyID: "23456789"})
	require.NoError(t, err)
	assert.Equal(t, path, written)
	_, err = w.Append(Record{Image: "/in/exam01/b.dcm", AccessionNumber: "12345678", InputDir: "exam01", DummyID: "23456789"})
	require.NoError(t, err)

	rows := readTable(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{"/in/exam01/a.dcm", "12345678", "exam01", "23456789"}, rows[1])
	assert.Equal(t, "/in/exam01/b.dcm", rows[2][0])
}

func TestConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultTableName)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// each worker has its own writer, as separate processes would
			w := NewWriter(path, 10*time.Second, quiet)
			_, err := w.Append(Record{Image: fmt.Sprintf("img%d.dcm", i), AccessionNumber: "1", InputDir: "d", DummyID: "2"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	rows := readTable(t, path)
	require.Len(t, rows, workers+1)
	assert.Equal(t, Header, rows[0])

	images := make(map[string]bool)
	for _, row := range rows[1:] {
		assert.NotEqual(t, Header, row)
		images[row[0]] = true
	}
	assert.Len(t, images, workers)
}

func TestLockTimeoutWritesFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultTableName)
	w := NewWriter(path, 100*time.Millisecond, quiet)
	w.pollEvery = 10 * time.Millisecond
	w.fallbackTag = func() string { return "host-42-abc" }

	release, err := acquire(w.lockPath, time.Second, 10*time.Millisecond)
	require.NoError(t, err)
	defer release()

	rec := Record{Image: "a.dcm", AccessionNumber: "12345678", InputDir: "exam01", DummyID: "23456789"}
	written, err := w.Append(rec)
	require.NoError(t, err)
	assert.Equal(t, path+"_host-42-abc", written)

	rows := readTable(t, written)
	assert.Equal(t, [][]string{Header, rec.row()}, rows)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "main table must not be touched while locked")
}

func TestLockReleasedAfterAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultTableName)
	w := NewWriter(path, time.Second, quiet)
	_, err := w.Append(Record{Image: "a.dcm"})
	require.NoError(t, err)

	release, err := acquire(w.lockPath, 50*time.Millisecond, 10*time.Millisecond)
	require.NoError(t, err)
	release()
}

func TestUniqueName(t *testing.T) {
	a, b := uniqueName(), uniqueName()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.Contains(a, fmt.Sprintf("-%d-", os.Getpid())))
}
