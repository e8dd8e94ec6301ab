package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tomo-anonymizer/internal/config"
	"tomo-anonymizer/internal/dicom/dicomtest"
)

func writePattern(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shift.txt")
	require.NoError(t, os.WriteFile(path, []byte("1\n2\n"), 0644))
	return path
}

func execute(t *testing.T, launch GUILauncher, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(launch)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommandRunsBatch(t *testing.T) {
	input := t.TempDir()
	exam := filepath.Join(input, "exam01")
	require.NoError(t, os.MkdirAll(exam, 0755))
	dicomtest.WriteFile(t, exam, "img.dcm", dicomtest.Tomo("Breast Tomosynthesis Image", "12345678", "3"))
	output := t.TempDir()

	out, err := execute(t, nil, "-i", input, "-o", output, "-r", "-s", "S01",
		"--pattern", writePattern(t), "--temp-dir", t.TempDir())
	require.NoError(t, err)

	assert.Contains(t, out, "Complete! 1 succeeded, 0 failed, 0 skipped")
	assert.FileExists(t, filepath.Join(output, "S01", "23456789", "PROC_Tomo_RC",
		"23456789_PROC_RCC_RC", "23456789_PROC_RCC_RC.dcm"))
	assert.FileExists(t, filepath.Join(output, "S01", "idLookup.csv"))
}

func TestRootCommandDryRun(t *testing.T) {
	input := t.TempDir()
	dicomtest.WriteFile(t, input, "img.dcm", dicomtest.Tomo("Breast Tomosynthesis Image", "12345678", "3"))
	output := t.TempDir()

	out, err := execute(t, nil, "-i", input, "-o", output, "-n", "--pattern", writePattern(t))
	require.NoError(t, err)
	assert.Contains(t, out, "23456789/PROC_Tomo_RC/23456789_PROC_RCC_RC")
	assert.Contains(t, out, "1 tomosynthesis file(s) in 1 exam(s)")

	entries, err := os.ReadDir(output)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRootCommandReportsFailures(t *testing.T) {
	input := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(input, "broken.dcm"), []byte("junk"), 0644))

	out, err := execute(t, nil, "-i", input, "-o", t.TempDir(), "--pattern", writePattern(t))
	assert.ErrorIs(t, err, ErrFilesFailed)
	assert.Contains(t, out, "1 failed")
}

func TestRootCommandLaunchesGUIWithoutInput(t *testing.T) {
	var got *config.Settings
	_, err := execute(t, func(s config.Settings) error {
		got = &s
		return nil
	}, "-s", "S01")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "S01", got.StudyID)
}

func TestRootCommandRequiresInputWithoutGUI(t *testing.T) {
	_, err := execute(t, nil, "--pattern", "x")
	assert.ErrorIs(t, err, config.ErrNoInput)
}

func TestRootCommandRejectsBadPattern(t *testing.T) {
	pattern := filepath.Join(t.TempDir(), "shift.txt")
	require.NoError(t, os.WriteFile(pattern, []byte("102\n2\n"), 0644))
	_, err := execute(t, nil, "-i", t.TempDir(), "--pattern", pattern)
	assert.Error(t, err)
}

func TestNewLoggerLevels(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		verbosity int
		info      bool
		debug     bool
	}{
		{0, false, false},
		{1, true, false},
		{2, true, true},
		{5, true, true},
	} {
		var buf bytes.Buffer
		logger, closer, err := NewLogger(tc.verbosity, "", &buf)
		require.NoError(t, err)
		assert.Equal(t, tc.info, logger.Handler().Enabled(ctx, slog.LevelInfo), "info at -v=%d", tc.verbosity)
		assert.Equal(t, tc.debug, logger.Handler().Enabled(ctx, slog.LevelDebug), "debug at -v=%d", tc.verbosity)
		require.NoError(t, closer.Close())
	}
}

func TestNewLoggerMirrorsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	var buf bytes.Buffer
	logger, closer, err := NewLogger(0, path, &buf)
	require.NoError(t, err)
	logger.Warn("tag value is not numeric", "tag", "(0008,0050)")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "tag value is not numeric"))
	assert.Equal(t, buf.String(), string(data))
}
