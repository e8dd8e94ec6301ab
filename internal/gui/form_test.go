package gui

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tomo-anonymizer/internal/config"
)

func TestFormSettings(t *testing.T) {
	input := t.TempDir()
	base := config.Settings{
		LockTimeout:    3 * time.Second,
		DecompressTool: "gdcmconv",
		DryRun:         true,
	}

	f := form{
		Input:         " " + input + " ",
		Output:        "/out",
		Pattern:       "/secure/shift.txt",
		StudyID:       "S01",
		Fields:        "0x00100010, 0x00100030;0x00100040",
		Workers:       "4",
		Recursive:     true,
		KeepWorkspace: true,
	}
	s, err := f.settings(base)
	require.NoError(t, err)

	assert.Equal(t, input, s.InputDir)
	assert.Equal(t, "/out", s.OutputDir)
	assert.Equal(t, "S01", s.StudyID)
	assert.Equal(t, []string{"0x00100010", "0x00100030", "0x00100040"}, s.RemoveTags)
	assert.Equal(t, 4, s.Workers)
	assert.True(t, s.Recursive)
	assert.True(t, s.KeepWorkspace)
	assert.False(t, s.DryRun, "the wizard previews separately")
	assert.Equal(t, "gdcmconv", s.DecompressTool, "unset fields keep the seeded settings")
	assert.Equal(t, 3*time.Second, s.LockTimeout)
}

func TestFormSettingsErrors(t *testing.T) {
	input := t.TempDir()
	file := filepath.Join(input, "f")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	for name, f := range map[string]form{
		"no input":      {Pattern: "p"},
		"input is file": {Input: file, Pattern: "p"},
		"no pattern":    {Input: input},
		"bad workers":   {Input: input, Pattern: "p", Workers: "many"},
		"zero workers":  {Input: input, Pattern: "p", Workers: "0"},
	} {
		_, err := f.settings(config.Settings{})
		assert.Error(t, err, name)
	}
}

func TestFormFromSettings(t *testing.T) {
	f := formFrom(config.Settings{
		InputDir:   "/in",
		RemoveTags: []string{"0x00100010", "0x00100030"},
		Recursive:  true,
	})
	assert.Equal(t, "/in", f.Input)
	assert.Equal(t, "0x00100010,0x00100030", f.Fields)
	assert.Equal(t, "1", f.Workers)
	assert.True(t, f.Recursive)
}
