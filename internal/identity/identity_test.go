package identity

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestShift(t *testing.T) {
	tests := []struct {
		value   string
		pattern Pattern
		want    string
	}{
		{"12345678", "1", "23456789"},
		{"12345678", "31", "43658709"},
		{"9999", "1234", "0123"},
		{"20190314", "11111111", "31201425"},
		{"Exam-A1z", "1", "Fybn-B2a"},
		{"", "7", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Shift(tt.value, tt.pattern), "%s/%s", tt.value, tt.pattern)
	}
}

func TestShiftIsPure(t *testing.T) {
	for _, key := range []string{"12345678", "0", "000123", "987654321012"} {
		first := Shift(key, "3172")
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, Shift(key, "3172"))
		}
		assert.NotEqual(t, key, first)
	}
}

func TestShiftIsCollisionFree(t *testing.T) {
	seen := make(map[string]string)
	for n := 0; n < 1000; n++ {
		key := string([]byte{'0' + byte(n/100), '0' + byte(n/10%10), '0' + byte(n%10)})
		p := Shift(key, "527")
		if prev, ok := seen[p]; ok {
			t.Fatalf("%s and %s both map to %s", prev, key, p)
		}
		seen[p] = key
	}
}

func TestParsePattern(t *testing.T) {
	p, err := ParsePattern(" 3141592 \n")
	require.NoError(t, err)
	assert.Equal(t, Pattern("3141592"), p)

	for _, bad := range []string{"", "   ", "3140", "12a", "-1"} {
		_, err := ParsePattern(bad)
		assert.True(t, errors.Is(err, ErrInvalidPattern), bad)
	}
}

func TestLoadPatterns(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.cfg")
	require.NoError(t, os.WriteFile(good, []byte("31415926\n2718\n"), 0644))
	p, err := LoadPatterns(good)
	require.NoError(t, err)
	assert.Equal(t, Patterns{Shift: "31415926", Date: "2718"}, p)

	short := filepath.Join(dir, "short.cfg")
	require.NoError(t, os.WriteFile(short, []byte("31415926\n"), 0644))
	_, err = LoadPatterns(short)
	assert.Error(t, err)

	badDate := filepath.Join(dir, "bad.cfg")
	require.NoError(t, os.WriteFile(badDate, []byte("31415926\n20x\n"), 0644))
	_, err = LoadPatterns(badDate)
	assert.True(t, errors.Is(err, ErrInvalidPattern))

	_, err = LoadPatterns(filepath.Join(dir, "missing.cfg"))
	assert.Error(t, err)
}

func TestLinker(t *testing.T) {
	l := NewLinker(Patterns{Shift: "1", Date: "2"}, quiet)

	assert.Equal(t, "23456789", l.Pseudonymize("12345678"))
	assert.Equal(t, "42312536", l.ShiftDate("20190314"))

	id, src := l.PseudonymFor("12345678", "exam01")
	assert.Equal(t, "23456789", id)
	assert.Equal(t, KeyAccession, src)

	id, src = l.PseudonymFor("ACC-77", "exam01")
	assert.Equal(t, "fybn12", id)
	assert.Equal(t, KeyDirectory, src)

	id, src = l.PseudonymFor("", "exam01")
	assert.Equal(t, "fybn12", id)
	assert.Equal(t, KeyDirectory, src)
}

func TestIsNumeric(t *testing.T) {
	assert.True(t, IsNumeric("0012"))
	assert.False(t, IsNumeric(""))
	assert.False(t, IsNumeric("12 "))
	assert.False(t, IsNumeric("A12"))
	assert.False(t, IsNumeric("１２"))
}
