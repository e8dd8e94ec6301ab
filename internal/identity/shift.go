package identity

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Pattern is a shift pattern: a string of digits 1-9. The n-th character of a
// value is rotated by the pattern digit at n modulo the pattern length.
type Pattern string

// ErrInvalidPattern is returned for empty patterns or patterns with
// characters other than 1-9. A zero digit would leave characters unshifted.
var ErrInvalidPattern = errors.New("shift pattern must be a non-empty string of digits 1-9")

// ParsePattern validates s as a shift pattern.
func ParsePattern(s string) (Pattern, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalidPattern
	}
	for _, r := range s {
		if r < '1' || r > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidPattern, s)
		}
	}
	return Pattern(s), nil
}

// Patterns holds the numeric identifier pattern and the date pattern.
type Patterns struct {
	Shift Pattern
	Date  Pattern
}

// LoadPatterns reads a two-line pattern file: line 1 is the identifier
// shift pattern, line 2 the date shift pattern.
func LoadPatterns(path string) (Patterns, error) {
	file, err := os.Open(path)
	if err != nil {
		return Patterns{}, fmt.Errorf("could not open pattern file: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() && len(lines) < 2 {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return Patterns{}, fmt.Errorf("could not read pattern file: %w", err)
	}
	if len(lines) < 2 {
		return Patterns{}, fmt.Errorf("pattern file %s: need 2 lines, found %d", path, len(lines))
	}

	shift, err := ParsePattern(lines[0])
	if err != nil {
		return Patterns{}, fmt.Errorf("pattern file %s line 1: %w", path, err)
	}
	date, err := ParsePattern(lines[1])
	if err != nil {
		return Patterns{}, fmt.Errorf("pattern file %s line 2: %w", path, err)
	}
	return Patterns{Shift: shift, Date: date}, nil
}

// Shift applies pattern to value. Digits rotate within 0-9 and ASCII
// letters within their case; every other character is kept. For a fixed
// pattern the transform is a bijection on strings of equal length, so
// distinct keys never share a pseudonym.
func Shift(value string, pattern Pattern) string {
	if pattern == "" {
		return value
	}

	out := []byte(value)
	for i, c := range out {
		k := int(pattern[i%len(pattern)] - '0')
		switch {
		case c >= '0' && c <= '9':
			out[i] = '0' + byte((int(c-'0')+k)%10)
		case c >= 'a' && c <= 'z':
			out[i] = 'a' + byte((int(c-'a')+k)%26)
		case c >= 'A' && c <= 'Z':
			out[i] = 'A' + byte((int(c-'A')+k)%26)
		}
	}
	return string(out)
}
