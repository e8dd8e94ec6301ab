package policy

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// Table column defaults.
const (
	DefaultTagColumn    = "Tag"
	DefaultActionColumn = "Action"
)

// TableOptions names the columns to read.
type TableOptions struct {
	TagColumn    string
	ActionColumn string
}

// LoadTable reads a CSV policy table. Rows whose tag cell does not parse as
// a hexadecimal tag (footnotes, blank lines) are skipped, as are rows with
// an empty action cell. An unknown action is an error.
func LoadTable(path string, opts TableOptions, logger *slog.Logger) (*Policy, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open policy table: %w", err)
	}
	defer file.Close()

	p, err := ReadTable(file, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("policy table %s: %w", path, err)
	}
	return p, nil
}

// ReadTable parses a CSV policy table from r.
func ReadTable(r io.Reader, opts TableOptions, logger *slog.Logger) (*Policy, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TagColumn == "" {
		opts.TagColumn = DefaultTagColumn
	}
	if opts.ActionColumn == "" {
		opts.ActionColumn = DefaultActionColumn
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("could not read header: %w", err)
	}
	tagCol, actionCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case opts.TagColumn:
			tagCol = i
		case opts.ActionColumn:
			actionCol = i
		}
	}
	if tagCol < 0 || actionCol < 0 {
		return nil, fmt.Errorf("header must contain %q and %q columns", opts.TagColumn, opts.ActionColumn)
	}

	actions := make(map[tag.Tag]Action)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if tagCol >= len(record) {
			logger.Debug("skipping policy row without tag", "line", line)
			continue
		}

		t, err := ParseTag(record[tagCol])
		if err != nil {
			logger.Debug("skipping non-data policy row", "line", line, "value", record[tagCol])
			continue
		}
		if actionCol >= len(record) || strings.TrimSpace(record[actionCol]) == "" {
			continue
		}
		a, err := ParseAction(record[actionCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		actions[t] = a
	}

	return &Policy{actions: actions}, nil
}
