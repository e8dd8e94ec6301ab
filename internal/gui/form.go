package gui

import (
	"fmt"
	"strconv"
	"strings"

	"tomo-anonymizer/internal/config"
)

// form holds the raw wizard inputs.
type form struct {
	Input         string
	Output        string
	Pattern       string
	StudyID       string
	PolicyTable   string
	Fields        string
	Workers       string
	Recursive     bool
	Resume        bool
	KeepWorkspace bool
}

// formFrom seeds the wizard with settings gathered from flags, environment
// and config file.
func formFrom(s config.Settings) form {
	workers := s.Workers
	if workers < 1 {
		workers = 1
	}
	return form{
		Input:         s.InputDir,
		Output:        s.OutputDir,
		Pattern:       s.PatternFile,
		StudyID:       s.StudyID,
		PolicyTable:   s.PolicyTable,
		Fields:        strings.Join(s.RemoveTags, ","),
		Workers:       strconv.Itoa(workers),
		Recursive:     s.Recursive,
		Resume:        s.Resume,
		KeepWorkspace: s.KeepWorkspace,
	}
}

// settings overlays the form on base and validates the result.
func (f form) settings(base config.Settings) (config.Settings, error) {
	s := base
	s.InputDir = strings.TrimSpace(f.Input)
	s.OutputDir = strings.TrimSpace(f.Output)
	s.PatternFile = strings.TrimSpace(f.Pattern)
	s.StudyID = strings.TrimSpace(f.StudyID)
	s.PolicyTable = strings.TrimSpace(f.PolicyTable)
	s.RemoveTags = splitFields(f.Fields)
	s.Recursive = f.Recursive
	s.Resume = f.Resume
	s.KeepWorkspace = f.KeepWorkspace
	s.DryRun = false

	workers := strings.TrimSpace(f.Workers)
	if workers == "" {
		s.Workers = 1
	} else {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return s, fmt.Errorf("workers must be a number, got %q", workers)
		}
		s.Workers = n
	}

	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func splitFields(v string) []string {
	parts := strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\n' || r == '\t'
	})
	if len(parts) == 0 {
		return nil
	}
	return parts
}
