package anonymizer

import (
	"fmt"
	"path/filepath"
	"sort"

	"tomo-anonymizer/internal/classify"
	dcm "tomo-anonymizer/internal/dicom"
)

// PlannedFile is what a run would do with one input.
type PlannedFile struct {
	File      string
	Skip      bool
	Pseudonym string
	TypeDir   string
	TomoName  string
	Err       error
}

// Plan is the result of a dry run.
type Plan struct {
	Files      []PlannedFile
	Tomo       int
	Skipped    int
	Unreadable int
	// Exams counts tomosynthesis files per pseudonym.
	Exams map[string]int
}

// Pseudonyms returns the planned pseudonyms in sorted order.
func (p *Plan) Pseudonyms() []string {
	ids := make([]string, 0, len(p.Exams))
	for id := range p.Exams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DryRun classifies every input and derives its pseudonym and placement
// name without writing anything.
func DryRun(cfg *Config) (*Plan, error) {
	files, err := dcm.FindDicomFiles(cfg.InputDir, cfg.Recursive, cfg.OutputRoot)
	if err != nil {
		return nil, fmt.Errorf("could not find DICOM files: %w", err)
	}

	plan := &Plan{Exams: make(map[string]int)}
	for _, file := range files {
		pf := PlannedFile{File: file}

		ds, err := dcm.ReadDicomMetadataOnly(file)
		if err != nil {
			pf.Err = err
			plan.Unreadable++
			plan.Files = append(plan.Files, pf)
			continue
		}

		class := classify.Classify(ds, cfg.Logger.With("file", file))
		if !class.IsTomo {
			pf.Skip = true
			plan.Skipped++
			plan.Files = append(plan.Files, pf)
			continue
		}

		pf.Pseudonym, _ = cfg.Linker.PseudonymFor(ds.GetAccessionNumber(), filepath.Base(filepath.Dir(file)))
		pf.TypeDir = class.TomoType.Dir()
		pf.TomoName = class.TomoName(pf.Pseudonym)
		plan.Tomo++
		plan.Exams[pf.Pseudonym]++
		plan.Files = append(plan.Files, pf)
	}
	return plan, nil
}
