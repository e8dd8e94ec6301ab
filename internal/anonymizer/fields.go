package anonymizer

import (
	"fmt"
	"log/slog"

	"github.com/suyashkumar/dicom/pkg/tag"

	dcm "tomo-anonymizer/internal/dicom"
	"tomo-anonymizer/internal/identity"
	"tomo-anonymizer/internal/policy"
)

// ApplyPolicy redacts ds in memory: Replace tags are pseudonymized (or
// cleared when not numeric), Remove tags cleared, date tags shifted. A
// non-empty studyID then overwrites StudyID. Tags absent from ds are skipped.
func ApplyPolicy(ds *dcm.Dataset, p *policy.Policy, linker *identity.Linker, studyID string, logger *slog.Logger) error {
	for _, t := range p.Tags(policy.ReplaceWithPseudonym) {
		if !ds.Has(t) {
			continue
		}
		value := ds.GetString(t)
		if identity.IsNumeric(value) {
			logger.Debug("replacing tag", "tag", t.String(), "name", dcm.TagName(t))
			if err := ds.SetString(t, linker.Pseudonymize(value)); err != nil {
				return fmt.Errorf("could not replace %s: %w", dcm.TagName(t), err)
			}
			continue
		}
		logger.Warn("tag value is not numeric, shifting is not supported; clearing it instead",
			"tag", t.String(), "name", dcm.TagName(t), "file", ds.FilePath)
		if err := ds.ClearTag(t); err != nil {
			return fmt.Errorf("could not clear %s: %w", dcm.TagName(t), err)
		}
	}

	for _, t := range p.Tags(policy.Remove) {
		if !ds.Has(t) {
			continue
		}
		logger.Debug("removing tag", "tag", t.String(), "name", dcm.TagName(t))
		if err := ds.ClearTag(t); err != nil {
			return fmt.Errorf("could not clear %s: %w", dcm.TagName(t), err)
		}
	}

	for _, t := range p.Tags(policy.ShiftDate) {
		if !ds.Has(t) {
			continue
		}
		if err := ds.SetString(t, linker.ShiftDate(ds.GetString(t))); err != nil {
			return fmt.Errorf("could not shift %s: %w", dcm.TagName(t), err)
		}
	}

	if studyID != "" {
		if err := ds.SetString(tag.StudyID, studyID); err != nil {
			return fmt.Errorf("could not set study ID: %w", err)
		}
	}
	return nil
}

// AnonymizeMetadata applies the policy to ds and saves the result to
// outputPath. The file ds was read from is left untouched.
func AnonymizeMetadata(ds *dcm.Dataset, p *policy.Policy, linker *identity.Linker, studyID, outputPath string, logger *slog.Logger) error {
	logger.Debug("anonymizing fields", "file", ds.FilePath)
	if err := ApplyPolicy(ds, p, linker, studyID, logger); err != nil {
		return err
	}
	if err := ds.Save(outputPath); err != nil {
		return err
	}
	logger.Debug("anonymized", "output", outputPath)
	return nil
}
