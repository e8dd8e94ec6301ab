package anonymizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"tomo-anonymizer/internal/audit"
	"tomo-anonymizer/internal/classify"
	dcm "tomo-anonymizer/internal/dicom"
	"tomo-anonymizer/internal/placement"
)

// framePrefix names the files produced by frame expansion.
const framePrefix = "image"

// Instance is the per-file state carried through the pipeline. It is owned
// by a single worker.
type Instance struct {
	Path           string
	Data           *dcm.Dataset
	Class          classify.Classification
	NumImages      int
	RedactedPath   string
	CompressedPath string
	ExpandedPaths  []string
}

// Outputs returns the files to relocate: expanded frames, else the
// decompressed file, else the redacted file.
func (in *Instance) Outputs() []string {
	switch {
	case len(in.ExpandedPaths) > 0:
		return in.ExpandedPaths
	case in.CompressedPath != "":
		return []string{in.CompressedPath}
	default:
		return []string{in.RedactedPath}
	}
}

// FileStatus is the outcome of one file.
type FileStatus string

const (
	FileProcessed FileStatus = "processed"
	FileSkipped   FileStatus = "skipped"
)

// Result describes what ProcessFile did with one input.
type Result struct {
	File      string
	Status    FileStatus
	Pseudonym string
	Placement string
	Outputs   []string
	// Degraded lists the stages that failed and were fallen back from.
	Degraded []string
}

// ProcessFile runs one input through classify, anonymize, decompress,
// expand and relocate. Non-tomosynthesis inputs are skipped. Codec and copy
// failures degrade the result; an error is returned only when the file could
// not be read, audited, redacted or placed.
func ProcessFile(ctx context.Context, cfg *Config, path string) (*Result, error) {
	logger := cfg.Logger.With("file", path)

	ds, err := dcm.ReadDicom(path)
	if err != nil {
		return nil, err
	}

	in := &Instance{Path: path, Data: ds}
	in.Class = classify.Classify(ds, logger)
	in.NumImages = in.Class.NumImages

	res := &Result{File: path, Status: FileSkipped}
	if !in.Class.IsTomo {
		logger.Info("not a tomosynthesis object, skipping", "description", ds.GetSeriesDescription())
		return res, nil
	}

	inputDir := filepath.Base(filepath.Dir(path))
	accession := ds.GetAccessionNumber()
	pseudonym, _ := cfg.Linker.PseudonymFor(accession, inputDir)
	res.Pseudonym = pseudonym

	// the lookup row is written first so it exists even if a later stage fails
	if _, err := cfg.Audit.Append(audit.Record{
		Image:           path,
		AccessionNumber: accession,
		InputDir:        inputDir,
		DummyID:         pseudonym,
	}); err != nil {
		return nil, err
	}

	workspace, err := os.MkdirTemp(cfg.TempDir, "tomo-anon-")
	if err != nil {
		return nil, fmt.Errorf("could not create workspace: %w", err)
	}
	defer func() {
		if cfg.KeepWorkspace && len(res.Degraded) > 0 {
			logger.Warn("keeping workspace of degraded file", "workspace", workspace)
			return
		}
		if err := os.RemoveAll(workspace); err != nil {
			logger.Warn("could not remove workspace", "workspace", workspace, "error", err)
		}
	}()

	in.RedactedPath = filepath.Join(workspace, filepath.Base(path))
	if err := AnonymizeMetadata(ds, cfg.Policy, cfg.Linker, cfg.StudyID, in.RedactedPath, logger); err != nil {
		return nil, fmt.Errorf("could not anonymize: %w", err)
	}

	// a started file runs to completion; batch cancellation only stops
	// new files from being scheduled
	stageCtx := context.WithoutCancel(ctx)

	if in.Class.IsTomo && !in.Class.IsUncompressed {
		decompressed := filepath.Join(workspace, "decompressed_"+filepath.Base(path))
		if err := cfg.Codec.Decompress(stageCtx, in.RedactedPath, decompressed); err != nil {
			logger.Warn("decompression failed, continuing with the compressed file", "error", err)
			res.Degraded = append(res.Degraded, "decompress")
		} else {
			in.CompressedPath = decompressed
		}
	}

	if in.Class.IsTomo && in.Class.IsSCO {
		source := in.RedactedPath
		if in.CompressedPath != "" {
			source = in.CompressedPath
		}
		frames, err := cfg.Codec.Expand(stageCtx, source, filepath.Join(workspace, "frames"), framePrefix, in.Class.IsRaw)
		switch {
		case err != nil:
			logger.Warn("frame expansion failed, keeping the multi-frame file", "error", err)
			res.Degraded = append(res.Degraded, "expand")
		case len(frames) == 0:
			logger.Warn("frame expansion produced no files, keeping the multi-frame file")
			res.Degraded = append(res.Degraded, "expand")
		default:
			in.ExpandedPaths = frames
		}
	}

	tomoName := in.Class.TomoName(pseudonym)
	typeDirs := classify.TomoDirs
	if !in.Class.TomoType.Known() {
		typeDirs = append(append([]string(nil), typeDirs...), in.Class.TomoType.Dir())
	}
	base, err := placement.PrepareTree(cfg.OutputRoot, pseudonym, typeDirs)
	if err != nil {
		return nil, err
	}
	dest, release, err := placement.Claim(base, in.Class.TomoType.Dir(), tomoName)
	if err != nil {
		return nil, err
	}
	defer release()
	res.Placement = dest

	outputs := in.Outputs()
	for _, src := range outputs {
		name := filepath.Base(src)
		if len(outputs) == 1 {
			name = tomoName + ".dcm"
		}
		target := filepath.Join(dest, name)
		if err := copyFile(src, target); err != nil {
			logger.Warn("could not copy output", "output", src, "error", err)
			res.Degraded = append(res.Degraded, "relocate")
			continue
		}
		res.Outputs = append(res.Outputs, target)
	}

	res.Status = FileProcessed
	logger.Info("processed", "pseudonym", pseudonym, "placement", dest, "outputs", len(res.Outputs))
	if len(res.Degraded) > 0 {
		logger.Warn("processed with degraded stages", "stages", strings.Join(res.Degraded, ","))
	}
	return res, nil
}

// copyFile copies src to dst byte for byte. dst must not exist.
func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("could not create %s: %w", dst, err)
	}
	defer func() {
		err = errors.Join(err, out.Close())
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("could not copy to %s: %w", dst, err)
	}
	return nil
}

// processSafely turns a panic inside ProcessFile into an ordinary per-file error.
func processSafely(ctx context.Context, cfg *Config, path string) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			cfg.Logger.Error("panic while processing file", "file", path, "panic", r)
			res, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return ProcessFile(ctx, cfg, path)
}
