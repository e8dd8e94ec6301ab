// Package anonymizer redacts breast tomosynthesis DICOM files and relocates
// them into a pseudonymized output tree.
package anonymizer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"tomo-anonymizer/internal/audit"
	"tomo-anonymizer/internal/config"
	dcm "tomo-anonymizer/internal/dicom"
	"tomo-anonymizer/internal/identity"
	"tomo-anonymizer/internal/policy"
	"tomo-anonymizer/internal/progress"
)

// Config is the runtime configuration shared read-only by all workers.
type Config struct {
	InputDir      string
	OutputRoot    string
	Recursive     bool
	StudyID       string
	Workers       int
	KeepWorkspace bool
	Resume        bool
	TempDir       string

	Policy *policy.Policy
	Linker *identity.Linker
	Codec  *dcm.Codec
	Audit  *audit.Writer
	Logger *slog.Logger
}

// NewConfig loads the policy table and shift patterns named by s and builds
// the codec and audit writer.
func NewConfig(s config.Settings, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}

	patterns, err := identity.LoadPatterns(s.PatternFile)
	if err != nil {
		return nil, err
	}

	pol := policy.Default()
	if s.PolicyTable != "" {
		pol, err = policy.LoadTable(s.PolicyTable, policy.TableOptions{ActionColumn: s.ActionColumn}, logger)
		if err != nil {
			return nil, err
		}
	}
	if len(s.RemoveTags) > 0 {
		tags, err := policy.ParseTags(s.RemoveTags)
		if err != nil {
			return nil, fmt.Errorf("could not parse fields to remove: %w", err)
		}
		pol = pol.WithRemoveSet(tags)
	}
	logger.Debug("policy loaded",
		"remove", len(pol.Tags(policy.Remove)),
		"replace", len(pol.Tags(policy.ReplaceWithPseudonym)),
		"dates", len(pol.Tags(policy.ShiftDate)))

	workers := s.Workers
	if workers < 1 {
		workers = 1
	}

	return &Config{
		InputDir:      s.InputDir,
		OutputRoot:    s.OutputRoot(),
		Recursive:     s.Recursive,
		StudyID:       s.StudyID,
		Workers:       workers,
		KeepWorkspace: s.KeepWorkspace,
		Resume:        s.Resume,
		TempDir:       s.TempDir,
		Policy:        pol,
		Linker:        identity.NewLinker(patterns, logger),
		Codec:         dcm.NewCodec(s.DecompressTool, s.ExpandTool),
		Audit:         audit.NewWriter(s.AuditPath(), s.LockTimeout, logger),
		Logger:        logger,
	}, nil
}

// Stats holds processing statistics
type Stats struct {
	Total    int
	Success  int
	Failed   int
	Skipped  int
	Degraded int
}

// OK reports whether no file failed.
func (s *Stats) OK() bool {
	return s.Failed == 0
}

// Progress statuses passed to a ProgressCallback.
const (
	StatusProcessing = "processing"
	StatusSuccess    = "success"
	StatusDegraded   = "degraded"
	StatusSkipped    = "skipped"
	StatusFailed     = "failed"
)

// ProgressCallback is called during processing to report progress. It may
// be called from several workers at once.
type ProgressCallback func(current, total int, filename, status string)

// ProcessFolder processes every DICOM file under cfg.InputDir with up to
// cfg.Workers files in flight. A failing or panicking file is logged and
// counted; it never stops the batch.
func ProcessFolder(ctx context.Context, cfg *Config, progressCb ProgressCallback) (*Stats, error) {
	logger := cfg.Logger
	if progressCb == nil {
		progressCb = func(int, int, string, string) {}
	}

	files, err := dcm.FindDicomFiles(cfg.InputDir, cfg.Recursive, cfg.OutputRoot)
	if err != nil {
		return nil, fmt.Errorf("could not find DICOM files: %w", err)
	}
	if len(files) == 0 {
		logger.Warn("no DICOM files found", "input", cfg.InputDir)
		return &Stats{}, nil
	}
	logger.Info("found DICOM files", "count", len(files), "input", cfg.InputDir)

	tracker := progress.NewTracker(filepath.Join(cfg.OutputRoot, progress.FileName), logger)
	errorLogger, err := progress.NewErrorLogger(filepath.Join(cfg.OutputRoot, progress.ErrorLogName))
	if err != nil {
		return nil, fmt.Errorf("could not create error logger: %w", err)
	}
	defer errorLogger.Close()

	stats := &Stats{Total: len(files)}
	var mu sync.Mutex
	done := 0
	report := func(file, status string) {
		mu.Lock()
		defer mu.Unlock()
		switch status {
		case StatusSuccess:
			stats.Success++
		case StatusDegraded:
			stats.Success++
			stats.Degraded++
		case StatusSkipped:
			stats.Skipped++
		case StatusFailed:
			stats.Failed++
		}
		done++
		progressCb(done, len(files), filepath.Base(file), status)
	}

	var g errgroup.Group
	g.SetLimit(cfg.Workers)
	for _, file := range files {
		if ctx.Err() != nil {
			break
		}
		file := file
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if cfg.Resume && tracker.IsDone(file) {
				logger.Debug("already processed, skipping", "file", file)
				report(file, StatusSkipped)
				return nil
			}

			res, err := processSafely(ctx, cfg, file)
			switch {
			case err != nil:
				logger.Error("could not process file", "file", file, "error", err)
				tracker.MarkError(file, err.Error())
				errorLogger.Log(file, err)
				report(file, StatusFailed)
			case res.Status == FileSkipped:
				tracker.MarkSkipped(file)
				report(file, StatusSkipped)
			case len(res.Degraded) > 0:
				tracker.MarkSuccess(file, res.Pseudonym, res.Placement, res.Degraded)
				report(file, StatusDegraded)
			default:
				tracker.MarkSuccess(file, res.Pseudonym, res.Placement, nil)
				report(file, StatusSuccess)
			}
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("batch complete",
		"succeeded", stats.Success,
		"degraded", stats.Degraded,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
		"errors", errorLogger.Summary(),
		"output", cfg.OutputRoot)

	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("batch interrupted: %w", err)
	}
	return stats, nil
}
