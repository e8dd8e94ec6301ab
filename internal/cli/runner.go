// Package cli is the command-line front end: flag parsing, logging setup,
// the progress bar and the run summary.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"tomo-anonymizer/internal/anonymizer"
	"tomo-anonymizer/internal/config"
)

// ErrFilesFailed is returned when at least one file could not be processed.
var ErrFilesFailed = errors.New("some files could not be processed")

// GUILauncher starts the graphical front end with the settings gathered so far.
type GUILauncher func(s config.Settings) error

const longHelp = `Redacts patient-identifying attributes from breast tomosynthesis DICOM files
and files them under a stable pseudonym:

  <output>[/<study-id>]/<pseudonym>/<type>/<pseudonym>_<PROC|RAW>_<lat><view>_<C-View|PR|RC>[_n]/

The accession number (or, when it is not numeric, the exam directory name) is
shifted with the pattern file to derive the pseudonym. Every processed file is
recorded in idLookup.csv next to the output so the pseudonym can be traced back.

Without --input the graphical interface is started.

KEEP SECRET: the pattern file and idLookup.csv re-identify patients. Share only
the pseudonym directories.`

const examples = `  # Redact one export, output next to the input
  tomo-anonymizer -i /data/export --pattern /secure/shift.txt

  # Own policy table, extra fields removed, study subdirectory, 4 workers
  tomo-anonymizer -i /data/export -o /data/anon -s STUDY01 \
      --policy confidentiality.csv -f 0x00100010,0x00100030 --workers 4 -v

  # Continue an interrupted run
  tomo-anonymizer -i /data/export --pattern /secure/shift.txt --resume`

// NewRootCommand builds the tomo-anonymizer command. launchGUI is called
// when no input directory is configured; nil makes the input mandatory.
func NewRootCommand(launchGUI GUILauncher) *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:           "tomo-anonymizer",
		Short:         "Anonymize breast tomosynthesis DICOM files",
		Long:          longHelp,
		Example:       examples,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.New(cmd.Flags(), cfgFile)
			if err != nil {
				return err
			}
			s := config.Load(v)

			if s.InputDir == "" && launchGUI != nil {
				return launchGUI(s)
			}

			logger, closer, err := NewLogger(s.Verbosity, s.LogFile, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closer.Close()

			_, err = Run(cmd.Context(), s, logger, cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "YAML config file with the same keys as the flags")
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// NewLogger builds a text logger on stderr, mirrored into logFile when set.
// Verbosity 0 logs warnings, 1 info, 2 and above debug.
func NewLogger(verbosity int, logFile string, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	level := slog.LevelWarn
	switch {
	case verbosity >= 2:
		level = slog.LevelDebug
	case verbosity == 1:
		level = slog.LevelInfo
	}

	var w io.Writer = stderr
	var closer io.Closer = io.NopCloser(nil)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open log file: %w", err)
		}
		w = io.MultiWriter(stderr, f)
		closer = f
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closer, nil
}

// Run validates s and processes the input directory, drawing a progress bar
// and a summary on out. It returns ErrFilesFailed when any file failed.
func Run(ctx context.Context, s config.Settings, logger *slog.Logger, out io.Writer) (*anonymizer.Stats, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	cfg, err := anonymizer.NewConfig(s, logger)
	if err != nil {
		return nil, err
	}

	if missing := cfg.Codec.MissingTools(); len(missing) > 0 {
		logger.Warn("codec tools not found, compressed and multi-frame objects will be copied unexpanded",
			"tools", strings.Join(missing, ","))
	}

	printHeader(out, s)

	if s.DryRun {
		plan, err := anonymizer.DryRun(cfg)
		if err != nil {
			return nil, err
		}
		printPlan(out, plan)
		return &anonymizer.Stats{Total: len(plan.Files), Skipped: len(plan.Files)}, nil
	}

	var bar *progressbar.ProgressBar
	stats, err := anonymizer.ProcessFolder(ctx, cfg, func(current, total int, _, _ string) {
		if bar == nil {
			bar = newProgressBar(out, total)
		}
		_ = bar.Set(current)
	})
	if err != nil {
		return stats, fmt.Errorf("processing failed: %w", err)
	}

	printSummary(out, stats, cfg)
	if !stats.OK() {
		return stats, ErrFilesFailed
	}
	return stats, nil
}

func newProgressBar(out io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Anonymizing"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "#",
			SaucerPadding: "-",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(out)
		}),
	)
}

// printHeader prints the CLI header with configuration
func printHeader(out io.Writer, s config.Settings) {
	fmt.Fprintln(out, "Tomo Anonymizer")
	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintf(out, "Input:     %s\n", s.InputDir)
	fmt.Fprintf(out, "Output:    %s\n", s.OutputRoot())
	fmt.Fprintf(out, "Lookup:    %s\n", s.AuditPath())
	if s.PolicyTable != "" {
		fmt.Fprintf(out, "Policy:    %s\n", s.PolicyTable)
	} else {
		fmt.Fprintln(out, "Policy:    built-in")
	}

	var options []string
	if s.Recursive {
		options = append(options, "Recursive")
	}
	if s.Resume {
		options = append(options, "Resume")
	}
	if s.KeepWorkspace {
		options = append(options, "Keep workspace")
	}
	if s.Workers > 1 {
		options = append(options, fmt.Sprintf("%d workers", s.Workers))
	}
	if len(options) > 0 {
		fmt.Fprintf(out, "Options:   %s\n", strings.Join(options, ", "))
	}
	fmt.Fprintln(out)
}

// printPlan prints what a run would do
func printPlan(out io.Writer, plan *anonymizer.Plan) {
	fmt.Fprintln(out, "[DRY RUN] Would process:")
	for _, f := range plan.Files {
		switch {
		case f.Err != nil:
			fmt.Fprintf(out, "  %s: unreadable (%v)\n", f.File, f.Err)
		case f.Skip:
			fmt.Fprintf(out, "  %s: not tomosynthesis, skipped\n", f.File)
		default:
			fmt.Fprintf(out, "  %s -> %s/%s/%s\n", f.File, f.Pseudonym, f.TypeDir, f.TomoName)
		}
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%d tomosynthesis file(s) in %d exam(s), %d skipped, %d unreadable\n",
		plan.Tomo, len(plan.Exams), plan.Skipped, plan.Unreadable)
}

// printSummary prints the processing summary
func printSummary(out io.Writer, stats *anonymizer.Stats, cfg *anonymizer.Config) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintf(out, "Complete! %d succeeded, %d failed, %d skipped\n",
		stats.Success, stats.Failed, stats.Skipped)
	if stats.Degraded > 0 {
		fmt.Fprintf(out, "Degraded:  %d (codec or copy stage failed, see log)\n", stats.Degraded)
	}
	fmt.Fprintf(out, "Output:    %s\n", cfg.OutputRoot)
	fmt.Fprintf(out, "Lookup:    %s\n", cfg.Audit.Path())
}
