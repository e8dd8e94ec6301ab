package gui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"tomo-anonymizer/internal/anonymizer"
	"tomo-anonymizer/internal/cli"
	"tomo-anonymizer/internal/config"
	dcm "tomo-anonymizer/internal/dicom"
)

// StepBuilder handles creating UI content for each wizard step
type StepBuilder struct {
	window fyne.Window
	wizard *Wizard
	seed   config.Settings

	// Step 1: folders and pattern
	inputEntry     *widget.Entry
	outputEntry    *widget.Entry
	patternEntry   *widget.Entry
	fileCountLabel *widget.Label

	// Step 2: options
	studyIDEntry   *widget.Entry
	policyEntry    *widget.Entry
	fieldsEntry    *widget.Entry
	workersEntry   *widget.Entry
	recursiveCheck *widget.Check
	resumeCheck    *widget.Check
	keepCheck      *widget.Check

	// Step 3: preview
	previewProgress *widget.ProgressBar
	previewStatus   *widget.Label
	previewSummary  *widget.Label
	previewFiles    *widget.Label
	dryRunComplete  bool

	// Step 4: process
	processProgress    *widget.ProgressBar
	processStatus      *widget.Label
	processFileCount   *widget.Label
	processCurrentFile *widget.Label
	processStats       *widget.Label
	processSummary     *widget.Label

	processingMu sync.Mutex
	processing   bool
	cancel       context.CancelFunc
}

// NewStepBuilder creates a step builder whose fields start from seed.
func NewStepBuilder(window fyne.Window, wizard *Wizard, seed config.Settings) *StepBuilder {
	return &StepBuilder{
		window: window,
		wizard: wizard,
		seed:   seed,
	}
}

func stepTitle(text string) *canvas.Text {
	t := canvas.NewText(text, ColorTextPrimary)
	t.TextSize = 18
	t.TextStyle = fyne.TextStyle{Bold: true}
	return t
}

func fieldLabel(text string) *widget.Label {
	return widget.NewLabelWithStyle(text, fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
}

func (s *StepBuilder) folderRow(entry *widget.Entry) fyne.CanvasObject {
	browse := widget.NewButton("Browse", func() {
		dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
			if err != nil || uri == nil {
				return
			}
			entry.SetText(uri.Path())
		}, s.window)
	})
	return container.NewBorder(nil, nil, nil, browse, entry)
}

func (s *StepBuilder) fileRow(entry *widget.Entry) fyne.CanvasObject {
	browse := widget.NewButton("Browse", func() {
		dialog.ShowFileOpen(func(r fyne.URIReadCloser, err error) {
			if err != nil || r == nil {
				return
			}
			entry.SetText(r.URI().Path())
			r.Close()
		}, s.window)
	})
	return container.NewBorder(nil, nil, nil, browse, entry)
}

// BuildStep1 creates the Input step content
func (s *StepBuilder) BuildStep1() fyne.CanvasObject {
	f := formFrom(s.seed)

	s.fileCountLabel = widget.NewLabel("")
	s.fileCountLabel.Wrapping = fyne.TextWrapWord

	s.inputEntry = widget.NewEntry()
	s.inputEntry.SetPlaceHolder("/path/to/exported/exams")
	s.inputEntry.OnChanged = func(string) { s.updateFileCount() }
	s.inputEntry.SetText(f.Input)

	s.outputEntry = widget.NewEntry()
	s.outputEntry.SetPlaceHolder("Same as input")
	s.outputEntry.SetText(f.Output)

	s.patternEntry = widget.NewEntry()
	s.patternEntry.SetPlaceHolder("/secure/shift_pattern.txt")
	s.patternEntry.SetText(f.Pattern)

	patternHint := widget.NewLabel("Two lines of digits shifting accession numbers and dates. Keep it secret.")
	patternHint.Wrapping = fyne.TextWrapWord

	content := container.NewVBox(
		stepTitle("Select Input"),
		widget.NewSeparator(),
		container.NewVBox(
			fieldLabel("Input Folder"),
			s.folderRow(s.inputEntry),
			s.fileCountLabel,
		),
		container.NewVBox(
			fieldLabel("Output Folder"),
			s.folderRow(s.outputEntry),
		),
		widget.NewSeparator(),
		container.NewVBox(
			fieldLabel("Shift Pattern File"),
			patternHint,
			s.fileRow(s.patternEntry),
		),
	)
	return container.NewPadded(content)
}

// BuildStep2 creates the Options step content
func (s *StepBuilder) BuildStep2() fyne.CanvasObject {
	f := formFrom(s.seed)

	s.studyIDEntry = widget.NewEntry()
	s.studyIDEntry.SetPlaceHolder("Optional, also used as output subdirectory")
	s.studyIDEntry.SetText(f.StudyID)

	s.policyEntry = widget.NewEntry()
	s.policyEntry.SetPlaceHolder("Built-in policy")
	s.policyEntry.SetText(f.PolicyTable)

	s.fieldsEntry = widget.NewEntry()
	s.fieldsEntry.SetPlaceHolder("0x00100010,0x00100030")
	s.fieldsEntry.SetText(f.Fields)

	s.workersEntry = widget.NewEntry()
	s.workersEntry.SetText(f.Workers)

	s.recursiveCheck = widget.NewCheck("Search subdirectories", nil)
	s.recursiveCheck.SetChecked(f.Recursive)
	s.resumeCheck = widget.NewCheck("Resume previous run", nil)
	s.resumeCheck.SetChecked(f.Resume)
	s.keepCheck = widget.NewCheck("Keep workspace of degraded files", nil)
	s.keepCheck.SetChecked(f.KeepWorkspace)

	workersRow := container.NewHBox(widget.NewLabel("Workers:"), s.workersEntry)

	content := container.NewVBox(
		stepTitle("Configure Options"),
		widget.NewSeparator(),
		container.NewVBox(
			fieldLabel("Study ID"),
			s.studyIDEntry,
		),
		container.NewVBox(
			fieldLabel("Confidentiality Policy Table"),
			s.fileRow(s.policyEntry),
		),
		container.NewVBox(
			fieldLabel("Fields to Remove"),
			widget.NewLabel("Replaces the policy's Remove set when given"),
			s.fieldsEntry,
		),
		widget.NewSeparator(),
		container.NewVBox(
			fieldLabel("Options"),
			container.NewHBox(s.recursiveCheck, s.resumeCheck),
			s.keepCheck,
			workersRow,
		),
	)
	return container.NewVScroll(container.NewPadded(content))
}

// BuildStep3 creates the Preview step content
func (s *StepBuilder) BuildStep3() fyne.CanvasObject {
	s.previewProgress = widget.NewProgressBar()
	s.previewStatus = widget.NewLabel("Scanning files...")
	s.previewSummary = widget.NewLabel("")
	s.previewSummary.Wrapping = fyne.TextWrapWord
	s.previewFiles = widget.NewLabel("")
	s.previewFiles.TextStyle = fyne.TextStyle{Monospace: true}

	scroll := container.NewVScroll(s.previewFiles)
	scroll.SetMinSize(fyne.NewSize(0, 200))

	header := container.NewVBox(
		stepTitle("Preview (Dry Run)"),
		widget.NewSeparator(),
		s.previewProgress,
		s.previewStatus,
		s.previewSummary,
		widget.NewSeparator(),
	)
	return container.NewBorder(container.NewPadded(header), nil, nil, nil, container.NewPadded(scroll))
}

// BuildStep4 creates the Process step content
func (s *StepBuilder) BuildStep4() fyne.CanvasObject {
	s.processProgress = widget.NewProgressBar()
	s.processStatus = widget.NewLabel("Ready to process")
	s.processFileCount = widget.NewLabel("")
	s.processCurrentFile = widget.NewLabel("")
	s.processCurrentFile.Wrapping = fyne.TextWrapWord
	s.processStats = widget.NewLabel("")
	s.processSummary = widget.NewLabel("")
	s.processSummary.Wrapping = fyne.TextWrapWord

	header := container.NewVBox(
		stepTitle("Processing"),
		widget.NewSeparator(),
		s.processProgress,
		s.processStatus,
		s.processFileCount,
		s.processCurrentFile,
		widget.NewSeparator(),
	)
	scroll := container.NewVScroll(container.NewVBox(s.processStats, s.processSummary))
	scroll.SetMinSize(fyne.NewSize(0, 150))

	return container.NewBorder(container.NewPadded(header), nil, nil, nil, container.NewPadded(scroll))
}

// updateFileCount counts candidate files in the background.
func (s *StepBuilder) updateFileCount() {
	input := strings.TrimSpace(s.inputEntry.Text)
	if input == "" {
		s.fileCountLabel.SetText("")
		return
	}
	s.fileCountLabel.SetText("Scanning...")

	go func() {
		files, err := dcm.FindDicomFiles(input, true)
		switch {
		case err != nil:
			s.fileCountLabel.SetText("Folder not readable")
		case len(files) == 0:
			s.fileCountLabel.SetText("No DICOM files found")
		default:
			s.fileCountLabel.SetText(fmt.Sprintf("Found %d DICOM file(s) including subdirectories", len(files)))
		}
	}()
}

func (s *StepBuilder) currentForm() form {
	f := formFrom(s.seed)
	f.Input = s.inputEntry.Text
	f.Output = s.outputEntry.Text
	f.Pattern = s.patternEntry.Text
	if s.studyIDEntry != nil {
		f.StudyID = s.studyIDEntry.Text
		f.PolicyTable = s.policyEntry.Text
		f.Fields = s.fieldsEntry.Text
		f.Workers = s.workersEntry.Text
		f.Recursive = s.recursiveCheck.Checked
		f.Resume = s.resumeCheck.Checked
		f.KeepWorkspace = s.keepCheck.Checked
	}
	return f
}

// Settings returns the validated settings from the current form values.
func (s *StepBuilder) Settings() (config.Settings, error) {
	return s.currentForm().settings(s.seed)
}

// ValidateStep1 validates the input step
func (s *StepBuilder) ValidateStep1() bool {
	if strings.TrimSpace(s.inputEntry.Text) == "" {
		dialog.ShowError(config.ErrNoInput, s.window)
		return false
	}
	if strings.TrimSpace(s.patternEntry.Text) == "" {
		dialog.ShowError(fmt.Errorf("please select the shift pattern file"), s.window)
		return false
	}
	return true
}

// ValidateStep2 validates the options step
func (s *StepBuilder) ValidateStep2() bool {
	if _, err := s.Settings(); err != nil {
		dialog.ShowError(err, s.window)
		return false
	}
	return true
}

func (s *StepBuilder) newConfig(settings config.Settings) (*anonymizer.Config, io.Closer, error) {
	logger, closer, err := cli.NewLogger(settings.Verbosity, settings.LogFile, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := anonymizer.NewConfig(settings, logger)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return cfg, closer, nil
}

// RunDryRun classifies the input when entering step 3.
func (s *StepBuilder) RunDryRun() {
	s.dryRunComplete = false
	s.previewProgress.SetValue(0)
	s.previewStatus.SetText("Scanning files...")
	s.previewSummary.SetText("")
	s.previewFiles.SetText("")
	s.wizard.SetNextEnabled(false)

	settings, err := s.Settings()
	if err != nil {
		s.previewStatus.SetText(fmt.Sprintf("Error: %v", err))
		return
	}

	go func() {
		cfg, closer, err := s.newConfig(settings)
		if err != nil {
			s.previewStatus.SetText(fmt.Sprintf("Error: %v", err))
			return
		}
		defer closer.Close()
		s.previewProgress.SetValue(0.2)

		plan, err := anonymizer.DryRun(cfg)
		if err != nil {
			s.previewStatus.SetText(fmt.Sprintf("Error: %v", err))
			return
		}
		if len(plan.Files) == 0 {
			s.previewStatus.SetText("No DICOM files found")
			s.previewSummary.SetText("Please go back and check the input folder.")
			return
		}

		s.previewFiles.SetText(planText(plan))
		s.previewProgress.SetValue(1)
		s.previewStatus.SetText("Scan complete!")

		summary := fmt.Sprintf("Tomosynthesis files: %d in %d exam(s)\nSkipped: %d  Unreadable: %d\nOutput: %s",
			plan.Tomo, len(plan.Exams), plan.Skipped, plan.Unreadable, cfg.OutputRoot)
		if missing := cfg.Codec.MissingTools(); len(missing) > 0 {
			summary += fmt.Sprintf("\nMissing codec tools: %s", strings.Join(missing, ", "))
		}
		s.previewSummary.SetText(summary)

		if plan.Tomo == 0 {
			return
		}
		s.dryRunComplete = true
		s.wizard.SetNextEnabled(true)
	}()
}

func planText(plan *anonymizer.Plan) string {
	var b strings.Builder
	for _, id := range plan.Pseudonyms() {
		fmt.Fprintf(&b, "%s (%d file(s))\n", id, plan.Exams[id])
		for _, f := range plan.Files {
			if f.Pseudonym == id {
				fmt.Fprintf(&b, "  %s/%s\n", f.TypeDir, f.TomoName)
			}
		}
	}
	return b.String()
}

// RunProcess runs the batch when entering step 4.
func (s *StepBuilder) RunProcess() {
	s.processingMu.Lock()
	if s.processing {
		s.processingMu.Unlock()
		return
	}
	s.processing = true
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.processingMu.Unlock()

	s.processProgress.SetValue(0)
	s.processStatus.SetText("Starting...")
	s.processFileCount.SetText("")
	s.processCurrentFile.SetText("")
	s.processStats.SetText("")
	s.processSummary.SetText("")
	s.wizard.SetBackEnabled(false)
	s.wizard.SetNextEnabled(false)

	go func() {
		defer func() {
			cancel()
			s.processingMu.Lock()
			s.processing = false
			s.cancel = nil
			s.processingMu.Unlock()
			s.wizard.SetNextText("Done")
			s.wizard.SetNextEnabled(true)
		}()

		settings, err := s.Settings()
		if err != nil {
			s.processStatus.SetText("Error!")
			s.processSummary.SetText(err.Error())
			return
		}
		cfg, closer, err := s.newConfig(settings)
		if err != nil {
			s.processStatus.SetText("Error!")
			s.processSummary.SetText(err.Error())
			return
		}
		defer closer.Close()

		stats, err := anonymizer.ProcessFolder(ctx, cfg, func(current, total int, filename, _ string) {
			s.processProgress.SetValue(float64(current) / float64(total))
			s.processFileCount.SetText(fmt.Sprintf("Processed %d/%d files", current, total))
			s.processCurrentFile.SetText(fmt.Sprintf("Last: %s", filename))
		})
		if err != nil {
			s.processStatus.SetText("Error!")
			s.processSummary.SetText(fmt.Sprintf("Error: %v", err))
			if stats != nil {
				s.processStats.SetText(statsText(stats))
			}
			return
		}

		s.processProgress.SetValue(1)
		if stats.OK() {
			s.processStatus.SetText("Complete!")
		} else {
			s.processStatus.SetText("Complete with errors")
		}
		s.processStats.SetText(statsText(stats))
		s.processSummary.SetText(fmt.Sprintf("Output: %s\nLookup table: %s\n\nKeep the lookup table and the pattern file secret.",
			cfg.OutputRoot, cfg.Audit.Path()))
	}()
}

func statsText(stats *anonymizer.Stats) string {
	return fmt.Sprintf("Success: %d | Degraded: %d | Skipped: %d | Failed: %d",
		stats.Success, stats.Degraded, stats.Skipped, stats.Failed)
}

// IsProcessing returns whether processing is in progress
func (s *StepBuilder) IsProcessing() bool {
	s.processingMu.Lock()
	defer s.processingMu.Unlock()
	return s.processing
}

// Cancel stops scheduling further files of a running batch.
func (s *StepBuilder) Cancel() {
	s.processingMu.Lock()
	defer s.processingMu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}
