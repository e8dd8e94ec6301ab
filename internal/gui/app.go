// Package gui is the fyne wizard started when no input directory is given.
package gui

import (
	"fmt"
	"runtime"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"tomo-anonymizer/internal/config"
	dcm "tomo-anonymizer/internal/dicom"
)

const (
	AppID     = "org.tomo-anonymizer"
	AppTitle  = "Tomosynthesis Anonymizer"
	AppWidth  = 680
	AppHeight = 640
)

// App represents the GUI application
type App struct {
	fyneApp    fyne.App
	mainWindow fyne.Window
	wizard     *Wizard
	steps      *StepBuilder
	settings   config.Settings

	toolsCircle *canvas.Circle
	toolsLabel  *widget.Label
}

// NewApp creates the GUI application, seeding the wizard with s.
func NewApp(s config.Settings) *App {
	a := app.NewWithID(AppID)
	a.Settings().SetTheme(&darkTheme{})

	return &App{
		fyneApp:  a,
		settings: s,
	}
}

func (a *App) codec() *dcm.Codec {
	return dcm.NewCodec(a.settings.DecompressTool, a.settings.ExpandTool)
}

// Run starts the GUI application and blocks until the window is closed.
func (a *App) Run() {
	a.mainWindow = a.fyneApp.NewWindow(AppTitle)
	a.mainWindow.Resize(fyne.NewSize(AppWidth, AppHeight))
	a.mainWindow.CenterOnScreen()

	a.wizard = NewWizard(a.mainWindow)
	a.wizard.SetStatusIndicator(a.createToolsIndicator())
	a.wizard.SetToolsInstalled(len(a.codec().MissingTools()) == 0)

	a.steps = NewStepBuilder(a.mainWindow, a.wizard, a.settings)
	a.wizard.SetStepContent(StepInput, a.steps.BuildStep1())
	a.wizard.SetStepContent(StepOptions, a.steps.BuildStep2())
	a.wizard.SetStepContent(StepPreview, a.steps.BuildStep3())
	a.wizard.SetStepContent(StepProcess, a.steps.BuildStep4())

	a.wizard.SetCanProceed(func(step WizardStep) bool {
		switch step {
		case StepInput:
			return a.steps.ValidateStep1()
		case StepOptions:
			return a.steps.ValidateStep2()
		case StepPreview:
			return a.steps.dryRunComplete
		case StepProcess:
			if !a.steps.IsProcessing() {
				a.mainWindow.Close()
			}
			return false
		}
		return true
	})

	a.wizard.SetOnStepChange(func(step WizardStep) {
		switch step {
		case StepPreview:
			a.steps.RunDryRun()
		case StepProcess:
			a.steps.RunProcess()
		}
	})

	a.wizard.SetOnToolsWarning(func(proceed func()) {
		dialog.ShowConfirm("Codec Tools Missing",
			fmt.Sprintf("%s not found. Compressed and multi-frame files will be copied without decompression or frame expansion.\n\nContinue anyway?",
				strings.Join(a.codec().MissingTools(), ", ")),
			func(confirmed bool) {
				if confirmed {
					proceed()
				}
			}, a.mainWindow)
	})

	a.mainWindow.SetContent(a.wizard.Build())

	a.mainWindow.SetCloseIntercept(func() {
		if !a.steps.IsProcessing() {
			a.mainWindow.Close()
			return
		}
		dialog.ShowConfirm("Confirm Exit",
			"Processing is in progress. Files already started will finish, the rest are left for a resumed run. Exit?",
			func(confirm bool) {
				if confirm {
					a.steps.Cancel()
					a.mainWindow.Close()
				}
			}, a.mainWindow)
	})

	a.mainWindow.ShowAndRun()
}

func toolsInstallHint() string {
	switch runtime.GOOS {
	case "darwin":
		return "brew install gdcm"
	case "linux":
		return "sudo apt-get install libgdcm-tools"
	default:
		return "Install GDCM and add its bin directory to PATH."
	}
}

// createToolsIndicator builds a clickable status dot for the codec tools.
func (a *App) createToolsIndicator() fyne.CanvasObject {
	a.toolsCircle = canvas.NewCircle(ColorStatusRed)
	a.toolsLabel = widget.NewLabel("")
	a.refreshToolsStatus()

	btn := widget.NewButton("", a.showToolsDialog)
	btn.Importance = widget.LowImportance

	return container.NewStack(btn, container.New(&statusLayout{}, a.toolsCircle, a.toolsLabel))
}

func (a *App) refreshToolsStatus() {
	missing := a.codec().MissingTools()
	if len(missing) == 0 {
		a.toolsCircle.FillColor = ColorStatusGreen
		a.toolsLabel.SetText("codec tools: OK")
	} else {
		a.toolsCircle.FillColor = ColorStatusRed
		a.toolsLabel.SetText(fmt.Sprintf("codec tools: %d missing", len(missing)))
	}
	a.toolsCircle.Refresh()
	if a.wizard != nil {
		a.wizard.SetToolsInstalled(len(missing) == 0)
	}
}

func (a *App) showToolsDialog() {
	c := a.codec()

	var lines []string
	for _, tool := range []string{c.DecompressTool, c.ExpandTool} {
		state := "found"
		if !dcm.CheckToolInstalled(tool) {
			state = "missing"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", tool, state))
	}
	status := widget.NewLabel(strings.Join(lines, "\n"))

	hint := widget.NewLabel(toolsInstallHint())
	hint.TextStyle = fyne.TextStyle{Monospace: true}
	hint.Wrapping = fyne.TextWrapWord

	recheck := widget.NewButton("Check again", a.refreshToolsStatus)

	content := container.NewVBox(
		widget.NewLabel("Used to decompress JPEG-LS objects and expand multi-frame tomosynthesis into single frames."),
		status,
		widget.NewSeparator(),
		widget.NewLabel("Install with:"),
		hint,
		recheck,
	)

	d := dialog.NewCustom("Codec Tools", "Close", content, a.mainWindow)
	d.Resize(fyne.NewSize(420, 280))
	d.Show()
}

// statusLayout centers a small dot vertically next to its label.
type statusLayout struct{}

const statusDot = float32(10)

func (statusLayout) MinSize(objects []fyne.CanvasObject) fyne.Size {
	if len(objects) < 2 {
		return fyne.NewSize(0, 0)
	}
	label := objects[1].MinSize()
	return fyne.NewSize(statusDot+8+label.Width, label.Height)
}

func (statusLayout) Layout(objects []fyne.CanvasObject, size fyne.Size) {
	if len(objects) < 2 {
		return
	}
	objects[0].Resize(fyne.NewSize(statusDot, statusDot))
	objects[0].Move(fyne.NewPos(4, (size.Height-statusDot)/2))

	label := objects[1].MinSize()
	objects[1].Resize(label)
	objects[1].Move(fyne.NewPos(statusDot+12, (size.Height-label.Height)/2))
}
