package gui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
)

// WizardStep is a page of the run wizard.
type WizardStep int

const (
	StepInput WizardStep = iota
	StepOptions
	StepPreview
	StepProcess
)

var stepTitles = []string{"Input", "Options", "Preview", "Process"}

// Wizard manages page navigation and the step indicator.
type Wizard struct {
	window      fyne.Window
	currentStep WizardStep

	stepContents map[WizardStep]fyne.CanvasObject

	backButton *widget.Button
	nextButton *widget.Button

	dots   []*canvas.Circle
	labels []*canvas.Text

	contentContainer *fyne.Container
	stepIndicator    fyne.CanvasObject

	// shown between the navigation buttons
	statusIndicator fyne.CanvasObject

	toolsInstalled bool

	onStepChange   func(WizardStep)
	canProceed     func(WizardStep) bool
	onToolsWarning func(proceed func())
}

// NewWizard creates a new wizard instance
func NewWizard(window fyne.Window) *Wizard {
	w := &Wizard{
		window:       window,
		stepContents: make(map[WizardStep]fyne.CanvasObject),
	}

	w.backButton = widget.NewButton("Back", w.Previous)
	w.backButton.Disable()
	w.nextButton = widget.NewButton("Next", w.Next)
	w.nextButton.Importance = widget.HighImportance

	w.buildStepIndicator()
	return w
}

func (w *Wizard) buildStepIndicator() {
	var items []fyne.CanvasObject
	for i, title := range stepTitles {
		dot := canvas.NewCircle(ColorStepInactive)
		dot.StrokeWidth = 2
		w.dots = append(w.dots, dot)

		label := canvas.NewText(title, ColorTextSecondary)
		label.TextSize = 12
		label.Alignment = fyne.TextAlignCenter
		w.labels = append(w.labels, label)

		items = append(items, container.NewVBox(
			container.NewCenter(container.New(fixedLayout{size: fyne.NewSize(24, 24)}, dot)),
			container.NewCenter(label),
		))
		if i < len(stepTitles)-1 {
			items = append(items, container.New(fixedLayout{size: fyne.NewSize(40, 2), min: fyne.NewSize(40, 24), y: 11},
				canvas.NewRectangle(ColorBorder)))
		}
	}

	w.stepIndicator = container.NewHBox(items...)
	w.updateStepIndicator()
}

// fixedLayout gives every object the same size at a fixed offset.
type fixedLayout struct {
	size fyne.Size
	min  fyne.Size
	y    float32
}

func (l fixedLayout) MinSize([]fyne.CanvasObject) fyne.Size {
	if l.min == (fyne.Size{}) {
		return l.size
	}
	return l.min
}

func (l fixedLayout) Layout(objects []fyne.CanvasObject, _ fyne.Size) {
	for _, o := range objects {
		o.Resize(l.size)
		o.Move(fyne.NewPos(0, l.y))
	}
}

func (w *Wizard) updateStepIndicator() {
	for i := range stepTitles {
		dot, label := w.dots[i], w.labels[i]
		switch step := WizardStep(i); {
		case step < w.currentStep:
			dot.FillColor, dot.StrokeColor = ColorStepComplete, ColorStepComplete
			label.Color = ColorTextPrimary
		case step == w.currentStep:
			dot.FillColor, dot.StrokeColor = ColorPrimaryAccent, ColorPrimaryAccent
			label.Color = ColorTextPrimary
		default:
			dot.FillColor, dot.StrokeColor = ColorStepInactive, ColorBorder
			label.Color = ColorTextSecondary
		}
		dot.Refresh()
		label.Refresh()
	}
}

// SetStepContent sets the content for a specific step
func (w *Wizard) SetStepContent(step WizardStep, content fyne.CanvasObject) {
	w.stepContents[step] = content
}

// SetOnStepChange sets the callback for when the step changes
func (w *Wizard) SetOnStepChange(callback func(WizardStep)) {
	w.onStepChange = callback
}

// SetCanProceed sets the validation callback for step transitions
func (w *Wizard) SetCanProceed(callback func(WizardStep) bool) {
	w.canProceed = callback
}

// SetStatusIndicator sets a status widget shown in the navigation row.
func (w *Wizard) SetStatusIndicator(indicator fyne.CanvasObject) {
	w.statusIndicator = indicator
}

// SetToolsInstalled records whether the codec tools were found.
func (w *Wizard) SetToolsInstalled(installed bool) {
	w.toolsInstalled = installed
}

// SetOnToolsWarning sets the callback run when leaving the input step
// without codec tools. Calling proceed continues to the next step.
func (w *Wizard) SetOnToolsWarning(callback func(proceed func())) {
	w.onToolsWarning = callback
}

// Next moves to the next step
func (w *Wizard) Next() {
	if w.canProceed != nil && !w.canProceed(w.currentStep) {
		return
	}
	advance := func() {
		if w.currentStep < StepProcess {
			w.GoToStep(w.currentStep + 1)
		}
	}
	if w.currentStep == StepInput && !w.toolsInstalled && w.onToolsWarning != nil {
		w.onToolsWarning(advance)
		return
	}
	advance()
}

// Previous moves to the previous step
func (w *Wizard) Previous() {
	if w.currentStep > StepInput {
		w.GoToStep(w.currentStep - 1)
	}
}

// GoToStep navigates to a specific step
func (w *Wizard) GoToStep(step WizardStep) {
	if step < StepInput || step > StepProcess {
		return
	}

	w.currentStep = step
	w.updateStepIndicator()
	w.updateNavButtons()
	w.showContent()

	if w.onStepChange != nil {
		w.onStepChange(step)
	}
}

func (w *Wizard) updateNavButtons() {
	if w.currentStep == StepInput {
		w.backButton.Disable()
	} else {
		w.backButton.Enable()
	}

	switch w.currentStep {
	case StepProcess:
		// enabled again when the batch finishes
		w.nextButton.SetText("Done")
		w.nextButton.Disable()
	case StepPreview:
		w.nextButton.SetText("Anonymize")
	default:
		w.nextButton.SetText("Next")
		w.nextButton.Enable()
	}
}

func (w *Wizard) showContent() {
	if w.contentContainer == nil {
		return
	}
	w.contentContainer.Objects = nil
	if content, ok := w.stepContents[w.currentStep]; ok {
		w.contentContainer.Objects = []fyne.CanvasObject{content}
	}
	w.contentContainer.Refresh()
}

// SetNextEnabled enables or disables the next button
func (w *Wizard) SetNextEnabled(enabled bool) {
	if enabled {
		w.nextButton.Enable()
	} else {
		w.nextButton.Disable()
	}
}

// SetNextText sets the text of the next button
func (w *Wizard) SetNextText(text string) {
	w.nextButton.SetText(text)
}

// SetBackEnabled enables or disables the back button
func (w *Wizard) SetBackEnabled(enabled bool) {
	if enabled && w.currentStep > StepInput {
		w.backButton.Enable()
	} else {
		w.backButton.Disable()
	}
}

// Build creates the complete wizard UI
func (w *Wizard) Build() fyne.CanvasObject {
	w.contentContainer = container.NewStack()
	w.showContent()

	cardBg := canvas.NewRectangle(ColorCardBackground)
	cardBg.CornerRadius = 8
	card := container.NewStack(cardBg, container.NewPadded(w.contentContainer))

	var middle fyne.CanvasObject = layout.NewSpacer()
	if w.statusIndicator != nil {
		middle = container.NewCenter(w.statusIndicator)
	}
	navRow := container.NewBorder(nil, nil, w.backButton, w.nextButton, middle)

	separator := canvas.NewRectangle(ColorBorder)
	separator.SetMinSize(fyne.NewSize(0, 1))

	return container.NewBorder(
		container.NewVBox(container.NewPadded(container.NewCenter(w.stepIndicator)), separator),
		container.NewPadded(navRow),
		nil, nil,
		container.NewPadded(card),
	)
}
