package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

func rgb(r, g, b uint8) color.NRGBA { return color.NRGBA{R: r, G: g, B: b, A: 0xFF} }

var (
	ColorBackground     = rgb(0x1E, 0x1E, 0x2E)
	ColorCardBackground = rgb(0x2A, 0x2A, 0x3E)
	ColorPrimaryAccent  = rgb(0x89, 0xB4, 0xFA)
	ColorTextPrimary    = rgb(0xCD, 0xD6, 0xF4)
	ColorTextSecondary  = rgb(0xA6, 0xAD, 0xC8)
	ColorBorder         = rgb(0x45, 0x47, 0x5A)
	ColorStepInactive   = ColorBorder
	ColorStepComplete   = rgb(0xA6, 0xE3, 0xA1)
	ColorStatusGreen    = rgb(0x40, 0xC0, 0x57)
	ColorStatusRed      = rgb(0xFA, 0x52, 0x52)
)

var darkColors = map[fyne.ThemeColorName]color.Color{
	theme.ColorNameBackground:        ColorBackground,
	theme.ColorNameButton:            ColorPrimaryAccent,
	theme.ColorNameDisabledButton:    rgb(0x58, 0x5B, 0x70),
	theme.ColorNameDisabled:          rgb(0x58, 0x5B, 0x70),
	theme.ColorNameError:             rgb(0xF3, 0x8B, 0xA8),
	theme.ColorNameFocus:             ColorPrimaryAccent,
	theme.ColorNameForeground:        ColorTextPrimary,
	theme.ColorNameHeaderBackground:  ColorCardBackground,
	theme.ColorNameHover:             rgb(0x6E, 0x9A, 0xE0),
	theme.ColorNameHyperlink:         ColorPrimaryAccent,
	theme.ColorNameInputBackground:   rgb(0x31, 0x32, 0x44),
	theme.ColorNameInputBorder:       ColorBorder,
	theme.ColorNameMenuBackground:    ColorCardBackground,
	theme.ColorNameOverlayBackground: ColorCardBackground,
	theme.ColorNamePlaceHolder:       ColorTextSecondary,
	theme.ColorNamePrimary:           ColorPrimaryAccent,
	theme.ColorNameScrollBar:         ColorBorder,
	theme.ColorNameSelection:         color.NRGBA{R: 0x89, G: 0xB4, B: 0xFA, A: 0x66},
	theme.ColorNameSeparator:         ColorBorder,
	theme.ColorNameShadow:            color.NRGBA{A: 0x66},
	theme.ColorNameSuccess:           ColorStepComplete,
	theme.ColorNameWarning:           rgb(0xF9, 0xE2, 0xAF),
}

var darkSizes = map[fyne.ThemeSizeName]float32{
	theme.SizeNamePadding:        8,
	theme.SizeNameInnerPadding:   12,
	theme.SizeNameText:           14,
	theme.SizeNameHeadingText:    20,
	theme.SizeNameSubHeadingText: 16,
	theme.SizeNameCaptionText:    12,
	theme.SizeNameInputBorder:    2,
}

// darkTheme is a fixed dark palette on top of the default theme.
type darkTheme struct{}

var _ fyne.Theme = (*darkTheme)(nil)

func (darkTheme) Color(name fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	if c, ok := darkColors[name]; ok {
		return c
	}
	return theme.DefaultTheme().Color(name, theme.VariantDark)
}

func (darkTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (darkTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (darkTheme) Size(name fyne.ThemeSizeName) float32 {
	if s, ok := darkSizes[name]; ok {
		return s
	}
	return theme.DefaultTheme().Size(name)
}
