// Package theme provides the dark viewer theme. Slices are shown on black,
// so the window chrome stays dark whatever the desktop variant is.
package theme

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// ViewerTheme is a black-background theme for reviewing slices.
type ViewerTheme struct{}

var _ fyne.Theme = (*ViewerTheme)(nil)

func (t *ViewerTheme) Color(name fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground:
		return color.Black
	case theme.ColorNameInputBackground:
		return color.NRGBA{R: 0x1C, G: 0x1C, B: 0x1C, A: 0xFF}
	case theme.ColorNamePrimary:
		return color.NRGBA{R: 0xE0, G: 0x10, B: 0x10, A: 0xFF} // matches the enhancing label
	case theme.ColorNameForeground:
		return color.NRGBA{R: 0xE8, G: 0xE8, B: 0xE8, A: 0xFF}
	case theme.ColorNameScrollBar:
		return color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF}
	default:
		// Everything else follows the dark variant.
		return theme.DefaultTheme().Color(name, theme.VariantDark)
	}
}

func (t *ViewerTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *ViewerTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *ViewerTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNamePadding:
		return 2 // panes sit next to each other
	case theme.SizeNameInnerPadding:
		return 6
	default:
		return theme.DefaultTheme().Size(name)
	}
}
