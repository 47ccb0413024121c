// Package colorutil provides small color helpers shared by the viewers.
package colorutil

import (
	"fmt"
	"image/color"
)

// Hex formats c as "#RRGGBB", dropping alpha. Premultiplied colors are
// written as they are stored.
func Hex(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02X%02X%02X", r>>8, g>>8, b>>8)
}

// Opaque returns c with full alpha, un-premultiplying it first.
func Opaque(c color.Color) color.RGBA {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return color.RGBA{R: n.R, G: n.G, B: n.B, A: 0xFF}
}
