// Package image turns volume slices into displayable layers: a grayscale
// base per channel and a colored, partly transparent label overlay.
package image

import (
	"image"
	"image/color"

	"seg-viewer/internal/volume"
)

// Layer is one image in a pane's stack.
type Layer struct {
	Image   image.Image
	Visible bool
	Opacity float64 // 0.0 - 1.0, multiplied into the pixel alpha
}

// NewLayer creates a visible, opaque layer.
func NewLayer() *Layer {
	return &Layer{
		Visible: true,
		Opacity: 1.0,
	}
}

// Fixed label colors. LabelNone has no entry: it is never drawn.
var labelColors = [volume.MaxLabel + 1]color.NRGBA{
	volume.LabelEdema:     {R: 0x00, G: 0x33, B: 0xFF, A: 0xFF}, // blue
	volume.LabelNecrosis:  {R: 0xFF, G: 0xE0, B: 0x00, A: 0xFF}, // yellow
	volume.LabelEnhancing: {R: 0xE0, G: 0x10, B: 0x10, A: 0xFF}, // red
}

// LabelColor returns the overlay color of l. LabelNone is fully
// transparent; labels above MaxLabel use MaxLabel's color.
func LabelColor(l volume.Label) color.NRGBA {
	if l.Transparent() {
		return color.NRGBA{}
	}
	if l > volume.MaxLabel {
		l = volume.MaxLabel
	}
	return labelColors[l]
}

// IntensityImage renders slice i of v as 8-bit grayscale through the
// volume's display window.
func IntensityImage(v *volume.Volume, i int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, v.Width, v.Height))
	for p, x := range v.Slice(i) {
		img.Pix[p] = uint8(v.Normalize(x)*255 + 0.5)
	}
	return img
}

// LabelImage renders slice i of m with the fixed label colors. Unlabelled
// voxels stay fully transparent. The image is opaque where labelled; the
// overlay opacity belongs to the Layer.
func LabelImage(m *volume.Mask, i int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for p, l := range m.Slice(i) {
		if l.Transparent() {
			continue
		}
		c := LabelColor(l)
		img.Pix[4*p+0] = c.R
		img.Pix[4*p+1] = c.G
		img.Pix[4*p+2] = c.B
		img.Pix[4*p+3] = c.A
	}
	return img
}

// IntensityLayer wraps IntensityImage in an opaque layer.
func IntensityLayer(v *volume.Volume, i int) *Layer {
	layer := NewLayer()
	layer.Image = IntensityImage(v, i)
	return layer
}

// LabelLayer wraps LabelImage in a layer with the given opacity.
func LabelLayer(m *volume.Mask, i int, opacity float64) *Layer {
	layer := NewLayer()
	layer.Image = LabelImage(m, i)
	layer.Opacity = clamp(opacity, 0, 1)
	return layer
}
