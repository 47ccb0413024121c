package image

import (
	"image"

	"seg-viewer/internal/volume"
)

// RenderPane flattens one pane: the channel slice in grayscale with the
// mask slice drawn over it at the given opacity.
func RenderPane(v *volume.Volume, m *volume.Mask, slice int, opacity float64) *image.RGBA {
	c := NewComposite(v.Width, v.Height)
	c.AddLayer(IntensityLayer(v, slice))
	if m != nil {
		c.AddLayer(LabelLayer(m, slice, opacity))
	}
	return c.Render()
}
