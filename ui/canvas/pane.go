// Package canvas provides the slice pane widget: a grayscale channel slice
// with the segmentation mask layered over it.
package canvas

import (
	"image"
	"image/color"

	segimage "seg-viewer/internal/image"
	"seg-viewer/internal/volume"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
)

// SlicePane shows one slice of one channel. The base and the overlay are
// separate canvas images so opacity changes only touch the overlay.
type SlicePane struct {
	widget.BaseWidget

	background *fynecanvas.Rectangle
	base       *fynecanvas.Image
	overlay    *fynecanvas.Image
	minSize    fyne.Size

	slice   int
	opacity float64

	// Called with -1 for wheel up and +1 for wheel down
	onScroll func(delta int)
}

// NewSlicePane creates an empty pane with the given minimum edge length.
func NewSlicePane(minEdge float32) *SlicePane {
	p := &SlicePane{
		background: fynecanvas.NewRectangle(color.Black),
		base:       newPixelImage(),
		overlay:    newPixelImage(),
		minSize:    fyne.NewSize(minEdge, minEdge),
	}
	p.ExtendBaseWidget(p)
	return p
}

func newPixelImage() *fynecanvas.Image {
	img := fynecanvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 1, 1)))
	img.FillMode = fynecanvas.ImageFillContain
	img.ScaleMode = fynecanvas.ImageScalePixels
	return img
}

// SetSlice renders slice i of v as the base image and of m as the overlay.
// A nil mask clears the overlay.
func (p *SlicePane) SetSlice(v *volume.Volume, m *volume.Mask, i int) {
	p.slice = i
	p.base.Image = segimage.IntensityImage(v, i)
	if m != nil {
		p.overlay.Image = segimage.LabelImage(m, i)
	} else {
		p.overlay.Image = image.NewNRGBA(image.Rect(0, 0, v.Width, v.Height))
	}
	p.base.Refresh()
	p.overlay.Refresh()
}

// SetOpacity changes the overlay opacity without re-rendering the base.
func (p *SlicePane) SetOpacity(o float64) {
	if o < 0 {
		o = 0
	} else if o > 1 {
		o = 1
	}
	p.opacity = o
	p.overlay.Translucency = 1 - o
	p.overlay.Refresh()
}

// Slice returns the slice index last passed to SetSlice.
func (p *SlicePane) Slice() int {
	return p.slice
}

// Opacity returns the overlay opacity.
func (p *SlicePane) Opacity() float64 {
	return p.opacity
}

// OnScroll sets the mouse wheel callback.
func (p *SlicePane) OnScroll(fn func(delta int)) {
	p.onScroll = fn
}

// Scrolled implements fyne.Scrollable. Wheel up moves to the previous slice.
func (p *SlicePane) Scrolled(ev *fyne.ScrollEvent) {
	if p.onScroll == nil {
		return
	}
	if ev.Scrolled.DY > 0 {
		p.onScroll(-1)
	} else if ev.Scrolled.DY < 0 {
		p.onScroll(+1)
	}
}

// MinSize returns the pane's minimum size.
func (p *SlicePane) MinSize() fyne.Size {
	return p.minSize
}

// CreateRenderer implements fyne.Widget.
func (p *SlicePane) CreateRenderer() fyne.WidgetRenderer {
	return &slicePaneRenderer{pane: p}
}

type slicePaneRenderer struct {
	pane *SlicePane
}

func (r *slicePaneRenderer) Layout(size fyne.Size) {
	for _, o := range r.Objects() {
		o.Move(fyne.NewPos(0, 0))
		o.Resize(size)
	}
}

func (r *slicePaneRenderer) MinSize() fyne.Size {
	return r.pane.minSize
}

func (r *slicePaneRenderer) Refresh() {
	for _, o := range r.Objects() {
		o.Refresh()
	}
}

func (r *slicePaneRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.pane.background, r.pane.base, r.pane.overlay}
}

func (r *slicePaneRenderer) Destroy() {}
