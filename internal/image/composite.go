package image

import (
	"image"
	"image/color"
	stddraw "image/draw"

	"golang.org/x/image/draw"
)

// Composite flattens a stack of layers into a single image.
type Composite struct {
	Width     int
	Height    int
	Layers    []*Layer
	BackColor color.Color
}

// NewComposite creates a Composite with the specified dimensions and a
// black background.
func NewComposite(width, height int) *Composite {
	return &Composite{
		Width:     width,
		Height:    height,
		BackColor: color.Black,
	}
}

// AddLayer adds a layer on top of the stack.
func (c *Composite) AddLayer(layer *Layer) {
	c.Layers = append(c.Layers, layer)
}

// Render produces the flattened image. Layers are drawn bottom to top with
// source-over blending, each scaled by its opacity.
func (c *Composite) Render() *image.RGBA {
	result := image.NewRGBA(image.Rect(0, 0, c.Width, c.Height))
	stddraw.Draw(result, result.Bounds(), &image.Uniform{C: c.BackColor}, image.Point{}, stddraw.Src)

	for _, layer := range c.Layers {
		if layer == nil || layer.Image == nil || !layer.Visible || layer.Opacity <= 0 {
			continue
		}
		c.compositeLayer(result, layer)
	}
	return result
}

// compositeLayer blends a single layer onto dst.
func (c *Composite) compositeLayer(dst *image.RGBA, layer *Layer) {
	src := layer.Image
	b := src.Bounds()
	opacity := clamp(layer.Opacity, 0, 1)

	for y := 0; y < b.Dy() && y < c.Height; y++ {
		for x := 0; x < b.Dx() && x < c.Width; x++ {
			sr, sg, sb, sa := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			if sa == 0 {
				continue
			}
			// RGBA() is alpha-premultiplied; scale everything by opacity.
			alpha := float64(sa) / 0xffff * opacity
			inv := 1 - alpha

			i := dst.PixOffset(x, y)
			dst.Pix[i+0] = blendChannel(float64(sr)/0xffff*opacity, dst.Pix[i+0], inv)
			dst.Pix[i+1] = blendChannel(float64(sg)/0xffff*opacity, dst.Pix[i+1], inv)
			dst.Pix[i+2] = blendChannel(float64(sb)/0xffff*opacity, dst.Pix[i+2], inv)
			dst.Pix[i+3] = uint8(clamp(alpha+float64(dst.Pix[i+3])/255*inv, 0, 1)*255 + 0.5)
		}
	}
}

func blendChannel(src float64, dst uint8, inv float64) uint8 {
	return uint8(clamp(src+float64(dst)/255*inv, 0, 1)*255 + 0.5)
}

// Fit scales src into a w×h image with nearest-neighbor sampling, keeping
// the aspect ratio and centering it on black.
func Fit(src image.Image, w, h int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	stddraw.Draw(out, out.Bounds(), image.Black, image.Point{}, stddraw.Src)

	sb := src.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 || w <= 0 || h <= 0 {
		return out
	}

	scale := float64(w) / float64(sb.Dx())
	if sy := float64(h) / float64(sb.Dy()); sy < scale {
		scale = sy
	}
	dw := int(float64(sb.Dx())*scale + 0.5)
	dh := int(float64(sb.Dy())*scale + 0.5)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	x0 := (w - dw) / 2
	y0 := (h - dh) / 2

	draw.NearestNeighbor.Scale(out, image.Rect(x0, y0, x0+dw, y0+dh), src, sb, draw.Over, nil)
	return out
}

func clamp(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
