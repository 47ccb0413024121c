// Package volume holds the 3D arrays shown by the viewer: intensity volumes
// and label masks, both indexed [slice][row][column].
package volume

import (
	"fmt"
	"math"
	"sort"

	"seg-viewer/internal/nifti"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Percentiles used for the display window.
const (
	windowLowQuantile  = 0.005
	windowHighQuantile = 0.995

	// maxWindowSamples bounds the number of voxels sorted for the window.
	maxWindowSamples = 1 << 16
)

// Shape is the size of a 3D array.
type Shape struct {
	Depth  int // slices
	Height int // rows
	Width  int // columns
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Depth, s.Height, s.Width)
}

// Voxels returns the number of elements.
func (s Shape) Voxels() int {
	return s.Depth * s.Height * s.Width
}

// PlaneSize returns the number of elements in one slice.
func (s Shape) PlaneSize() int {
	return s.Height * s.Width
}

// Volume is a 3D intensity array.
type Volume struct {
	Shape
	Data []float32

	// Display window: intensities at or below Low render black, at or
	// above High render white.
	Low, High float32
}

// New allocates a zero volume.
func New(s Shape) *Volume {
	return &Volume{Shape: s, Data: make([]float32, s.Voxels())}
}

// FromNIfTI wraps decoded NIfTI data as a Volume and computes its window.
func FromNIfTI(img *nifti.Image) *Volume {
	v := &Volume{
		Shape: Shape{Depth: img.Depth, Height: img.Height, Width: img.Width},
		Data:  img.Data,
	}
	v.ComputeWindow()
	return v
}

// SliceCount returns the number of slices along the first axis.
func (v *Volume) SliceCount() int {
	return v.Depth
}

// Slice returns the row-major plane at index i. The result aliases the
// volume's data.
func (v *Volume) Slice(i int) []float32 {
	n := v.PlaneSize()
	return v.Data[i*n : (i+1)*n]
}

// Rotate180 turns every slice by 180 degrees in place, reversing both rows
// and columns.
func (v *Volume) Rotate180() {
	n := v.PlaneSize()
	for s := 0; s < v.Depth; s++ {
		reverse(v.Data[s*n : (s+1)*n])
	}
}

// ComputeWindow sets Low/High from robust percentiles of the data, falling
// back to the full range when the percentiles coincide.
func (v *Volume) ComputeWindow() {
	if len(v.Data) == 0 {
		v.Low, v.High = 0, 1
		return
	}

	sample := sampleFloat64(v.Data, maxWindowSamples)
	sort.Float64s(sample)

	low := stat.Quantile(windowLowQuantile, stat.Empirical, sample, nil)
	high := stat.Quantile(windowHighQuantile, stat.Empirical, sample, nil)
	if high <= low {
		low, high = floats.Min(sample), floats.Max(sample)
	}
	if high <= low {
		high = low + 1
	}
	v.Low, v.High = float32(low), float32(high)
}

// Normalize maps an intensity into [0,1] using the display window.
func (v *Volume) Normalize(x float32) float64 {
	if math.IsNaN(float64(x)) {
		return 0
	}
	if v.High <= v.Low {
		if x > v.Low {
			return 1
		}
		return 0
	}
	t := float64(x-v.Low) / float64(v.High-v.Low)
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

func sampleFloat64(data []float32, max int) []float64 {
	step := 1
	if len(data) > max {
		step = (len(data) + max - 1) / max
	}
	out := make([]float64, 0, len(data)/step+1)
	for i := 0; i < len(data); i += step {
		x := float64(data[i])
		if math.IsNaN(x) {
			continue
		}
		out = append(out, x)
	}
	if len(out) == 0 {
		out = append(out, 0)
	}
	return out
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
