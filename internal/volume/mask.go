package volume

import (
	"math"

	"seg-viewer/internal/nifti"
)

// Label is a segmentation class stored in a mask voxel.
type Label uint8

const (
	LabelNone     Label = iota // no overlay, drawn transparent
	LabelEdema                 // blue
	LabelNecrosis              // yellow
	LabelEnhancing             // red
)

// MaxLabel is the highest label with its own color; larger values clip to it.
const MaxLabel = LabelEnhancing

func (l Label) String() string {
	switch l {
	case LabelNone:
		return "none"
	case LabelEdema:
		return "edema"
	case LabelNecrosis:
		return "necrosis"
	default:
		return "enhancing tumor"
	}
}

// Transparent reports whether the voxel is drawn at all.
func (l Label) Transparent() bool {
	return l == LabelNone
}

// Mask is a 3D label array with the same layout as Volume.
type Mask struct {
	Shape
	Labels []Label
}

// NewMask allocates an empty mask.
func NewMask(s Shape) *Mask {
	return &Mask{Shape: s, Labels: make([]Label, s.Voxels())}
}

// MaskFromNIfTI converts decoded voxels to labels. Values are rounded;
// negatives and NaN become LabelNone, values above 255 saturate.
func MaskFromNIfTI(img *nifti.Image) *Mask {
	m := NewMask(Shape{Depth: img.Depth, Height: img.Height, Width: img.Width})
	for i, v := range img.Data {
		f := math.Round(float64(v))
		switch {
		case math.IsNaN(f) || f <= 0:
			m.Labels[i] = LabelNone
		case f >= math.MaxUint8:
			m.Labels[i] = Label(math.MaxUint8)
		default:
			m.Labels[i] = Label(f)
		}
	}
	return m
}

// SliceCount returns the number of slices along the first axis.
func (m *Mask) SliceCount() int {
	return m.Depth
}

// Slice returns the labels of plane i, aliasing the mask's data.
func (m *Mask) Slice(i int) []Label {
	n := m.PlaneSize()
	return m.Labels[i*n : (i+1)*n]
}

// Rotate180 turns every slice by 180 degrees in place.
func (m *Mask) Rotate180() {
	n := m.PlaneSize()
	for s := 0; s < m.Depth; s++ {
		reverse(m.Labels[s*n : (s+1)*n])
	}
}

// Counts returns the number of voxels per label, with labels above
// MaxLabel folded into MaxLabel.
func (m *Mask) Counts() [MaxLabel + 1]int {
	var c [MaxLabel + 1]int
	for _, l := range m.Labels {
		if l > MaxLabel {
			l = MaxLabel
		}
		c[l]++
	}
	return c
}
