package caseio

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"seg-viewer/internal/nifti"
	"seg-viewer/internal/volume"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeCase writes four channels of the given shape and a mask of maskShape.
func writeCase(t *testing.T, l Layout, id string, shape, maskShape volume.Shape) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(l.Root, l.ImageDir), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(l.Root, l.MaskDir), 0o755))

	for ch := 0; ch < NumChannels; ch++ {
		img := &nifti.Image{Width: shape.Width, Height: shape.Height, Depth: shape.Depth, Datatype: nifti.DTInt16}
		img.Data = make([]float32, shape.Voxels())
		for i := range img.Data {
			img.Data[i] = float32(i + 100*ch)
		}
		require.NoError(t, nifti.WriteFile(l.ChannelPath(id, ch), img))
	}

	m := &nifti.Image{Width: maskShape.Width, Height: maskShape.Height, Depth: maskShape.Depth, Datatype: nifti.DTUint8}
	m.Data = make([]float32, maskShape.Voxels())
	// First voxel of every slice is labelled 3 before rotation.
	for s := 0; s < maskShape.Depth; s++ {
		m.Data[s*maskShape.PlaneSize()] = 3
	}
	require.NoError(t, nifti.WriteFile(l.MaskPath(id), m))
}

func TestLayoutPaths(t *testing.T) {
	l := DefaultLayout("data")
	assert.Equal(t, filepath.Join("data", "img", "BraTS_001_0000.nii.gz"), l.ChannelPath("BraTS_001", 0))
	assert.Equal(t, filepath.Join("data", "img", "BraTS_001_0003.nii.gz"), l.ChannelPath("BraTS_001", 3))
	assert.Equal(t, filepath.Join("data", "mask", "BraTS_001.nii.gz"), l.MaskPath("BraTS_001"))
}

func TestLoadCase(t *testing.T) {
	l := DefaultLayout(t.TempDir())
	shape := volume.Shape{Depth: 5, Height: 3, Width: 4}
	writeCase(t, l, "A", shape, shape)

	c, err := NewLoader(l, nil).LoadCase(context.Background(), "A")
	require.NoError(t, err)

	assert.Equal(t, "A", c.ID)
	assert.Equal(t, 5, c.SliceCount())
	for ch, v := range c.Channels {
		require.NotNil(t, v, "channel %d", ch)
		assert.Equal(t, c.Mask.SliceCount(), v.SliceCount())
		// Rotated: last voxel of slice 0 moves to the origin.
		assert.Equal(t, float32(11+100*ch), v.Slice(0)[0])
	}

	// The labelled corner moved to the last row and column.
	plane := c.Mask.Slice(2)
	assert.Equal(t, volume.LabelEnhancing, plane[len(plane)-1])
	assert.Equal(t, volume.LabelNone, plane[0])
}

func TestLoadCase_MissingFile(t *testing.T) {
	l := DefaultLayout(t.TempDir())
	shape := volume.Shape{Depth: 2, Height: 2, Width: 2}
	writeCase(t, l, "A", shape, shape)
	require.NoError(t, os.Remove(l.ChannelPath("A", 2)))

	_, err := NewLoader(l, nil).LoadCase(context.Background(), "A")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.Contains(t, err.Error(), "A_0002")

	_, err = NewLoader(l, nil).LoadCase(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestLoadCase_CorruptHeader(t *testing.T) {
	l := DefaultLayout(t.TempDir())
	shape := volume.Shape{Depth: 2, Height: 2, Width: 2}
	writeCase(t, l, "A", shape, shape)

	// Rewrite channel 0 with dims claiming far more data than the file holds.
	var raw bytes.Buffer
	require.NoError(t, nifti.Write(&raw, &nifti.Image{Width: 2, Height: 2, Depth: 2, Data: make([]float32, 8)}))
	hdr := raw.Bytes()
	for i := 1; i <= 3; i++ {
		binary.LittleEndian.PutUint16(hdr[40+2*i:], 30000)
	}
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write(hdr)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(l.ChannelPath("A", 0), gz.Bytes(), 0o644))

	_, err = NewLoader(l, nil).LoadCase(context.Background(), "A")
	assert.ErrorIs(t, err, nifti.ErrUnsupported)
}

func TestLoadCase_ShapeMismatch(t *testing.T) {
	l := DefaultLayout(t.TempDir())
	writeCase(t, l, "A", volume.Shape{Depth: 4, Height: 2, Width: 2}, volume.Shape{Depth: 3, Height: 2, Width: 2})
	writeCase(t, l, "B", volume.Shape{Depth: 3, Height: 2, Width: 2}, volume.Shape{Depth: 3, Height: 2, Width: 5})

	loader := NewLoader(l, nil)

	_, err := loader.LoadCase(context.Background(), "A")
	assert.ErrorIs(t, err, ErrShapeMismatch)
	assert.Contains(t, err.Error(), "slices")

	_, err = loader.LoadCase(context.Background(), "B")
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestLoadCase_Cancelled(t *testing.T) {
	l := DefaultLayout(t.TempDir())
	shape := volume.Shape{Depth: 2, Height: 2, Width: 2}
	writeCase(t, l, "A", shape, shape)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLoader(l, nil).LoadCase(ctx, "A")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadCaseList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patients.txt")
	require.NoError(t, os.WriteFile(path, []byte("C\n  A \n\nB\r\n"), 0o644))

	ids, err := LoadCaseList(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, ids)
}

func TestLoadCaseList_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadCaseList(filepath.Join(dir, "patients.txt"))
	assert.ErrorIs(t, err, ErrFileNotFound)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n \n"), 0o644))
	_, err = LoadCaseList(empty)
	assert.ErrorIs(t, err, ErrEmptyCaseList)
}
