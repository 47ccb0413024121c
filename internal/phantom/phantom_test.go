package phantom

import (
	"context"
	"path/filepath"
	"testing"

	"seg-viewer/internal/caseio"
	"seg-viewer/internal/volume"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_LoadsBack(t *testing.T) {
	root := t.TempDir()
	layout := caseio.DefaultLayout(root)
	listPath := filepath.Join(root, "patients.txt")
	opts := Options{Cases: 2, Size: 24, Slices: 12, Seed: 7}

	ids, err := Generate(context.Background(), layout, listPath, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"Phantom_001", "Phantom_002"}, ids)

	listed, err := caseio.LoadCaseList(listPath)
	require.NoError(t, err)
	assert.Equal(t, ids, listed)

	loader := caseio.NewLoader(layout, nil)
	for _, id := range ids {
		c, err := loader.LoadCase(context.Background(), id)
		require.NoError(t, err, id)
		assert.Equal(t, 12, c.SliceCount())
		assert.Equal(t, volume.Shape{Depth: 12, Height: 24, Width: 24}, c.Mask.Shape)

		counts := c.Mask.Counts()
		for l := volume.LabelEdema; l <= volume.MaxLabel; l++ {
			assert.Positive(t, counts[l], "%s has %s voxels", id, l)
		}
		for _, ch := range c.Channels {
			assert.Less(t, ch.Low, ch.High)
		}
	}
}

func TestGenerate_IsDeterministic(t *testing.T) {
	opts := Options{Cases: 1, Size: 16, Slices: 8, Seed: 3}
	load := func() *caseio.Case {
		root := t.TempDir()
		layout := caseio.DefaultLayout(root)
		_, err := Generate(context.Background(), layout, filepath.Join(root, "patients.txt"), opts)
		require.NoError(t, err)
		c, err := caseio.NewLoader(layout, nil).LoadCase(context.Background(), CaseID(0))
		require.NoError(t, err)
		return c
	}

	a, b := load(), load()
	assert.Equal(t, a.Mask.Labels, b.Mask.Labels)
	assert.Equal(t, a.Channels[0].Data, b.Channels[0].Data)
}

func TestGenerate_RejectsTinyVolumes(t *testing.T) {
	root := t.TempDir()
	_, err := Generate(context.Background(), caseio.DefaultLayout(root), filepath.Join(root, "p.txt"),
		Options{Cases: 1, Size: 4, Slices: 4})
	assert.Error(t, err)
}

func TestLesionLabel(t *testing.T) {
	assert.Equal(t, volume.LabelNecrosis, lesionLabel(0))
	assert.Equal(t, volume.LabelEnhancing, lesionLabel(0.5))
	assert.Equal(t, volume.LabelEdema, lesionLabel(0.9))
	assert.Equal(t, volume.LabelNone, lesionLabel(1.2))
}
