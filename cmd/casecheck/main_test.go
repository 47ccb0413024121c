package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"seg-viewer/internal/caseio"
	"seg-viewer/internal/phantom"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_ReportsBrokenCases(t *testing.T) {
	root := t.TempDir()
	layout := caseio.DefaultLayout(root)
	ids, err := phantom.Generate(context.Background(), layout, filepath.Join(root, "patients.txt"),
		phantom.Options{Cases: 2, Size: 16, Slices: 6, Seed: 1})
	require.NoError(t, err)
	require.NoError(t, os.Remove(layout.ChannelPath(ids[1], 3)))

	results := check(context.Background(), caseio.NewLoader(layout, nil), append(ids, "Nope"))
	require.Len(t, results, 3)

	assert.NoError(t, results[0].err)
	assert.Equal(t, 6, results[0].slices)
	assert.Positive(t, results[0].counts[1])

	assert.Equal(t, "file not found", kind(results[1].err))
	assert.Equal(t, "Nope", results[2].id)
	assert.Equal(t, "file not found", kind(results[2].err))
}
