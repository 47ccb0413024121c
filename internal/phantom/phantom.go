// Package phantom writes synthetic review data: a case list plus four
// channels and a mask per case, each case holding one lesion made of the
// three tumor labels.
package phantom

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"seg-viewer/internal/caseio"
	"seg-viewer/internal/nifti"
	"seg-viewer/internal/volume"

	"golang.org/x/sync/errgroup"
)

// Options control the generated data set.
type Options struct {
	Cases  int
	Size   int // in-plane edge length
	Slices int
	Seed   uint64
}

// DefaultOptions returns a small data set that loads quickly.
func DefaultOptions() Options {
	return Options{Cases: 5, Size: 96, Slices: 64, Seed: 1}
}

// channelBase is the brain intensity of each channel; lesionGain scales
// how much each label brightens it.
var (
	channelBase = [caseio.NumChannels]float64{300, 500, 450, 350}
	lesionGain  = [caseio.NumChannels][volume.MaxLabel + 1]float64{
		{0, 1.8, 1.2, 1.5}, // FLAIR: edema bright
		{0, 0.9, 0.6, 0.9},
		{0, 1.0, 0.5, 2.2}, // T1ce: enhancing rim bright
		{0, 1.6, 1.9, 1.3},
	}
)

// CaseID returns the id of the i-th generated case.
func CaseID(i int) string {
	return fmt.Sprintf("Phantom_%03d", i+1)
}

// Generate writes opts.Cases cases under layout and the case list to
// listPath. It returns the case ids.
func Generate(ctx context.Context, layout caseio.Layout, listPath string, opts Options) ([]string, error) {
	if opts.Cases <= 0 || opts.Size < 8 || opts.Slices < 1 {
		return nil, fmt.Errorf("need at least one case of 8x8x1 voxels, got %d cases of %dx%dx%d",
			opts.Cases, opts.Size, opts.Size, opts.Slices)
	}
	for _, dir := range []string{layout.ImageDir, layout.MaskDir} {
		if err := os.MkdirAll(filepath.Join(layout.Root, dir), 0o755); err != nil {
			return nil, err
		}
	}

	ids := make([]string, opts.Cases)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range ids {
		ids[i] = CaseID(i)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return writeCase(layout, ids[i], opts, rand.New(rand.NewPCG(opts.Seed, uint64(i))))
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	list := strings.Join(ids, "\n") + "\n"
	if err := os.WriteFile(listPath, []byte(list), 0o644); err != nil {
		return nil, err
	}
	return ids, nil
}

func writeCase(layout caseio.Layout, id string, opts Options, rng *rand.Rand) error {
	w, h, d := opts.Size, opts.Size, opts.Slices
	mask := &nifti.Image{Width: w, Height: h, Depth: d, Datatype: nifti.DTUint8,
		PixDim: [3]float32{1, 1, 1}, Data: make([]float32, w*h*d)}

	// Lesion center stays well inside the brain.
	cx := float64(w) * (0.35 + 0.3*rng.Float64())
	cy := float64(h) * (0.35 + 0.3*rng.Float64())
	cz := float64(d) * (0.35 + 0.3*rng.Float64())
	r := float64(w) * (0.12 + 0.08*rng.Float64())

	brain := make([]bool, len(mask.Data))
	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := (z*h+y)*w + x
				bx := (float64(x) - float64(w)/2) / (0.45 * float64(w))
				by := (float64(y) - float64(h)/2) / (0.40 * float64(h))
				bz := (float64(z) - float64(d)/2) / (0.48 * float64(d))
				brain[i] = bx*bx+by*by+bz*bz <= 1
				if !brain[i] {
					continue
				}

				dist := math.Sqrt(sq(float64(x)-cx) + sq(float64(y)-cy) + sq(float64(z)-cz))
				mask.Data[i] = float32(lesionLabel(dist / r))
			}
		}
	}

	for ch := 0; ch < caseio.NumChannels; ch++ {
		img := &nifti.Image{Width: w, Height: h, Depth: d, Datatype: nifti.DTInt16,
			PixDim: [3]float32{1, 1, 1}, Data: make([]float32, len(mask.Data))}
		for i := range img.Data {
			if !brain[i] {
				continue
			}
			v := channelBase[ch] * lesionGain[ch][volume.Label(mask.Data[i])]
			if mask.Data[i] == 0 {
				v = channelBase[ch]
			}
			img.Data[i] = float32(v + rng.NormFloat64()*0.05*channelBase[ch])
		}
		if err := nifti.WriteFile(layout.ChannelPath(id, ch), img); err != nil {
			return fmt.Errorf("writing %s channel %d: %w", id, ch, err)
		}
	}

	if err := nifti.WriteFile(layout.MaskPath(id), mask); err != nil {
		return fmt.Errorf("writing %s mask: %w", id, err)
	}
	return nil
}

// lesionLabel maps a distance relative to the lesion radius to a label:
// a necrotic core, an enhancing rim around it and edema outside.
func lesionLabel(rel float64) volume.Label {
	switch {
	case rel < 0.35:
		return volume.LabelNecrosis
	case rel < 0.6:
		return volume.LabelEnhancing
	case rel < 1:
		return volume.LabelEdema
	}
	return volume.LabelNone
}

func sq(x float64) float64 { return x * x }
