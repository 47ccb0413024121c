// Package caseio locates and loads review cases: the case list and, per
// case, four co-registered channel volumes plus one segmentation mask.
package caseio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"seg-viewer/internal/nifti"
	"seg-viewer/internal/volume"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NumChannels is the number of image volumes per case.
const NumChannels = 4

var (
	// ErrFileNotFound is returned when a case file or the case list is missing.
	ErrFileNotFound = errors.New("file not found")

	// ErrShapeMismatch is returned when a case's volumes and mask disagree in size.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrEmptyCaseList is returned when the case list names no cases.
	ErrEmptyCaseList = errors.New("case list is empty")
)

// Case is one fully loaded review case.
type Case struct {
	ID       string
	Channels [NumChannels]*volume.Volume
	Mask     *volume.Mask
}

// SliceCount returns the shared slice count of the case.
func (c *Case) SliceCount() int {
	return c.Mask.SliceCount()
}

// Layout describes where case files live under the data root.
type Layout struct {
	Root      string
	ImageDir  string
	MaskDir   string
	Extension string
}

// DefaultLayout returns the img/ + mask/ + .nii.gz layout under root.
func DefaultLayout(root string) Layout {
	return Layout{Root: root, ImageDir: "img", MaskDir: "mask", Extension: ".nii.gz"}
}

// ChannelPath returns the path of channel ch (0-based) for the case.
func (l Layout) ChannelPath(id string, ch int) string {
	return filepath.Join(l.Root, l.ImageDir, fmt.Sprintf("%s_%04d%s", id, ch, l.Extension))
}

// MaskPath returns the path of the case's segmentation mask.
func (l Layout) MaskPath(id string) string {
	return filepath.Join(l.Root, l.MaskDir, id+l.Extension)
}

// Loader reads cases from a Layout.
type Loader struct {
	layout Layout
	logger *zap.Logger
}

// NewLoader creates a Loader. A nil logger disables logging.
func NewLoader(layout Layout, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{layout: layout, logger: logger}
}

// Layout returns the loader's file layout.
func (l *Loader) Layout() Layout {
	return l.layout
}

// LoadCase reads the four channels and the mask of case id, rotates them
// 180 degrees in-plane and checks that all five share one shape. The files
// are decoded concurrently; LoadCase returns once all are done.
func (l *Loader) LoadCase(ctx context.Context, id string) (*Case, error) {
	c := &Case{ID: id}

	// Stat first so a missing file is reported without decoding the rest.
	paths := make([]string, 0, NumChannels+1)
	for ch := 0; ch < NumChannels; ch++ {
		paths = append(paths, l.layout.ChannelPath(id, ch))
	}
	paths = append(paths, l.layout.MaskPath(id))
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("case %s: %s: %w", id, p, ErrFileNotFound)
			}
			return nil, fmt.Errorf("case %s: %w", id, err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for ch := 0; ch < NumChannels; ch++ {
		g.Go(func() error {
			img, err := l.open(ctx, paths[ch])
			if err != nil {
				return err
			}
			v := volume.FromNIfTI(img)
			v.Rotate180()
			c.Channels[ch] = v
			return nil
		})
	}
	g.Go(func() error {
		img, err := l.open(ctx, paths[NumChannels])
		if err != nil {
			return err
		}
		m := volume.MaskFromNIfTI(img)
		m.Rotate180()
		c.Mask = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("case %s: %w", id, err)
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("case %s: %w", id, err)
	}

	l.logger.Debug("case loaded",
		zap.String("case", id),
		zap.Stringer("shape", c.Mask.Shape),
	)
	return c, nil
}

func (l *Loader) open(ctx context.Context, path string) (*nifti.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := nifti.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrFileNotFound)
		}
		return nil, err
	}
	return img, nil
}

// validate enforces that every channel matches the mask's shape.
func (c *Case) validate() error {
	want := c.Mask.Shape
	for ch, v := range c.Channels {
		if v.Shape == want {
			continue
		}
		if v.Depth != want.Depth {
			return fmt.Errorf("channel %d has %d slices, mask has %d: %w",
				ch, v.Depth, want.Depth, ErrShapeMismatch)
		}
		return fmt.Errorf("channel %d is %s, mask is %s: %w", ch, v.Shape, want, ErrShapeMismatch)
	}
	if want.Depth == 0 {
		return fmt.Errorf("mask has no slices: %w", ErrShapeMismatch)
	}
	return nil
}

// LoadCaseList reads newline-separated case ids from path. Surrounding
// whitespace is trimmed, blank lines are skipped and the result is sorted.
func LoadCaseList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("case list %s: %w", path, ErrFileNotFound)
		}
		return nil, fmt.Errorf("case list: %w", err)
	}
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		id := strings.TrimSpace(sc.Text())
		if id == "" {
			continue
		}
		ids = append(ids, id)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading case list %s: %w", path, err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyCaseList)
	}

	sort.Strings(ids)
	return ids, nil
}
