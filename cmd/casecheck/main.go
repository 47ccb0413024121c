// Command casecheck loads every case of a data root and reports the ones
// the viewer would reject.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"seg-viewer/internal/caseio"
	"seg-viewer/internal/config"
	"seg-viewer/internal/volume"

	"golang.org/x/sync/errgroup"
)

type result struct {
	id     string
	slices int
	counts [volume.MaxLabel + 1]int
	err    error
}

func main() {
	root := flag.String("root", "", "data root (default: data.root from config)")
	only := flag.String("case", "", "comma-separated case ids to check instead of the whole list")
	flag.Parse()

	cfg, err := config.LoadWithRoot("", *root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var ids []string
	if *only != "" {
		for _, id := range strings.Split(*only, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	} else {
		ids, err = caseio.LoadCaseList(cfg.Data.PatientsPath())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	results := check(context.Background(), caseio.NewLoader(cfg.Data.Layout(), nil), ids)

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Printf("%-24s FAIL  %s: %v\n", r.id, kind(r.err), r.err)
			continue
		}
		fmt.Printf("%-24s ok    %3d slices  edema %d  necrosis %d  enhancing %d\n",
			r.id, r.slices, r.counts[volume.LabelEdema], r.counts[volume.LabelNecrosis], r.counts[volume.LabelEnhancing])
	}

	fmt.Printf("\n%d of %d cases ok\n", len(results)-failed, len(results))
	if failed > 0 {
		os.Exit(1)
	}
}

// check loads the cases concurrently; results keep the order of ids.
func check(ctx context.Context, loader *caseio.Loader, ids []string) []result {
	results := make([]result, len(ids))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, id := range ids {
		g.Go(func() error {
			r := result{id: id}
			c, err := loader.LoadCase(ctx, id)
			if err != nil {
				r.err = err
			} else {
				r.slices = c.SliceCount()
				r.counts = c.Mask.Counts()
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func kind(err error) string {
	switch {
	case errors.Is(err, caseio.ErrFileNotFound):
		return "file not found"
	case errors.Is(err, caseio.ErrShapeMismatch):
		return "shape mismatch"
	default:
		return "unreadable"
	}
}
