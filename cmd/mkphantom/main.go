// Command mkphantom writes a synthetic data root for trying the viewers.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"seg-viewer/internal/caseio"
	"seg-viewer/internal/config"
	"seg-viewer/internal/phantom"
)

func main() {
	def := phantom.DefaultOptions()
	out := flag.String("out", config.Default().Data.Root, "data root to write")
	cases := flag.Int("cases", def.Cases, "number of cases")
	size := flag.Int("size", def.Size, "in-plane size in voxels")
	slices := flag.Int("slices", def.Slices, "number of slices")
	seed := flag.Uint64("seed", def.Seed, "random seed")
	flag.Parse()

	layout := caseio.DefaultLayout(*out)
	listPath := filepath.Join(*out, config.Default().Data.Patients)
	opts := phantom.Options{Cases: *cases, Size: *size, Slices: *slices, Seed: *seed}

	ids, err := phantom.Generate(context.Background(), layout, listPath, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write phantom data: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d cases (%dx%dx%d) to %s\n", len(ids), *size, *size, *slices, *out)
	fmt.Printf("Case list: %s\n", listPath)
}
