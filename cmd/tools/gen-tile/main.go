// Command gen-tile generates synthetic labelled tile CSVs for exercising
// the prepare/optimize/evaluate pipeline without real point clouds.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
)

func main() {
	output := flag.String("o", "tile.csv", "output path")
	buildings := flag.Int("buildings", 8, "number of building clusters")
	clutter := flag.Int("clutter", 8, "number of non-building clusters")
	size := flag.Int("size", 12, "points per cluster")
	spacing := flag.Float64("spacing", 0.5, "point spacing within a cluster")
	noise := flag.Int("noise", 40, "scattered non-candidate points")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("create %s: %v", *output, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"x", "y", "z", "candidate", "overlay", "probability", "truth"}); err != nil {
		log.Fatalf("write header: %v", err)
	}

	write := func(x, y, z float64, candidate, overlay bool, proba float64, truth string) {
		bit := func(b bool) string {
			if b {
				return "1"
			}
			return "0"
		}
		rec := []string{
			strconv.FormatFloat(x, 'f', -1, 64),
			strconv.FormatFloat(y, 'f', -1, 64),
			strconv.FormatFloat(z, 'f', -1, 64),
			bit(candidate), bit(overlay),
			strconv.FormatFloat(proba, 'f', 4, 64),
			truth,
		}
		if err := w.Write(rec); err != nil {
			log.Fatalf("write record: %v", err)
		}
	}

	// Clusters sit far apart so adjacency-based clustering recovers them.
	cluster := func(n int, cx, cy float64, proba func() float64, truth string, overlay bool) {
		for i := 0; i < n; i++ {
			x := cx + float64(i)**spacing
			y := cy + rng.Float64()**spacing*0.2
			z := 8 + rng.Float64()*4
			write(x, y, z, true, overlay, proba(), truth)
		}
	}

	for b := 0; b < *buildings; b++ {
		cluster(*size, float64(b)*100, 0,
			func() float64 { return 0.85 + rng.Float64()*0.14 }, "tp", rng.Float64() < 0.5)
	}
	for c := 0; c < *clutter; c++ {
		cluster(*size, float64(c)*100, 500,
			func() float64 { return rng.Float64() * 0.15 }, "fp", false)
	}
	for i := 0; i < *noise; i++ {
		write(rng.Float64()*1000, 1000+rng.Float64()*1000, rng.Float64()*3,
			false, false, rng.Float64()*0.3, "")
	}

	w.Flush()
	if err := w.Error(); err != nil {
		log.Fatalf("flush %s: %v", *output, err)
	}

	total := (*buildings+*clutter)*(*size) + *noise
	fmt.Printf("✓ Created: %s (%d points)\n", *output, total)
}
