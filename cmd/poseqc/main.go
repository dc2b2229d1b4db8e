// poseqc inspects a landmark CSV for quality problems: it prints a visibility
// histogram and summary percentiles, flags frames whose mean visibility jumps
// more than N standard deviations between consecutive frames, groups
// chronically low-visibility landmarks into connected body regions, lists
// frames that carry no landmarks at all, and optionally writes a per-frame
// visibility heat strip PNG.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/aybabtme/uniplot/histogram"

	_ "github.com/danceqc/posemisc/compileinfoprint"
	"github.com/danceqc/posemisc/bulkstore"
	"github.com/danceqc/posemisc/framecsv"
	"github.com/danceqc/posemisc/landmark"
)

func main() {
	var csvPath, comparePath, heatStrip string
	var nSD, lowVis float64
	flag.StringVar(&csvPath, "csv", "", "Path to the landmark CSV. May be local, gs://, or s3://.")
	flag.StringVar(&comparePath, "compare", "", "Optional second CSV (e.g. pre-merge) to diff against.")
	flag.StringVar(&heatStrip, "heatstrip", "", "Optional PNG path for the per-frame visibility heat strip.")
	flag.Float64Var(&nSD, "sd", 3.0, "Standard deviations beyond which a frame-to-frame visibility shift is flagged.")
	flag.Float64Var(&lowVis, "lowvis", 0.5, "Mean visibility below which a landmark joins the low-visibility region report.")
	flag.Parse()

	if csvPath == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	ctx := context.Background()
	store := bulkstore.New()

	stageDir, err := os.MkdirTemp("", "poseqc")
	if err != nil {
		log.Fatalln(err)
	}
	defer os.RemoveAll(stageDir)

	seq, err := loadSequence(ctx, store, csvPath, stageDir)
	if err != nil {
		log.Fatalln(err)
	}

	sum := summarize(seq)

	fmt.Printf("== %s ==\n", csvPath)
	fmt.Printf("frames: %d (%d empty), observed landmarks: %d, derived: %.1f%%\n",
		sum.Frames, sum.EmptyFrames, sum.Observed, 100*sum.DerivedFraction)

	if len(sum.Visibilities) > 0 {
		fmt.Println("\n== Observed visibility histogram ==")
		hist := histogram.Hist(20, sum.Visibilities)
		if err := histogram.Fprint(os.Stdout, hist, histogram.Linear(40)); err != nil {
			log.Fatalln(err)
		}

		pct, err := percentiles(sum.Visibilities)
		if err != nil {
			log.Fatalln(err)
		}
		fmt.Printf("\nvisibility p5 %.3f / p25 %.3f / p50 %.3f / p75 %.3f / p95 %.3f\n",
			pct[0], pct[1], pct[2], pct[3], pct[4])
	}

	fmt.Printf("\n== Frames shifting beyond %.1f SD ==\n", nSD)
	shifts := flagOnestepShifts(seq, nSD)
	if len(shifts) == 0 {
		fmt.Println("none")
	}
	for _, s := range shifts {
		fmt.Printf("frame %d: mean visibility moved %+.3f\n", s.FrameID, s.Delta)
	}

	fmt.Printf("\n== Low-visibility regions (mean < %.2f) ==\n", lowVis)
	regions := lowVisibilityRegions(seq, lowVis)
	if len(regions) == 0 {
		fmt.Println("none")
	}
	for _, region := range regions {
		for i, id := range region {
			if i > 0 {
				fmt.Print(", ")
			}
			fmt.Print(landmark.Name(id))
		}
		fmt.Println()
	}

	fmt.Println("\n== Frames with no landmarks ==")
	gaps := emptyRanges(seq)
	if len(gaps) == 0 {
		fmt.Println("none")
	}
	for _, g := range gaps {
		if g[0] == g[1] {
			fmt.Printf("frame %d\n", g[0])
		} else {
			fmt.Printf("frames %d-%d\n", g[0], g[1])
		}
	}

	if comparePath != "" {
		other, err := loadSequence(ctx, store, comparePath, stageDir)
		if err != nil {
			log.Fatalln(err)
		}

		diff := compareSequences(seq, other)
		fmt.Printf("\n== Diff vs %s ==\n", comparePath)
		fmt.Printf("shared frames: %d, landmarks moved: %d (mean displacement %.4f)\n",
			diff.SharedFrames, diff.MovedLandmarks, diff.MeanDisplacement)
	}

	if heatStrip != "" {
		if err := writeHeatStrip(heatStrip, seq); err != nil {
			log.Fatalln(err)
		}
		log.Println("Wrote", heatStrip)
	}
}

func loadSequence(ctx context.Context, store *bulkstore.Store, path, stageDir string) (landmark.Sequence, error) {
	local, err := store.Stage(ctx, path, stageDir)
	if err != nil {
		return nil, err
	}

	return framecsv.ReadFile(local)
}
