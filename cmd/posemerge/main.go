// posemerge re-runs the temporal merge over an existing landmark CSV without
// touching the detector: low-quality stretches are rebuilt from their
// neighbors, gaps are interpolated where anchors exist, and an optional
// low-pass smoothing pass steadies the merged tracks. Useful after tuning
// merge settings, since detection is by far the expensive step.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	_ "github.com/danceqc/posemisc/compileinfoprint"
	"github.com/danceqc/posemisc/bulkstore"
	"github.com/danceqc/posemisc/framecsv"
	"github.com/danceqc/posemisc/pipeline"
	"github.com/danceqc/posemisc/temporal"
)

func main() {
	var in, out, configPath string
	var lowpass float64
	flag.StringVar(&in, "in", "", "Path to the landmark CSV to merge. May be local, gs://, or s3://.")
	flag.StringVar(&out, "out", "", "Path for the merged CSV.")
	flag.StringVar(&configPath, "config", "", "Optional JSON config file; only its merge and low-pass settings apply here.")
	flag.Float64Var(&lowpass, "lowpass", 0, "Low-pass cutoff ratio in (0, pi) for track smoothing. 0 keeps the config value.")
	flag.Parse()

	if in == "" || out == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := pipeline.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = pipeline.ParseConfigFromPath(configPath)
		if err != nil {
			log.Fatalln(err)
		}
	}
	if lowpass > 0 {
		cfg.LowPassCutoff = lowpass
	}

	ctx := context.Background()
	store := bulkstore.New()

	stageDir, err := os.MkdirTemp("", "posemerge")
	if err != nil {
		log.Fatalln(err)
	}
	defer os.RemoveAll(stageDir)

	local, err := store.Stage(ctx, in, stageDir)
	if err != nil {
		log.Fatalln(err)
	}

	seq, err := framecsv.ReadFile(local)
	if err != nil {
		log.Fatalln(err)
	}
	log.Printf("Loaded %d frames from %s", len(seq), in)

	merged, rep, err := temporal.Merge(seq, cfg.Merge)
	if err != nil {
		log.Fatalln(err)
	}

	if wc := cfg.LowPassCutoff; wc > 0 {
		merged, err = temporal.SmoothTracks(merged, wc)
		if err != nil {
			log.Fatalln(err)
		}
	}

	w, err := store.Create(ctx, out)
	if err != nil {
		log.Fatalln(err)
	}
	if err := framecsv.Write(w, merged); err != nil {
		log.Fatalln(err)
	}
	if err := w.Close(); err != nil {
		log.Fatalln(err)
	}

	log.Println(rep.String())
	log.Printf("Wrote %d merged frames to %s", len(merged), out)
}
