// poserender draws skeleton overlays from a landmark CSV onto the frames of
// the video it was traced from, producing an animated GIF or a video, plus an
// optional score/visibility timeline chart. Derived landmarks are drawn
// hollow with dashed bones so reconstructed stretches are visually distinct
// from observed ones. Note that this program's video decoding requires that
// ffmpeg be installed. (See https://github.com/unixpickle/ffmpego#installation)
package main

import (
	"context"
	"errors"
	"flag"
	"image"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/danceqc/posemisc/compileinfoprint"
	"github.com/danceqc/posemisc/bulkstore"
	"github.com/danceqc/posemisc/framecsv"
	"github.com/danceqc/posemisc/landmark"
	"github.com/danceqc/posemisc/pipeline"
	"github.com/danceqc/posemisc/render"
	"github.com/danceqc/posemisc/vidio"
)

func main() {
	var video, csvPath, out, chart, configPath string
	var delay int
	var transparent bool
	flag.StringVar(&video, "video", "", "Path to the video or image directory the CSV was traced from.")
	flag.StringVar(&csvPath, "csv", "", "Path to the landmark CSV.")
	flag.StringVar(&out, "out", "", "Output path; a .gif suffix produces an animated GIF, anything else a video.")
	flag.StringVar(&chart, "chart", "", "Optional PNG path for the per-frame score and visibility timeline.")
	flag.StringVar(&configPath, "config", "", "Optional JSON config file; only its render style applies here.")
	flag.IntVar(&delay, "delay", 0, "GIF inter-frame delay in 1/100ths of a second. 0 derives it from the video frame rate.")
	flag.BoolVar(&transparent, "transparent", false, "Reserve a transparent palette slot in GIF output.")
	flag.Parse()

	if video == "" || csvPath == "" || out == "" {
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

	renderer, err := render.New(cfg.Style)
	if err != nil {
		log.Fatalln(err)
	}

	ctx := context.Background()
	store := bulkstore.New()

	stageDir, err := os.MkdirTemp("", "poserender")
	if err != nil {
		log.Fatalln(err)
	}
	defer os.RemoveAll(stageDir)

	localVideo, err := store.Stage(ctx, video, stageDir)
	if err != nil {
		log.Fatalln(err)
	}
	localCSV, err := store.Stage(ctx, csvPath, stageDir)
	if err != nil {
		log.Fatalln(err)
	}

	seq, err := framecsv.ReadFile(localCSV)
	if err != nil {
		log.Fatalln(err)
	}

	rdr, err := vidio.Open(localVideo)
	if err != nil {
		log.Fatalln(err)
	}
	defer rdr.Close()
	info := rdr.Info()

	// Remote outputs are written locally first, then uploaded whole: both the
	// GIF encoder and the video writer need a real file.
	localOut := out
	if bulkstore.IsRemote(out) {
		localOut = filepath.Join(stageDir, filepath.Base(out))
	}

	if strings.HasSuffix(strings.ToLower(out), ".gif") {
		err = renderGIF(rdr, seq, renderer, localOut, delay, info.FPS, transparent)
	} else {
		err = renderVideo(rdr, seq, renderer, localOut, info)
	}
	if err != nil {
		log.Fatalln(err)
	}

	if localOut != out {
		if err := upload(ctx, store, localOut, out); err != nil {
			log.Fatalln(err)
		}
	}
	log.Println("Wrote", out)

	if chart != "" {
		w, err := store.Create(ctx, chart)
		if err != nil {
			log.Fatalln(err)
		}
		if err := render.ScoreChart(w, seq); err != nil {
			log.Fatalln(err)
		}
		if err := w.Close(); err != nil {
			log.Fatalln(err)
		}
		log.Println("Wrote", chart)
	}
}

func overlayFrame(img image.Image, frameID int, seq landmark.Sequence, renderer *render.Renderer) image.Image {
	if i := seq.ByFrame(frameID); i >= 0 {
		return renderer.Overlay(img, seq[i])
	}
	return img
}

func renderGIF(rdr *vidio.Reader, seq landmark.Sequence, renderer *render.Renderer, out string, delay int, fps float64, transparent bool) error {
	if delay <= 0 {
		delay = 10
		if fps > 0 {
			delay = int(100.0 / fps)
		}
	}

	var frames []image.Image
	for {
		img, frameID, err := rdr.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, vidio.ErrDecodeFailure) {
			log.Println(err)
			continue
		}
		if err != nil {
			return err
		}

		frames = append(frames, overlayFrame(img, frameID, seq, renderer))
	}

	g, err := render.MakeGIF(frames, delay, transparent)
	if err != nil {
		return err
	}

	return render.SaveGIF(out, g)
}

func renderVideo(rdr *vidio.Reader, seq landmark.Sequence, renderer *render.Renderer, out string, info vidio.Info) error {
	fps := info.FPS
	if fps <= 0 {
		fps = 30
	}

	w, err := vidio.NewWriter(out, info.Width, info.Height, fps)
	if err != nil {
		return err
	}

	for {
		img, frameID, err := rdr.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, vidio.ErrDecodeFailure) {
			log.Println(err)
			continue
		}
		if err != nil {
			w.Close()
			return err
		}

		if err := w.WriteFrame(overlayFrame(img, frameID, seq, renderer)); err != nil {
			w.Close()
			return err
		}
	}

	return w.Close()
}

func upload(ctx context.Context, store *bulkstore.Store, local, remote string) error {
	f, err := os.Open(local)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := store.Create(ctx, remote)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return err
	}

	return w.Close()
}
