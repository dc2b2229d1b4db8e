// Package pipeline wires the full frame quality pass: decode frames, run the
// preprocessing-candidate sweep per frame, stream raw detections to CSV,
// merge low-quality stretches after the last frame, and publish the merged
// sequence. One Run call processes one video.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/carbocation/pfx"
	"github.com/carbocation/runningvariance"
	"github.com/cheggaaa/pb/v3"

	"github.com/danceqc/posemisc/bulkstore"
	"github.com/danceqc/posemisc/detect"
	"github.com/danceqc/posemisc/framecsv"
	"github.com/danceqc/posemisc/frameselect"
	"github.com/danceqc/posemisc/landmark"
	"github.com/danceqc/posemisc/score"
	"github.com/danceqc/posemisc/temporal"
	"github.com/danceqc/posemisc/vidio"
)

// maxConsecutiveDecodeFailures aborts a run when the decoder stops making
// progress, e.g. a stream that died mid-upload. Isolated bad frames are
// skipped and left for the merger.
const maxConsecutiveDecodeFailures = 25

// Options describes one pipeline run.
type Options struct {
	// VideoPath is a local file, image directory, gs:// object, or s3://
	// object. Remote videos are staged to a temp file first.
	VideoPath string

	// OutPath receives the merged CSV. Local or remote.
	OutPath string

	Detector detect.Detector
	Config   Config

	// Store handles remote paths. Nil means a fresh environment-configured
	// store.
	Store *bulkstore.Store

	// Resume skips frames already present in OutPath's partial file from an
	// interrupted run. Only effective for local OutPath, since the partial
	// lives next to it.
	Resume bool

	// ShowProgress draws a progress bar when the frame count is known up
	// front, and logs a running count otherwise.
	ShowProgress bool

	// OnFrame, when set, is called after every handled frame with the running
	// count and the total (-1 when unknown).
	OnFrame func(done, total int)
}

// Result summarizes a completed run.
type Result struct {
	Merged landmark.Sequence
	Report temporal.Report

	// VisibilityStats accumulates per-landmark visibility over observed
	// (pre-merge) detections only.
	VisibilityStats map[int]*runningvariance.RunningStat

	FramesRead int
	Info       vidio.Info
	OutPath    string
}

// Run executes the full pass. Per-frame failures (decode errors, frames with
// nobody detectable, dead detector candidates) never abort the run; they
// become gaps for the merger, and anything the merger cannot resolve is
// listed in the Report. Fatal errors are reserved for configuration problems,
// unreadable inputs, and unwritable outputs.
func Run(ctx context.Context, opts Options) (Result, error) {
	var res Result

	if err := opts.Config.Validate(); err != nil {
		return res, err
	}
	if opts.Detector == nil {
		return res, fmt.Errorf("%w: no detector provided", ErrConfiguration)
	}

	store := opts.Store
	if store == nil {
		store = bulkstore.New()
	}

	scorer, err := score.New(opts.Config.Score)
	if err != nil {
		return res, err
	}
	sel := frameselect.New(opts.Detector, scorer, opts.Config.Strategy, opts.Config.Workers)

	stageDir, err := os.MkdirTemp("", "posemisc")
	if err != nil {
		return res, pfx.Err(err)
	}
	defer os.RemoveAll(stageDir)

	localVideo, err := store.Stage(ctx, opts.VideoPath, stageDir)
	if err != nil {
		return res, err
	}

	rdr, err := vidio.Open(localVideo)
	if err != nil {
		return res, err
	}
	defer rdr.Close()
	res.Info = rdr.Info()

	partial := filepath.Join(stageDir, "frames.partial.csv")
	if !bulkstore.IsRemote(opts.OutPath) {
		partial = opts.OutPath + ".partial"
	}

	seq, prev, startAfter := resumeState(opts.Resume, partial)

	partialFile, err := os.OpenFile(partial, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return res, pfx.Err(err)
	}
	defer partialFile.Close()

	app := framecsv.NewAppender(partialFile)
	if len(seq) > 0 {
		app = framecsv.NewResumingAppender(partialFile)
	}

	total := rdr.Len()
	var bar *pb.ProgressBar
	if opts.ShowProgress && total > 0 {
		bar = pb.StartNew(total)
	}

	res.VisibilityStats = make(map[int]*runningvariance.RunningStat)
	done := 0
	consecutiveFailures := 0

	for {
		if err := ctx.Err(); err != nil {
			return res, pfx.Err(err)
		}

		img, frameID, err := rdr.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, vidio.ErrNoFrames) {
			return res, err
		}
		if errors.Is(err, vidio.ErrDecodeFailure) {
			log.Println(err)
			consecutiveFailures++
			if consecutiveFailures > maxConsecutiveDecodeFailures {
				return res, fmt.Errorf("gave up after %d consecutive decode failures: %v", consecutiveFailures, err)
			}
			continue
		}
		if err != nil {
			return res, pfx.Err(err)
		}
		consecutiveFailures = 0

		if frameID <= startAfter {
			done = progress(done, total, bar, opts)
			continue
		}

		fr, err := sel.Select(img, frameID, prev)
		if err != nil {
			// The frame stays a gap; the detector may still work for later
			// frames, so the run continues.
			log.Println("frame", frameID, ":", err)
		}

		if err := app.Append(fr); err != nil {
			return res, err
		}
		seq = append(seq, fr)
		res.FramesRead++

		if !fr.Empty() {
			prev = fr.Landmarks
			for _, lm := range fr.Landmarks {
				st, ok := res.VisibilityStats[lm.ID]
				if !ok {
					st = runningvariance.NewRunningStat()
					res.VisibilityStats[lm.ID] = st
				}
				st.Push(lm.Visibility)
			}
		}

		done = progress(done, total, bar, opts)
	}

	if bar != nil {
		bar.Finish()
	}

	if err := partialFile.Close(); err != nil {
		return res, pfx.Err(err)
	}

	merged, rep, err := temporal.Merge(seq, opts.Config.Merge)
	if err != nil {
		return res, err
	}

	if wc := opts.Config.LowPassCutoff; wc > 0 {
		merged, err = temporal.SmoothTracks(merged, wc)
		if err != nil {
			return res, err
		}
	}

	w, err := store.Create(ctx, opts.OutPath)
	if err != nil {
		return res, err
	}
	if err := framecsv.Write(w, merged); err != nil {
		w.Close()
		return res, err
	}
	if err := w.Close(); err != nil {
		return res, pfx.Err(err)
	}

	// The partial file has served its purpose once the merged CSV is durable.
	os.Remove(partial)

	res.Merged = merged
	res.Report = rep
	res.OutPath = opts.OutPath

	logSummary(res)

	return res, nil
}

func progress(done, total int, bar *pb.ProgressBar, opts Options) int {
	done++
	if bar != nil {
		bar.Increment()
	} else if opts.ShowProgress && done%100 == 0 {
		log.Printf("Processed %d frames", done)
	}
	if opts.OnFrame != nil {
		opts.OnFrame(done, total)
	}
	return done
}

// resumeState loads a partial CSV left by an interrupted run. An unreadable
// partial is discarded rather than fatal: worst case the run redoes work.
func resumeState(resume bool, partial string) (landmark.Sequence, landmark.Set, int) {
	if !resume {
		os.Remove(partial)
		return nil, nil, -1
	}

	if _, err := os.Stat(partial); err != nil {
		return nil, nil, -1
	}

	seq, err := framecsv.ReadFile(partial)
	if err != nil || len(seq) == 0 {
		if err != nil {
			log.Println("ignoring unreadable partial file:", err)
		}
		os.Remove(partial)
		return nil, nil, -1
	}

	var prev landmark.Set
	for i := len(seq) - 1; i >= 0; i-- {
		if !seq[i].Empty() {
			prev = seq[i].Landmarks
			break
		}
	}

	log.Printf("Resuming after frame %d (%d frames already done)", seq[len(seq)-1].FrameID, len(seq))

	return seq, prev, seq[len(seq)-1].FrameID
}

func logSummary(res Result) {
	log.Println(res.Report.String())

	worst := -1
	for id, st := range res.VisibilityStats {
		if worst == -1 || st.Mean() < res.VisibilityStats[worst].Mean() {
			worst = id
		}
	}
	if worst >= 0 {
		st := res.VisibilityStats[worst]
		log.Printf("Lowest mean visibility: %s (%.3f, sd %.3f)", landmark.Name(worst), st.Mean(), st.StandardDeviation())
	}
}
