// Package frameselect runs every preprocessing candidate for a frame through
// the detector, scores each detection, and keeps the arg-max. Selection is
// deterministic: on score ties the candidate generated earlier wins, and the
// parallel path reduces in candidate order so it always agrees with the serial
// path.
package frameselect

import (
	"errors"
	"image"
	"log"
	"runtime"

	"github.com/danceqc/posemisc/detect"
	"github.com/danceqc/posemisc/landmark"
	"github.com/danceqc/posemisc/score"
	"github.com/danceqc/posemisc/strategy"
)

// Selector evaluates strategy candidates for single frames. Construct with
// New; a Selector is safe for concurrent use as long as its Detector is.
type Selector struct {
	det      detect.Detector
	scorer   *score.Scorer
	stratCfg strategy.Config
	workers  int
}

// New builds a Selector. workers bounds the candidate fan-out: 0 means one
// worker per CPU, 1 forces serial evaluation.
func New(det detect.Detector, scorer *score.Scorer, stratCfg strategy.Config, workers int) *Selector {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Selector{det: det, scorer: scorer, stratCfg: stratCfg, workers: workers}
}

type candidateResult struct {
	idx   int
	set   landmark.Set
	score float64
	err   error
}

// Select picks the best detection for one frame among all candidates. prev is
// the accepted landmark set of the previous frame (nil when unavailable) and
// feeds the temporal-consistency signal.
//
// A frame in which no candidate detects anybody yields the sentinel
// FrameResult (empty set, score 0) with a nil error: downstream treats it as
// an interpolation target, not a failure. The returned error is non-nil only
// when no detection was produced and at least one candidate failed for an
// infrastructure reason (e.g. a dead worker process), so the caller can
// recover the detector while still recording the gap.
func (s *Selector) Select(frame image.Image, frameID int, prev landmark.Set) (landmark.FrameResult, error) {
	cands := strategy.Generate(frame, s.stratCfg)

	var results []candidateResult
	if s.workers > 1 && len(cands) > 1 {
		results = s.runParallel(cands, prev)
	} else {
		results = s.runSerial(cands, prev)
	}

	best := landmark.Sentinel(frameID)
	var infraErr error

	for i, res := range results {
		if res.err != nil {
			if !errors.Is(res.err, detect.ErrNoDetection) {
				log.Println("frame", frameID, "candidate", cands[i].Name, ":", res.err)
				if infraErr == nil {
					infraErr = res.err
				}
			}
			continue
		}

		// Strictly greater: on a tie the earlier candidate stays, which keeps
		// repeated runs byte-identical. Any real detection beats the sentinel,
		// even at score 0.
		if res.score > best.Score || (best.Empty() && len(res.set) > 0 && res.score >= best.Score) {
			best = landmark.FrameResult{
				FrameID:    frameID,
				Landmarks:  res.set,
				Strategy:   cands[i].Name,
				Confidence: cands[i].Confidence,
				Score:      res.score,
			}
		}
	}

	if best.Empty() && infraErr != nil {
		return best, infraErr
	}

	return best, nil
}

func (s *Selector) evaluate(cand strategy.Candidate, prev landmark.Set) (landmark.Set, float64, error) {
	set, err := s.det.Detect(cand.Image, cand.Confidence)
	if err != nil {
		return nil, 0, err
	}

	// Landmarks found on a mirrored image live in flipped coordinates; map
	// them back exactly once before they are compared with anything.
	if cand.MirrorX {
		set = set.Mirrored()
	}

	// Zoomed candidates report coordinates relative to their crop window.
	if cand.Zoom > 1 {
		set = set.Unzoomed(cand.Zoom)
	}

	return set, s.scorer.Score(set, prev), nil
}

func (s *Selector) runSerial(cands []strategy.Candidate, prev landmark.Set) []candidateResult {
	results := make([]candidateResult, len(cands))
	for i, cand := range cands {
		set, sc, err := s.evaluate(cand, prev)
		results[i] = candidateResult{idx: i, set: set, score: sc, err: err}
	}
	return results
}

// runParallel fans the candidates across a bounded worker pool and reassembles
// the results by candidate index, so reduction order never depends on
// completion order.
func (s *Selector) runParallel(cands []strategy.Candidate, prev landmark.Set) []candidateResult {
	out := make(chan candidateResult)
	semaphore := make(chan struct{}, s.workers)

	go func() {
		for i, cand := range cands {
			semaphore <- struct{}{}

			go func(i int, cand strategy.Candidate) {
				defer func() { <-semaphore }()

				set, sc, err := s.evaluate(cand, prev)
				out <- candidateResult{idx: i, set: set, score: sc, err: err}
			}(i, cand)
		}
	}()

	results := make([]candidateResult, len(cands))
	for range cands {
		res := <-out
		results[res.idx] = res
	}

	return results
}
