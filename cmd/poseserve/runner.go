package main

import (
	"context"

	"github.com/danceqc/posemisc/jobs"
	"github.com/danceqc/posemisc/pipeline"
)

// Progress rows are cheap but not free; don't write one per frame.
const progressEvery = 25

// runJobs consumes job IDs from the queue until the process exits. Several
// copies may run side by side; the detect worker serializes its own calls.
func (g *Global) runJobs() {
	for id := range g.queue {
		g.runOne(id)
	}
}

func (g *Global) runOne(id string) {
	job, ok, err := g.store.Get(id)
	if err != nil {
		g.log.Println("job", id, ":", err)
		return
	}
	if !ok {
		// Deleted while it sat in the queue.
		return
	}

	if err := g.store.SetState(id, jobs.StateRunning, ""); err != nil {
		g.log.Println("job", id, ":", err)
		return
	}

	res, err := pipeline.Run(context.Background(), pipeline.Options{
		VideoPath: job.VideoPath,
		OutPath:   job.CSVPath,
		Detector:  g.detector,
		Config:    g.cfg,
		Store:     g.blob,
		OnFrame: func(done, total int) {
			if done%progressEvery == 0 || done == total {
				g.store.SetProgress(id, done, total)
			}
		},
	})
	if err != nil {
		g.log.Println("job", id, "failed:", err)
		if err := g.store.SetState(id, jobs.StateFailed, err.Error()); err != nil {
			g.log.Println("job", id, ":", err)
		}
		return
	}

	g.store.SetProgress(id, res.FramesRead, res.FramesRead)
	if err := g.store.SetState(id, jobs.StateDone, ""); err != nil {
		g.log.Println("job", id, ":", err)
		return
	}

	g.log.Println("job", id, "done:", res.Report.String())
}
