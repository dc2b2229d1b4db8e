package main

import (
	"github.com/danceqc/posemisc/bulkstore"
	"github.com/danceqc/posemisc/detect"
	"github.com/danceqc/posemisc/jobs"
	"github.com/danceqc/posemisc/pipeline"
)

type Global struct {
	log logger

	store jobs.Store
	blob  *bulkstore.Store

	detector detect.Detector
	cfg      pipeline.Config

	// dataDir holds uploads/ and results/.
	dataDir string

	// queue carries job IDs to the runner goroutines.
	queue chan string
}

type logger interface {
	Print(v ...interface{})
	Printf(format string, v ...interface{})
	Println(v ...interface{})
}
