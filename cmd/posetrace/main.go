// posetrace runs the frame quality pass over one video: every frame goes
// through the preprocessing-candidate sweep, the best-scoring detection per
// frame is kept, low-quality stretches are rebuilt from their temporal
// neighbors, and the merged landmarks land in a CSV. Inputs and outputs may
// be local paths, gs:// objects, or s3:// objects. Note that this program's
// video decoding requires that ffmpeg be installed. (See
// https://github.com/unixpickle/ffmpego#installation)
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	_ "github.com/danceqc/posemisc/compileinfoprint"
	"github.com/danceqc/posemisc/detect"
	"github.com/danceqc/posemisc/pipeline"
)

func main() {
	var video, out, configPath, workerCmd, mode, writeConfig string
	var workers int
	var resume bool
	flag.StringVar(&video, "video", "", "Path to the input video or image directory.")
	flag.StringVar(&out, "out", "", "Path for the merged landmark CSV.")
	flag.StringVar(&configPath, "config", "", "Optional JSON config file. Absent fields keep production defaults.")
	flag.StringVar(&workerCmd, "worker", "", "Pose model worker command, e.g. 'python3 pose_worker.py'.")
	flag.StringVar(&mode, "mode", "", "Detector mode: 'independent' or 'tracking'. Must be chosen explicitly; the candidate sweep requires independent.")
	flag.IntVar(&workers, "workers", 0, "Candidate evaluations in flight per frame. 0 keeps the config value.")
	flag.BoolVar(&resume, "resume", false, "Resume an interrupted run from its partial CSV.")
	flag.StringVar(&writeConfig, "write-config", "", "Write the default config JSON to this path and exit.")
	flag.Parse()

	if writeConfig != "" {
		if err := pipeline.DefaultConfig().WriteConfig(writeConfig); err != nil {
			log.Fatalln(err)
		}
		log.Println("Wrote default config to", writeConfig)
		return
	}

	if video == "" || out == "" || workerCmd == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	var detectMode detect.Mode
	switch mode {
	case "independent":
		detectMode = detect.ModeIndependent
	case "tracking":
		detectMode = detect.ModeTracking
	default:
		flag.PrintDefaults()
		log.Fatalln("Please choose -mode independent or -mode tracking")
	}

	cfg := pipeline.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = pipeline.ParseConfigFromPath(configPath)
		if err != nil {
			log.Fatalln(err)
		}
	}
	if workers > 0 {
		cfg.Workers = workers
	}

	worker, err := detect.NewWorker(detect.WorkerConfig{
		Command: strings.Fields(workerCmd),
		Mode:    detectMode,
	})
	if err != nil {
		log.Fatalln(err)
	}
	defer worker.Close()

	res, err := pipeline.Run(context.Background(), pipeline.Options{
		VideoPath:    video,
		OutPath:      out,
		Detector:     worker,
		Config:       cfg,
		Resume:       resume,
		ShowProgress: true,
	})
	if err != nil {
		log.Fatalln(err)
	}

	log.Printf("Wrote %d merged frames to %s", len(res.Merged), res.OutPath)
}
