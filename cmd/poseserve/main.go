// poseserve accepts video uploads over HTTP and runs the frame quality pass
// on each in the background: POST /videos returns a job, GET /jobs/{id} polls
// its progress, and GET /jobs/{id}/result downloads the merged landmark CSV
// once the job is done. Job state lives in memory or, with -db, in SQLite so
// history survives restarts. Note that this program's video decoding requires
// that ffmpeg be installed. (See
// https://github.com/unixpickle/ffmpego#installation)
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	_ "github.com/danceqc/posemisc/compileinfoprint"
	"github.com/danceqc/posemisc/bulkstore"
	"github.com/danceqc/posemisc/detect"
	"github.com/danceqc/posemisc/jobs"
	"github.com/danceqc/posemisc/pipeline"
)

var global *Global

func main() {
	errors := make(chan error, 1)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig,
		os.Interrupt,
		os.Kill,
		syscall.SIGTERM,
		syscall.SIGUSR1,
	)

	var dataDir, dbPath, workerCmd, configPath string
	var port, concurrent int
	flag.StringVar(&dataDir, "data", "poseserve-data", "Directory for uploaded videos and result CSVs. Created if absent.")
	flag.StringVar(&dbPath, "db", "", "Optional SQLite file for job state. Empty keeps jobs in memory only.")
	flag.StringVar(&workerCmd, "worker", "", "Pose model worker command, e.g. 'python3 pose_worker.py'.")
	flag.StringVar(&configPath, "config", "", "Optional JSON config file. Absent fields keep production defaults.")
	flag.IntVar(&port, "port", 9019, "Port for HTTP server")
	flag.IntVar(&concurrent, "concurrent", 1, "Pipeline runs in flight at once. The worker serializes model calls either way.")
	flag.Parse()

	if workerCmd == "" {
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

	for _, sub := range []string{"uploads", "results"} {
		if err := os.MkdirAll(filepath.Join(dataDir, sub), 0o755); err != nil {
			log.Fatalln(err)
		}
	}

	var store jobs.Store
	var err error
	if dbPath != "" {
		store, err = jobs.OpenSQLite(dbPath)
	} else {
		store = jobs.NewMemoryStore()
	}
	if err != nil {
		log.Fatalln(err)
	}
	defer store.Close()

	// The candidate sweep presents frames out of order, so the shared worker
	// always runs in independent mode.
	worker, err := detect.NewWorker(detect.WorkerConfig{
		Command: strings.Fields(workerCmd),
		Mode:    detect.ModeIndependent,
	})
	if err != nil {
		log.Fatalln(err)
	}
	defer worker.Close()

	global = &Global{
		log:      log.New(os.Stderr, log.Prefix(), log.Ldate|log.Ltime),
		store:    store,
		blob:     bulkstore.New(),
		detector: worker,
		cfg:      cfg,
		dataDir:  dataDir,
		queue:    make(chan string, 128),
	}

	global.log.Println("Launching poseserve")

	// Runners must be draining the queue before interrupted jobs are pushed
	// back onto it, or a backlog wider than the queue would block startup.
	for i := 0; i < concurrent; i++ {
		go global.runJobs()
	}

	requeued, err := requeueInterrupted(global)
	if err != nil {
		log.Fatalln(err)
	}
	if requeued > 0 {
		global.log.Println("Requeued", requeued, "interrupted jobs")
	}

	go func() {
		global.log.Println("Starting HTTP server on port", port)
		if err := http.ListenAndServe(fmt.Sprintf(`:%d`, port), router(global)); err != nil {
			errors <- err
			global.log.Println(err)
			sig <- syscall.SIGTERM
			return
		}
	}()

Outer:
	for {
		select {
		case sigl := <-sig:

			if sigl == syscall.SIGUSR1 {
				SigStatus()
				continue
			}

			global.log.Printf("\nExit: %s\n", sigl.String())

			break Outer

		case err := <-errors:
			if err == nil {
				global.log.Println("Finished")
				break Outer
			}

			global.log.Println("Exiting due to error", err)
			os.Exit(1)
		}
	}
}

func SigStatus() {
	global.log.Println("There are", runtime.NumGoroutine(), "goroutines running")
}

// requeueInterrupted puts jobs that were queued or mid-run when the server
// last stopped back on the queue. Only meaningful with -db; a memory store
// starts empty.
func requeueInterrupted(g *Global) (int, error) {
	list, err := g.store.List()
	if err != nil {
		return 0, err
	}

	n := 0
	for _, job := range list {
		if job.State != jobs.StateQueued && job.State != jobs.StateRunning {
			continue
		}
		if err := g.store.SetState(job.ID, jobs.StateQueued, ""); err != nil {
			return n, err
		}
		g.queue <- job.ID
		n++
	}

	return n, nil
}
