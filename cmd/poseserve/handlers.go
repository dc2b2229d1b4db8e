package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/danceqc/posemisc/framecsv"
	"github.com/danceqc/posemisc/jobs"
)

type handler struct {
	*Global
	router *mux.Router
}

func (h *handler) json(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Println(err)
	}
}

type apiError struct {
	Error string `json:"error"`
}

func (h *handler) Index(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, map[string]interface{}{
		"service": "poseserve",
		"endpoints": []string{
			"POST /videos (multipart field 'video')",
			"GET /jobs",
			"GET /jobs/{id}",
			"GET /jobs/{id}/result",
			"GET /jobs/{id}/frames/{frame}",
			"DELETE /jobs/{id}",
		},
	})
}

func (h *handler) Goroutines(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "There are %d goroutines running\n", runtime.NumGoroutine())
}

// CreateVideo stores the upload under the new job's ID, fingerprints the
// bytes while they stream to disk, and queues the job.
func (h *handler) CreateVideo(w http.ResponseWriter, r *http.Request) {
	src, header, err := r.FormFile("video")
	if err != nil {
		h.json(w, http.StatusBadRequest, apiError{Error: "multipart field 'video' is required"})
		return
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" {
		ext = ".mp4"
	}

	job := jobs.NewJob("", "", "")
	job.VideoPath = filepath.Join(h.dataDir, "uploads", job.ID+ext)
	job.CSVPath = filepath.Join(h.dataDir, "results", job.ID+".csv")

	f, err := os.Create(job.VideoPath)
	if err != nil {
		h.json(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}

	hash, err := jobs.HashContent(io.TeeReader(src, f))
	if err != nil {
		f.Close()
		os.Remove(job.VideoPath)
		h.json(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	if err := f.Close(); err != nil {
		h.json(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	job.ContentHash = hash

	if err := h.store.Create(job); err != nil {
		h.json(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}

	select {
	case h.queue <- job.ID:
	default:
		h.store.SetState(job.ID, jobs.StateFailed, "queue full")
		h.json(w, http.StatusServiceUnavailable, apiError{Error: "queue full, try again later"})
		return
	}

	h.json(w, http.StatusAccepted, job)
}

func (h *handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List()
	if err != nil {
		h.json(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}

	h.json(w, http.StatusOK, list)
}

func (h *handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookup(w, r)
	if !ok {
		return
	}

	h.json(w, http.StatusOK, job)
}

func (h *handler) GetResult(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if job.State != jobs.StateDone {
		h.json(w, http.StatusConflict, apiError{Error: fmt.Sprintf("job is %s", job.State)})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, job.ID))
	http.ServeFile(w, r, job.CSVPath)
}

// GetFrame serves a single frame's landmarks from a finished job. The result
// CSV is indexed by byte extent rather than parsed whole, so probing one frame
// of an hour-long run stays cheap.
func (h *handler) GetFrame(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if job.State != jobs.StateDone {
		h.json(w, http.StatusConflict, apiError{Error: fmt.Sprintf("job is %s", job.State)})
		return
	}

	frameID, err := strconv.Atoi(mux.Vars(r)["frame"])
	if err != nil || frameID < 0 {
		h.json(w, http.StatusBadRequest, apiError{Error: "frame must be a non-negative integer"})
		return
	}

	ra, err := framecsv.OpenRandomAccess(job.CSVPath)
	if err != nil {
		h.json(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	defer ra.Close()

	fr, found, err := ra.Frame(frameID)
	if err != nil {
		h.json(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	if !found {
		h.json(w, http.StatusNotFound, apiError{Error: "no such frame"})
		return
	}

	h.json(w, http.StatusOK, fr)
}

func (h *handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if job.State == jobs.StateRunning {
		h.json(w, http.StatusConflict, apiError{Error: "job is running"})
		return
	}

	if err := h.store.Delete(job.ID); err != nil {
		h.json(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}

	// Artifacts go with the job; a queued job that later surfaces from the
	// queue finds no record and is skipped.
	os.Remove(job.VideoPath)
	os.Remove(job.CSVPath)

	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) lookup(w http.ResponseWriter, r *http.Request) (jobs.Job, bool) {
	id := mux.Vars(r)["id"]

	job, ok, err := h.store.Get(id)
	if err != nil {
		h.json(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return jobs.Job{}, false
	}
	if !ok {
		h.json(w, http.StatusNotFound, apiError{Error: "no such job"})
		return jobs.Job{}, false
	}

	return job, true
}
