package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danceqc/posemisc/jobs"
)

func testServer(t *testing.T) (*Global, *httptest.Server) {
	t.Helper()

	dataDir := t.TempDir()
	for _, sub := range []string{"uploads", "results"} {
		if err := os.MkdirAll(filepath.Join(dataDir, sub), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", sub, err)
		}
	}

	g := &Global{
		log:     log.New(io.Discard, "", 0),
		store:   jobs.NewMemoryStore(),
		dataDir: dataDir,
		queue:   make(chan string, 4),
	}

	srv := httptest.NewServer(router(g))
	t.Cleanup(srv.Close)

	return g, srv
}

func postVideo(t *testing.T, srv *httptest.Server, filename string, payload []byte) *http.Response {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("video", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := fw.Write(payload); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	resp, err := http.Post(srv.URL+"/videos", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST /videos: %v", err)
	}

	return resp
}

func TestCreateVideoQueuesJob(t *testing.T) {
	g, srv := testServer(t)

	resp := postVideo(t, srv, "clip.mp4", []byte("not really a video"))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var job jobs.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		t.Fatalf("decode job: %v", err)
	}

	if job.State != jobs.StateQueued {
		t.Errorf("expected state %s, got %s", jobs.StateQueued, job.State)
	}
	if len(job.ContentHash) != 64 {
		t.Errorf("expected 64-character hash, got %q", job.ContentHash)
	}
	if filepath.Ext(job.VideoPath) != ".mp4" {
		t.Errorf("expected upload to keep the .mp4 extension, got %s", job.VideoPath)
	}

	saved, err := os.ReadFile(job.VideoPath)
	if err != nil {
		t.Fatalf("read saved upload: %v", err)
	}
	if string(saved) != "not really a video" {
		t.Errorf("saved upload does not match the posted bytes")
	}

	select {
	case id := <-g.queue:
		if id != job.ID {
			t.Errorf("queued %s, expected %s", id, job.ID)
		}
	default:
		t.Error("expected the job ID on the queue")
	}
}

func TestCreateVideoWithoutFieldFails(t *testing.T) {
	_, srv := testServer(t)

	resp, err := http.Post(srv.URL+"/videos", "application/json", bytes.NewReader([]byte("{}")))
	if err != nil {
		t.Fatalf("POST /videos: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetJobUnknownID(t *testing.T) {
	_, srv := testServer(t)

	resp, err := http.Get(srv.URL + "/jobs/no-such-id")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetResultLifecycle(t *testing.T) {
	g, srv := testServer(t)

	csvPath := filepath.Join(g.dataDir, "results", "r.csv")
	job := jobs.NewJob(filepath.Join(g.dataDir, "uploads", "r.mp4"), csvPath, "HASH")
	if err := g.store.Create(job); err != nil {
		t.Fatalf("create job: %v", err)
	}

	resp, err := http.Get(srv.URL + "/jobs/" + job.ID + "/result")
	if err != nil {
		t.Fatalf("GET result: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 while queued, got %d", resp.StatusCode)
	}

	if err := os.WriteFile(csvPath, []byte("frame_id,landmark_id\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := g.store.SetState(job.ID, jobs.StateDone, ""); err != nil {
		t.Fatalf("set done: %v", err)
	}

	resp, err = http.Get(srv.URL + "/jobs/" + job.ID + "/result")
	if err != nil {
		t.Fatalf("GET result: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Errorf("expected text/csv, got %s", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "frame_id,landmark_id\n" {
		t.Errorf("unexpected result body %q", body)
	}
}

func TestDeleteJobRefusesRunning(t *testing.T) {
	g, srv := testServer(t)

	job := jobs.NewJob("v.mp4", "r.csv", "HASH")
	if err := g.store.Create(job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := g.store.SetState(job.ID, jobs.StateRunning, ""); err != nil {
		t.Fatalf("set running: %v", err)
	}

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/jobs/"+job.ID, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for a running job, got %d", resp.StatusCode)
	}
}

func TestDeleteJobRemovesArtifacts(t *testing.T) {
	g, srv := testServer(t)

	videoPath := filepath.Join(g.dataDir, "uploads", "d.mp4")
	csvPath := filepath.Join(g.dataDir, "results", "d.csv")
	for _, p := range []string{videoPath, csvPath} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}

	job := jobs.NewJob(videoPath, csvPath, "HASH")
	if err := g.store.Create(job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := g.store.SetState(job.ID, jobs.StateDone, ""); err != nil {
		t.Fatalf("set done: %v", err)
	}

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/jobs/"+job.ID, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	if _, _, err := g.store.Get(job.ID); err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if _, ok, _ := g.store.Get(job.ID); ok {
		t.Error("job still present after delete")
	}
	for _, p := range []string{videoPath, csvPath} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed", p)
		}
	}
}

func TestListJobsNewestFirst(t *testing.T) {
	g, srv := testServer(t)

	older := jobs.NewJob("a.mp4", "a.csv", "A")
	newer := jobs.NewJob("b.mp4", "b.csv", "B")
	newer.CreatedAt = older.CreatedAt.Add(time.Second)
	newer.UpdatedAt = newer.CreatedAt
	for _, j := range []jobs.Job{older, newer} {
		if err := g.store.Create(j); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	resp, err := http.Get(srv.URL + "/jobs")
	if err != nil {
		t.Fatalf("GET /jobs: %v", err)
	}
	defer resp.Body.Close()

	var list []jobs.Job
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}

	if len(list) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(list))
	}
	if list[0].ID != newer.ID {
		t.Errorf("expected the newer job first, got %s", list[0].ID)
	}
}
