// Package jobs tracks pipeline runs submitted through the web service: one
// Job per uploaded video, from queued through done or failed, with enough
// progress detail to answer polling clients.
package jobs

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is a job's lifecycle position. Jobs only move forward:
// queued -> running -> done|failed.
type State string

const (
	StateQueued  State = "queued"
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Job describes one submitted video and the progress of its pipeline run.
type Job struct {
	ID string `db:"id" json:"id"`

	// ContentHash fingerprints the uploaded bytes, so clients can spot
	// resubmissions of the same video.
	ContentHash string `db:"content_hash" json:"content_hash"`

	VideoPath string `db:"video_path" json:"video_path"`

	// CSVPath is decided at submission time; it becomes readable once State
	// is done.
	CSVPath string `db:"csv_path" json:"csv_path"`

	State State `db:"state" json:"state"`

	FramesDone int `db:"frames_done" json:"frames_done"`

	// FramesTotal is -1 while unknown (streams report no length up front).
	FramesTotal int `db:"frames_total" json:"frames_total"`

	Error string `db:"error" json:"error,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NewJob builds a queued job with a fresh ID.
func NewJob(videoPath, csvPath, contentHash string) Job {
	now := time.Now().UTC()
	return Job{
		ID:          uuid.New().String(),
		ContentHash: contentHash,
		VideoPath:   videoPath,
		CSVPath:     csvPath,
		State:       StateQueued,
		FramesTotal: -1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Store persists jobs. Implementations are safe for concurrent use.
type Store interface {
	Create(job Job) error
	Get(id string) (Job, bool, error)
	SetState(id string, state State, errMsg string) error
	SetProgress(id string, done, total int) error

	// List returns all jobs, newest first.
	List() ([]Job, error)

	Delete(id string) error
	Close() error
}

// MemoryStore keeps jobs in process memory. Suitable for single-instance
// servers where losing job history on restart is acceptable.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]Job)}
}

func (s *MemoryStore) Create(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job

	return nil
}

func (s *MemoryStore) Get(id string) (Job, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	return job, ok, nil
}

func (s *MemoryStore) SetState(id string, state State, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}

	job.State = state
	job.Error = errMsg
	job.UpdatedAt = time.Now().UTC()
	s.jobs[id] = job

	return nil
}

func (s *MemoryStore) SetProgress(id string, done, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}

	job.FramesDone = done
	job.FramesTotal = total
	job.UpdatedAt = time.Now().UTC()
	s.jobs[id] = job

	return nil
}

func (s *MemoryStore) List() ([]Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	return out, nil
}

func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.jobs, id)

	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
