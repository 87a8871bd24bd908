// Package jobs tracks asynchronous scoring requests in memory. Entries
// are evicted after a TTL so the registry cannot grow without bound.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Job is one tracked scoring request. Result holds the caller-defined
// payload once the job completes.
type Job struct {
	ID        string    `json:"job_id"`
	StreamID  string    `json:"stream_id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Error     string    `json:"error,omitempty"`
	Result    any       `json:"result,omitempty"`
}

// Store is a mutex-guarded job registry. All methods are safe for
// concurrent use; Get returns a copy so callers never share the stored
// entry.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

// Create registers a new job in the processing state. The supplied id
// may be empty, in which case one is generated.
func (s *Store) Create(id, streamID string) Job {
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	job := &Job{
		ID:        id,
		StreamID:  streamID,
		Status:    StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return *job
}

func (s *Store) Get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Complete marks the job finished and attaches its result.
func (s *Store) Complete(id string, result any) {
	s.update(id, func(j *Job) {
		j.Status = StatusCompleted
		j.Result = result
	})
}

// Fail marks the job failed with the error message.
func (s *Store) Fail(id string, err error) {
	s.update(id, func(j *Job) {
		j.Status = StatusFailed
		if err != nil {
			j.Error = err.Error()
		}
	})
}

func (s *Store) update(id string, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	fn(job)
	job.UpdatedAt = time.Now().UTC()
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Active counts jobs still in the processing state.
func (s *Store) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, job := range s.jobs {
		if job.Status == StatusProcessing {
			n++
		}
	}
	return n
}

// Start launches the eviction loop and returns immediately. The loop
// stops when ctx is cancelled.
func (s *Store) Start(ctx context.Context) {
	interval := s.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.evictExpired(time.Now().UTC()); n > 0 {
					slog.Debug("evicted expired jobs", "count", n)
				}
			}
		}
	}()
}

// evictExpired removes every job not updated within the TTL, whatever
// its status; a processing job that old has been abandoned by its worker.
func (s *Store) evictExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for id, job := range s.jobs {
		if now.Sub(job.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
			n++
		}
	}
	return n
}
