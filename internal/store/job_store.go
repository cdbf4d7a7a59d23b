package store

import (
	"errors"
	"sync"
	"time"

	"github.com/dunamismax/batchpix/internal/domain"
)

var (
	ErrJobNotFound = errors.New("job not found")
	// ErrStaleExecution means the job collection was replaced while a
	// transform was in flight; its result belongs to a discarded batch and
	// the caller must release the result's preview handle itself.
	ErrStaleExecution = errors.New("execution outlived its batch")
)

// JobStore is the insertion-ordered job collection. It is the only place
// job status transitions happen, which keeps the scheduler's invariants
// (single processing job, result/error exclusivity) local to one type.
type JobStore struct {
	mu         sync.RWMutex
	jobs       map[string]*domain.Job
	order      []string
	generation uint64
}

func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]*domain.Job),
	}
}

// Replace swaps in a whole new pending collection and returns the preview
// handles of the jobs it displaced, for the caller to release.
func (s *JobStore) Replace(jobs []domain.Job) (released []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	released = s.collectHandlesLocked()
	s.jobs = make(map[string]*domain.Job, len(jobs))
	s.order = make([]string, 0, len(jobs))
	s.generation++

	now := time.Now().UTC()
	for i := range jobs {
		job := jobs[i]
		job.Status = domain.JobStatusPending
		job.Result = nil
		job.ErrorKind = ""
		job.CreatedAt = now
		job.UpdatedAt = now
		s.jobs[job.ID] = &job
		s.order = append(s.order, job.ID)
	}
	return released
}

// Clear discards every job and returns their preview handles.
func (s *JobStore) Clear() (released []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	released = s.collectHandlesLocked()
	s.jobs = make(map[string]*domain.Job)
	s.order = nil
	s.generation++
	return released
}

// ClaimNextPending marks the first pending job (insertion order) as
// processing, stamping the given settings snapshot onto it. The returned
// generation ties the eventual Complete/Fail back to this batch.
func (s *JobStore) ClaimNextPending(settings domain.TransformSettings) (domain.Job, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		job := s.jobs[id]
		if job.Status != domain.JobStatusPending {
			continue
		}
		job.Status = domain.JobStatusProcessing
		job.Settings = settings
		job.UpdatedAt = time.Now().UTC()
		return *job, s.generation, true
	}
	return domain.Job{}, 0, false
}

func (s *JobStore) Complete(id string, generation uint64, result domain.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.inFlightLocked(id, generation)
	if err != nil {
		return err
	}
	job.Status = domain.JobStatusCompleted
	job.Result = &result
	job.ErrorKind = ""
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *JobStore) Fail(id string, generation uint64, errorKind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.inFlightLocked(id, generation)
	if err != nil {
		return err
	}
	job.Status = domain.JobStatusError
	job.Result = nil
	job.ErrorKind = errorKind
	job.UpdatedAt = time.Now().UTC()
	return nil
}

// RearmTerminal returns every completed/error job to pending so the next
// drain reprocesses it. Processing jobs are untouched: they finish under the
// settings snapshot they started with. Returned handles must be released.
func (s *JobStore) RearmTerminal() (released []string, rearmed int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, id := range s.order {
		job := s.jobs[id]
		if !job.Terminal() {
			continue
		}
		if job.Result != nil && job.Result.PreviewHandle != "" {
			released = append(released, job.Result.PreviewHandle)
		}
		job.Status = domain.JobStatusPending
		job.Result = nil
		job.ErrorKind = ""
		job.UpdatedAt = now
		rearmed++
	}
	return released, rearmed
}

func (s *JobStore) Get(id string) (domain.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, false
	}
	return *job, true
}

// List snapshots every job in insertion order.
func (s *JobStore) List() []domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Job, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.jobs[id])
	}
	return out
}

func (s *JobStore) CountStatus(status string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, job := range s.jobs {
		if job.Status == status {
			n++
		}
	}
	return n
}

func (s *JobStore) inFlightLocked(id string, generation uint64) (*domain.Job, error) {
	if generation != s.generation {
		return nil, ErrStaleExecution
	}
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	if job.Status != domain.JobStatusProcessing {
		return nil, ErrStaleExecution
	}
	return job, nil
}

func (s *JobStore) collectHandlesLocked() []string {
	var handles []string
	for _, job := range s.jobs {
		if job.Result != nil && job.Result.PreviewHandle != "" {
			handles = append(handles, job.Result.PreviewHandle)
		}
	}
	return handles
}
