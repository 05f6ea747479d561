package jobs

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/timmy/vidnotes/internal/domain"
)

// ErrJobNotFound is returned when no live job has the requested id.
var ErrJobNotFound = errors.New("job not found")

// ErrJobExists is returned when creating a job with an id already in use.
var ErrJobExists = errors.New("job already exists")

// ErrInvalidTransition is returned for backward or post-terminal status changes.
var ErrInvalidTransition = errors.New("invalid status transition")

// ArtifactIndex reconstructs jobs that are no longer in memory from
// persisted artifacts. The store treats itself as a cache over it.
type ArtifactIndex interface {
	// ReconstructJob returns a minimal complete job for id, if artifacts exist.
	ReconstructJob(id string) (domain.Job, bool)

	// CompletedJobs returns a minimal job for every persisted transcript.
	CompletedJobs() ([]domain.Job, error)
}

// Store holds job records and their log buffers for the process lifetime.
// Every mutation goes through one lock shared by all jobs.
type Store struct {
	mu       sync.RWMutex
	jobs     map[string]*domain.Job
	logs     map[string]*LogBuffer
	logLines int
	index    ArtifactIndex
	now      func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithArtifactIndex makes Get and List fall back to persisted artifacts.
func WithArtifactIndex(index ArtifactIndex) Option {
	return func(s *Store) {
		s.index = index
	}
}

// WithLogLines overrides the per-job log capacity.
func WithLogLines(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.logLines = n
		}
	}
}

// WithClock overrides the time source used for created_at and log stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		jobs:     make(map[string]*domain.Job),
		logs:     make(map[string]*LogBuffer),
		logLines: DefaultLogLines,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new job. Status defaults to queued and CreatedAt to now.
func (s *Store) Create(job domain.Job) (domain.Job, error) {
	if job.ID == "" {
		return domain.Job{}, fmt.Errorf("create job: id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return domain.Job{}, fmt.Errorf("%w: %s", ErrJobExists, job.ID)
	}
	if job.Status == "" {
		job.Status = domain.JobStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.now().UTC()
	}

	stored := job
	s.jobs[job.ID] = &stored
	return stored, nil
}

// Update applies a partial mutation atomically and returns the new snapshot.
func (s *Store) Update(id string, update domain.JobUpdate) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if update.Status != nil && !job.Status.CanTransition(*update.Status) {
		return *job, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, *update.Status)
	}

	update.Apply(job)
	return *job, nil
}

// Get returns a snapshot of the job. Jobs missing from memory are
// reconstructed from persisted artifacts when an index is configured.
func (s *Store) Get(id string) (domain.Job, bool) {
	s.mu.RLock()
	job, ok := s.jobs[id]
	var snapshot domain.Job
	if ok {
		snapshot = *job
	}
	s.mu.RUnlock()

	if ok {
		return snapshot, true
	}
	if s.index == nil {
		return domain.Job{}, false
	}
	return s.index.ReconstructJob(id)
}

// Live reports whether id is held in memory.
func (s *Store) Live(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.jobs[id]
	return ok
}

// List merges live jobs with jobs discovered on disk, newest first.
// A disk scan failure degrades to the live jobs only.
func (s *Store) List() ([]domain.JobSummary, error) {
	s.mu.RLock()
	out := make([]domain.JobSummary, 0, len(s.jobs))
	seen := make(map[string]struct{}, len(s.jobs))
	for id, job := range s.jobs {
		out = append(out, job.Summary())
		seen[id] = struct{}{}
	}
	s.mu.RUnlock()

	var scanErr error
	if s.index != nil {
		persisted, err := s.index.CompletedJobs()
		if err != nil {
			scanErr = fmt.Errorf("scan artifacts: %w", err)
		}
		for _, job := range persisted {
			if _, ok := seen[job.ID]; ok {
				continue
			}
			out = append(out, job.Summary())
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, scanErr
}

// AppendLog stamps line with the wall-clock time and appends it to the
// job's log buffer, evicting the oldest entry beyond capacity.
func (s *Store) AppendLog(id, line string) {
	entry := fmt.Sprintf("%s - %s", s.now().Format("15:04:05"), line)

	s.mu.Lock()
	defer s.mu.Unlock()

	buf, ok := s.logs[id]
	if !ok {
		buf = NewLogBuffer(s.logLines)
		s.logs[id] = buf
	}
	buf.Append(entry)
}

// Logs returns the buffered log lines for id, oldest first.
// Unknown ids yield an empty slice.
func (s *Store) Logs(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buf, ok := s.logs[id]
	if !ok {
		return []string{}
	}
	return buf.Lines()
}

// Logf is a formatting convenience over AppendLog.
func (s *Store) Logf(id, format string, args ...interface{}) {
	s.AppendLog(id, fmt.Sprintf(format, args...))
}
