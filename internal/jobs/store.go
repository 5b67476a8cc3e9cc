package jobs

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"propeval/server/internal/models"
)

var (
	// ErrNotFound is returned for unknown job or property identifiers.
	ErrNotFound = errors.New("job not found")

	// ErrInProgress is returned when a property already has a live job.
	ErrInProgress = errors.New("evaluation already in progress")
)

// Job is one evaluation attempt. Stage carries the pipeline stage the job is
// in (or failed at); Status is the coarse in_progress/completed/failed view.
type Job struct {
	ID         string                   `json:"id"`
	PropertyID string                   `json:"property_id,omitempty"`
	Stage      string                   `json:"stage"`
	Status     string                   `json:"status"`
	Result     *models.EvaluationResult `json:"result,omitempty"`
	Error      string                   `json:"error,omitempty"`
	CreatedAt  time.Time                `json:"created_at"`
	UpdatedAt  time.Time                `json:"updated_at"`
}

func (j *Job) terminal() bool {
	return j.Status == "completed" || j.Status == "failed"
}

// Store is the process-wide registry of in-flight and completed jobs, keyed by
// job identifier with a secondary index by owning property.
type Store struct {
	mu         sync.RWMutex
	jobs       map[string]*Job
	byProperty map[string]string
	ttl        time.Duration
	logger     *logrus.Logger
	done       chan struct{}
	closeOnce  sync.Once
}

func NewStore(logger *logrus.Logger, ttl time.Duration) *Store {
	return &Store{
		jobs:       make(map[string]*Job),
		byProperty: make(map[string]string),
		ttl:        ttl,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Create registers a new job. propertyID may be empty for ad-hoc quick
// evaluations. A property with a live job rejects the new attempt; a property
// with a terminal job gets a fresh job replacing the old state (no history).
func (s *Store) Create(propertyID string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if propertyID != "" {
		if existingID, ok := s.byProperty[propertyID]; ok {
			existing := s.jobs[existingID]
			if existing != nil && !existing.terminal() {
				return Job{}, ErrInProgress
			}
			delete(s.jobs, existingID)
		}
	}

	now := time.Now()
	job := &Job{
		ID:         uuid.NewString(),
		PropertyID: propertyID,
		Stage:      "starting",
		Status:     "in_progress",
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.jobs[job.ID] = job
	if propertyID != "" {
		s.byProperty[propertyID] = job.ID
	}

	s.logger.WithFields(logrus.Fields{
		"job_id":      job.ID,
		"property_id": propertyID,
	}).Debug("Created evaluation job")

	return *job, nil
}

// Get returns a snapshot of the job so callers never observe a torn record.
func (s *Store) Get(jobID string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	return *job, nil
}

// GetByProperty returns the snapshot of the property's current job.
func (s *Store) GetByProperty(propertyID string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobID, ok := s.byProperty[propertyID]
	if !ok {
		return Job{}, ErrNotFound
	}
	job, ok := s.jobs[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	return *job, nil
}

// Update applies a mutation under the store lock. Updates against a terminal
// job are ignored: once completed or failed, a job's state never changes.
func (s *Store) Update(jobID string, mutate func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.terminal() {
		return nil
	}

	mutate(job)
	job.UpdatedAt = time.Now()
	return nil
}

// Len returns the number of registered jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Start launches the reaper that evicts terminal jobs past their TTL. The
// registry has process lifetime only; nothing survives a restart.
func (s *Store) Start() {
	go s.reapLoop()
}

func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

func (s *Store) reapLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.reap()
		}
	}
}

func (s *Store) reap() {
	cutoff := time.Now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, job := range s.jobs {
		if !job.terminal() || job.UpdatedAt.After(cutoff) {
			continue
		}
		delete(s.jobs, id)
		if job.PropertyID != "" && s.byProperty[job.PropertyID] == id {
			delete(s.byProperty, job.PropertyID)
		}
		s.logger.WithField("job_id", id).Debug("Evicted expired evaluation job")
	}
}
