package task

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/1001stories/stories-api/internal/store"
	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests.
// It is not durable.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*Job
	seq  map[uuid.UUID]int64
	next int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[uuid.UUID]*Job),
		seq:  make(map[uuid.UUID]int64),
	}
}

var _ Store = (*MemoryStore)(nil)

// Put stores a copy of job as-is, overwriting any job with the same ID.
func (s *MemoryStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(job)
}

func (s *MemoryStore) put(job *Job) {
	cp := *job
	if _, ok := s.seq[job.ID]; !ok {
		s.next++
		s.seq[job.ID] = s.next
	}
	s.jobs[job.ID] = &cp
}

func (s *MemoryStore) Insert(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(job)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *MemoryStore) ClaimNext(_ context.Context, jobType string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *Job
	for _, job := range s.jobs {
		if job.Type != jobType || job.State != StateWaiting {
			continue
		}
		if best == nil || s.before(job, best) {
			best = job
		}
	}
	if best == nil {
		return nil, nil
	}

	now := time.Now().UTC()
	best.State = StateActive
	best.Attempts++
	best.Progress = 0
	best.StartedAt = &now
	best.UpdatedAt = now

	cp := *best
	return &cp, nil
}

func (s *MemoryStore) before(a, b *Job) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return s.seq[a.ID] < s.seq[b.ID]
}

func (s *MemoryStore) UpdateProgress(_ context.Context, id uuid.UUID, progress int) error {
	return s.update(id, func(job *Job) {
		job.Progress = progress
	})
}

func (s *MemoryStore) Complete(_ context.Context, id uuid.UUID, result json.RawMessage) error {
	return s.update(id, func(job *Job) {
		now := time.Now().UTC()
		job.State = StateCompleted
		job.Progress = 100
		job.Result = result
		job.FailureReason = ""
		job.FinishedAt = &now
	})
}

func (s *MemoryStore) Fail(_ context.Context, id uuid.UUID, reason string) error {
	return s.update(id, func(job *Job) {
		now := time.Now().UTC()
		job.State = StateFailed
		job.FailureReason = reason
		job.FinishedAt = &now
	})
}

func (s *MemoryStore) update(id uuid.UUID, fn func(job *Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	fn(job)
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) RequeueStale(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, job := range s.jobs {
		if job.State == StateActive && job.UpdatedAt.Before(cutoff) {
			job.State = StateWaiting
			job.UpdatedAt = time.Now().UTC()
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CountByState(_ context.Context) (map[string]map[State]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]map[State]int)
	for _, job := range s.jobs {
		if counts[job.Type] == nil {
			counts[job.Type] = make(map[State]int)
		}
		counts[job.Type][job.State]++
	}
	return counts, nil
}

func (s *MemoryStore) List(_ context.Context, jobType string, state State, limit int) ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Job
	for _, job := range s.jobs {
		if jobType != "" && job.Type != jobType {
			continue
		}
		if state != "" && job.State != state {
			continue
		}
		cp := *job
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return s.seq[out[i].ID] > s.seq[out[j].ID]
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
