package mocks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/1001stories/stories-api/internal/platform/mail"
	"github.com/1001stories/stories-api/internal/platform/redis"
	"github.com/1001stories/stories-api/internal/task"
)

// MockLocker implements redis.Locker in memory. TTLs are recorded but not
// enforced.
type MockLocker struct {
	TryLockFn func(ctx context.Context, key string, ttl time.Duration) (string, error)
	UnlockFn  func(ctx context.Context, key, token string) error

	mu   sync.Mutex
	held map[string]string
	ttls map[string]time.Duration
}

var _ redis.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker {
	return &MockLocker{held: make(map[string]string), ttls: make(map[string]time.Duration)}
}

// TryLock implements redis.Locker.
func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.TryLockFn != nil {
		return m.TryLockFn(ctx, key, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[key]; ok {
		return "", redis.ErrLockHeld
	}
	token := uuid.NewString()
	m.held[key] = token
	m.ttls[key] = ttl
	return token, nil
}

// Unlock implements redis.Locker.
func (m *MockLocker) Unlock(ctx context.Context, key, token string) error {
	if m.UnlockFn != nil {
		return m.UnlockFn(ctx, key, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] == token {
		delete(m.held, key)
	}
	return nil
}

// Held reports whether key is claimed.
func (m *MockLocker) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.held[key]
	return ok
}

// TTL returns the TTL key was claimed with.
func (m *MockLocker) TTL(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttls[key]
}

// MockRateLimiter implements redis.RateLimiter with in-memory counters that
// never reset.
type MockRateLimiter struct {
	AllowFn func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	mu     sync.Mutex
	counts map[string]int
}

var _ redis.RateLimiter = (*MockRateLimiter)(nil)

// Allow implements redis.RateLimiter.
func (m *MockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if m.AllowFn != nil {
		return m.AllowFn(ctx, key, limit, window)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[key]++
	return m.counts[key] <= limit, nil
}

// MockMailSender implements mail.Sender and records sent messages.
type MockMailSender struct {
	SendFn func(ctx context.Context, msg mail.Message) error

	mu   sync.Mutex
	sent []mail.Message
}

var _ mail.Sender = (*MockMailSender)(nil)

// Send implements mail.Sender.
func (m *MockMailSender) Send(ctx context.Context, msg mail.Message) error {
	if m.SendFn != nil {
		if err := m.SendFn(ctx, msg); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns the messages delivered so far.
func (m *MockMailSender) Sent() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.sent...)
}

// EnqueuedJob is a job captured by MockEnqueuer.
type EnqueuedJob struct {
	ID       uuid.UUID
	Type     string
	Payload  json.RawMessage
	Priority int
}

// MockEnqueuer implements task.Enqueuer and records jobs without running
// them.
type MockEnqueuer struct {
	EnqueueFn func(ctx context.Context, jobType string, payload any, priority int) (uuid.UUID, error)

	mu   sync.Mutex
	jobs []EnqueuedJob
}

var _ task.Enqueuer = (*MockEnqueuer)(nil)

// Enqueue implements task.Enqueuer.
func (m *MockEnqueuer) Enqueue(ctx context.Context, jobType string, payload any, priority int) (uuid.UUID, error) {
	if m.EnqueueFn != nil {
		return m.EnqueueFn(ctx, jobType, payload, priority)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, err
	}
	job := EnqueuedJob{ID: uuid.New(), Type: jobType, Payload: raw, Priority: priority}
	m.mu.Lock()
	m.jobs = append(m.jobs, job)
	m.mu.Unlock()
	return job.ID, nil
}

// Jobs returns the jobs enqueued so far.
func (m *MockEnqueuer) Jobs() []EnqueuedJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EnqueuedJob(nil), m.jobs...)
}
