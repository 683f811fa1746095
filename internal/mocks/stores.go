package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/store"
)

// MockSubmissionStore implements store.SubmissionStore in memory.
type MockSubmissionStore struct {
	CreateFn       func(ctx context.Context, s *domain.Submission) error
	GetByIDFn      func(ctx context.Context, id uuid.UUID) (*domain.Submission, error)
	UpdateStatusFn func(ctx context.Context, s *domain.Submission) error

	mu   sync.Mutex
	subs map[uuid.UUID]*domain.Submission
}

var _ store.SubmissionStore = (*MockSubmissionStore)(nil)

// NewMockSubmissionStore creates a store seeded with subs.
func NewMockSubmissionStore(subs ...*domain.Submission) *MockSubmissionStore {
	m := &MockSubmissionStore{subs: make(map[uuid.UUID]*domain.Submission)}
	for _, s := range subs {
		m.subs[s.ID] = s
	}
	return m
}

func (m *MockSubmissionStore) Create(ctx context.Context, s *domain.Submission) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.subs[s.ID] = &cp
	return nil
}

func (m *MockSubmissionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, store.ErrSubmissionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubmissionStore) ListByAuthor(ctx context.Context, authorID uuid.UUID, limit, offset int) ([]*domain.Submission, error) {
	return m.list(func(s *domain.Submission) bool { return s.AuthorID == authorID }, limit, offset), nil
}

func (m *MockSubmissionStore) ListByStatus(ctx context.Context, status domain.SubmissionStatus, limit, offset int) ([]*domain.Submission, error) {
	return m.list(func(s *domain.Submission) bool { return s.Status == status }, limit, offset), nil
}

func (m *MockSubmissionStore) list(match func(*domain.Submission) bool, limit, offset int) []*domain.Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Submission{}
	for _, s := range m.subs {
		if match(s) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset)
}

func (m *MockSubmissionStore) UpdateStatus(ctx context.Context, s *domain.Submission) error {
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(ctx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.subs[s.ID]
	if !ok {
		return store.ErrSubmissionNotFound
	}
	cur.Status = s.Status
	cur.UpdatedAt = s.UpdatedAt
	return nil
}

func (m *MockSubmissionStore) WithTx(*sql.Tx) store.SubmissionStore { return m }

// MockReviewStore implements store.ReviewStore in memory.
type MockReviewStore struct {
	CreateFn func(ctx context.Context, r *domain.AIReview) error

	mu      sync.Mutex
	reviews []*domain.AIReview
}

var _ store.ReviewStore = (*MockReviewStore)(nil)

func NewMockReviewStore() *MockReviewStore { return &MockReviewStore{} }

func (m *MockReviewStore) Create(ctx context.Context, r *domain.AIReview) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.reviews = append(m.reviews, &cp)
	return nil
}

func (m *MockReviewStore) ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]*domain.AIReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.AIReview{}
	for i := len(m.reviews) - 1; i >= 0; i-- {
		if m.reviews[i].SubmissionID == submissionID {
			cp := *m.reviews[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockReviewStore) ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]*domain.AIReview, error) {
	return []*domain.AIReview{}, nil
}

func (m *MockReviewStore) WithTx(*sql.Tx) store.ReviewStore { return m }

// All returns every stored review in insertion order.
func (m *MockReviewStore) All() []*domain.AIReview {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.AIReview(nil), m.reviews...)
}

// MockNotificationStore implements store.NotificationStore in memory.
type MockNotificationStore struct {
	CreateFn           func(ctx context.Context, n *domain.Notification) error
	ListUnreadFn       func(ctx context.Context, userID uuid.UUID, from, to time.Time, limit int) ([]*domain.Notification, error)
	DeleteReadBeforeFn func(ctx context.Context, cutoff time.Time) (int64, error)

	mu    sync.Mutex
	items []*domain.Notification
}

var _ store.NotificationStore = (*MockNotificationStore)(nil)

func NewMockNotificationStore(items ...*domain.Notification) *MockNotificationStore {
	return &MockNotificationStore{items: items}
}

func (m *MockNotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *n
	m.items = append(m.items, &cp)
	return nil
}

func (m *MockNotificationStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Notification, error) {
	return m.filter(func(n *domain.Notification) bool { return n.UserID == userID }, limit), nil
}

func (m *MockNotificationStore) ListUnread(ctx context.Context, userID uuid.UUID, from, to time.Time, limit int) ([]*domain.Notification, error) {
	if m.ListUnreadFn != nil {
		return m.ListUnreadFn(ctx, userID, from, to, limit)
	}
	return m.filter(func(n *domain.Notification) bool {
		return n.UserID == userID && !n.Read && !n.CreatedAt.Before(from) && n.CreatedAt.Before(to)
	}, limit), nil
}

func (m *MockNotificationStore) filter(match func(*domain.Notification) bool, limit int) []*domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Notification{}
	for _, n := range m.items {
		if match(n) {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, 0)
}

func (m *MockNotificationStore) MarkRead(ctx context.Context, userID, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.items {
		if n.ID == id && n.UserID == userID {
			n.Read = true
			n.ReadAt = &at
			return nil
		}
	}
	return store.ErrNotificationNotFound
}

func (m *MockNotificationStore) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteReadBeforeFn != nil {
		return m.DeleteReadBeforeFn(ctx, cutoff)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.items[:0]
	var deleted int64
	for _, n := range m.items {
		if n.Read && n.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, n)
	}
	m.items = kept
	return deleted, nil
}

func (m *MockNotificationStore) WithTx(*sql.Tx) store.NotificationStore { return m }

// All returns every stored notification in insertion order.
func (m *MockNotificationStore) All() []*domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Notification(nil), m.items...)
}

// MockExportStore implements store.ExportStore in memory, including the
// one-active-request-per-user constraint.
type MockExportStore struct {
	CreateFn         func(ctx context.Context, r *domain.ExportRequest) error
	GetByIDFn        func(ctx context.Context, id uuid.UUID) (*domain.ExportRequest, error)
	MarkProcessingFn func(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkCompletedFn  func(ctx context.Context, id uuid.UUID, filePath string, size int64, at time.Time) error
	MarkDownloadedFn func(ctx context.Context, id uuid.UUID, at time.Time) error

	mu   sync.Mutex
	reqs map[uuid.UUID]*domain.ExportRequest
}

var _ store.ExportStore = (*MockExportStore)(nil)

func NewMockExportStore(reqs ...*domain.ExportRequest) *MockExportStore {
	m := &MockExportStore{reqs: make(map[uuid.UUID]*domain.ExportRequest)}
	for _, r := range reqs {
		m.reqs[r.ID] = r
	}
	return m
}

func (m *MockExportStore) Create(ctx context.Context, r *domain.ExportRequest) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.reqs {
		if cur.UserID == r.UserID && cur.Status.IsActive() {
			return store.ErrActiveExportExists
		}
	}
	cp := *r
	m.reqs[r.ID] = &cp
	return nil
}

func (m *MockExportStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ExportRequest, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reqs[id]
	if !ok {
		return nil, store.ErrExportNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MockExportStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.ExportRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.ExportRequest{}
	for _, r := range m.reqs {
		if r.UserID == userID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, 0), nil
}

func (m *MockExportStore) update(id uuid.UUID, fn func(r *domain.ExportRequest)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reqs[id]
	if !ok {
		return store.ErrExportNotFound
	}
	fn(r)
	return nil
}

func (m *MockExportStore) MarkProcessing(ctx context.Context, id uuid.UUID, at time.Time) error {
	if m.MarkProcessingFn != nil {
		return m.MarkProcessingFn(ctx, id, at)
	}
	return m.update(id, func(r *domain.ExportRequest) {
		r.Status = domain.ExportStatusProcessing
		r.StartedAt = &at
	})
}

func (m *MockExportStore) MarkCompleted(ctx context.Context, id uuid.UUID, filePath string, size int64, at time.Time) error {
	if m.MarkCompletedFn != nil {
		return m.MarkCompletedFn(ctx, id, filePath, size, at)
	}
	return m.update(id, func(r *domain.ExportRequest) {
		r.Status = domain.ExportStatusCompleted
		r.FilePath = filePath
		r.FileSize = size
		r.CompletedAt = &at
	})
}

func (m *MockExportStore) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	return m.update(id, func(r *domain.ExportRequest) {
		r.Status = domain.ExportStatusFailed
		r.ErrorMessage = message
	})
}

func (m *MockExportStore) MarkDownloaded(ctx context.Context, id uuid.UUID, at time.Time) error {
	if m.MarkDownloadedFn != nil {
		return m.MarkDownloadedFn(ctx, id, at)
	}
	return m.update(id, func(r *domain.ExportRequest) {
		r.Status = domain.ExportStatusDownloaded
		r.DownloadedAt = &at
	})
}

func (m *MockExportStore) MarkExpired(ctx context.Context, id uuid.UUID) error {
	return m.update(id, func(r *domain.ExportRequest) {
		r.Status = domain.ExportStatusExpired
		r.FilePath = ""
	})
}

func (m *MockExportStore) ListExpired(ctx context.Context, now time.Time) ([]*domain.ExportRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.ExportRequest{}
	for _, r := range m.reqs {
		done := r.Status == domain.ExportStatusCompleted || r.Status == domain.ExportStatusDownloaded
		if done && !r.ExpiresAt.After(now) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockExportStore) FailStale(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.reqs {
		if !r.Status.IsActive() {
			continue
		}
		since := r.CreatedAt
		if r.StartedAt != nil {
			since = *r.StartedAt
		}
		if since.Before(cutoff) {
			r.Status = domain.ExportStatusFailed
			r.ErrorMessage = message
			n++
		}
	}
	return n, nil
}

func (m *MockExportStore) WithTx(*sql.Tx) store.ExportStore { return m }

// MockDeletionStore implements store.DeletionStore in memory.
type MockDeletionStore struct {
	ListDueFn         func(ctx context.Context, now time.Time) ([]*domain.DeletionRequest, error)
	MarkHardDeletedFn func(ctx context.Context, id uuid.UUID, at time.Time) error

	mu   sync.Mutex
	reqs []*domain.DeletionRequest
}

var _ store.DeletionStore = (*MockDeletionStore)(nil)

func NewMockDeletionStore(reqs ...*domain.DeletionRequest) *MockDeletionStore {
	return &MockDeletionStore{reqs: reqs}
}

func (m *MockDeletionStore) Create(ctx context.Context, r *domain.DeletionRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.reqs = append(m.reqs, &cp)
	return nil
}

func (m *MockDeletionStore) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.DeletionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reqs {
		if r.UserID == userID && r.Status == domain.DeletionStatusSoftDeleted {
			cp := *r
			return &cp, nil
		}
	}
	return nil, store.ErrDeletionRequestNotFound
}

func (m *MockDeletionStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.DeletionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.DeletionRequest{}
	for _, r := range m.reqs {
		if r.UserID == userID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockDeletionStore) ListDue(ctx context.Context, now time.Time) ([]*domain.DeletionRequest, error) {
	if m.ListDueFn != nil {
		return m.ListDueFn(ctx, now)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.DeletionRequest{}
	for _, r := range m.reqs {
		if r.Status == domain.DeletionStatusSoftDeleted && r.RecoveryDeadline.Before(now) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockDeletionStore) setStatus(id uuid.UUID, fn func(r *domain.DeletionRequest)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reqs {
		if r.ID == id {
			fn(r)
			return nil
		}
	}
	return store.ErrDeletionRequestNotFound
}

func (m *MockDeletionStore) Cancel(ctx context.Context, id uuid.UUID) error {
	return m.setStatus(id, func(r *domain.DeletionRequest) { r.Status = domain.DeletionStatusCancelled })
}

func (m *MockDeletionStore) MarkHardDeleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	if m.MarkHardDeletedFn != nil {
		return m.MarkHardDeletedFn(ctx, id, at)
	}
	return m.setStatus(id, func(r *domain.DeletionRequest) {
		r.Status = domain.DeletionStatusHardDeleted
		r.HardDeletedAt = &at
	})
}

func (m *MockDeletionStore) WithTx(*sql.Tx) store.DeletionStore { return m }

// MockCleanupLogStore implements store.CleanupLogStore in memory.
type MockCleanupLogStore struct {
	mu      sync.Mutex
	entries []*domain.CleanupLog
}

var _ store.CleanupLogStore = (*MockCleanupLogStore)(nil)

func (m *MockCleanupLogStore) Create(ctx context.Context, e *domain.CleanupLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *MockCleanupLogStore) ListRecent(ctx context.Context, limit int) ([]*domain.CleanupLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.CleanupLog, 0, len(m.entries))
	for i := len(m.entries) - 1; i >= 0; i-- {
		out = append(out, m.entries[i])
	}
	return page(out, limit, 0), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
