//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/platform/postgres"
	"github.com/1001stories/stories-api/internal/store"
	"github.com/1001stories/stories-api/internal/task"
	"github.com/1001stories/stories-api/internal/testdb"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createUser(t *testing.T, tx *sql.Tx, role domain.Role) *domain.User {
	t.Helper()
	u, err := domain.NewUser(uuid.NewString()+"@example.org", "correct-horse-battery", role)
	require.NoError(t, err)
	require.NoError(t, postgres.NewPostgresUserStore(tx, 4, nil).Create(context.Background(), u))
	return u
}

func createSubmission(t *testing.T, tx *sql.Tx, author *domain.User) *domain.Submission {
	t.Helper()
	sub, err := domain.NewSubmission(author.ID, "The River", "Once upon a time there was a river.", "en")
	require.NoError(t, err)
	require.NoError(t, postgres.NewPostgresSubmissionStore(tx, nil).Create(context.Background(), sub))
	return sub
}

func TestUserStore(t *testing.T) {
	db := testdb.GetTestDBWithT(t)
	ctx := context.Background()

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		users := postgres.NewPostgresUserStore(tx, 4, nil)
		u := createUser(t, tx, domain.RoleWriter)
		assert.Empty(t, u.Password)
		assert.NotEmpty(t, u.HashedPassword)

		got, err := users.GetByEmail(ctx, " "+u.Email+" ")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)

		dup, err := domain.NewUser(u.Email, "another-long-password", domain.RoleLearner)
		require.NoError(t, err)
		assert.ErrorIs(t, users.Create(ctx, dup), store.ErrEmailExists)

		got.DigestFrequency = domain.DigestDaily
		require.NoError(t, users.Update(ctx, got))

		recipients, err := users.ListDigestRecipients(ctx, domain.DigestDaily)
		require.NoError(t, err)
		assert.Contains(t, userIDs(recipients), u.ID)

		require.NoError(t, users.SoftDelete(ctx, u.ID, time.Now().UTC()))
		recipients, err = users.ListDigestRecipients(ctx, domain.DigestDaily)
		require.NoError(t, err)
		assert.NotContains(t, userIDs(recipients), u.ID)

		require.NoError(t, users.Delete(ctx, u.ID))
		_, err = users.GetByID(ctx, u.ID)
		assert.ErrorIs(t, err, store.ErrUserNotFound)
	})
}

func userIDs(users []*domain.User) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

func TestReviewStore_IsAdditive(t *testing.T) {
	db := testdb.GetTestDBWithT(t)
	ctx := context.Background()

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		author := createUser(t, tx, domain.RoleWriter)
		sub := createSubmission(t, tx, author)
		reviews := postgres.NewPostgresReviewStore(tx, nil)

		score := 82
		for i := 0; i < 2; i++ {
			r, err := domain.NewAIReview(sub.ID, domain.ReviewTypeGrammar, domain.ReviewStatusCompleted,
				json.RawMessage(`{"grammarScore":82}`), &score, []string{"Use past tense"}, "gemini", time.Second)
			require.NoError(t, err)
			r.Annotations = []domain.Annotation{{
				SuggestionIndex: 0, HighlightedText: "goes", StartOffset: 4, EndOffset: 8,
				SuggestionType: domain.ReviewTypeGrammar, Color: domain.ReviewTypeGrammar.Color(),
			}}
			require.NoError(t, reviews.Create(ctx, r))
		}

		list, err := reviews.ListBySubmission(ctx, sub.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, []string{"Use past tense"}, list[0].Suggestions)
		require.Len(t, list[0].Annotations, 1)
		assert.Equal(t, 4, list[0].Annotations[0].StartOffset)
		assert.Equal(t, "#fbbf24", list[0].Annotations[0].Color)
		require.NotNil(t, list[0].Score)
		assert.Equal(t, 82, *list[0].Score)

		byAuthor, err := reviews.ListByAuthor(ctx, author.ID)
		require.NoError(t, err)
		assert.Len(t, byAuthor, 2)
		assert.NotNil(t, byAuthor[1].Annotations)

		orphan, err := domain.NewAIReview(uuid.New(), domain.ReviewTypeGrammar, domain.ReviewStatusFailed,
			nil, nil, nil, "gemini", 0)
		require.NoError(t, err)
		assert.ErrorIs(t, reviews.Create(ctx, orphan), store.ErrSubmissionNotFound)
	})
}

func TestExportStore_OneActivePerUser(t *testing.T) {
	db := testdb.GetTestDBWithT(t)
	ctx := context.Background()

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		u := createUser(t, tx, domain.RoleLearner)
		exports := postgres.NewPostgresExportStore(tx, nil)

		first, err := domain.NewExportRequest(u.ID, 7*24*time.Hour)
		require.NoError(t, err)
		require.NoError(t, exports.Create(ctx, first))

		second, err := domain.NewExportRequest(u.ID, 7*24*time.Hour)
		require.NoError(t, err)
		assert.ErrorIs(t, exports.Create(ctx, second), store.ErrActiveExportExists)

		now := time.Now().UTC()
		require.NoError(t, exports.MarkProcessing(ctx, first.ID, now))
		require.NoError(t, exports.MarkCompleted(ctx, first.ID, "/tmp/x.zip", 1234, now))

		// Completed requests no longer block a new one.
		require.NoError(t, exports.Create(ctx, second))

		expired, err := exports.ListExpired(ctx, now.Add(8*24*time.Hour))
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, first.ID, expired[0].ID)

		require.NoError(t, exports.MarkExpired(ctx, first.ID))
		got, err := exports.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ExportStatusExpired, got.Status)
		assert.Empty(t, got.FilePath)
	})
}

func TestNotificationStore(t *testing.T) {
	db := testdb.GetTestDBWithT(t)
	ctx := context.Background()

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		u := createUser(t, tx, domain.RoleLearner)
		notes := postgres.NewPostgresNotificationStore(tx, nil)

		old, err := domain.NewNotification(u.ID, domain.NotificationSystem, "Welcome", "")
		require.NoError(t, err)
		old.CreatedAt = time.Now().UTC().AddDate(0, 0, -200)
		require.NoError(t, notes.Create(ctx, old))

		recent, err := domain.NewNotification(u.ID, domain.NotificationReviewReady, "Review ready", "Grammar review finished")
		require.NoError(t, err)
		require.NoError(t, notes.Create(ctx, recent))

		unread, err := notes.ListUnread(ctx, u.ID, time.Now().UTC().Add(-time.Hour), time.Now().UTC().Add(time.Minute), 20)
		require.NoError(t, err)
		require.Len(t, unread, 1)
		assert.Equal(t, recent.ID, unread[0].ID)

		require.NoError(t, notes.MarkRead(ctx, u.ID, old.ID, time.Now().UTC()))
		assert.ErrorIs(t, notes.MarkRead(ctx, uuid.New(), old.ID, time.Now().UTC()), store.ErrNotificationNotFound)

		n, err := notes.DeleteReadBefore(ctx, time.Now().UTC().AddDate(0, 0, -180))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}

func TestDeletionStore(t *testing.T) {
	db := testdb.GetTestDBWithT(t)
	ctx := context.Background()

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		u := createUser(t, tx, domain.RoleLearner)
		deletions := postgres.NewPostgresDeletionStore(tx, nil)

		req, err := domain.NewDeletionRequest(u.ID, -time.Hour)
		require.NoError(t, err)
		require.NoError(t, deletions.Create(ctx, req))

		again, err := domain.NewDeletionRequest(u.ID, time.Hour)
		require.NoError(t, err)
		assert.ErrorIs(t, deletions.Create(ctx, again), store.ErrDuplicate)

		due, err := deletions.ListDue(ctx, time.Now().UTC())
		require.NoError(t, err)
		require.Len(t, due, 1)

		require.NoError(t, deletions.MarkHardDeleted(ctx, req.ID, time.Now().UTC()))
		_, err = deletions.GetActiveByUser(ctx, u.ID)
		assert.ErrorIs(t, err, store.ErrDeletionRequestNotFound)
	})
}

func TestJobStore_ClaimOrderAndLifecycle(t *testing.T) {
	db := testdb.GetTestDBWithT(t)
	ctx := context.Background()

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		jobs := postgres.NewPostgresJobStore(tx)
		jobType := "test-" + uuid.NewString()
		base := time.Now().UTC()

		mk := func(priority int, offset time.Duration) *task.Job {
			j := &task.Job{
				ID:        uuid.New(),
				Type:      jobType,
				Payload:   json.RawMessage(`{"n":1}`),
				Priority:  priority,
				State:     task.StateWaiting,
				CreatedAt: base.Add(offset),
				UpdatedAt: base.Add(offset),
			}
			require.NoError(t, jobs.Insert(ctx, j))
			return j
		}
		low := mk(5, 0)
		high := mk(1, time.Second)

		claimed, err := jobs.ClaimNext(ctx, jobType)
		require.NoError(t, err)
		require.NotNil(t, claimed)
		assert.Equal(t, high.ID, claimed.ID)
		assert.Equal(t, task.StateActive, claimed.State)
		assert.Equal(t, 1, claimed.Attempts)

		require.NoError(t, jobs.Complete(ctx, claimed.ID, json.RawMessage(`{"ok":true}`)))
		done, err := jobs.Get(ctx, claimed.ID)
		require.NoError(t, err)
		assert.Equal(t, task.StateCompleted, done.State)
		assert.JSONEq(t, `{"ok":true}`, string(done.Result))

		next, err := jobs.ClaimNext(ctx, jobType)
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, low.ID, next.ID)

		n, err := jobs.RequeueStale(ctx, time.Now().UTC().Add(time.Minute))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))

		none, err := jobs.ClaimNext(ctx, "missing-"+jobType)
		require.NoError(t, err)
		assert.Nil(t, none)

		_, err = jobs.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, store.ErrJobNotFound)
	})
}
