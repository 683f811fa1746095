package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/mocks"
	"github.com/1001stories/stories-api/internal/service/auth"
	"github.com/1001stories/stories-api/internal/store"
)

func newUserService(users *mocks.MockUserStore, deletions *mocks.MockDeletionStore) (*UserService, *mocks.MockTransactor) {
	tx := &mocks.MockTransactor{}
	return NewUserService(users, deletions, tx, prefixVerifier(), 30*24*time.Hour, nil), tx
}

func TestUserService_Register(t *testing.T) {
	existing := newStoredUser(t, "taken@example.com", domain.RoleLearner)

	tests := []struct {
		name    string
		input   RegisterInput
		wantErr error
	}{
		{
			name:  "writer",
			input: RegisterInput{Email: "writer@example.com", Password: testPassword, Role: domain.RoleWriter, Language: "ko"},
		},
		{
			name:    "admin cannot self-register",
			input:   RegisterInput{Email: "boss@example.com", Password: testPassword, Role: domain.RoleAdmin},
			wantErr: ErrForbidden,
		},
		{
			name:    "duplicate email",
			input:   RegisterInput{Email: "TAKEN@example.com", Password: testPassword, Role: domain.RoleTeacher},
			wantErr: store.ErrEmailExists,
		},
		{
			name:    "short password",
			input:   RegisterInput{Email: "short@example.com", Password: "short", Role: domain.RoleLearner},
			wantErr: domain.ErrPasswordTooShort,
		},
		{
			name:    "unknown role",
			input:   RegisterInput{Email: "who@example.com", Password: testPassword, Role: "JANITOR"},
			wantErr: domain.ErrInvalidRole,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := mocks.NewMockUserStore(existing)
			svc, _ := newUserService(users, mocks.NewMockDeletionStore())

			user, err := svc.Register(context.Background(), tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input.Role, user.Role)
			assert.Equal(t, tt.input.Language, user.Language)
			assert.Empty(t, user.Password, "plaintext password must not survive storage")
			assert.True(t, users.Exists(user.ID))
		})
	}
}

func TestUserService_Authenticate(t *testing.T) {
	active := newStoredUser(t, "active@example.com", domain.RoleWriter)
	deleted := newStoredUser(t, "gone@example.com", domain.RoleWriter)
	deletedAt := time.Now().UTC()
	deleted.DeletedAt = &deletedAt

	svc, _ := newUserService(mocks.NewMockUserStore(active, deleted), mocks.NewMockDeletionStore())

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"valid credentials", "active@example.com", testPassword, nil},
		{"wrong password", "active@example.com", "not the password", auth.ErrInvalidCredentials},
		{"unknown email", "nobody@example.com", testPassword, auth.ErrInvalidCredentials},
		{"soft-deleted account", "gone@example.com", testPassword, ErrAccountDeleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Authenticate(context.Background(), tt.email, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, active.ID, user.ID)
		})
	}
}

func TestUserService_UpdatePreferences(t *testing.T) {
	user := newStoredUser(t, "prefs@example.com", domain.RoleLearner)
	users := mocks.NewMockUserStore(user)
	svc, tx := newUserService(users, mocks.NewMockDeletionStore())
	ctx := context.Background()

	weekly := domain.DigestWeekly
	off := false
	lang := "es"
	updated, err := svc.UpdatePreferences(ctx, user.ID, Preferences{
		Language:           &lang,
		EmailNotifications: &off,
		DigestFrequency:    &weekly,
	})
	require.NoError(t, err)
	assert.Equal(t, "es", updated.Language)
	assert.False(t, updated.EmailNotifications)
	assert.Equal(t, domain.DigestWeekly, updated.DigestFrequency)
	assert.Equal(t, 1, tx.Calls())

	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DigestWeekly, stored.DigestFrequency)

	bogus := domain.DigestFrequency("HOURLY")
	_, err = svc.UpdatePreferences(ctx, user.ID, Preferences{DigestFrequency: &bogus})
	assert.ErrorIs(t, err, domain.ErrInvalidDigestFrequency)
}

func TestUserService_DeleteAndRestore(t *testing.T) {
	ctx := context.Background()
	user := newStoredUser(t, "leaving@example.com", domain.RoleWriter)
	users := mocks.NewMockUserStore(user)
	deletions := mocks.NewMockDeletionStore()
	svc, _ := newUserService(users, deletions)

	req, err := svc.DeleteAccount(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeletionStatusSoftDeleted, req.Status)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), req.RecoveryDeadline, time.Minute)

	_, err = svc.Authenticate(ctx, user.Email, testPassword)
	assert.ErrorIs(t, err, ErrAccountDeleted)

	_, err = svc.DeleteAccount(ctx, user.ID)
	assert.ErrorIs(t, err, ErrAlreadyDeleted)

	_, err = svc.RestoreAccount(ctx, user.Email, "not the password")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	restored, err := svc.RestoreAccount(ctx, user.Email, testPassword)
	require.NoError(t, err)
	assert.Nil(t, restored.DeletedAt)

	history, err := deletions.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.DeletionStatusCancelled, history[0].Status)

	_, err = svc.Authenticate(ctx, user.Email, testPassword)
	assert.NoError(t, err)
}

func TestUserService_RestoreAfterDeadline(t *testing.T) {
	ctx := context.Background()
	user := newStoredUser(t, "late@example.com", domain.RoleLearner)
	deletedAt := time.Now().UTC().Add(-31 * 24 * time.Hour)
	user.DeletedAt = &deletedAt

	req, err := domain.NewDeletionRequest(user.ID, 30*24*time.Hour)
	require.NoError(t, err)
	req.SoftDeletedAt = deletedAt
	req.RecoveryDeadline = deletedAt.Add(30 * 24 * time.Hour)

	svc, _ := newUserService(mocks.NewMockUserStore(user), mocks.NewMockDeletionStore(req))

	_, err = svc.RestoreAccount(ctx, user.Email, testPassword)
	assert.ErrorIs(t, err, ErrNotRecoverable)
}

func TestUserService_DeleteAccountReturnsTransactionError(t *testing.T) {
	user := newStoredUser(t, "tx@example.com", domain.RoleLearner)
	users := mocks.NewMockUserStore(user)
	deletions := mocks.NewMockDeletionStore()
	boom := errors.New("commit failed")

	svc := NewUserService(users, deletions, &mocks.MockTransactor{
		RunInTxFn: func(ctx context.Context, fn store.TxFn) error {
			if err := fn(ctx, nil); err != nil {
				return err
			}
			return boom
		},
	}, prefixVerifier(), time.Hour, nil)

	_, err := svc.DeleteAccount(context.Background(), user.ID)
	assert.ErrorIs(t, err, boom)
}
