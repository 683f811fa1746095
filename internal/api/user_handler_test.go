package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/platform/logger"
	"github.com/1001stories/stories-api/internal/service"
	"github.com/1001stories/stories-api/internal/store"
)

func TestUpdatePreferences(t *testing.T) {
	log, _ := logger.NewTestLogger(t)
	actor := writer()

	var got service.Preferences
	users := &fakeUserService{
		UpdatePreferencesFn: func(_ context.Context, id uuid.UUID, p service.Preferences) (*domain.User, error) {
			got = p
			return &domain.User{ID: id, DigestFrequency: *p.DigestFrequency}, nil
		},
	}
	h := NewUserHandler(users, &fakeNotifications{}, log)

	rr := serve(h.UpdatePreferences, request(t, http.MethodPatch, "/api/user/preferences",
		map[string]any{"digestFrequency": "WEEKLY", "emailNotifications": false}, actor, nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NotNil(t, got.DigestFrequency)
	assert.Equal(t, domain.DigestWeekly, *got.DigestFrequency)
	require.NotNil(t, got.EmailNotifications)
	assert.False(t, *got.EmailNotifications)
	assert.Nil(t, got.Name)

	rr = serve(h.UpdatePreferences, request(t, http.MethodPatch, "/api/user/preferences",
		map[string]any{"digestFrequency": "HOURLY"}, actor, nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeleteAccount(t *testing.T) {
	log, _ := logger.NewTestLogger(t)
	deadline := time.Date(2026, 11, 14, 0, 0, 0, 0, time.UTC)

	calls := 0
	users := &fakeUserService{
		DeleteAccountFn: func(_ context.Context, id uuid.UUID) (*domain.DeletionRequest, error) {
			calls++
			if calls > 1 {
				return nil, service.ErrAlreadyDeleted
			}
			return &domain.DeletionRequest{UserID: id, Status: domain.DeletionStatusSoftDeleted, RecoveryDeadline: deadline}, nil
		},
	}
	h := NewUserHandler(users, &fakeNotifications{}, log)
	actor := writer()

	rr := serve(h.Delete, request(t, http.MethodDelete, "/api/user", nil, actor, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[DeletionResponse](t, rr)
	assert.Equal(t, domain.DeletionStatusSoftDeleted, resp.Status)
	assert.True(t, deadline.Equal(resp.RecoveryDeadline))

	rr = serve(h.Delete, request(t, http.MethodDelete, "/api/user", nil, actor, nil))
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestNotifications(t *testing.T) {
	log, _ := logger.NewTestLogger(t)
	actor := writer()
	noteID := uuid.New()

	notes := &fakeNotifications{
		ListFn: func(_ context.Context, userID uuid.UUID, _ int) ([]*domain.Notification, error) {
			return []*domain.Notification{{ID: noteID, UserID: userID, Title: "Review ready"}}, nil
		},
		MarkReadFn: func(_ context.Context, _, id uuid.UUID) error {
			if id != noteID {
				return store.ErrNotificationNotFound
			}
			return nil
		},
	}
	h := NewUserHandler(&fakeUserService{}, notes, log)

	rr := serve(h.ListNotifications, request(t, http.MethodGet, "/api/notifications", nil, actor, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, decode[ListResponse[domain.Notification]](t, rr).Count)

	rr = serve(h.MarkNotificationRead, request(t, http.MethodPost, "/", nil, actor,
		map[string]string{"id": noteID.String()}))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = serve(h.MarkNotificationRead, request(t, http.MethodPost, "/", nil, actor,
		map[string]string{"id": uuid.NewString()}))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Notification not found", errorMessage(t, rr))
}

func TestUnauthenticatedRequest(t *testing.T) {
	log, _ := logger.NewTestLogger(t)
	h := NewUserHandler(&fakeUserService{}, &fakeNotifications{}, log)

	rr := serve(h.Me, request(t, http.MethodGet, "/api/user", nil, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
